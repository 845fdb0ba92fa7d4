package domain

import "encoding/json"

// Verdict is the outcome of evaluating one constraint on one instance.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	// VerdictUnresolvable means the data needed to decide is not available yet.
	VerdictUnresolvable Verdict = "unresolvable"
)

// Status is the overall outcome of a validation report.
type Status string

const (
	StatusValid      Status = "valid"
	StatusInvalid    Status = "invalid"
	StatusIncomplete Status = "incomplete"
)

// Operand records how one side of a constraint was resolved.
type Operand struct {
	Ref      string          `json:"ref"`
	Value    json.RawMessage `json:"value,omitempty"`
	Resolved bool            `json:"resolved"`
	Source   string          `json:"source,omitempty"`
}

// ValidationResult is the verdict for one (instance, constraint index) pair.
type ValidationResult struct {
	InstanceID string    `json:"instance_id"`
	TypeID     string    `json:"type_id"`
	Index      int       `json:"index"`
	Expression string    `json:"expression"`
	Verdict    Verdict   `json:"verdict"`
	Reason     string    `json:"reason,omitempty"`
	Operands   []Operand `json:"operands,omitempty"`
}

// IssueKind classifies connectivity and parameter issues.
type IssueKind string

const (
	IssueMissingConnection      IssueKind = "missing_connection"
	IssueIncompatibleConnection IssueKind = "incompatible_connection"
	IssueMissingParameter       IssueKind = "missing_parameter"
)

// PortDescriptor describes one end of a connection in an issue.
type PortDescriptor struct {
	Instance  string         `json:"instance"`
	Port      string         `json:"port"`
	Type      ConnectionType `json:"type"`
	Direction Direction      `json:"direction"`
}

// ConnectivityIssue reports a structural defect in the schematic graph.
// MissingConnection fills Instance and Port; IncompatibleConnection fills From
// and To with both port descriptors.
type ConnectivityIssue struct {
	Kind     IssueKind       `json:"kind"`
	Instance string          `json:"instance,omitempty"`
	Port     string          `json:"port,omitempty"`
	From     *PortDescriptor `json:"from,omitempty"`
	To       *PortDescriptor `json:"to,omitempty"`
	Message  string          `json:"message"`
}

// ParameterIssue reports a required parameter with neither a value nor a default.
type ParameterIssue struct {
	Kind      IssueKind `json:"kind"`
	Instance  string    `json:"instance"`
	Parameter string    `json:"parameter"`
	Message   string    `json:"message"`
}

// Summary counts constraint verdicts.
type Summary struct {
	Pass         int `json:"pass"`
	Fail         int `json:"fail"`
	Unresolvable int `json:"unresolvable"`
}

// Report is the deterministic outcome of validating one schematic.
type Report struct {
	SchematicID        string              `json:"schematic_id"`
	Status             Status              `json:"overall_status"`
	Summary            Summary             `json:"summary"`
	ConnectivityIssues []ConnectivityIssue `json:"connectivity_issues"`
	ParameterIssues    []ParameterIssue    `json:"parameter_issues"`
	ConstraintResults  []ValidationResult  `json:"constraint_results"`
}

// Failed returns the results with a Fail verdict.
func (r Report) Failed() []ValidationResult {
	return r.byVerdict(VerdictFail)
}

// Unresolved returns the results with an Unresolvable verdict.
func (r Report) Unresolved() []ValidationResult {
	return r.byVerdict(VerdictUnresolvable)
}

func (r Report) byVerdict(v Verdict) []ValidationResult {
	var out []ValidationResult
	for _, res := range r.ConstraintResults {
		if res.Verdict == v {
			out = append(out, res)
		}
	}
	return out
}
