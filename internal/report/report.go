// Package report assembles validation findings into a deterministic Report
// and renders it as JSON or text.
package report

import (
	"sort"

	"pidcheck/pkg/domain"
)

// Builder collects the findings of one validation run.
type Builder struct {
	schematicID  string
	connectivity []domain.ConnectivityIssue
	parameters   []domain.ParameterIssue
	results      []domain.ValidationResult
}

// NewBuilder starts a report for the given schematic.
func NewBuilder(schematicID string) *Builder {
	return &Builder{schematicID: schematicID}
}

// AddConnectivity appends connectivity issues in the order they were found.
func (b *Builder) AddConnectivity(issues ...domain.ConnectivityIssue) *Builder {
	b.connectivity = append(b.connectivity, issues...)
	return b
}

// AddParameterIssues appends required-parameter issues.
func (b *Builder) AddParameterIssues(issues ...domain.ParameterIssue) *Builder {
	b.parameters = append(b.parameters, issues...)
	return b
}

// AddResults appends constraint results.
func (b *Builder) AddResults(results ...domain.ValidationResult) *Builder {
	b.results = append(b.results, results...)
	return b
}

// Build returns the report. Constraint results are ordered by instance id and
// then by constraint index; issues keep their insertion order within each
// instance. Slices are never nil so the JSON form always carries arrays.
func (b *Builder) Build() domain.Report {
	r := domain.Report{
		SchematicID:        b.schematicID,
		ConnectivityIssues: append([]domain.ConnectivityIssue{}, b.connectivity...),
		ParameterIssues:    append([]domain.ParameterIssue{}, b.parameters...),
		ConstraintResults:  append([]domain.ValidationResult{}, b.results...),
	}
	sort.SliceStable(r.ParameterIssues, func(i, j int) bool {
		return r.ParameterIssues[i].Instance < r.ParameterIssues[j].Instance
	})
	sort.SliceStable(r.ConstraintResults, func(i, j int) bool {
		a, c := r.ConstraintResults[i], r.ConstraintResults[j]
		if a.InstanceID != c.InstanceID {
			return a.InstanceID < c.InstanceID
		}
		return a.Index < c.Index
	})
	r.Summary = Summarize(r.ConstraintResults)
	r.Status = Status(r)
	return r
}

// Summarize counts verdicts.
func Summarize(results []domain.ValidationResult) domain.Summary {
	var s domain.Summary
	for _, res := range results {
		switch res.Verdict {
		case domain.VerdictPass:
			s.Pass++
		case domain.VerdictFail:
			s.Fail++
		case domain.VerdictUnresolvable:
			s.Unresolvable++
		}
	}
	return s
}

// Status derives the overall status. A failed constraint or an incompatible
// connection makes the report Invalid. Otherwise any unresolvable constraint,
// missing connection or missing parameter makes it Incomplete.
func Status(r domain.Report) domain.Status {
	incomplete := len(r.ParameterIssues) > 0
	for _, issue := range r.ConnectivityIssues {
		switch issue.Kind {
		case domain.IssueIncompatibleConnection:
			return domain.StatusInvalid
		case domain.IssueMissingConnection:
			incomplete = true
		}
	}
	for _, res := range r.ConstraintResults {
		switch res.Verdict {
		case domain.VerdictFail:
			return domain.StatusInvalid
		case domain.VerdictUnresolvable:
			incomplete = true
		}
	}
	if incomplete {
		return domain.StatusIncomplete
	}
	return domain.StatusValid
}
