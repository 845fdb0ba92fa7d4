package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pidcheck/pkg/domain"
)

func result(instance string, index int, verdict domain.Verdict) domain.ValidationResult {
	return domain.ValidationResult{InstanceID: instance, TypeID: "pipe", Index: index, Expression: "diameter > 0", Verdict: verdict}
}

func TestBuildOrdersResultsAndCounts(t *testing.T) {
	r := NewBuilder("s1").
		AddResults(
			result("b", 1, domain.VerdictPass),
			result("a", 1, domain.VerdictUnresolvable),
			result("b", 0, domain.VerdictPass),
			result("a", 0, domain.VerdictPass),
		).
		Build()

	var order []string
	for _, res := range r.ConstraintResults {
		order = append(order, res.InstanceID+string(rune('0'+res.Index)))
	}
	assert.Equal(t, []string{"a0", "a1", "b0", "b1"}, order)
	assert.Equal(t, domain.Summary{Pass: 3, Unresolvable: 1}, r.Summary)
	assert.Equal(t, domain.StatusIncomplete, r.Status)
	assert.NotNil(t, r.ConnectivityIssues)
	assert.NotNil(t, r.ParameterIssues)
	assert.Len(t, r.Unresolved(), 1)
	assert.Empty(t, r.Failed())
}

func TestStatus(t *testing.T) {
	missing := domain.ConnectivityIssue{Kind: domain.IssueMissingConnection, Instance: "a", Port: "inlet"}
	incompatible := domain.ConnectivityIssue{Kind: domain.IssueIncompatibleConnection}
	param := domain.ParameterIssue{Kind: domain.IssueMissingParameter, Instance: "a", Parameter: "diameter"}

	cases := []struct {
		name string
		b    *Builder
		want domain.Status
	}{
		{"empty", NewBuilder("x"), domain.StatusValid},
		{"all pass", NewBuilder("x").AddResults(result("a", 0, domain.VerdictPass)), domain.StatusValid},
		{"fail", NewBuilder("x").AddResults(result("a", 0, domain.VerdictFail), result("a", 1, domain.VerdictUnresolvable)), domain.StatusInvalid},
		{"incompatible", NewBuilder("x").AddConnectivity(incompatible), domain.StatusInvalid},
		{"missing connection", NewBuilder("x").AddConnectivity(missing), domain.StatusIncomplete},
		{"missing parameter", NewBuilder("x").AddParameterIssues(param), domain.StatusIncomplete},
		{"incompatible beats missing", NewBuilder("x").AddConnectivity(missing, incompatible), domain.StatusInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.b.Build().Status)
		})
	}
}

func TestMarshalIsStable(t *testing.T) {
	build := func() domain.Report {
		return NewBuilder("s1").
			AddConnectivity(domain.ConnectivityIssue{Kind: domain.IssueMissingConnection, Instance: "a", Port: "inlet", Message: "port a.inlet (pipe in) is not connected"}).
			AddResults(result("a", 0, domain.VerdictFail)).
			Build()
	}
	first, err := Marshal(build())
	require.NoError(t, err)
	second, err := Marshal(build())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, "invalid", decoded["overall_status"])
	assert.Equal(t, "s1", decoded["schematic_id"])
	assert.Contains(t, decoded, "parameter_issues")
}

func TestWriteText(t *testing.T) {
	r := NewBuilder("").
		AddConnectivity(domain.ConnectivityIssue{Kind: domain.IssueMissingConnection, Message: "port a.inlet (pipe in) is not connected"}).
		AddResults(
			result("a", 0, domain.VerdictPass),
			domain.ValidationResult{InstanceID: "a", Index: 1, Expression: "pressure_rating >= system_pressure", Verdict: domain.VerdictUnresolvable, Reason: "system_pressure: a has no upstream pipe connection"},
		).
		Build()

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "schematic (unsaved): INCOMPLETE")
	assert.Contains(t, out, "1 pass, 0 fail, 1 unresolvable")
	assert.Contains(t, out, "[missing_connection] port a.inlet")
	assert.Contains(t, out, "a[1] pressure_rating >= system_pressure")
	assert.Contains(t, out, "no upstream pipe connection")
	assert.NotContains(t, out, "a[0]")
}
