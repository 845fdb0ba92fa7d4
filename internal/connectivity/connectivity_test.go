package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pidcheck/internal/catalog"
	"pidcheck/internal/graph"
	"pidcheck/pkg/domain"
)

func ref(instance, port string) domain.PortRef {
	return domain.PortRef{Instance: instance, Port: port}
}

func newSchematic(t *testing.T) *graph.Schematic {
	t.Helper()
	cat, err := catalog.Builtin()
	require.NoError(t, err)
	return graph.New(cat, "c", "connectivity")
}

func TestCheck(t *testing.T) {
	out := domain.PortSpec{Name: "o", Type: domain.ConnectionPipe, Direction: domain.DirectionOut}
	in := domain.PortSpec{Name: "i", Type: domain.ConnectionPipe, Direction: domain.DirectionIn}
	sig := domain.PortSpec{Name: "s", Type: domain.ConnectionSignal, Direction: domain.DirectionIn}

	assert.Empty(t, Check(out, in))
	assert.Empty(t, Check(in, out), "declaration order does not matter")
	assert.Len(t, Check(in, in), 1)
	assert.Len(t, Check(out, sig), 1)
	assert.Len(t, Check(in, sig), 2)
}

func TestValidateReportsMissingPortsInOrder(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("pp1", "pipe", nil))
	require.NoError(t, s.AddInstance("a_tank", "tank", nil))
	require.NoError(t, s.Connect(ref("a_tank", "outlet"), ref("pp1", "inlet")))

	issues := Validate(s)
	require.Len(t, issues, 3)
	assert.Equal(t, domain.IssueMissingConnection, issues[0].Kind)
	assert.Equal(t, []string{"a_tank.inlet", "a_tank.vent", "pp1.outlet"}, []string{
		issues[0].Instance + "." + issues[0].Port,
		issues[1].Instance + "." + issues[1].Port,
		issues[2].Instance + "." + issues[2].Port,
	})
}

func TestValidateReportsIncompatibleConnectionOnce(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("v1", "control_valve", nil))
	require.NoError(t, s.AddInstance("v2", "control_valve", nil))
	require.NoError(t, s.Connect(ref("v1", "inlet"), ref("v2", "inlet")))

	var incompatible []domain.ConnectivityIssue
	for _, issue := range Validate(s) {
		if issue.Kind == domain.IssueIncompatibleConnection {
			incompatible = append(incompatible, issue)
		}
	}
	require.Len(t, incompatible, 1)
	issue := incompatible[0]
	require.NotNil(t, issue.From)
	require.NotNil(t, issue.To)
	assert.Equal(t, domain.PortDescriptor{Instance: "v1", Port: "inlet", Type: domain.ConnectionPipe, Direction: domain.DirectionIn}, *issue.From)
	assert.Equal(t, domain.PortDescriptor{Instance: "v2", Port: "inlet", Type: domain.ConnectionPipe, Direction: domain.DirectionIn}, *issue.To)
	assert.Contains(t, issue.Message, "both ports have direction in")
	assert.False(t, Usable(s, domain.Connection{From: ref("v1", "inlet"), To: ref("v2", "inlet")}))
}

func TestValidateTypeMismatch(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("lc", "level_controller", nil))
	require.NoError(t, s.AddInstance("p", "pump", nil))
	require.NoError(t, s.Connect(ref("lc", "output"), ref("p", "power")))

	var found bool
	for _, issue := range Validate(s) {
		if issue.Kind == domain.IssueIncompatibleConnection {
			found = true
			assert.Contains(t, issue.Message, "connection type signal does not match electrical")
			assert.NotContains(t, issue.Message, "direction")
		}
	}
	assert.True(t, found)
}

func TestValidateOptionalPorts(t *testing.T) {
	b := catalog.NewBuilder()
	require.NoError(t, b.Add(domain.ComponentType{
		ID: "drum",
		Ports: []domain.PortSpec{
			{Name: "feed", Type: domain.ConnectionPipe, Direction: domain.DirectionIn},
			{Name: "drain", Type: domain.ConnectionPipe, Direction: domain.DirectionOut, Optional: true},
		},
	}))
	s := graph.New(b.Build(), "o", "")
	require.NoError(t, s.AddInstance("d", "drum", nil))
	issues := Validate(s)
	require.Len(t, issues, 1)
	assert.Equal(t, "feed", issues[0].Port)
}

func TestValidateCleanGraph(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("a", "pipe", nil))
	require.NoError(t, s.AddInstance("b", "pipe", nil))
	require.NoError(t, s.Connect(ref("a", "outlet"), ref("b", "inlet")))
	require.NoError(t, s.Connect(ref("b", "outlet"), ref("a", "inlet")))
	issues := Validate(s)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
	assert.True(t, Usable(s, domain.Connection{From: ref("a", "outlet"), To: ref("b", "inlet")}))
}
