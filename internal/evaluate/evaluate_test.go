package evaluate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"pidcheck/internal/catalog"
	"pidcheck/internal/constraint"
	"pidcheck/internal/graph"
	"pidcheck/internal/resolve"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

func ref(instance, port string) domain.PortRef {
	return domain.PortRef{Instance: instance, Port: port}
}

func newSchematic(t *testing.T) *graph.Schematic {
	t.Helper()
	cat, err := catalog.Builtin()
	require.NoError(t, err)
	return graph.New(cat, "e", "evaluate")
}

func evaluateAll(t *testing.T, s *graph.Schematic, id string) []domain.ValidationResult {
	t.Helper()
	inst, err := s.Instance(id)
	require.NoError(t, err)
	return New(resolve.New(s, nil), nil).Instance(inst)
}

func evaluateOne(t *testing.T, s *graph.Schematic, id, src string) domain.ValidationResult {
	t.Helper()
	inst, err := s.Instance(id)
	require.NoError(t, err)
	return New(resolve.New(s, nil), nil).Evaluate(inst, 0, constraint.MustParse(src))
}

func TestTankWithoutUpstreamIsUnresolvable(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("tk1", "tank", map[string]cty.Value{
		"volume":             value.Number(10),
		"pressure_rating":    value.Number(16),
		"temperature_rating": value.Number(80),
	}))

	results := evaluateAll(t, s, "tk1")
	require.Len(t, results, 3)
	assert.Equal(t, domain.VerdictPass, results[0].Verdict)
	assert.Equal(t, "volume > 0", results[0].Expression)

	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, domain.VerdictUnresolvable, results[1].Verdict)
	assert.Contains(t, results[1].Reason, "operating_pressure")
	require.Len(t, results[1].Operands, 2)
	assert.True(t, results[1].Operands[0].Resolved)
	assert.JSONEq(t, "16", string(results[1].Operands[0].Value))
	assert.False(t, results[1].Operands[1].Resolved)
	assert.Nil(t, results[1].Operands[1].Value)

	assert.Equal(t, domain.VerdictUnresolvable, results[2].Verdict)
}

func TestPumpNPSHIsUnresolvableNotFail(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("p1", "pump", map[string]cty.Value{
		"flow_rate":     value.Number(50),
		"head":          value.Number(30),
		"npsh_required": value.Number(3),
	}))
	require.NoError(t, s.AddInstance("tk1", "tank", nil))
	require.NoError(t, s.Connect(ref("p1", "discharge"), ref("tk1", "inlet")))

	results := evaluateAll(t, s, "p1")
	require.Len(t, results, 3)
	assert.Equal(t, domain.VerdictPass, results[0].Verdict)
	assert.Equal(t, domain.VerdictPass, results[1].Verdict)
	assert.Equal(t, domain.VerdictUnresolvable, results[2].Verdict)
	assert.Contains(t, results[2].Reason, "no upstream pipe connection")
}

func TestActuatorSignalMismatchFails(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("lc1", "level_controller", map[string]cty.Value{
		"output_signal": value.String("3-15psi"),
	}))
	require.NoError(t, s.AddInstance("v1", "control_valve", map[string]cty.Value{
		"actuator_type": value.String("electric"),
	}))
	require.NoError(t, s.Connect(ref("lc1", "output"), ref("v1", "control_signal")))

	results := evaluateAll(t, s, "v1")
	require.Len(t, results, 3)
	match := results[2]
	assert.Equal(t, "actuator_type matches signal_type", match.Expression)
	assert.Equal(t, domain.VerdictFail, match.Verdict)
	assert.Contains(t, match.Reason, `"electric"`)
	assert.Contains(t, match.Reason, `"3-15psi"`)
	assert.Contains(t, match.Reason, "lc1.output_signal")

	controller := evaluateAll(t, s, "lc1")
	require.Len(t, controller, 2)
	assert.Equal(t, domain.VerdictFail, controller[1].Verdict)
	assert.Contains(t, controller[1].Reason, "is not compatible with")
}

func TestActuatorSignalMatchPasses(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("lc1", "level_controller", map[string]cty.Value{
		"output_signal": value.String("3-15psi"),
	}))
	require.NoError(t, s.AddInstance("v1", "control_valve", nil))
	require.NoError(t, s.Connect(ref("lc1", "output"), ref("v1", "control_signal")))

	results := evaluateAll(t, s, "v1")
	assert.Equal(t, domain.VerdictPass, results[2].Verdict, "pneumatic default pairs with 3-15psi")
}

func TestComparisons(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("pp1", "pipe", map[string]cty.Value{
		"diameter": value.Number(50),
		"material": value.String("pvc"),
	}))

	cases := []struct {
		src  string
		want domain.Verdict
	}{
		{"diameter > 0", domain.VerdictPass},
		{"diameter >= 50", domain.VerdictPass},
		{"diameter < 50", domain.VerdictFail},
		{"diameter <= 49.5", domain.VerdictFail},
		{"diameter == 50", domain.VerdictPass},
		{"diameter != 50", domain.VerdictFail},
		{"material == 'pvc'", domain.VerdictPass},
		{"material != \"pvc\"", domain.VerdictFail},
		{"material == 'carbon_steel'", domain.VerdictFail},
		{"material > 0", domain.VerdictFail},
		{"diameter > pressure_rating", domain.VerdictUnresolvable},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			res := evaluateOne(t, s, "pp1", tc.src)
			assert.Equal(t, tc.want, res.Verdict, res.Reason)
			if tc.want == domain.VerdictFail {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("lc1", "level_controller", map[string]cty.Value{
		"measurement_range": value.Range(0, 5),
		"setpoint":          value.Number(5),
	}))
	require.NoError(t, s.AddInstance("lc2", "level_controller", map[string]cty.Value{
		"measurement_range": value.String("0-4 m"),
		"setpoint":          value.Number(4.5),
	}))
	require.NoError(t, s.AddInstance("lc3", "level_controller", map[string]cty.Value{
		"measurement_range": value.String("wide"),
		"setpoint":          value.Number(1),
	}))

	assert.Equal(t, domain.VerdictPass, evaluateOne(t, s, "lc1", "setpoint within measurement_range").Verdict)

	res := evaluateOne(t, s, "lc2", "setpoint within measurement_range")
	assert.Equal(t, domain.VerdictFail, res.Verdict)
	assert.Contains(t, res.Reason, "lies outside")

	res = evaluateOne(t, s, "lc3", "setpoint within measurement_range")
	assert.Equal(t, domain.VerdictFail, res.Verdict)
	assert.Contains(t, res.Reason, "is not a range")
}

func TestIncompatibleConnectionDegradesToUnresolvable(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("pp1", "pipe", map[string]cty.Value{"pressure_rating": value.Number(10)}))
	require.NoError(t, s.AddInstance("v1", "control_valve", map[string]cty.Value{
		"cv":              value.Number(4),
		"pressure_rating": value.Number(16),
	}))
	require.NoError(t, s.Connect(ref("pp1", "inlet"), ref("v1", "inlet")))

	results := evaluateAll(t, s, "v1")
	assert.Equal(t, domain.VerdictPass, results[0].Verdict)
	assert.Equal(t, domain.VerdictUnresolvable, results[1].Verdict)
	assert.Contains(t, results[1].Reason, "incompatible")
}

func TestOperandValuesAreJSON(t *testing.T) {
	s := newSchematic(t)
	require.NoError(t, s.AddInstance("pp1", "pipe", map[string]cty.Value{"diameter": value.Number(50)}))
	res := evaluateOne(t, s, "pp1", "material == 'pvc'")
	require.Len(t, res.Operands, 2)
	var got string
	require.NoError(t, json.Unmarshal(res.Operands[0].Value, &got))
	assert.Equal(t, "carbon_steel", got)
	assert.Equal(t, "pp1.material", res.Operands[0].Source)
	assert.Equal(t, "literal", res.Operands[1].Source)
}

func TestCompatibility(t *testing.T) {
	c := DefaultCompatibility()
	assert.True(t, c.Compatible(value.String("electric"), value.String("0-10V")))
	assert.True(t, c.Compatible(value.String("0-10V"), value.String("electric")), "pairs are symmetric")
	assert.True(t, c.Compatible(value.String("4-20mA"), value.String("4-20mA")), "equal values are compatible")
	assert.False(t, c.Compatible(value.String("hydraulic"), value.String("0-10V")))
	assert.Len(t, c.Pairs(), 5)

	custom := NewCompatibility(Pair{"a", "b"})
	assert.Equal(t, []Pair{{"a", "b"}}, custom.Pairs())
	assert.False(t, custom.Compatible(value.String("electric"), value.String("0-10V")))

	var none *Compatibility
	assert.True(t, none.Compatible(value.Number(1), value.Number(1)))
	assert.False(t, none.Compatible(value.Number(1), value.Number(2)))
}
