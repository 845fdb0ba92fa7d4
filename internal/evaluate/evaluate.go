// Package evaluate decides constraint verdicts for schematic instances.
package evaluate

import (
	"fmt"
	"strings"

	"pidcheck/internal/constraint"
	"pidcheck/internal/graph"
	"pidcheck/internal/resolve"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// Evaluator turns parsed constraints into ValidationResults.
type Evaluator struct {
	resolver *resolve.Resolver
	compat   *Compatibility
}

// New returns an evaluator reading operands through r. A nil compat selects
// DefaultCompatibility.
func New(r *resolve.Resolver, compat *Compatibility) *Evaluator {
	if compat == nil {
		compat = DefaultCompatibility()
	}
	return &Evaluator{resolver: r, compat: compat}
}

// Instance evaluates every constraint of inst's type in declaration order.
func (e *Evaluator) Instance(inst *graph.Instance) []domain.ValidationResult {
	exprs := inst.Entry().Constraints
	out := make([]domain.ValidationResult, 0, len(exprs))
	for i, expr := range exprs {
		out = append(out, e.Evaluate(inst, i, expr))
	}
	return out
}

// Evaluate decides one constraint. Any operand that cannot be resolved makes
// the verdict Unresolvable; the remaining checks only run on resolved values.
func (e *Evaluator) Evaluate(inst *graph.Instance, index int, expr constraint.Expression) domain.ValidationResult {
	result := domain.ValidationResult{
		InstanceID: inst.ID(),
		TypeID:     inst.TypeID(),
		Index:      index,
		Expression: expr.Source,
	}
	if expr.Root == nil {
		result.Verdict = domain.VerdictUnresolvable
		result.Reason = "constraint has no parsed form"
		return result
	}

	ops := expr.Root.Operands()
	resolved := make([]resolve.Resolution, len(ops))
	var missing []string
	for i, op := range ops {
		res := e.resolver.Resolve(inst, op)
		resolved[i] = res
		result.Operands = append(result.Operands, operand(res))
		if !res.Resolved {
			missing = append(missing, res.Reason)
		}
	}
	if len(missing) > 0 {
		result.Verdict = domain.VerdictUnresolvable
		result.Reason = strings.Join(missing, "; ")
		return result
	}

	var ok bool
	var reason string
	switch n := expr.Root.(type) {
	case constraint.Comparison:
		ok, reason = compare(n.Op, resolved[0], resolved[1])
	case constraint.Membership:
		ok, reason = within(resolved[0], resolved[1])
	case constraint.Predicate:
		ok, reason = e.predicate(n.Name, resolved)
	default:
		result.Verdict = domain.VerdictUnresolvable
		result.Reason = fmt.Sprintf("unsupported constraint kind %s", expr.Root.Kind())
		return result
	}
	if ok {
		result.Verdict = domain.VerdictPass
		return result
	}
	result.Verdict = domain.VerdictFail
	result.Reason = reason
	return result
}

func compare(op constraint.Op, left, right resolve.Resolution) (bool, string) {
	l, okL := value.Float(left.Value)
	r, okR := value.Float(right.Value)
	if okL && okR {
		var holds bool
		switch op {
		case constraint.OpGT:
			holds = l > r
		case constraint.OpGE:
			holds = l >= r
		case constraint.OpLT:
			holds = l < r
		case constraint.OpLE:
			holds = l <= r
		case constraint.OpEQ:
			holds = l == r
		case constraint.OpNE:
			holds = l != r
		}
		return holds, fmt.Sprintf("%s %s %s does not hold", describe(left), op, describe(right))
	}
	if op.Ordering() {
		return false, fmt.Sprintf("%s cannot be ordered against %s with %s", describe(left), describe(right), op)
	}
	equal := value.Equal(left.Value, right.Value)
	if op == constraint.OpEQ {
		return equal, fmt.Sprintf("%s does not equal %s", describe(left), describe(right))
	}
	return !equal, fmt.Sprintf("%s equals %s", describe(left), describe(right))
}

func within(subject, set resolve.Resolution) (bool, string) {
	x, ok := value.Float(subject.Value)
	if !ok {
		return false, fmt.Sprintf("%s is not a number", describe(subject))
	}
	lo, hi, ok := value.AsRange(set.Value)
	if !ok {
		return false, fmt.Sprintf("%s is not a range", describe(set))
	}
	if x >= lo && x <= hi {
		return true, ""
	}
	return false, fmt.Sprintf("%s lies outside %s", describe(subject), describe(set))
}

func (e *Evaluator) predicate(name constraint.PredicateName, args []resolve.Resolution) (bool, string) {
	if len(args) != 2 {
		return false, fmt.Sprintf("%s takes two operands, got %d", name, len(args))
	}
	if e.compat.Compatible(args[0].Value, args[1].Value) {
		return true, ""
	}
	verb := "does not match"
	if name == constraint.PredicateCompatibleWith {
		verb = "is not compatible with"
	}
	return false, fmt.Sprintf("%s %s %s", describe(args[0]), verb, describe(args[1]))
}

// describe renders a resolved operand as "ref = value (source)". Literals
// render as their value alone.
func describe(r resolve.Resolution) string {
	if r.Source == "literal" {
		return value.Format(r.Value)
	}
	if r.Source == "" || r.Source == r.Ref {
		return fmt.Sprintf("%s = %s", r.Ref, value.Format(r.Value))
	}
	return fmt.Sprintf("%s = %s (%s)", r.Ref, value.Format(r.Value), r.Source)
}

func operand(r resolve.Resolution) domain.Operand {
	op := domain.Operand{Ref: r.Ref, Resolved: r.Resolved, Source: r.Source}
	if r.Resolved {
		if data, err := value.ToJSON(r.Value); err == nil {
			op.Value = data
		}
	}
	return op
}
