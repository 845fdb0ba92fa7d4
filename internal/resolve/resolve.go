// Package resolve maps the identifiers in a constraint to concrete values for
// one instance: its own parameters, derived quantities read from neighbours
// and explicit upstream./downstream. references.
package resolve

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"pidcheck/internal/connectivity"
	"pidcheck/internal/constraint"
	"pidcheck/internal/graph"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// Resolution is the outcome of resolving one operand. When Resolved is false
// Reason explains what was missing.
type Resolution struct {
	Ref      string
	Value    cty.Value
	Resolved bool
	Source   string
	Reason   string
}

// Resolver resolves operands against one schematic.
type Resolver struct {
	schematic *graph.Schematic
	table     Table
}

// New returns a resolver over s using the derived quantity table. A nil table
// selects DefaultTable.
func New(s *graph.Schematic, table Table) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	return &Resolver{schematic: s, table: table}
}

// Resolve returns the value of op as seen from inst. Rules apply in order:
// literals, own parameters, derived quantities, then qualified references.
func (r *Resolver) Resolve(inst *graph.Instance, op constraint.Operand) Resolution {
	res := Resolution{Ref: op.String(), Value: value.Null}
	switch op.Kind {
	case constraint.Literal:
		if op.IsString {
			res.Value = value.String(op.Text)
		} else {
			res.Value = value.Number(op.Number)
		}
		res.Resolved = true
		res.Source = "literal"
		return res
	case constraint.Variable:
		if v, ok := inst.Value(op.Name); ok {
			res.Source = inst.ID() + "." + op.Name
			if v.IsNull() {
				res.Reason = fmt.Sprintf("parameter %s has no value", res.Source)
				return res
			}
			res.Value, res.Resolved = v, true
			return res
		}
		rule, ok := r.table[op.Name]
		if !ok {
			res.Reason = fmt.Sprintf("%s is neither a parameter of %s nor a derived quantity", op.Name, inst.TypeID())
			return res
		}
		return r.walk(inst, rule, res, map[string]bool{})
	case constraint.Qualified:
		rule := Rule{Direction: op.Qualifier, Sources: []string{op.Name}}
		return r.walk(inst, rule, res, map[string]bool{})
	}
	res.Reason = "unsupported operand"
	return res
}

// walk follows the ports of inst facing rule.Direction in declaration order.
// visited holds the instances on the current path only, so a loop ends the
// walk while two branches meeting at a shared neighbour are both followed.
func (r *Resolver) walk(inst *graph.Instance, rule Rule, res Resolution, visited map[string]bool) Resolution {
	visited[inst.ID()] = true
	defer delete(visited, inst.ID())
	want := domain.DirectionIn
	if rule.Direction == constraint.Downstream {
		want = domain.DirectionOut
	}
	var (
		connected int
		reasons   []string
	)
	for _, port := range inst.Type().Ports {
		if port.Direction != want || !rule.matches(port.Type) {
			continue
		}
		ref := domain.PortRef{Instance: inst.ID(), Port: port.Name}
		conn, ok := r.schematic.ConnectionAt(ref)
		if !ok {
			continue
		}
		connected++
		if !connectivity.Usable(r.schematic, conn) {
			reasons = append(reasons, fmt.Sprintf("connection %s is incompatible", conn))
			continue
		}
		peer, _ := r.schematic.Peer(ref)
		neighbour, err := r.schematic.Instance(peer.Instance)
		if err != nil {
			continue
		}
		if visited[neighbour.ID()] {
			reasons = append(reasons, fmt.Sprintf("%s loops back to %s", conn, neighbour.ID()))
			continue
		}
		for _, src := range rule.Sources {
			v, ok := neighbour.Value(src)
			if ok && !v.IsNull() {
				res.Value, res.Resolved = v, true
				res.Source = neighbour.ID() + "." + src
				res.Reason = ""
				return res
			}
		}
		if rule.Propagate {
			if deeper := r.walk(neighbour, rule, res, visited); deeper.Resolved {
				return deeper
			}
		}
		reasons = append(reasons, fmt.Sprintf("%s has no value for %s", neighbour.ID(), strings.Join(rule.Sources, ", ")))
	}
	if connected == 0 {
		facing := string(rule.Direction)
		if len(rule.ConnectionTypes) > 0 {
			parts := make([]string, len(rule.ConnectionTypes))
			for i, ct := range rule.ConnectionTypes {
				parts[i] = string(ct)
			}
			facing += " " + strings.Join(parts, "/")
		}
		res.Reason = fmt.Sprintf("%s: %s has no %s connection", res.Ref, inst.ID(), facing)
		return res
	}
	res.Reason = fmt.Sprintf("%s: %s", res.Ref, strings.Join(reasons, "; "))
	return res
}
