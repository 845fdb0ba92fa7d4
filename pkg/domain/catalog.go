// Package domain defines the component catalog model, schematic payloads,
// validation report records and the typed errors shared by pidcheck.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"pidcheck/pkg/domain/value"

	"github.com/zclconf/go-cty/cty"
)

// ConnectionType classifies what flows through a port.
type ConnectionType string

// Connection types used by the built-in catalog. The vocabulary is open:
// catalogs may declare further types and ports only ever match on equality.
const (
	ConnectionPipe       ConnectionType = "pipe"
	ConnectionSignal     ConnectionType = "signal"
	ConnectionElectrical ConnectionType = "electrical"
)

// Direction is the flow direction of a port relative to its component.
type Direction string

const (
	// DirectionIn marks a port that receives from an upstream component.
	DirectionIn Direction = "in"
	// DirectionOut marks a port that feeds a downstream component.
	DirectionOut Direction = "out"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Opposite returns the complementary direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// ParameterSpec declares one parameter of a component type.
type ParameterSpec struct {
	Name     string
	Unit     string
	Required bool
	// Default is value.Null when the definition carries no value.
	Default cty.Value
	// Options, when non-empty, is the closed set of values the parameter accepts.
	Options []cty.Value
}

// HasOptions reports whether the parameter has a closed value domain.
func (p ParameterSpec) HasOptions() bool { return len(p.Options) > 0 }

// Allows reports whether v may be assigned to the parameter. Null is always
// allowed: it means "unassigned" and is caught by the required check instead.
func (p ParameterSpec) Allows(v cty.Value) bool {
	if v.IsNull() || !p.HasOptions() {
		return true
	}
	for _, opt := range p.Options {
		if value.Equal(opt, v) {
			return true
		}
	}
	return false
}

// MarshalJSON renders the parameter in the catalog definition shape.
func (p ParameterSpec) MarshalJSON() ([]byte, error) {
	obj := orderedObject{}
	def, err := value.ToJSON(defaultOrNull(p.Default))
	if err != nil {
		return nil, fmt.Errorf("parameter %s default: %w", p.Name, err)
	}
	obj.add("value", json.RawMessage(def))
	if p.Unit != "" {
		obj.add("unit", p.Unit)
	}
	obj.add("required", p.Required)
	if p.HasOptions() {
		opts := make([]json.RawMessage, 0, len(p.Options))
		for _, opt := range p.Options {
			raw, err := value.ToJSON(opt)
			if err != nil {
				return nil, fmt.Errorf("parameter %s option: %w", p.Name, err)
			}
			opts = append(opts, raw)
		}
		obj.add("options", opts)
	}
	return obj.MarshalJSON()
}

// PortSpec declares one connection point of a component type.
type PortSpec struct {
	Name      string         `json:"-"`
	Type      ConnectionType `json:"type"`
	Direction Direction      `json:"direction"`
	Optional  bool           `json:"optional,omitempty"`
}

// ComponentType is the immutable template shared by every instance of a kind
// of equipment. Parameters, Ports and Constraints keep declaration order.
type ComponentType struct {
	ID          string
	Name        string
	Category    string
	Icon        string
	Parameters  []ParameterSpec
	Ports       []PortSpec
	Constraints []string
}

// Parameter looks up a parameter declaration by name.
func (t ComponentType) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Port looks up a port declaration by name.
func (t ComponentType) Port(name string) (PortSpec, bool) {
	for _, p := range t.Ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// Clone returns a copy whose slices can be modified without touching t.
func (t ComponentType) Clone() ComponentType {
	cp := t
	cp.Parameters = make([]ParameterSpec, len(t.Parameters))
	for i, p := range t.Parameters {
		p.Options = append([]cty.Value(nil), p.Options...)
		cp.Parameters[i] = p
	}
	cp.Ports = append([]PortSpec(nil), t.Ports...)
	cp.Constraints = append([]string(nil), t.Constraints...)
	return cp
}

// MarshalJSON renders the type in the definition shape consumed from the host
// (id, name, category, icon, parameters, connections, constraints), keeping
// parameter and port declaration order.
func (t ComponentType) MarshalJSON() ([]byte, error) {
	params := orderedObject{}
	for _, p := range t.Parameters {
		params.add(p.Name, p)
	}
	ports := orderedObject{}
	for _, p := range t.Ports {
		ports.add(p.Name, p)
	}
	constraints := t.Constraints
	if constraints == nil {
		constraints = []string{}
	}
	obj := orderedObject{}
	obj.add("id", t.ID)
	obj.add("name", t.Name)
	obj.add("category", t.Category)
	obj.add("icon", t.Icon)
	obj.add("parameters", params)
	obj.add("connections", ports)
	obj.add("constraints", constraints)
	return obj.MarshalJSON()
}

func defaultOrNull(v cty.Value) cty.Value {
	if v.IsNull() {
		return value.Null
	}
	return v
}

type orderedField struct {
	key string
	val any
}

// orderedObject marshals as a JSON object whose keys keep insertion order.
type orderedObject []orderedField

func (o *orderedObject) add(key string, val any) {
	*o = append(*o, orderedField{key: key, val: val})
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.val)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
