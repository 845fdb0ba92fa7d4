package resolve

import (
	"fmt"
	"sort"

	"pidcheck/internal/constraint"
	"pidcheck/pkg/domain"
)

// Rule describes how a derived quantity is read off the graph: follow ports
// facing Direction whose connection type is one of ConnectionTypes, and take
// the first of Sources the neighbour has a value for. With Propagate set, a
// neighbour lacking every source is asked for the same derived quantity in
// turn.
type Rule struct {
	Direction       constraint.Qualifier    `yaml:"direction" json:"direction"`
	ConnectionTypes []domain.ConnectionType `yaml:"connection_types" json:"connection_types"`
	Sources         []string                `yaml:"sources" json:"sources"`
	Propagate       bool                    `yaml:"propagate" json:"propagate"`
}

// Validate checks that the rule can be applied.
func (r Rule) Validate() error {
	if r.Direction != constraint.Upstream && r.Direction != constraint.Downstream {
		return fmt.Errorf("direction must be upstream or downstream, got %q", r.Direction)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("at least one source parameter is required")
	}
	return nil
}

func (r Rule) matches(t domain.ConnectionType) bool {
	if len(r.ConnectionTypes) == 0 {
		return true
	}
	for _, ct := range r.ConnectionTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// Table maps derived quantity names to their rules.
type Table map[string]Rule

// DefaultTable returns the derived quantities used by the built-in catalog.
func DefaultTable() Table {
	pipe := []domain.ConnectionType{domain.ConnectionPipe}
	signal := []domain.ConnectionType{domain.ConnectionSignal}
	return Table{
		"operating_pressure": {
			Direction: constraint.Upstream, ConnectionTypes: pipe, Propagate: true,
			Sources: []string{"operating_pressure", "system_pressure", "pressure_rating"},
		},
		"operating_temperature": {
			Direction: constraint.Upstream, ConnectionTypes: pipe, Propagate: true,
			Sources: []string{"operating_temperature", "temperature_rating"},
		},
		"system_pressure": {
			Direction: constraint.Upstream, ConnectionTypes: pipe, Propagate: true,
			Sources: []string{"system_pressure", "operating_pressure", "pressure_rating"},
		},
		"upstream_pressure": {
			Direction: constraint.Upstream, ConnectionTypes: pipe, Propagate: true,
			Sources: []string{"operating_pressure", "pressure_rating"},
		},
		"npsh_available": {
			Direction: constraint.Upstream, ConnectionTypes: pipe,
			Sources: []string{"npsh_available"},
		},
		"signal_type": {
			Direction: constraint.Upstream, ConnectionTypes: signal,
			Sources: []string{"signal_type", "output_signal"},
		},
		"actuator": {
			Direction: constraint.Downstream, ConnectionTypes: signal,
			Sources: []string{"actuator_type"},
		},
	}
}

// Names returns the derived quantity names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Merge returns a new table holding t overlaid with other.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Validate checks every rule in the table.
func (t Table) Validate() error {
	for _, name := range t.Names() {
		if err := t[name].Validate(); err != nil {
			return fmt.Errorf("derived %s: %w", name, err)
		}
	}
	return nil
}
