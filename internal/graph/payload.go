package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"pidcheck/internal/catalog"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// Build constructs a schematic from its payload. The first structural problem
// aborts construction with a domain.SchemaError whose Path points into the
// payload; no partial schematic is returned.
func Build(cat *catalog.Catalog, p domain.SchematicPayload) (*Schematic, error) {
	s := New(cat, p.ID, p.Name)
	for i, c := range p.Components {
		path := fmt.Sprintf("components[%d]", i)
		if c.ID == "" {
			return nil, domain.SchemaError{Path: path + ".id", Message: "instance id is required"}
		}
		if _, dup := s.instances[c.ID]; dup {
			return nil, domain.SchemaError{Path: path + ".id", Message: fmt.Sprintf("duplicate instance id %q", c.ID)}
		}
		if _, err := cat.Entry(c.Type); err != nil {
			return nil, domain.SchemaError{Path: path + ".type", Message: fmt.Sprintf("unknown component type %q", c.Type), Err: err}
		}
		params := make(map[string]cty.Value, len(c.Parameters))
		for _, name := range sortedKeys(c.Parameters) {
			v, err := value.FromJSON(c.Parameters[name])
			if err != nil {
				return nil, domain.SchemaError{Path: fmt.Sprintf("%s.parameters.%s", path, name), Message: err.Error(), Err: err}
			}
			params[name] = v
		}
		if err := s.AddInstance(c.ID, c.Type, params); err != nil {
			return nil, rebase(err, path+".parameters", c.ID)
		}
	}
	for i, conn := range p.Connections {
		if err := s.Connect(conn.From, conn.To); err != nil {
			return nil, connectionError(fmt.Sprintf("connections[%d]", i), conn, err)
		}
	}
	return s, nil
}

// rebase rewrites a SchemaError raised for an instance so its path points at
// the payload element instead.
func rebase(err error, prefix, id string) error {
	var se domain.SchemaError
	if !errors.As(err, &se) {
		return err
	}
	if len(se.Path) > len(id) && se.Path[:len(id)+1] == id+"." {
		se.Path = prefix + se.Path[len(id):]
	} else {
		se.Path = prefix
	}
	return se
}

func connectionError(path string, conn domain.Connection, err error) error {
	var se domain.SchemaError
	if errors.As(err, &se) {
		se.Path = path
		return se
	}
	var nf domain.ErrNotFound
	if errors.As(err, &nf) {
		field := ".to"
		if nf.ID == conn.From.Instance || nf.ID == conn.From.String() {
			field = ".from"
		}
		return domain.SchemaError{Path: path + field, Message: nf.Error(), Err: nf}
	}
	return domain.SchemaError{Path: path, Message: err.Error(), Err: err}
}

// Payload renders the schematic back into its host-facing shape. Components
// are ordered by id and carry only explicitly assigned parameters.
func (s *Schematic) Payload() (domain.SchematicPayload, error) {
	p := domain.SchematicPayload{ID: s.ID, Name: s.Name}
	for _, inst := range s.Instances() {
		c := domain.InstancePayload{ID: inst.id, Type: inst.TypeID()}
		if len(inst.params) > 0 {
			c.Parameters = make(map[string]json.RawMessage, len(inst.params))
			for _, name := range sortedKeys(inst.params) {
				raw, err := value.ToJSON(inst.params[name])
				if err != nil {
					return domain.SchematicPayload{}, fmt.Errorf("encode %s.%s: %w", inst.id, name, err)
				}
				c.Parameters[name] = raw
			}
		}
		p.Components = append(p.Components, c)
	}
	p.Connections = s.Connections()
	return p.Normalize(), nil
}
