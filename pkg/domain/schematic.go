package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PortRef addresses one port on one instance.
type PortRef struct {
	Instance string `json:"component"`
	Port     string `json:"port"`
}

func (r PortRef) String() string { return r.Instance + "." + r.Port }

// Less orders port refs by instance id, then port name.
func (r PortRef) Less(o PortRef) bool {
	if r.Instance != o.Instance {
		return r.Instance < o.Instance
	}
	return r.Port < o.Port
}

// Connection joins two instance ports. From is the endpoint the connection was
// declared from; direction correctness is checked by the connectivity pass, not
// at construction.
type Connection struct {
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

func (c Connection) String() string { return c.From.String() + " -> " + c.To.String() }

// InstancePayload is the host-facing shape of one placed component.
type InstancePayload struct {
	ID         string                     `json:"id"`
	Type       string                     `json:"type"`
	Parameters map[string]json.RawMessage `json:"parameters,omitempty"`
}

// SchematicPayload is the host-facing shape of a schematic document, as stored
// and as posted for validation.
type SchematicPayload struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Components  []InstancePayload `json:"components"`
	Connections []Connection      `json:"connections"`
}

// Normalize replaces nil slices with empty ones so the payload always encodes
// with arrays rather than null.
func (p SchematicPayload) Normalize() SchematicPayload {
	if p.Components == nil {
		p.Components = []InstancePayload{}
	}
	if p.Connections == nil {
		p.Connections = []Connection{}
	}
	return p
}

// Clone deep-copies the payload including raw parameter bytes.
func (p SchematicPayload) Clone() SchematicPayload {
	cp := p
	cp.Components = make([]InstancePayload, len(p.Components))
	for i, c := range p.Components {
		if c.Parameters != nil {
			params := make(map[string]json.RawMessage, len(c.Parameters))
			for k, v := range c.Parameters {
				params[k] = append(json.RawMessage(nil), v...)
			}
			c.Parameters = params
		}
		cp.Components[i] = c
	}
	cp.Connections = append([]Connection(nil), p.Connections...)
	return cp.Normalize()
}

// Summary returns the listing record for the payload.
func (p SchematicPayload) Summary() SchematicSummary {
	return SchematicSummary{
		ID:          p.ID,
		Name:        p.Name,
		Components:  len(p.Components),
		Connections: len(p.Connections),
	}
}

// SchematicSummary describes a stored schematic without its contents.
type SchematicSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Components  int    `json:"components"`
	Connections int    `json:"connections"`
}

// DecodeSchematicPayload parses a JSON schematic document. Fields the engine
// does not use (editor positions and the like) are ignored.
func DecodeSchematicPayload(data []byte) (SchematicPayload, error) {
	var p SchematicPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return SchematicPayload{}, SchemaError{Message: fmt.Sprintf("decode payload: %v", err), Err: err}
	}
	return p.Normalize(), nil
}
