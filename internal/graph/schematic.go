// Package graph holds schematics: instances of catalog component types and
// the port-level connections between them. Instances live in an arena keyed by
// id and refer to each other only through domain.PortRef values, so cyclic
// pipe networks need no special ownership handling.
package graph

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"pidcheck/internal/catalog"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// Instance is one placed component.
type Instance struct {
	id     string
	entry  *catalog.Entry
	params map[string]cty.Value
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// TypeID returns the id of the instance's component type.
func (i *Instance) TypeID() string { return i.entry.Type.ID }

// Entry returns the compiled catalog entry for the instance's type. It is
// shared and must not be modified.
func (i *Instance) Entry() *catalog.Entry { return i.entry }

// Type returns the instance's component type.
func (i *Instance) Type() *domain.ComponentType { return &i.entry.Type }

// Value returns the assigned value of a parameter, falling back to the type
// default. ok is false when the type declares no such parameter. A parameter
// with neither assignment nor default yields value.Null.
func (i *Instance) Value(name string) (v cty.Value, ok bool) {
	spec, ok := i.entry.Type.Parameter(name)
	if !ok {
		return value.Null, false
	}
	if v, set := i.params[name]; set {
		return v, true
	}
	if spec.Default.IsNull() {
		return value.Null, true
	}
	return spec.Default, true
}

// Assigned returns the explicitly assigned value of a parameter.
func (i *Instance) Assigned(name string) (cty.Value, bool) {
	v, ok := i.params[name]
	return v, ok
}

// Schematic is a graph of instances and connections. It is not safe for
// concurrent mutation; validation only reads it.
type Schematic struct {
	ID   string
	Name string

	catalog   *catalog.Catalog
	instances map[string]*Instance
	// links holds every connection under both of its endpoints.
	links map[domain.PortRef]domain.Connection
}

// New returns an empty schematic whose instances draw their types from cat.
func New(cat *catalog.Catalog, id, name string) *Schematic {
	return &Schematic{
		ID:        id,
		Name:      name,
		catalog:   cat,
		instances: make(map[string]*Instance),
		links:     make(map[domain.PortRef]domain.Connection),
	}
}

// Catalog returns the catalog the schematic was built against.
func (s *Schematic) Catalog() *catalog.Catalog { return s.catalog }

// Len returns the number of instances.
func (s *Schematic) Len() int { return len(s.instances) }

// Instance returns the instance with the given id.
func (s *Schematic) Instance(id string) (*Instance, error) {
	inst, ok := s.instances[id]
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityInstance, ID: id}
	}
	return inst, nil
}

// Instances returns every instance ordered by id.
func (s *Schematic) Instances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// AddInstance places a new instance of typeID. params holds explicit
// assignments; null values are treated as unassigned.
func (s *Schematic) AddInstance(id, typeID string, params map[string]cty.Value) error {
	if id == "" {
		return domain.SchemaError{Path: "id", Message: "instance id is required"}
	}
	if _, dup := s.instances[id]; dup {
		return domain.SchemaError{Path: id, Message: "duplicate instance id"}
	}
	entry, err := s.catalog.Entry(typeID)
	if err != nil {
		return domain.SchemaError{Path: id + ".type", Message: fmt.Sprintf("unknown component type %q", typeID), Err: err}
	}
	inst := &Instance{id: id, entry: entry, params: make(map[string]cty.Value)}
	for _, name := range sortedKeys(params) {
		if err := inst.set(name, params[name]); err != nil {
			return err
		}
	}
	s.instances[id] = inst
	return nil
}

// RemoveInstance deletes an instance together with its connections.
func (s *Schematic) RemoveInstance(id string) error {
	inst, ok := s.instances[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityInstance, ID: id}
	}
	for _, port := range inst.entry.Type.Ports {
		s.unlink(domain.PortRef{Instance: id, Port: port.Name})
	}
	delete(s.instances, id)
	return nil
}

// SetParameter assigns a parameter value. Assigning null clears the
// assignment so the type default applies again.
func (s *Schematic) SetParameter(id, name string, v cty.Value) error {
	inst, ok := s.instances[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityInstance, ID: id}
	}
	return inst.set(name, v)
}

func (i *Instance) set(name string, v cty.Value) error {
	spec, ok := i.entry.Type.Parameter(name)
	if !ok {
		return domain.SchemaError{
			Path:    i.id + "." + name,
			Message: fmt.Sprintf("component type %s has no parameter %s", i.entry.Type.ID, name),
			Err:     domain.ErrNotFound{Entity: domain.EntityParameter, ID: name},
		}
	}
	norm, err := value.Normalize(v)
	if err != nil {
		return domain.SchemaError{Path: i.id + "." + name, Message: err.Error(), Err: err}
	}
	if norm.IsNull() {
		delete(i.params, name)
		return nil
	}
	if !spec.Allows(norm) {
		return domain.SchemaError{
			Path:    i.id + "." + name,
			Message: fmt.Sprintf("value %s is not one of the allowed options", value.Format(norm)),
		}
	}
	i.params[name] = norm
	return nil
}

// Connect joins two ports. Each port hosts at most one connection. Port type
// and direction compatibility is not checked here; that is the connectivity
// pass's job so that defective graphs can still be reported on.
func (s *Schematic) Connect(from, to domain.PortRef) error {
	for _, ref := range []domain.PortRef{from, to} {
		if err := s.checkPort(ref); err != nil {
			return err
		}
	}
	if from == to {
		return domain.SchemaError{Path: from.String(), Message: "port cannot connect to itself"}
	}
	for _, ref := range []domain.PortRef{from, to} {
		if existing, busy := s.links[ref]; busy {
			return domain.SchemaError{Path: ref.String(), Message: fmt.Sprintf("port already connected (%s)", existing)}
		}
	}
	conn := domain.Connection{From: from, To: to}
	s.links[from] = conn
	s.links[to] = conn
	return nil
}

// Disconnect removes the connection hosted by ref, if any.
func (s *Schematic) Disconnect(ref domain.PortRef) error {
	if err := s.checkPort(ref); err != nil {
		return err
	}
	s.unlink(ref)
	return nil
}

func (s *Schematic) unlink(ref domain.PortRef) {
	conn, ok := s.links[ref]
	if !ok {
		return
	}
	delete(s.links, conn.From)
	delete(s.links, conn.To)
}

func (s *Schematic) checkPort(ref domain.PortRef) error {
	inst, ok := s.instances[ref.Instance]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityInstance, ID: ref.Instance}
	}
	if _, ok := inst.entry.Type.Port(ref.Port); !ok {
		return domain.ErrNotFound{Entity: domain.EntityPort, ID: ref.String()}
	}
	return nil
}

// ConnectionAt returns the connection hosted by ref.
func (s *Schematic) ConnectionAt(ref domain.PortRef) (domain.Connection, bool) {
	conn, ok := s.links[ref]
	return conn, ok
}

// Peer returns the port on the other end of the connection hosted by ref.
func (s *Schematic) Peer(ref domain.PortRef) (domain.PortRef, bool) {
	conn, ok := s.links[ref]
	if !ok {
		return domain.PortRef{}, false
	}
	if conn.From == ref {
		return conn.To, true
	}
	return conn.From, true
}

// PortSpec returns the declaration of the port ref points at.
func (s *Schematic) PortSpec(ref domain.PortRef) (domain.PortSpec, bool) {
	inst, ok := s.instances[ref.Instance]
	if !ok {
		return domain.PortSpec{}, false
	}
	return inst.entry.Type.Port(ref.Port)
}

// Connections returns every connection once, ordered by From then To.
func (s *Schematic) Connections() []domain.Connection {
	out := make([]domain.Connection, 0, len(s.links)/2)
	for ref, conn := range s.links {
		if ref == conn.From {
			out = append(out, conn)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].From != out[b].From {
			return out[a].From.Less(out[b].From)
		}
		return out[a].To.Less(out[b].To)
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
