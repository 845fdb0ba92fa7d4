// Package catalog holds the registry of component types. A Catalog is built
// once at startup through a Builder and is read-only afterwards, so it may be
// shared by concurrent validations without locking.
package catalog

import (
	"fmt"
	"log/slog"

	"pidcheck/internal/constraint"
	"pidcheck/pkg/domain"
	"pidcheck/pkg/domain/value"
)

// Entry is a registered component type with its constraints compiled.
// Constraints[i] is the parse of Type.Constraints[i].
type Entry struct {
	Type        domain.ComponentType
	Constraints []constraint.Expression
}

// Catalog is an immutable, ordered registry of component types.
type Catalog struct {
	entries map[string]*Entry
	order   []string
}

// Get returns the component type with the given id.
func (c *Catalog) Get(id string) (domain.ComponentType, error) {
	e, err := c.Entry(id)
	if err != nil {
		return domain.ComponentType{}, err
	}
	return e.Type.Clone(), nil
}

// Entry returns the compiled entry for id. Callers must not modify it.
func (c *Catalog) Entry(id string) (*Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityComponentType, ID: id}
	}
	return e, nil
}

// List returns every component type in registration order.
func (c *Catalog) List() []domain.ComponentType {
	out := make([]domain.ComponentType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].Type.Clone())
	}
	return out
}

// IDs returns the registered type ids in registration order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of registered types.
func (c *Catalog) Len() int { return len(c.order) }

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithDerivedNames declares the identifiers a resolver can compute from the
// graph. Bare identifiers in constraints that are neither a parameter of the
// type nor one of these names are logged as warnings at load time.
func WithDerivedNames(names ...string) Option {
	return func(b *Builder) {
		for _, n := range names {
			b.derived[n] = struct{}{}
		}
	}
}

// WithCache shares a parse cache between builders.
func WithCache(c *constraint.Cache) Option {
	return func(b *Builder) {
		if c != nil {
			b.cache = c
		}
	}
}

// Builder accumulates component types. It is not safe for concurrent use.
type Builder struct {
	entries map[string]*Entry
	order   []string
	cache   *constraint.Cache
	logger  *slog.Logger
	derived map[string]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		entries: make(map[string]*Entry),
		cache:   constraint.NewCache(),
		logger:  slog.Default(),
		derived: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add validates and registers one or more component types. Either all of
// them are registered or none is.
func (b *Builder) Add(types ...domain.ComponentType) error {
	compiled := make([]*Entry, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if _, dup := b.entries[t.ID]; dup {
			return domain.TypeRejectedError{TypeID: t.ID, Err: fmt.Errorf("duplicate component type id")}
		}
		if _, dup := seen[t.ID]; dup {
			return domain.TypeRejectedError{TypeID: t.ID, Err: fmt.Errorf("duplicate component type id")}
		}
		seen[t.ID] = struct{}{}
		entry, err := b.compile(t)
		if err != nil {
			return domain.TypeRejectedError{TypeID: t.ID, Err: err}
		}
		compiled = append(compiled, entry)
	}
	for _, e := range compiled {
		b.entries[e.Type.ID] = e
		b.order = append(b.order, e.Type.ID)
		b.warnUnknown(e)
	}
	return nil
}

// Build freezes the accumulated types into a Catalog. The builder may keep
// being used; later additions do not affect catalogs already built.
func (b *Builder) Build() *Catalog {
	entries := make(map[string]*Entry, len(b.entries))
	for id, e := range b.entries {
		entries[id] = e
	}
	return &Catalog{entries: entries, order: append([]string(nil), b.order...)}
}

func (b *Builder) compile(t domain.ComponentType) (*Entry, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("component type id is required")
	}
	t = t.Clone()
	params := make(map[string]struct{}, len(t.Parameters))
	for i, p := range t.Parameters {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := params[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %s", p.Name)
		}
		params[p.Name] = struct{}{}
		def, err := value.Normalize(p.Default)
		if err != nil {
			return nil, fmt.Errorf("parameter %s default: %w", p.Name, err)
		}
		t.Parameters[i].Default = def
		for j, opt := range p.Options {
			norm, err := value.Normalize(opt)
			if err != nil || norm.IsNull() {
				return nil, fmt.Errorf("parameter %s option %d is not a valid value", p.Name, j)
			}
			t.Parameters[i].Options[j] = norm
		}
		if !t.Parameters[i].Allows(def) {
			return nil, fmt.Errorf("parameter %s default %s is not one of its options", p.Name, value.Format(def))
		}
	}
	ports := make(map[string]struct{}, len(t.Ports))
	for i, p := range t.Ports {
		if p.Name == "" {
			return nil, fmt.Errorf("port %d has no name", i)
		}
		if _, dup := ports[p.Name]; dup {
			return nil, fmt.Errorf("duplicate port %s", p.Name)
		}
		ports[p.Name] = struct{}{}
		if p.Type == "" {
			return nil, fmt.Errorf("port %s has no connection type", p.Name)
		}
		if !p.Direction.Valid() {
			return nil, fmt.Errorf("port %s has unknown direction %q", p.Name, p.Direction)
		}
	}
	exprs := make([]constraint.Expression, 0, len(t.Constraints))
	for _, src := range t.Constraints {
		expr, err := b.cache.Parse(src)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	return &Entry{Type: t, Constraints: exprs}, nil
}

func (b *Builder) warnUnknown(e *Entry) {
	if len(b.derived) == 0 {
		return
	}
	for i, expr := range e.Constraints {
		for _, ref := range expr.References() {
			if ref.Kind != constraint.Variable {
				continue
			}
			if _, ok := e.Type.Parameter(ref.Name); ok {
				continue
			}
			if _, ok := b.derived[ref.Name]; ok {
				continue
			}
			b.logger.Warn("constraint references unknown identifier",
				"type", e.Type.ID, "constraint", i, "expression", expr.Source, "identifier", ref.Name)
		}
	}
}
