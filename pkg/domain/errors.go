package domain

import "fmt"

// EntityKind names the kind of thing a lookup failed to find.
type EntityKind string

const (
	EntityComponentType EntityKind = "component type"
	EntityInstance      EntityKind = "instance"
	EntityPort          EntityKind = "port"
	EntityParameter     EntityKind = "parameter"
	EntitySchematic     EntityKind = "schematic"
)

// ErrNotFound is returned when a component type, instance, port or stored
// schematic does not exist.
type ErrNotFound struct {
	Entity EntityKind
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict is returned when creating an entity whose id is already taken.
type ErrConflict struct {
	Entity EntityKind
	ID     string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// SchemaError reports a malformed schematic payload or an invalid mutation.
// Path locates the offending element, e.g. "components[2].type".
type SchemaError struct {
	Path    string
	Message string
	Err     error
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema: %s: %s", e.Path, e.Message)
}

func (e SchemaError) Unwrap() error { return e.Err }

// SyntaxError reports a constraint expression that does not match the grammar.
// Position is the byte offset of the offending token.
type SyntaxError struct {
	Expression string
	Position   int
	Message    string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d in %q: %s", e.Position, e.Expression, e.Message)
}

// TypeRejectedError is returned by catalog loading when a component type
// definition is invalid. The whole load fails; no partial catalog is produced.
type TypeRejectedError struct {
	TypeID string
	Err    error
}

func (e TypeRejectedError) Error() string {
	return fmt.Sprintf("component type %s rejected: %v", e.TypeID, e.Err)
}

func (e TypeRejectedError) Unwrap() error { return e.Err }
