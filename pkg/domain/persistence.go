package domain

import "context"

// Transaction exposes the schematic operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateSchematic(SchematicPayload) (SchematicPayload, error)
	UpdateSchematic(id string, mutator func(*SchematicPayload) error) (SchematicPayload, error)
	DeleteSchematic(id string) error
	FindSchematic(id string) (SchematicPayload, bool)
}

// TransactionView provides read-only access to stored schematics.
type TransactionView interface {
	ListSchematics() []SchematicPayload
	FindSchematic(id string) (SchematicPayload, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSchematic(id string) (SchematicPayload, bool)
	ListSchematics() []SchematicPayload
}
