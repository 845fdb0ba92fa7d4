// Package memory provides an in-memory schematic store used directly for
// ephemeral runs and embedded by the SQL-backed stores.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"pidcheck/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type (
	// SchematicPayload aliases domain.SchematicPayload.
	SchematicPayload = domain.SchematicPayload
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
)

// Snapshot is the serialisable form of the store state.
type Snapshot struct {
	Schematics map[string]SchematicPayload `json:"schematics"`
}

type state struct {
	schematics map[string]SchematicPayload
}

func newState() state {
	return state{schematics: make(map[string]SchematicPayload)}
}

func (s state) clone() state {
	out := state{schematics: make(map[string]SchematicPayload, len(s.schematics))}
	for id, p := range s.schematics {
		out.schematics[id] = p.Clone()
	}
	return out
}

// Store keeps schematics in a map guarded by a RWMutex. Transactions work on
// a copy of the state that replaces the live state only when fn succeeds.
type Store struct {
	mu    sync.RWMutex
	state state
	newID func() string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState(), newID: uuid.NewString}
}

// ExportState returns a deep copy of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Schematics: s.state.clone().schematics}
}

// ImportState replaces the current state with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	next := newState()
	for id, p := range snapshot.Schematics {
		if id == "" {
			continue
		}
		p = p.Clone()
		p.ID = id
		next.schematics[id] = p
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// RunInTransaction applies fn to a working copy and commits it when fn
// returns nil.
func (s *Store) RunInTransaction(_ context.Context, fn func(Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{state: s.state.clone(), newID: s.newID}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View runs fn against a read-only copy of the state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

// GetSchematic returns the stored schematic with the given id.
func (s *Store) GetSchematic(id string) (SchematicPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindSchematic(id)
}

// ListSchematics returns all stored schematics ordered by id.
func (s *Store) ListSchematics() []SchematicPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSchematics()
}

type view struct {
	state *state
}

func (v view) ListSchematics() []SchematicPayload {
	out := make([]SchematicPayload, 0, len(v.state.schematics))
	for _, p := range v.state.schematics {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v view) FindSchematic(id string) (SchematicPayload, bool) {
	p, ok := v.state.schematics[id]
	if !ok {
		return SchematicPayload{}, false
	}
	return p.Clone(), true
}

type transaction struct {
	state state
	newID func() string
}

func (tx *transaction) Snapshot() TransactionView { return view{state: &tx.state} }

func (tx *transaction) FindSchematic(id string) (SchematicPayload, bool) {
	return view{state: &tx.state}.FindSchematic(id)
}

// CreateSchematic stores p, assigning an id when p has none.
func (tx *transaction) CreateSchematic(p SchematicPayload) (SchematicPayload, error) {
	p = p.Clone()
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = tx.newID()
	}
	if _, exists := tx.state.schematics[p.ID]; exists {
		return SchematicPayload{}, domain.ErrConflict{Entity: domain.EntitySchematic, ID: p.ID}
	}
	tx.state.schematics[p.ID] = p
	return p.Clone(), nil
}

// UpdateSchematic applies mutator to a copy of the stored schematic. The id
// cannot be changed.
func (tx *transaction) UpdateSchematic(id string, mutator func(*SchematicPayload) error) (SchematicPayload, error) {
	current, ok := tx.state.schematics[id]
	if !ok {
		return SchematicPayload{}, domain.ErrNotFound{Entity: domain.EntitySchematic, ID: id}
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return SchematicPayload{}, err
	}
	next = next.Normalize()
	next.ID = id
	tx.state.schematics[id] = next
	return next.Clone(), nil
}

func (tx *transaction) DeleteSchematic(id string) error {
	if _, ok := tx.state.schematics[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntitySchematic, ID: id}
	}
	delete(tx.state.schematics, id)
	return nil
}
