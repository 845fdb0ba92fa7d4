// Package postgres persists schematics to PostgreSQL. Reads and transactions
// run against an embedded memory.Store; every committed transaction rewrites
// the schematics table inside one SQL transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"pidcheck/internal/infra/persistence/memory"
	"pidcheck/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pidcheck?sslmode=disable"
)

const ddl = `CREATE TABLE IF NOT EXISTS schematics (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	document JSONB NOT NULL
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a memory.Store mirrored into Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore connects to dsn (defaultDSN when empty), ensures the schema and
// loads the stored schematics.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure schematics table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction runs fn on the in-memory state, then writes the result to
// Postgres when fn succeeds.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist(ctx)
}

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, document FROM schematics`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select schematics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{Schematics: make(map[string]domain.SchematicPayload)}
	for rows.Next() {
		var (
			id, name string
			document []byte
		)
		if err := rows.Scan(&id, &name, &document); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan schematic: %w", err)
		}
		var p domain.SchematicPayload
		if err := json.Unmarshal(document, &p); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode schematic %s: %w", id, err)
		}
		p.ID, p.Name = id, name
		snapshot.Schematics[id] = p.Normalize()
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate schematics: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schematics := s.ListSchematics()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE schematics`); err != nil {
		return fmt.Errorf("truncate schematics: %w", err)
	}
	for _, p := range schematics {
		document, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode schematic %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schematics (id, name, document) VALUES ($1, $2, $3)`,
			p.ID, p.Name, document); err != nil {
			return fmt.Errorf("insert schematic %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
