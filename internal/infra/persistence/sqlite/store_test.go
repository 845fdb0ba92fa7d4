package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"pidcheck/pkg/domain"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pidcheck.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSchematic(domain.SchematicPayload{
			ID:   "s1",
			Name: "feed loop",
			Components: []domain.InstancePayload{
				{ID: "tk1", Type: "tank", Parameters: map[string]json.RawMessage{"volume": json.RawMessage("10")}},
			},
		})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("path = %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.GetSchematic("s1")
	if !ok {
		t.Fatalf("schematic lost across reopen")
	}
	if got.Name != "feed loop" || len(got.Components) != 1 || string(got.Components[0].Parameters["volume"]) != "10" {
		t.Fatalf("unexpected schematic %+v", got)
	}

	var buckets int
	if err := reopened.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&buckets); err != nil {
		t.Fatalf("count: %v", err)
	}
	if buckets != 1 {
		t.Fatalf("expected one bucket row, got %d", buckets)
	}
}

func TestFailedTransactionIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pidcheck.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteSchematic("missing")
	})
	if err == nil {
		t.Fatalf("expected delete of missing schematic to fail")
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("failed transaction wrote %d rows", rows)
	}
	_ = store.Close()
}

func TestCorruptSnapshotFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pidcheck.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('schematics', 'not json')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error")
	}
}
