package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pidcheck/pkg/domain"
)

func payload(id string) domain.SchematicPayload {
	return domain.SchematicPayload{
		ID:   id,
		Name: "loop " + id,
		Components: []domain.InstancePayload{
			{ID: "tk1", Type: "tank", Parameters: map[string]json.RawMessage{"volume": json.RawMessage("10")}},
		},
	}
}

func TestCreateFindListDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	var generated string
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateSchematic(payload("b")); err != nil {
			return err
		}
		created, err := tx.CreateSchematic(payload(""))
		if err != nil {
			return err
		}
		generated = created.ID
		if len(tx.Snapshot().ListSchematics()) != 2 {
			t.Fatalf("snapshot should see uncommitted schematics")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if generated == "" {
		t.Fatalf("expected generated id")
	}
	list := store.ListSchematics()
	if len(list) != 2 || list[0].ID > list[1].ID {
		t.Fatalf("unexpected list order %+v", list)
	}
	got, ok := store.GetSchematic("b")
	if !ok || got.Name != "loop b" || string(got.Components[0].Parameters["volume"]) != "10" {
		t.Fatalf("unexpected schematic %+v", got)
	}
	if got.Connections == nil {
		t.Fatalf("stored payload should be normalized")
	}

	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSchematic(payload("b"))
		return err
	})
	var conflict domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.ID != "b" {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteSchematic("b") }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteSchematic("b") })
	var notFound domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFailedTransactionRollsBack(t *testing.T) {
	store := NewStore()
	boom := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateSchematic(payload("a")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListSchematics()) != 0 {
		t.Fatalf("rolled back transaction leaked state")
	}
}

func TestUpdateKeepsID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSchematic(payload("a"))
		return err
	})
	err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.UpdateSchematic("a", func(p *domain.SchematicPayload) error {
			p.ID = "renamed"
			p.Name = "updated"
			p.Components = nil
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != "a" || updated.Components == nil {
			t.Fatalf("unexpected update result %+v", updated)
		}
		_, err = tx.UpdateSchematic("missing", func(*domain.SchematicPayload) error { return nil })
		if err == nil {
			t.Fatalf("expected missing update to fail")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetSchematic("a")
	if got.Name != "updated" {
		t.Fatalf("update not committed: %+v", got)
	}
}

func TestExportImportAndIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateSchematic(payload("a"))
		return err
	})
	snapshot := store.ExportState()
	snapshot.Schematics["a"].Components[0].Parameters["volume"][0] = '9'
	if got, _ := store.GetSchematic("a"); string(got.Components[0].Parameters["volume"]) != "10" {
		t.Fatalf("export shares memory with the store")
	}

	store.ImportState(Snapshot{})
	if len(store.ListSchematics()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(Snapshot{Schematics: map[string]domain.SchematicPayload{"x": {Name: "imported"}}})
	err := store.View(ctx, func(v domain.TransactionView) error {
		p, ok := v.FindSchematic("x")
		if !ok || p.ID != "x" {
			t.Fatalf("import should key schematics by map id, got %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
