package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pidcheck/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetHead(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	info, err := s.Put(ctx, "reports/s1/r1.json", strings.NewReader(`{"overall_status":"valid"}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"status": "valid"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 26 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}

	head, err := s.Head(ctx, "reports/s1/r1.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag != info.ETag || head.Metadata["status"] != "valid" || head.ContentType != "application/json" {
		t.Fatalf("head mismatch %+v", head)
	}

	_, rc, err := s.Get(ctx, "reports/s1/r1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"overall_status":"valid"}` {
		t.Fatalf("body = %q", body)
	}

	if _, err := s.Put(ctx, "reports/s1/r1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestRejectsUnsafeKeys(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"", "/abs", "../escape", "a/../../b", "x.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, key := range []string{"reports/b/2.json", "reports/a/1.json", "other/3.json"} {
		if _, err := s.Put(ctx, key, strings.NewReader("{}"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := s.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "reports/a/1.json" || list[1].Key != "reports/b/2.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	ok, err := s.Delete(ctx, "reports/a/1.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "reports", "a", "1.json.meta")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("sidecar not removed: %v", err)
	}
	ok, err = s.Delete(ctx, "reports/a/1.json")
	if err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, _, err := s.Get(ctx, "reports/a/1.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if _, err := s.Put(ctx, "r.json", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, "r.json.meta"), []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Head(ctx, "r.json"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := s.List(ctx, ""); err == nil {
		t.Fatalf("expected list to surface decode error")
	}
}
