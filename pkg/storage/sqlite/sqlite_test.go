package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/storage"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestStoreLoadSave(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))

	popups, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(popups) != 0 || version != 0 {
		t.Fatalf("expected empty collection at version 0, got %d popups at %d", len(popups), version)
	}

	first := core.Collection{{ID: "a", Title: "A", ShowOnThesePages: []int{3, 7}}}
	v1, err := store.Save(ctx, first, version)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	second := append(first.Clone(), core.Popup{ID: "b", Title: "B"})
	v2, err := store.Save(ctx, second, v1)
	if err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if version != v2 {
		t.Fatalf("expected version %d, got %d", v2, version)
	}
	if len(loaded) != 2 || loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Fatalf("unexpected collection %+v", loaded)
	}
	if got := loaded[0].ShowOnThesePages; len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Fatalf("pages not round-tripped: %v", got)
	}
}

func TestStoreRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))

	if _, err := store.Save(ctx, core.Collection{{ID: "a", Title: "A"}}, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, err := store.Save(ctx, core.Collection{{ID: "b", Title: "B"}}, 0)
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict on stale insert, got %v", err)
	}
	var conflict *core.ConflictError
	if !errors.As(err, &conflict) || conflict.Current != 1 {
		t.Fatalf("expected conflict detail with current version 1, got %v", err)
	}
	if _, err := store.Save(ctx, core.Collection{}, storage.Version(5)); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict on wrong version, got %v", err)
	}
}

func TestStoreSharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	a := openTestStore(t, path)
	b := openTestStore(t, path)

	_, va, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	_, vb, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load b: %v", err)
	}
	if _, err := a.Save(ctx, core.Collection{{ID: "a", Title: "A"}}, va); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if _, err := b.Save(ctx, core.Collection{{ID: "b", Title: "B"}}, vb); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected second writer to conflict, got %v", err)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	store := openTestStore(t, path)
	if _, err := store.Save(ctx, core.Collection{{ID: "a", Title: "A"}}, 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
	popups, _, err := store.Load(ctx)
	if err != nil || len(popups) != 1 {
		t.Fatalf("data lost across init: %v %v", popups, err)
	}
}
