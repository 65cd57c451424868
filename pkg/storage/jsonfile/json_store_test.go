package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rexliu/popd/pkg/core"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "popups.json")
	store := NewStore(path)

	popups, version, err := store.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, popups)
	require.Zero(t, version)

	v1, err := store.Save(ctx, core.Collection{{ID: "a", Title: "A"}}, version)
	require.NoError(t, err)
	require.EqualValues(t, 1, v1)

	loaded, v, err := NewStore(path).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, v1, v)
	require.Len(t, loaded, 1)
	require.Equal(t, "A", loaded[0].Title)
}

func TestStoreConflict(t *testing.T) {
	ctx := context.Background()
	store := NewStore(filepath.Join(t.TempDir(), "popups.json"))

	_, err := store.Save(ctx, core.Collection{{ID: "a"}}, 0)
	require.NoError(t, err)
	_, err = store.Save(ctx, core.Collection{{ID: "b"}}, 0)
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestStoreLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "popups.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1700000000","title":"Old"}]`), 0o644))

	popups, version, err := NewStore(path).Load(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, version)
	require.Len(t, popups, 1)
	require.Equal(t, "1700000000", popups[0].ID)
}

func TestStoreCorruptFileIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "popups.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, _, err := NewStore(path).Load(context.Background())
	require.ErrorIs(t, err, core.ErrStorage)
}
