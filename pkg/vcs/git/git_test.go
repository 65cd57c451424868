package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestCommitSkipsCleanTree(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "main")
	require.NoError(t, err)
	require.Empty(t, repo.Head())

	file := filepath.Join(dir, "popups.json")
	writeFile(t, file, `[]`)

	ctx := context.Background()
	st, err := repo.Commit(ctx, "first", []string{file})
	require.NoError(t, err)
	require.True(t, st.Committed)
	require.Equal(t, st.Hash, repo.Head())

	st, err = repo.Commit(ctx, "again", []string{file})
	require.NoError(t, err)
	require.False(t, st.Committed)

	writeFile(t, file, `[{"id":"a"}]`)
	st, err = repo.Commit(ctx, "change", []string{"popups.json"})
	require.NoError(t, err)
	require.True(t, st.Committed)
}

func TestOpenUsesBranch(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "trunk")
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "popups.json"), `[]`)
	_, err = repo.Commit(context.Background(), "init", []string{"popups.json"})
	require.NoError(t, err)

	raw, err := gogit.PlainOpen(dir)
	require.NoError(t, err)
	head, err := raw.Head()
	require.NoError(t, err)
	require.Equal(t, "refs/heads/trunk", head.Name().String())
}

func TestRemoteSetShow(t *testing.T) {
	repo, err := Open(t.TempDir(), "")
	require.NoError(t, err)

	_, err = repo.RemoteURL()
	require.ErrorIs(t, err, ErrNoRemote)
	require.ErrorIs(t, repo.Push(context.Background()), ErrNoRemote)

	require.NoError(t, repo.SetRemote("https://example.com/a.git"))
	require.NoError(t, repo.SetRemote("https://example.com/b.git"))
	url, err := repo.RemoteURL()
	require.NoError(t, err)
	require.Equal(t, "https://example.com/b.git", url)

	require.NoError(t, repo.SetRemote(""))
	_, err = repo.RemoteURL()
	require.ErrorIs(t, err, ErrNoRemote)
}

func TestPushPull(t *testing.T) {
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		if _, err := exec.LookPath("git"); err != nil {
			t.Skip("local file transport needs git installed")
		}
	}
	ctx := context.Background()
	bare := t.TempDir()
	_, err := gogit.PlainInit(bare, true)
	require.NoError(t, err)

	a, err := Open(t.TempDir(), "main")
	require.NoError(t, err)
	require.NoError(t, a.SetRemote(bare))
	writeFile(t, filepath.Join(a.Path, "popups.json"), `[]`)
	st, err := a.Commit(ctx, "from a", []string{"popups.json"})
	require.NoError(t, err)
	require.NoError(t, a.Push(ctx))
	require.NoError(t, a.Push(ctx))

	b, err := Open(t.TempDir(), "main")
	require.NoError(t, err)
	require.NoError(t, b.SetRemote(bare))
	require.NoError(t, b.Pull(ctx))
	require.Equal(t, st.Hash, b.Head())
	require.FileExists(t, filepath.Join(b.Path, "popups.json"))
}
