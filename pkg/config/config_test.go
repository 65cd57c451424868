package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultProfile("dev")
	cfg.VCS.Remote.URL = "https://example.com/popups.git"
	require.NoError(t, Save(filepath.Join(dir, FileName), cfg))

	loaded, err := LoadProfile(dir)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
profileName = "site"

[storage]
dbPath = "popups.db"

[ipc]
socketPath = "/tmp/popd.sock"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.Storage.Backend)
	require.Equal(t, "magic_popups_popups", cfg.Storage.Unit)
	require.Equal(t, "main", cfg.VCS.Branch)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name":    `[ipc]` + "\n" + `socketPath = "s"`,
		"missing socket":  `profileName = "x"`,
		"unknown backend": "profileName = \"x\"\n[storage]\nbackend = \"redis\"\n[ipc]\nsocketPath = \"s\"",
		"missing token":   "profileName = \"x\"\n[storage]\nbackend = \"memory\"\n[ipc]\nsocketPath = \"s\"\nrequireToken = true",
		"missing json":    "profileName = \"x\"\n[storage]\nbackend = \"jsonfile\"\n[ipc]\nsocketPath = \"s\"",
	}
	for name, body := range cases {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := Load(path)
		require.Error(t, err, name)
	}
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, filepath.Join("/p", "state.db"), ResolvePath("/p", "state.db"))
	require.Equal(t, "/abs/state.db", ResolvePath("/p", "/abs/state.db"))
	require.Equal(t, "", ResolvePath("/p", ""))
}
