package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rexliu/popd/pkg/config"
	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/ipc"
	"github.com/rexliu/popd/pkg/snapshot"
)

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{config.BackendSQLite, config.BackendJSONFile, config.BackendMemory} {
		dir := t.TempDir()
		cfg := config.DefaultProfile("t").Storage
		cfg.Backend = backend
		store, err := openStore(ctx, dir, cfg)
		require.NoError(t, err, backend)
		popups, version, err := store.Load(ctx)
		require.NoError(t, err, backend)
		require.Empty(t, popups)
		_, err = store.Save(ctx, core.Collection{{ID: "a", Title: "x"}}, version)
		require.NoError(t, err, backend)
		require.NoError(t, store.Close())
	}

	_, err := openStore(ctx, t.TempDir(), config.StorageConfig{Backend: "cloud"})
	require.Error(t, err)
}

func TestDaemonServesAndRecords(t *testing.T) {
	profile := t.TempDir()
	cfg := config.DefaultProfile("it")
	cfg.VCS.Enabled = true
	cfg.IPC.RequireToken = true
	cfg.IPC.Token = "tok"
	require.NoError(t, config.Save(filepath.Join(profile, config.FileName), cfg))

	sockDir, err := os.MkdirTemp("", "popd")
	require.NoError(t, err)
	defer os.RemoveAll(sockDir)
	socket := filepath.Join(sockDir, "d.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, profile, socket) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	client := &ipc.Client{SocketPath: socket, Token: "tok"}
	require.Eventually(t, func() bool {
		_, err := client.Call(context.Background(), "ping", nil)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	var created struct {
		Popup core.Popup `json:"popup"`
	}
	require.NoError(t, client.CallInto(context.Background(), "create_popup",
		map[string]any{"popup": map[string]any{"title": "Hello"}}, &created))
	require.NotEmpty(t, created.Popup.ID)

	popups, err := snapshot.Read(filepath.Join(profile, snapshot.FileName))
	require.NoError(t, err)
	require.Len(t, popups, 1)
	require.Equal(t, created.Popup.ID, popups[0].ID)

	var status map[string]any
	require.NoError(t, client.CallInto(context.Background(), "vcs_status", nil, &status))
	require.Equal(t, true, status["enabled"])
	require.NotEmpty(t, status["head"])

	bad := &ipc.Client{SocketPath: socket}
	_, err = bad.Call(context.Background(), "list_popups", nil)
	var rpcErr *ipc.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, ipc.CodeUnauthorized, rpcErr.Code)

	raw, err := json.Marshal(created.Popup)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"displayFrequency":"session"`)
}
