package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rexliu/popd/pkg/config"
)

func TestTargetClientReadsProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultProfile("dev")
	cfg.IPC.RequireToken = true
	cfg.IPC.Token = "s3cret"
	require.NoError(t, config.Save(filepath.Join(dir, config.FileName), cfg))

	tg := target{profile: dir}
	c, err := tg.client()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "ipc.sock"), c.SocketPath)
	require.Equal(t, "s3cret", c.Token)

	tg.socket = "/tmp/other.sock"
	c, err = tg.client()
	require.NoError(t, err)
	require.Equal(t, "/tmp/other.sock", c.SocketPath)
}

func TestTargetClientMissingProfile(t *testing.T) {
	tg := target{profile: filepath.Join(t.TempDir(), "nope")}
	_, err := tg.client()
	require.ErrorContains(t, err, "popctl init")

	tg.socket = "/tmp/x.sock"
	c, err := tg.client()
	require.NoError(t, err)
	require.Empty(t, c.Token)
}

func TestPrintRejectsUnknownFormat(t *testing.T) {
	tg := target{output: "xml"}
	require.Error(t, tg.print([]byte(`{"ok":true}`)))
	tg.output = "yaml"
	require.NoError(t, tg.print([]byte(`{"popups":[]}`)))
	require.Error(t, tg.print([]byte(`{`)))
}
