package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/rexliu/popd/pkg/api"
	"github.com/rexliu/popd/pkg/ipc"
	"github.com/rexliu/popd/pkg/service"
	"github.com/rexliu/popd/pkg/snapshot"
	gitvcs "github.com/rexliu/popd/pkg/vcs/git"
)

const codeVCSError = "VCS_ERROR"

// history is the part of the profile repository the VCS operations use.
type history interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
	RemoteURL() (string, error)
	Head() string
}

type daemon struct {
	logger   *slog.Logger
	svc      *service.Service
	recorder *snapshot.Recorder
	repo     history
	branch   string
}

// record runs after every successful mutation. Snapshot failures never undo
// the mutation.
func (d *daemon) record(ctx context.Context, message string) {
	if d.recorder == nil {
		return
	}
	if _, err := d.recorder.Record(ctx, message); err != nil {
		d.logger.Warn("snapshot failed", "message", message, "error", err)
	}
}

func (d *daemon) registerVCS(srv *ipc.Server) {
	srv.Register("vcs_status", d.handleVCSStatus)
	srv.Register("vcs_push", d.handleVCSPush)
	srv.Register("vcs_pull", d.handleVCSPull)
}

func (d *daemon) handleVCSStatus(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	if d.repo == nil {
		return map[string]any{"enabled": false}, nil
	}
	remote, err := d.repo.RemoteURL()
	if err != nil && !errors.Is(err, gitvcs.ErrNoRemote) {
		return nil, ipc.Errorf(codeVCSError, err.Error(), nil)
	}
	return map[string]any{
		"enabled": true,
		"branch":  d.branch,
		"head":    d.repo.Head(),
		"remote":  remote,
	}, nil
}

func (d *daemon) handleVCSPush(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	if d.repo == nil {
		return nil, ipc.Errorf(codeVCSError, "git repo unavailable", nil)
	}
	if err := d.repo.Push(ctx); err != nil {
		return nil, ipc.Errorf(codeVCSError, err.Error(), nil)
	}
	return map[string]any{"status": "ok", "head": d.repo.Head()}, nil
}

// handleVCSPull fast-forwards the history and restores the pulled snapshot.
// The store version is read before pulling, so a mutation that lands while
// the pull runs fails the restore with CONFLICT. Pulled records are
// sanitized like any other payload; one invalid record rejects the pull.
func (d *daemon) handleVCSPull(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	if d.repo == nil {
		return nil, ipc.Errorf(codeVCSError, "git repo unavailable", nil)
	}
	version, err := d.svc.Version(ctx)
	if err != nil {
		return nil, api.ToError(err)
	}
	if err := d.repo.Pull(ctx); err != nil {
		return nil, ipc.Errorf(codeVCSError, err.Error(), nil)
	}
	records, err := snapshot.ReadRecords(d.recorder.Path())
	if err != nil {
		return nil, ipc.Errorf(codeVCSError, "read pulled snapshot: "+err.Error(), nil)
	}
	popups, err := d.svc.Restore(ctx, records, version)
	if err != nil {
		d.logger.Warn("pulled snapshot rejected", "head", d.repo.Head(), "error", err)
		return nil, api.ToError(err)
	}
	d.logger.Info("restored popups from pull", "count", len(popups), "head", d.repo.Head())
	return map[string]any{"status": "ok", "head": d.repo.Head(), "popups": popups}, nil
}
