// Package snapshot writes the popup collection to popups.json after each
// mutation and commits it to the profile's git history.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rexliu/popd/pkg/core"
	gitvcs "github.com/rexliu/popd/pkg/vcs/git"
)

// FileName is the snapshot written inside the profile directory.
const FileName = "popups.json"

// Source yields the current collection.
type Source interface {
	List(ctx context.Context) (core.Collection, error)
}

// Result reports what a Record call did.
type Result struct {
	Path   string        `json:"path"`
	VCS    gitvcs.Status `json:"vcs"`
	Pushed bool          `json:"pushed"`
}

// Recorder persists snapshots and, when a repo is attached, commits them.
type Recorder struct {
	dir      string
	source   Source
	repo     gitvcs.Repo
	autoPush bool
	logger   *slog.Logger
}

// Option customizes a Recorder.
type Option func(*Recorder)

// WithRepo commits every snapshot to repo.
func WithRepo(repo gitvcs.Repo, autoPush bool) Option {
	return func(r *Recorder) {
		r.repo = repo
		r.autoPush = autoPush
	}
}

// WithLogger sets the recorder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// NewRecorder writes snapshots of source into dir.
func NewRecorder(dir string, source Source, opts ...Option) *Recorder {
	r := &Recorder{dir: dir, source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path is the snapshot file location.
func (r *Recorder) Path() string {
	return filepath.Join(r.dir, FileName)
}

// Record writes the current collection and commits it with message. Push
// failures are logged, not returned; the commit is already durable locally.
func (r *Recorder) Record(ctx context.Context, message string) (Result, error) {
	popups, err := r.source.List(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Path: r.Path()}
	if err := Write(res.Path, popups); err != nil {
		return res, err
	}
	if r.repo == nil {
		return res, nil
	}
	st, err := r.repo.Commit(ctx, message, []string{res.Path})
	if err != nil {
		return res, fmt.Errorf("commit snapshot: %w", err)
	}
	res.VCS = st
	if st.Committed && r.autoPush {
		if err := r.repo.Push(ctx); err != nil {
			r.logger.Warn("auto push failed", "error", err)
		} else {
			res.Pushed = true
		}
	}
	r.logger.Debug("snapshot recorded", "path", res.Path, "committed", st.Committed, "hash", st.Hash)
	return res, nil
}

// Write encodes popups as indented JSON at path via a temp file and rename.
func Write(path string, popups core.Collection) error {
	if popups == nil {
		popups = core.Collection{}
	}
	data, err := json.MarshalIndent(popups, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp, err := os.CreateTemp(filepath.Dir(path), ".popups-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read decodes a snapshot file written by Write. A missing file yields an
// empty collection.
func Read(path string) (core.Collection, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.Collection{}, nil
	}
	if err != nil {
		return nil, err
	}
	var popups core.Collection
	if err := json.Unmarshal(data, &popups); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if popups == nil {
		popups = core.Collection{}
	}
	return popups, nil
}

// ReadRecords returns the raw records of a snapshot file without decoding
// them into popups, so callers can sanitize each one. Unlike Read, a missing
// file is an error.
func ReadRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
