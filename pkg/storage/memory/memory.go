// Package memory is an in-process popup store, mainly for tests and
// ephemeral profiles.
package memory

import (
	"context"
	"sync"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/storage"
)

type Store struct {
	mu        sync.Mutex
	popups    core.Collection
	version   storage.Version
	versioned bool
}

// New returns a store that rejects saves against a stale version.
func New() *Store {
	return &Store{popups: core.Collection{}, versioned: true}
}

// NewUnversioned returns a last-writer-wins store: Save ignores the expected
// version, so concurrent load-modify-save cycles can lose updates.
func NewUnversioned() *Store {
	return &Store{popups: core.Collection{}}
}

func (s *Store) Load(ctx context.Context) (core.Collection, storage.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popups.Clone(), s.version, nil
}

func (s *Store) Save(ctx context.Context, popups core.Collection, expected storage.Version) (storage.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versioned && expected != s.version {
		return 0, &core.ConflictError{Expected: int64(expected), Current: int64(s.version)}
	}
	s.popups = popups.Clone()
	s.version++
	return s.version, nil
}

func (s *Store) Close() error {
	return nil
}

var _ storage.Store = (*Store)(nil)
