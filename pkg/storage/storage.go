// Package storage defines how the popup collection is persisted. Every
// backend stores the whole collection as one named unit and guards writes
// with a version token.
package storage

import (
	"context"

	"github.com/rexliu/popd/pkg/core"
)

// DefaultUnit is the name under which the collection is stored.
const DefaultUnit = "magic_popups_popups"

// Version identifies a stored revision of the collection. Zero means nothing
// has been persisted yet.
type Version int64

// Store loads and saves the full popup collection.
type Store interface {
	// Load returns the persisted collection, or an empty one at version 0.
	Load(ctx context.Context) (core.Collection, Version, error)
	// Save replaces the persisted collection if it is still at expected and
	// returns the new version. A mismatch fails with core.ErrConflict.
	Save(ctx context.Context, popups core.Collection, expected Version) (Version, error)
	Close() error
}
