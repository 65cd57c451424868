package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewPopupID generates a ULID string for new popups.
func NewPopupID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewUniquePopupID returns an id not already used in c.
func NewUniquePopupID(c Collection) string {
	for {
		id := NewPopupID()
		if c.Index(id) < 0 {
			return id
		}
	}
}
