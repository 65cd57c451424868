package delivery

import "sync"

// ShownEntry identifies a popup shown within an epoch.
type ShownEntry struct {
	ID    string `json:"id"`
	Epoch string `json:"epoch"`
}

// MemoryHistory is a History backed by a set, as reported by a client.
type MemoryHistory struct {
	mu    sync.RWMutex
	shown map[ShownEntry]struct{}
}

// NewMemoryHistory seeds a history with entries already shown.
func NewMemoryHistory(entries ...ShownEntry) *MemoryHistory {
	h := &MemoryHistory{shown: make(map[ShownEntry]struct{}, len(entries))}
	for _, e := range entries {
		h.shown[e] = struct{}{}
	}
	return h
}

func (h *MemoryHistory) Shown(popupID, epoch string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.shown[ShownEntry{ID: popupID, Epoch: epoch}]
	return ok
}

// MarkShown records that a popup opened within epoch.
func (h *MemoryHistory) MarkShown(popupID, epoch string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown[ShownEntry{ID: popupID, Epoch: epoch}] = struct{}{}
}
