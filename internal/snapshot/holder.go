package snapshot

import (
	"sync/atomic"

	"BullionWatch/internal/model"
)

// Holder keeps the current snapshot. Readers always see a complete value;
// a new snapshot replaces the old one in a single store.
type Holder struct {
	p atomic.Pointer[model.Snapshot]
}

// Load returns the current snapshot or nil before the first run.
func (h *Holder) Load() *model.Snapshot { return h.p.Load() }

// Store replaces the current snapshot. nil is ignored.
func (h *Holder) Store(s *model.Snapshot) {
	if s != nil {
		h.p.Store(s)
	}
}
