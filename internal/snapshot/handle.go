package snapshot

import (
	"sync/atomic"

	"github.com/pjanec/simcore/internal/ecs"
)

// Handle is a reference-counted lease on a read-only store replica.
// Release must be called exactly once per Acquire; the underlying store
// returns to its pool only when the last lease drops the count to zero.
type Handle struct {
	Store   *ecs.Store
	refs    *atomic.Int32
	release func()
}

func newHandle(store *ecs.Store, refs *atomic.Int32, release func()) *Handle {
	refs.Add(1)
	return &Handle{Store: store, refs: refs, release: release}
}

// Retain increments the lease count, for a second caller that wants to
// share this same handle's underlying store (convoy sharing).
func (h *Handle) Retain() *Handle {
	h.refs.Add(1)
	return &Handle{Store: h.Store, refs: h.refs, release: h.release}
}

// Release decrements the lease count. The last releaser triggers the
// handle's cleanup (pool return, or convoy slot clear).
func (h *Handle) Release() {
	if h.refs.Add(-1) == 0 && h.release != nil {
		h.release()
	}
}
