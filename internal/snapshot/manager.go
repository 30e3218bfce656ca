package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/ecs/bitset"
)

// ConvoyKey groups modules that can share one on-demand replica per
// activation. The grouping key is (frequency, mode) — strategy is
// implied by mode and need not be matched separately.
type ConvoyKey struct {
	FrequencyHz float64
	Mode        string
}

type convoyLease struct {
	handle *Handle
	refs   *atomic.Int32
}

// Manager materializes read-only views of a live store for background
// modules: a persistent double-buffered full replica refreshed once per
// frame, and on-demand pooled replicas leased per convoy activation.
type Manager struct {
	live *ecs.Store
	pool *Pool

	fullMu      sync.Mutex
	full        [2]*ecs.Store
	fullVersion [2]uint32
	fullCurrent int

	convoyMu sync.Mutex
	convoys  map[ConvoyKey]*convoyLease
}

// NewManager creates a manager backed by live's type registry. pool is
// used for on-demand convoy leases; the two full-replica buffers are
// created eagerly so the first frame has something to read.
func NewManager(live *ecs.Store, pool *Pool) *Manager {
	registry := live.Registry()
	return &Manager{
		live: live,
		pool: pool,
		full: [2]*ecs.Store{
			ecs.NewStore(ecs.WithRegistry(registry)),
			ecs.NewStore(ecs.WithRegistry(registry)),
		},
		convoys: make(map[ConvoyKey]*convoyLease),
	}
}

// RefreshFullReplica syncs the non-current full-replica buffer from live
// using mask (the host passes the snapshotable mask), then flips
// current. Readers of the new current
// buffer see a frame-old consistent view; sync cost is proportional to
// changed chunks.
func (m *Manager) RefreshFullReplica(mask bitset.Mask256) {
	m.fullMu.Lock()
	defer m.fullMu.Unlock()
	next := 1 - m.fullCurrent
	m.full[next].SyncFrom(m.live, mask, m.fullVersion[next])
	m.fullVersion[next] = m.live.GlobalVersion()
	m.fullCurrent = next
}

// CurrentFullReplica returns the most recently refreshed full-replica
// store. The returned store must not be mutated by callers.
func (m *Manager) CurrentFullReplica() *ecs.Store {
	m.fullMu.Lock()
	defer m.fullMu.Unlock()
	return m.full[m.fullCurrent]
}

// AcquireConvoy returns a handle to the on-demand replica shared by every
// module activating under key. The first caller for key leases a pool
// store and syncs it against the mask that caller passes; later callers
// share that same lease, and the masks they pass are ignored (no union
// of the members' required components is formed). The lease, and the
// snapshot in it, stays shared until its last handle is released.
func (m *Manager) AcquireConvoy(key ConvoyKey, mask bitset.Mask256) *Handle {
	m.convoyMu.Lock()
	defer m.convoyMu.Unlock()

	if lease, ok := m.convoys[key]; ok {
		return lease.handle.Retain()
	}

	store := m.pool.Acquire()
	store.SyncFrom(m.live, mask, 0)

	refs := &atomic.Int32{}
	lease := &convoyLease{refs: refs}
	lease.handle = newHandle(store, refs, func() {
		m.convoyMu.Lock()
		delete(m.convoys, key)
		m.convoyMu.Unlock()
		store.Reset()
		m.pool.Release(store)
	})
	m.convoys[key] = lease
	return lease.handle
}

// PoolStats reports the on-demand pool's current usage.
func (m *Manager) PoolStats() Stats {
	return m.pool.Stats()
}
