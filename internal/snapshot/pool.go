// Package snapshot materializes read-only views of a live entity store for
// background modules, sharing copies across modules with compatible
// execution policies.
package snapshot

import (
	"sync"

	"github.com/pjanec/simcore/internal/ecs"
)

// Stats reports a pool's current usage.
type Stats struct {
	Capacity  int
	Available int
	Leased    int
	Grows     int64
}

// Pool is a free list of reusable *ecs.Store instances, all sharing one
// *ecs.TypeRegistry so component ids line up across replicas. Exhaustion
// grows the pool rather than blocking the caller.
type Pool struct {
	mu       sync.Mutex
	registry *ecs.TypeRegistry
	free     []*ecs.Store
	leased   int
	grows    int64
}

// NewPool creates a pool pre-warmed to warmCapacity stores, all sharing
// registry.
func NewPool(registry *ecs.TypeRegistry, warmCapacity int) *Pool {
	p := &Pool{registry: registry}
	for i := 0; i < warmCapacity; i++ {
		p.free = append(p.free, ecs.NewStore(ecs.WithRegistry(registry)))
	}
	return p
}

// Acquire returns a store from the free list, growing the pool by one if
// it is empty. Never blocks.
func (p *Pool) Acquire() *ecs.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.leased++
		return s
	}
	p.grows++
	p.leased++
	return ecs.NewStore(ecs.WithRegistry(p.registry))
}

// Release returns store to the free list. Callers reset a store's
// contents before releasing it; Release itself only manages the list.
func (p *Pool) Release(store *ecs.Store) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leased--
	p.free = append(p.free, store)
}

// Stats reports the pool's current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity:  len(p.free) + p.leased,
		Available: len(p.free),
		Leased:    p.leased,
		Grows:     p.grows,
	}
}
