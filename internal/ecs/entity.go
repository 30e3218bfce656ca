package ecs

import (
	"fmt"

	"github.com/pjanec/simcore/internal/ecs/bitset"
)

// mask256 aliases bitset.Mask256 for brevity within this package.
type mask256 = bitset.Mask256

// Entity is an opaque (index, generation) handle, packed into a single
// uint64: index in the high 32 bits, generation in the low 32 bits.
type Entity uint64

// NullEntity denotes "no entity" — a zero-generation handle is always
// invalid.
const NullEntity Entity = 0

// NewEntity packs an index and generation into a handle.
func NewEntity(index, generation uint32) Entity {
	return Entity(uint64(index)<<32 | uint64(generation))
}

// Index returns the slot index.
func (e Entity) Index() uint32 { return uint32(e >> 32) }

// Generation returns the slot generation.
func (e Entity) Generation() uint32 { return uint32(e) }

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d#%d)", e.Index(), e.Generation())
}

// LifecycleState is one of the four per-entity states gating default
// query visibility.
type LifecycleState uint8

const (
	LifecycleConstructing LifecycleState = iota
	LifecycleActive
	LifecycleTearDown
	LifecycleGhost
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleConstructing:
		return "Constructing"
	case LifecycleActive:
		return "Active"
	case LifecycleTearDown:
		return "TearDown"
	case LifecycleGhost:
		return "Ghost"
	default:
		return "Unknown"
	}
}

// slot is the store's per-index bookkeeping record: generation,
// lifecycle state, and component-membership mask.
type slot struct {
	generation uint32
	lifecycle  LifecycleState
	free       bool
	mask       bitset.Mask256
}
