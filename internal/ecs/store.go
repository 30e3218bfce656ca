package ecs

import (
	"reflect"
	"sync"

	"github.com/pjanec/simcore/internal/ecs/bitset"
	"github.com/pjanec/simcore/internal/ecs/storage"
)

// Store is the entity/component store. A live Store is mutated only by the
// main thread, outside the modules-running window; snapshot/pooled instances
// are plain Store values synced by SnapshotManager and otherwise read-only.
type Store struct {
	mu sync.RWMutex

	registry *TypeRegistry
	byGoType map[reflect.Type]ComponentType

	slots    []slot
	freeList []uint32

	columns   [256]*storage.Column
	ownership map[Entity]*Ownership

	globalVersion uint32
	tickedThisFrame bool

	bus *EventBus

	buffers map[string]*CommandBuffer
}

// NewStore creates an empty store with a fresh type registry. Replicas
// that must agree on component ids (full-replica, on-demand pool,
// recorder playback targets) should share the same *TypeRegistry by
// passing WithRegistry.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		registry:  NewTypeRegistry(),
		byGoType:  make(map[reflect.Type]ComponentType),
		ownership: make(map[Entity]*Ownership),
		bus:       NewEventBus(),
		buffers:   make(map[string]*CommandBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreOption configures a new Store.
type StoreOption func(*Store)

// WithRegistry shares an existing type registry (and thus component ids)
// across stores, required for snapshot replicas and recorder playback
// targets.
func WithRegistry(r *TypeRegistry) StoreOption {
	return func(s *Store) { s.registry = r }
}

// Registry exposes the store's type registry.
func (s *Store) Registry() *TypeRegistry { return s.registry }

// Bus exposes the store's frame-local event bus.
func (s *Store) Bus() *EventBus { return s.bus }

// GlobalVersion returns the current global version counter.
func (s *Store) GlobalVersion() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalVersion
}

// Tick advances the global version exactly once per frame.
func (s *Store) Tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickedThisFrame {
		return VersionMisuseErr()
	}
	s.globalVersion++
	s.tickedThisFrame = true
	return nil
}

// EndFrame clears the once-per-frame tick guard; called by the host after
// a frame's mutations are complete.
func (s *Store) EndFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickedThisFrame = false
}

// CreateEntity allocates a fresh handle, reusing a free slot if one
// exists. New entities default to Active; callers staging entities
// through the lifecycle manager should follow with
// SetLifecycle(e, LifecycleConstructing).
func (s *Store) CreateEntity() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEntityLocked()
}

func (s *Store) createEntityLocked() Entity {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		sl := &s.slots[idx]
		sl.free = false
		sl.lifecycle = LifecycleActive
		sl.mask = bitset.Mask256{}
		return NewEntity(idx, sl.generation)
	}
	idx := uint32(len(s.slots))
	s.slots = append(s.slots, slot{generation: 1, lifecycle: LifecycleActive})
	return NewEntity(idx, 1)
}

// IsValid reports whether e refers to a live slot at the expected
// generation.
func (s *Store) IsValid(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isValidLocked(e)
}

func (s *Store) isValidLocked(e Entity) bool {
	if e == NullEntity {
		return false
	}
	idx := e.Index()
	if int(idx) >= len(s.slots) {
		return false
	}
	sl := &s.slots[idx]
	return !sl.free && sl.generation == e.Generation()
}

// Lifecycle returns e's lifecycle state.
func (s *Store) Lifecycle(e Entity) (LifecycleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isValidLocked(e) {
		return 0, StaleEntityErr(e)
	}
	return s.slots[e.Index()].lifecycle, nil
}

// SetLifecycle transitions e to state.
func (s *Store) SetLifecycle(e Entity, state LifecycleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isValidLocked(e) {
		return StaleEntityErr(e)
	}
	s.slots[e.Index()].lifecycle = state
	return nil
}

// DestroyEntity zeroes every component slot for e, flips its generation,
// and returns it to the free list.
func (s *Store) DestroyEntity(e Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isValidLocked(e) {
		return StaleEntityErr(e)
	}
	idx := e.Index()
	sl := &s.slots[idx]
	for _, bit := range sl.mask.Bits() {
		if col := s.columns[bit]; col != nil {
			col.Clear(idx)
		}
	}
	sl.mask = bitset.Mask256{}
	sl.generation++
	sl.free = true
	delete(s.ownership, e)
	s.freeList = append(s.freeList, idx)
	return nil
}

// GetActiveEntities returns every Active-lifecycle entity, in slot order,
// which fixes a stable, reproducible iteration order across replicas.
func (s *Store) GetActiveEntities() []Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, 0, len(s.slots))
	for idx := range s.slots {
		sl := &s.slots[idx]
		if !sl.free && sl.lifecycle == LifecycleActive {
			out = append(out, NewEntity(uint32(idx), sl.generation))
		}
	}
	return out
}

func (s *Store) componentTypeFor(goType reflect.Type) (ComponentType, bool) {
	ct, ok := s.byGoType[goType]
	return ct, ok
}

// column returns the column for ct, allocating it lazily.
func (s *Store) column(ct ComponentType) *storage.Column {
	if s.columns[ct] == nil {
		s.columns[ct] = storage.NewColumn()
	}
	return s.columns[ct]
}

// addComponentRaw is the untyped core of AddComponent/SetComponent used
// by command-buffer playback, which only carries a ComponentType id and
// an already-decoded value.
func (s *Store) addComponentRaw(e Entity, ct ComponentType, v Component, isSet bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isValidLocked(e) {
		return StaleEntityErr(e)
	}
	if _, ok := s.registry.Lookup(ct); !ok {
		return UnknownTypeErr(ct)
	}
	idx := e.Index()
	sl := &s.slots[idx]
	if sl.mask.Test(uint8(ct)) && !isSet {
		return PlaybackErrorErr("component already present", e)
	}
	sl.mask.Set(uint8(ct))
	s.column(ct).Set(idx, v, s.globalVersion)
	return nil
}

// removeComponentRaw removes ct from e.
func (s *Store) removeComponentRaw(e Entity, ct ComponentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isValidLocked(e) {
		return StaleEntityErr(e)
	}
	idx := e.Index()
	sl := &s.slots[idx]
	if !sl.mask.Test(uint8(ct)) {
		return PlaybackErrorErr("component not present", e)
	}
	sl.mask.Clear(uint8(ct))
	s.column(ct).Clear(idx)
	return nil
}

// getComponentRaw returns the stored value for (e, ct).
func (s *Store) getComponentRaw(e Entity, ct ComponentType) (Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isValidLocked(e) {
		return nil, StaleEntityErr(e)
	}
	idx := e.Index()
	sl := &s.slots[idx]
	if !sl.mask.Test(uint8(ct)) {
		return nil, newComponentError(ErrUnknownType, "component not present on entity", e, ct)
	}
	v, _ := s.column(ct).Get(idx).(Component)
	return v, nil
}

// GetComponentRaw returns e's component of type ct without requiring the
// caller to know the concrete Go type — the generic-by-id counterpart of
// GetComponent[T], used by callers (scripted modules, tooling) that only
// have a ComponentType id in hand.
func (s *Store) GetComponentRaw(e Entity, ct ComponentType) (Component, error) {
	return s.getComponentRaw(e, ct)
}

// HasComponentRaw reports whether e carries ct.
func (s *Store) HasComponentRaw(e Entity, ct ComponentType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isValidLocked(e) {
		return false
	}
	return s.slots[e.Index()].mask.Test(uint8(ct))
}

// HasComponentChangedRaw reports whether ct's chunk for e was written at
// a version strictly greater than since.
func (s *Store) HasComponentChangedRaw(ct ComponentType, e Entity, since uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.columns[ct]
	if col == nil {
		return false
	}
	return col.ChangedSince(e.Index(), since)
}

// ComponentEntryVersion returns the exact version e's ct slot was last
// written at, independent of any other entity sharing its storage chunk —
// the precision the flight recorder needs for per-entity delta capture.
func (s *Store) ComponentEntryVersion(e Entity, ct ComponentType) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.columns[ct]
	if col == nil {
		return 0
	}
	return col.EntryVersion(e.Index())
}

// AnyComponentChanged reports whether any chunk of ct changed since the
// given version, scanning the whole column — the variant used when no
// specific entity is in hand.
func (s *Store) AnyComponentChanged(ct ComponentType, since uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.columns[ct]
	if col == nil {
		return false
	}
	for _, chunk := range col.Chunks() {
		if chunk.Version > since {
			return true
		}
	}
	return false
}

// GetComponentForRecording returns the stored value for (e, ct) without
// checking e's lifecycle state, for use by the flight recorder.
func (s *Store) GetComponentForRecording(e Entity, ct ComponentType) (Component, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := e.Index()
	if int(idx) >= len(s.slots) || s.slots[idx].free {
		return nil, false
	}
	if !s.slots[idx].mask.Test(uint8(ct)) {
		return nil, false
	}
	v, _ := s.column(ct).Get(idx).(Component)
	return v, true
}

// PutComponentForRecording installs v under ct on e during recorder
// playback, bypassing the duplicate-add check addComponentRaw enforces
// for live gameplay mutation.
func (s *Store) PutComponentForRecording(e Entity, ct ComponentType, v Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isValidLocked(e) {
		return StaleEntityErr(e)
	}
	if _, ok := s.registry.Lookup(ct); !ok {
		return UnknownTypeErr(ct)
	}
	idx := e.Index()
	sl := &s.slots[idx]
	sl.mask.Set(uint8(ct))
	s.column(ct).Set(idx, v, s.globalVersion)
	return nil
}

// EnsureEntityAt forces the slot table to contain at least handle's index,
// creating intervening free slots as needed, and activates handle at
// exactly its recorded generation — used by recorder playback to
// reproduce entity handles byte-identically rather than relying on
// CreateEntity's own allocation order.
func (s *Store) EnsureEntityAt(handle Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := int(handle.Index())
	for len(s.slots) <= idx {
		s.slots = append(s.slots, slot{generation: 0, free: true})
		s.freeList = append(s.freeList, uint32(len(s.slots)-1))
	}
	sl := &s.slots[idx]
	if sl.free {
		for i, f := range s.freeList {
			if f == uint32(idx) {
				s.freeList = append(s.freeList[:i], s.freeList[i+1:]...)
				break
			}
		}
	}
	sl.free = false
	sl.generation = handle.Generation()
	sl.lifecycle = LifecycleActive
	return nil
}

// GetSnapshotableMask returns the union of bits for components whose
// data policy is Snapshot or SnapshotViaClone.
func (s *Store) GetSnapshotableMask() mask256 {
	return s.registry.SnapshotableMask()
}

// Mask returns e's component-membership mask.
func (s *Store) Mask(e Entity) (mask256, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isValidLocked(e) {
		return mask256{}, StaleEntityErr(e)
	}
	return s.slots[e.Index()].mask, nil
}

// CommandBuffer returns (creating if necessary) the named owner's
// command buffer. Safe for concurrent use by distinct owners.
func (s *Store) CommandBuffer(owner string) *CommandBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.buffers[owner]
	if !ok {
		cb = newCommandBuffer(owner)
		s.buffers[owner] = cb
	}
	return cb
}

// RetireBuffer replaces owner's command buffer with a fresh, empty one
// and returns the retired buffer. Used when a module's worker is
// abandoned after a timeout: the goroutine may still be running and
// holds a reference to the retired buffer, but HarvestBuffers only ever
// looks up the buffer current in s.buffers at call time, so any write
// the zombie goroutine issues after this point lands in an orphaned
// buffer that is never harvested or played back.
func (s *Store) RetireBuffer(owner string) *CommandBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.buffers[owner]
	s.buffers[owner] = newCommandBuffer(owner)
	return old
}

// HarvestBuffers returns the command buffers currently registered for the
// owners named in order, in that order, without clearing them — the host
// calls this once per frame before playback.
func (s *Store) HarvestBuffers(order []string) []*CommandBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CommandBuffer, 0, len(order))
	for _, owner := range order {
		if cb, ok := s.buffers[owner]; ok {
			out = append(out, cb)
		}
	}
	return out
}

// SyncFrom replicates src's slot table and every column whose bit is set
// in mask into s, copying only chunks written at or after version since. The caller
// holds src read-locked (or is the sole writer) for the duration; s is
// assumed to have no concurrent readers during sync.
func (s *Store) SyncFrom(src *Store, mask mask256, since uint32) {
	src.mu.RLock()
	defer src.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if cap(s.slots) < len(src.slots) {
		grown := make([]slot, len(src.slots))
		copy(grown, s.slots)
		s.slots = grown
	} else {
		s.slots = s.slots[:len(src.slots)]
	}
	copy(s.slots, src.slots)

	for bit := 0; bit < 256; bit++ {
		if !mask.Test(uint8(bit)) {
			continue
		}
		srcCol := src.columns[bit]
		if srcCol == nil {
			continue
		}
		if s.columns[bit] == nil {
			s.columns[bit] = storage.NewColumn()
		}
		s.columns[bit].SyncChunksFrom(srcCol, since)
	}
	s.globalVersion = src.globalVersion
}

// Reset clears every slot, column, and ownership record while retaining
// already-allocated column capacity, mirroring a pooled-store reuse that
// zeroes by copy rather than reallocating.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		for _, bit := range s.slots[i].mask.Bits() {
			if col := s.columns[bit]; col != nil {
				col.Clear(uint32(i))
			}
		}
	}
	s.slots = s.slots[:0]
	s.freeList = s.freeList[:0]
	s.ownership = make(map[Entity]*Ownership)
	s.globalVersion = 0
	s.tickedThisFrame = false
}
