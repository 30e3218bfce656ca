package ecs

import "sync"

// OpKind tags a command-buffer record's operation.
type OpKind uint8

const (
	OpCreateEntity OpKind = iota
	OpDestroyEntity
	OpAddComponent
	OpRemoveComponent
	OpSetComponent
	OpPublishEvent
	OpSetLifecycle
)

// Op is one deferred structural operation recorded by a CommandBuffer.
type Op struct {
	Kind      OpKind
	Entity    Entity
	Component ComponentType
	Value     Component
	EventType EventTypeID
	EventData any
	Lifecycle LifecycleState
}

// CommandBuffer is a single-writer, thread-safe append-only log of
// deferred structural operations, owned by one module. Playback is
// single-threaded on the main thread in recorded order.
type CommandBuffer struct {
	mu    sync.Mutex
	owner string
	ops   []Op
}

func newCommandBuffer(owner string) *CommandBuffer {
	return &CommandBuffer{owner: owner}
}

// Owner returns the module id this buffer belongs to.
func (b *CommandBuffer) Owner() string { return b.owner }

// CreateEntity records a deferred entity creation.
func (b *CommandBuffer) CreateEntity() {
	b.append(Op{Kind: OpCreateEntity})
}

// DestroyEntity records a deferred destruction.
func (b *CommandBuffer) DestroyEntity(e Entity) {
	b.append(Op{Kind: OpDestroyEntity, Entity: e})
}

// AddComponent records a deferred component attach.
func (b *CommandBuffer) AddComponent(e Entity, ct ComponentType, v Component) {
	b.append(Op{Kind: OpAddComponent, Entity: e, Component: ct, Value: v})
}

// RemoveComponent records a deferred component detach.
func (b *CommandBuffer) RemoveComponent(e Entity, ct ComponentType) {
	b.append(Op{Kind: OpRemoveComponent, Entity: e, Component: ct})
}

// SetComponent records a deferred component overwrite.
func (b *CommandBuffer) SetComponent(e Entity, ct ComponentType, v Component) {
	b.append(Op{Kind: OpSetComponent, Entity: e, Component: ct, Value: v})
}

// PublishEvent records a deferred event publish — the only thread-safe
// publish path from within a module body.
func (b *CommandBuffer) PublishEvent(typ EventTypeID, data any) {
	b.append(Op{Kind: OpPublishEvent, EventType: typ, EventData: data})
}

// SetLifecycle records a deferred lifecycle transition.
func (b *CommandBuffer) SetLifecycle(e Entity, state LifecycleState) {
	b.append(Op{Kind: OpSetLifecycle, Entity: e, Lifecycle: state})
}

func (b *CommandBuffer) append(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
}

// drain returns and clears the buffer's recorded ops; no buffer holds
// uncommitted operations once playback finishes.
func (b *CommandBuffer) drain() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	ops := b.ops
	b.ops = nil
	return ops
}

// Len reports the number of recorded, undrained ops.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Reset discards every recorded-but-undrained op without applying them.
// (An abandoned, timed-out worker's buffer is not reset but retired via
// Store.RetireBuffer.)
func (b *CommandBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = nil
}

// Playback applies every harvested buffer's ops in order — buffer order
// (as passed in; the host supplies registration order) then in-buffer
// record order. Each op either applies fully or is reported as a
// *StoreError without rolling back earlier, already-applied ops in the
// same buffer.
func (s *Store) Playback(buffers []*CommandBuffer) []error {
	var errs []error
	for _, buf := range buffers {
		for _, op := range buf.drain() {
			if err := s.applyOp(buf.owner, op); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func (s *Store) applyOp(owner string, op Op) error {
	switch op.Kind {
	case OpCreateEntity:
		s.CreateEntity()
		return nil
	case OpDestroyEntity:
		if err := s.DestroyEntity(op.Entity); err != nil {
			return wrapPlayback(err, owner)
		}
		return nil
	case OpAddComponent:
		if err := s.addComponentRaw(op.Entity, op.Component, op.Value, false); err != nil {
			return wrapPlayback(err, owner)
		}
		return nil
	case OpSetComponent:
		if err := s.addComponentRaw(op.Entity, op.Component, op.Value, true); err != nil {
			return wrapPlayback(err, owner)
		}
		return nil
	case OpRemoveComponent:
		if err := s.removeComponentRaw(op.Entity, op.Component); err != nil {
			return wrapPlayback(err, owner)
		}
		return nil
	case OpPublishEvent:
		s.bus.Publish(op.EventType, op.EventData)
		return nil
	case OpSetLifecycle:
		if err := s.SetLifecycle(op.Entity, op.Lifecycle); err != nil {
			return wrapPlayback(err, owner)
		}
		return nil
	default:
		return newStoreError(ErrPlaybackError, "unknown command-buffer op kind").WithDetails(owner)
	}
}

func wrapPlayback(err error, owner string) error {
	if se, ok := err.(*StoreError); ok {
		se.Code = ErrPlaybackError
		se.Details = "producing module: " + owner
		return se
	}
	return err
}
