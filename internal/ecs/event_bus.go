package ecs

import "sync"

// EventTypeID identifies an event's Go type, keyed by name since the bus
// is type-erased at the storage layer (generic PublishTyped/CurrentTyped
// give callers typed access).
type EventTypeID string

// EventBus holds two buffers per event type: pending (writers append
// here) and current (readers consume last frame's swap). SwapBuffers
// flips them atomically; pending becomes empty.
type EventBus struct {
	mu       sync.Mutex
	pending  map[EventTypeID][]any
	current  map[EventTypeID][]any
	activeID map[EventTypeID]bool
}

// NewEventBus creates an empty event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		pending:  make(map[EventTypeID][]any),
		current:  make(map[EventTypeID][]any),
		activeID: make(map[EventTypeID]bool),
	}
}

// Publish appends event to type's pending buffer. Safe to call
// concurrently from multiple background modules; the main thread is the
// only writer permitted outside command-buffer playback.
func (b *EventBus) Publish(typ EventTypeID, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[typ] = append(b.pending[typ], event)
}

// SwapBuffers flips pending into current and empties pending, rebuilding
// the active-id set for O(1) HasEvent queries.
func (b *EventBus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.pending
	b.pending = make(map[EventTypeID][]any)
	b.activeID = make(map[EventTypeID]bool, len(b.current))
	for typ, events := range b.current {
		if len(events) > 0 {
			b.activeID[typ] = true
		}
	}
}

// HasEvent reports whether any event of typ arrived this frame, in O(1).
func (b *EventBus) HasEvent(typ EventTypeID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeID[typ]
}

// Current returns this frame's events of typ.
func (b *EventBus) Current(typ EventTypeID) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current[typ]
}

// PendingEmpty reports whether the pending buffer holds no events — a
// frame-end invariant check.
func (b *EventBus) PendingEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, events := range b.pending {
		if len(events) > 0 {
			return false
		}
	}
	return true
}

// PublishTyped is a generic convenience wrapper over Publish that
// publishes event under the caller-supplied id typ.
func PublishTyped[T any](b *EventBus, typ EventTypeID, event T) {
	b.Publish(typ, event)
}

// CurrentTyped returns typ's current events as []T, skipping any value
// that doesn't assert to T (defensive against cross-type id collisions).
func CurrentTyped[T any](b *EventBus, typ EventTypeID) []T {
	raw := b.Current(typ)
	out := make([]T, 0, len(raw))
	for _, v := range raw {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
