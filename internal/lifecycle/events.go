// Package lifecycle implements the multi-party entity construction and
// destruction handshake: a creator stages an entity, every registered
// participant acknowledges its own setup or teardown, and the entity's
// visibility flips only once every participant has acked (or a timeout
// forces the issue).
package lifecycle

import "github.com/pjanec/simcore/internal/ecs"

// ConstructionOrder is published once per staged entity; every
// participant is expected to perform its setup and ack.
type ConstructionOrder struct {
	Entity ecs.Entity
	TypeID uint32
}

// ConstructionAck is published by a participant after it finishes (or
// fails) its share of an entity's construction.
type ConstructionAck struct {
	Entity   ecs.Entity
	ModuleID string
	Success  bool
}

// DestructionOrder is published once per entity staged for destruction.
type DestructionOrder struct {
	Entity ecs.Entity
	Reason string
}

// DestructionAck is published by a participant after it finishes its
// share of an entity's teardown.
type DestructionAck struct {
	Entity   ecs.Entity
	ModuleID string
}

const (
	EventConstructionOrder ecs.EventTypeID = "construction_order"
	EventConstructionAck   ecs.EventTypeID = "construction_ack"
	EventDestructionOrder  ecs.EventTypeID = "destruction_order"
	EventDestructionAck    ecs.EventTypeID = "destruction_ack"
)

// Stats is the lifecycle manager's monitoring surface.
type Stats struct {
	Pending     int64
	Constructed int64
	Destroyed   int64
	Timeouts    int64
}
