// Package timesync produces delta/cumulative simulation time and
// optionally synchronizes it with networked peers.
package timesync

import (
	"time"

	"github.com/pjanec/simcore/internal/ecs"
)

// GlobalTime is the per-frame time singleton every controller can
// produce and seed, enabling swap between modes without discontinuity.
type GlobalTime struct {
	WallTime time.Duration
	SimTime  time.Duration
	Scale    float64
	Paused   bool
	Frame    int64
}

// TimePulse is broadcast by a Continuous/Master controller at 1Hz plus
// on any scale/pause change.
type TimePulse struct {
	WallTime time.Duration
	SimTime  time.Duration
	Scale    float64
	Paused   bool
}

// FrameOrder is published by a Deterministic/Master controller to start
// the next lockstep frame.
type FrameOrder struct {
	FrameID     int64
	FixedDelta  time.Duration
}

// FrameAck is published by a Deterministic/Slave controller once it has
// completed the frame named by FrameID.
type FrameAck struct {
	FrameID int64
	NodeID  string
}

// SwitchTimeMode is published by the BarrierCoordinator to schedule a
// jitter-free controller swap at a future frame.
type SwitchTimeMode struct {
	TargetMode   string
	BarrierFrame int64
}

const (
	EventTimePulse      ecs.EventTypeID = "time_pulse"
	EventFrameOrder     ecs.EventTypeID = "frame_order"
	EventFrameAck       ecs.EventTypeID = "frame_ack"
	EventSwitchTimeMode ecs.EventTypeID = "switch_time_mode"

	// EventGlobalTime is published once per frame by the module host with
	// that frame's GlobalTime, ahead of any system or module execution.
	EventGlobalTime ecs.EventTypeID = "global_time"
)

// Controller produces delta/cumulative time for one frame and supports
// state transfer for jitter-free swap between modes.
type Controller interface {
	// Advance computes the next GlobalTime from the real wall-clock
	// delta since the previous call.
	Advance(wallDelta time.Duration) GlobalTime

	// CurrentState returns the controller's GlobalTime without
	// advancing it.
	CurrentState() GlobalTime

	// SeedState installs state as the controller's current time,
	// used when swapping controllers at a barrier frame.
	SeedState(state GlobalTime)
}
