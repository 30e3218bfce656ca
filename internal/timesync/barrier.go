package timesync

import (
	"github.com/pjanec/simcore/internal/ecs"
)

// BarrierCoordinator schedules a jitter-free, synchronous controller
// swap: every node keeps running its current controller until its frame
// counter reaches a shared barrier frame, then swaps locally via
// CurrentState/SeedState. A peer arriving after the barrier has already
// passed swaps immediately (catch-up), so frame counters never decrease.
type BarrierCoordinator struct {
	bus       *ecs.EventBus
	lookahead int64

	pending      bool
	targetMode   string
	barrierFrame int64
}

// NewBarrierCoordinator creates a coordinator using lookahead frames of
// slack before the barrier takes effect.
func NewBarrierCoordinator(bus *ecs.EventBus, lookahead int64) *BarrierCoordinator {
	if lookahead <= 0 {
		lookahead = 10
	}
	return &BarrierCoordinator{bus: bus, lookahead: lookahead}
}

// RequestSwitch computes the barrier frame from currentFrame and
// publishes SwitchTimeMode to all peers.
func (b *BarrierCoordinator) RequestSwitch(currentFrame int64, targetMode string) {
	b.barrierFrame = currentFrame + b.lookahead
	b.targetMode = targetMode
	b.pending = true
	ecs.PublishTyped(b.bus, EventSwitchTimeMode, SwitchTimeMode{
		TargetMode:   targetMode,
		BarrierFrame: b.barrierFrame,
	})
}

// ShouldSwap reports whether currentFrame has reached (or passed, for a
// late-arriving peer) the pending barrier frame.
func (b *BarrierCoordinator) ShouldSwap(currentFrame int64) (targetMode string, ok bool) {
	if !b.pending {
		return "", false
	}
	if currentFrame < b.barrierFrame {
		return "", false
	}
	b.pending = false
	return b.targetMode, true
}

// Swap transfers old's state into next via the GlobalTime state-transfer
// API, guaranteeing the new controller's frame counter does not regress.
func Swap(old, next Controller) {
	state := old.CurrentState()
	next.SeedState(state)
}
