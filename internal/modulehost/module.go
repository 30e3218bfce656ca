package modulehost

import (
	"context"
	"time"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/timesync"
)

// View is what a module's Tick reads and writes: a live, read/write
// store for Synchronous modules, or a read-only snapshot paired with a
// command buffer for deferred structural mutation otherwise.
type View struct {
	Store    *ecs.Store
	Commands *ecs.CommandBuffer
	Time     timesync.GlobalTime
}

// Module is one unit of per-frame background logic, distinct from a
// scheduler.System in that it owns its execution policy (mode, data
// strategy, trigger, fault budget) rather than just phase ordering.
type Module interface {
	ID() string
	Policy() ExecutionPolicy
	Tick(ctx context.Context, view View, delta time.Duration) error
}

// Stats is the per-module bookkeeping the host exposes for monitoring.
type Stats struct {
	Runs           int64
	Faults         int64
	Timeouts       int64
	PlaybackErrors int64
	LastRunVersion uint32
	BreakerState   BreakerState
}
