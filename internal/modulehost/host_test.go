package modulehost_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/modulehost"
	"github.com/pjanec/simcore/internal/scheduler"
	"github.com/pjanec/simcore/internal/snapshot"
	"github.com/pjanec/simcore/internal/timesync"
)

type fakeModule struct {
	id     string
	policy modulehost.ExecutionPolicy
	tick   func(ctx context.Context, view modulehost.View, delta time.Duration) error
}

func (m *fakeModule) ID() string                        { return m.id }
func (m *fakeModule) Policy() modulehost.ExecutionPolicy { return m.policy }
func (m *fakeModule) Tick(ctx context.Context, view modulehost.View, delta time.Duration) error {
	return m.tick(ctx, view, delta)
}

func newHost(t *testing.T, maxAsync int64) (*modulehost.Host, *ecs.Store) {
	t.Helper()
	live := ecs.NewStore()
	pool := snapshot.NewPool(live.Registry(), 1)
	mgr := snapshot.NewManager(live, pool)
	clock := timesync.NewStandalone(1.0)
	return modulehost.NewHost(live, scheduler.New(), mgr, clock, maxAsync), live
}

func alwaysPolicy(mode modulehost.Mode) modulehost.ExecutionPolicy {
	return modulehost.ExecutionPolicy{
		Mode:             mode,
		Trigger:          modulehost.Trigger{Kind: modulehost.TriggerAlways},
		FailureThreshold: 1,
		ResetTimeoutMs:   10_000,
	}
}

func TestSynchronousModuleMutatesLiveStoreDirectly(t *testing.T) {
	host, live := newHost(t, 1)
	mod := &fakeModule{
		id:     "spawner",
		policy: alwaysPolicy(modulehost.Synchronous),
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			require.Same(t, live, view.Store)
			view.Store.CreateEntity()
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Len(t, live.GetActiveEntities(), 1)
	require.Equal(t, int64(1), host.ModuleStats("spawner").Runs)
}

func TestCircuitBreakerOpensAndSkipsFurtherRuns(t *testing.T) {
	host, _ := newHost(t, 1)
	calls := 0
	mod := &fakeModule{
		id: "flaky",
		policy: modulehost.ExecutionPolicy{
			Mode:             modulehost.Synchronous,
			Trigger:          modulehost.Trigger{Kind: modulehost.TriggerAlways},
			FailureThreshold: 2,
			ResetTimeoutMs:   10_000,
		},
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			calls++
			panic("boom")
		},
	}
	host.Register(mod)

	for i := 0; i < 2; i++ {
		require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	}
	require.Equal(t, modulehost.Open, host.ModuleStats("flaky").BreakerState)
	require.Equal(t, 2, calls)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Equal(t, 2, calls, "breaker must skip dispatch while Open")
}

func TestFrameSyncedCommandsPlayBackSameFrame(t *testing.T) {
	host, live := newHost(t, 1)
	mod := &fakeModule{
		id:     "replica-writer",
		policy: alwaysPolicy(modulehost.FrameSynced),
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			require.NotSame(t, live, view.Store, "FrameSynced modules read a replica, not the live store")
			view.Commands.CreateEntity()
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Len(t, live.GetActiveEntities(), 1)
}

func TestAsynchronousModuleCarriesOverUnfinishedRun(t *testing.T) {
	host, live := newHost(t, 2)
	proceed := make(chan struct{})
	var triggered int32
	mod := &fakeModule{
		id:     "background",
		policy: alwaysPolicy(modulehost.Asynchronous),
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			if atomic.AddInt32(&triggered, 1) == 1 {
				<-proceed
				view.Commands.CreateEntity()
			}
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Equal(t, int64(0), host.ModuleStats("background").Runs, "worker is still blocked")

	close(proceed)
	require.Eventually(t, func() bool {
		return host.ModuleStats("background").Runs == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Len(t, live.GetActiveEntities(), 1)
}

func TestModuleTimeoutRecordsTimeoutFault(t *testing.T) {
	// FrameSynced (not Synchronous): Synchronous modules run inline with
	// no timeout race, so only FrameSynced/Asynchronous dispatch can
	// ever time out.
	host, _ := newHost(t, 1)
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	mod := &fakeModule{
		id: "slow",
		policy: modulehost.ExecutionPolicy{
			Mode:             modulehost.FrameSynced,
			Trigger:          modulehost.Trigger{Kind: modulehost.TriggerAlways},
			MaxRuntimeMs:     1,
			FailureThreshold: 1,
			ResetTimeoutMs:   10_000,
		},
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			<-stuck
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Equal(t, int64(1), host.ModuleStats("slow").Timeouts)
	require.Equal(t, modulehost.Open, host.ModuleStats("slow").BreakerState)
}

func TestSynchronousModuleNeverRacesATimeout(t *testing.T) {
	// A Synchronous module blocks the frame by construction; even with
	// MaxRuntimeMs set, RunFrame must wait for it rather than abandoning
	// it and handing the live store to a side that outlives the call.
	host, live := newHost(t, 1)
	ran := make(chan struct{})

	mod := &fakeModule{
		id: "blocking",
		policy: modulehost.ExecutionPolicy{
			Mode:             modulehost.Synchronous,
			Trigger:          modulehost.Trigger{Kind: modulehost.TriggerAlways},
			MaxRuntimeMs:     1,
			FailureThreshold: 1,
			ResetTimeoutMs:   10_000,
		},
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			time.Sleep(20 * time.Millisecond)
			view.Store.CreateEntity()
			close(ran)
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	<-ran
	require.Equal(t, int64(1), host.ModuleStats("blocking").Runs)
	require.Equal(t, int64(0), host.ModuleStats("blocking").Timeouts)
	require.Equal(t, modulehost.Closed, host.ModuleStats("blocking").BreakerState)
	require.Len(t, live.GetActiveEntities(), 1)
}

func TestAbandonedAsynchronousWriteAfterTimeoutIsDiscarded(t *testing.T) {
	host, live := newHost(t, 2)
	proceed := make(chan struct{})
	wroteAfterTimeout := make(chan struct{})

	mod := &fakeModule{
		id: "zombie",
		policy: modulehost.ExecutionPolicy{
			Mode:             modulehost.Asynchronous,
			Trigger:          modulehost.Trigger{Kind: modulehost.TriggerAlways},
			MaxRuntimeMs:     1,
			FailureThreshold: 1,
			ResetTimeoutMs:   10_000,
		},
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			<-proceed
			view.Commands.CreateEntity()
			close(wroteAfterTimeout)
			return nil
		},
	}
	host.Register(mod)

	// Frame 1 dispatches the worker; it blocks past MaxRuntimeMs, so the
	// host records a timeout and retires the buffer the worker still
	// holds a reference to.
	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Eventually(t, func() bool {
		return host.ModuleStats("zombie").Timeouts == 1
	}, time.Second, time.Millisecond)

	// Let the abandoned worker resume: it writes into the buffer it
	// still holds — the retired, orphaned one — not whatever buffer a
	// later frame harvests.
	close(proceed)
	<-wroteAfterTimeout

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Empty(t, live.GetActiveEntities(), "a write issued after the join must never reach playback")
}

func TestOnEventTriggerOnlyFiresWhenEventArrived(t *testing.T) {
	host, live := newHost(t, 1)
	const evt ecs.EventTypeID = "spawn_request"
	runs := 0
	mod := &fakeModule{
		id: "reactive",
		policy: modulehost.ExecutionPolicy{
			Mode:             modulehost.Synchronous,
			Trigger:          modulehost.OnEvent(evt),
			FailureThreshold: 1,
			ResetTimeoutMs:   10_000,
		},
		tick: func(ctx context.Context, view modulehost.View, delta time.Duration) error {
			runs++
			return nil
		},
	}
	host.Register(mod)

	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Equal(t, 0, runs, "no event published yet")

	live.Bus().Publish(evt, struct{}{})
	live.Bus().SwapBuffers()
	require.NoError(t, host.RunFrame(context.Background(), 16*time.Millisecond))
	require.Equal(t, 1, runs)
}
