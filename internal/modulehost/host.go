package modulehost

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/scheduler"
	"github.com/pjanec/simcore/internal/snapshot"
	"github.com/pjanec/simcore/internal/telemetry"
	"github.com/pjanec/simcore/internal/timesync"
)

// PhaseView is the scheduler.View concrete type the host hands to
// scheduler.System.Execute: the live store plus this frame's time.
type PhaseView struct {
	Store *ecs.Store
	Time  timesync.GlobalTime
}

// asyncTask tracks one in-flight fire-and-forget Asynchronous dispatch
// that may still be running when the next frame starts.
type asyncTask struct {
	done   chan struct{}
	handle *snapshot.Handle
}

type moduleState struct {
	mu             sync.Mutex
	mod            Module
	breaker        *CircuitBreaker
	lastRunVersion uint32
	stats          Stats
	pending        *asyncTask
}

// Host drives one frame of module/system execution: it advances
// simulation time, runs main-thread systems and Synchronous modules
// against the live store, dispatches FrameSynced modules against a
// full-replica view (joined before the frame ends) and Asynchronous
// modules against pooled or convoy-shared views (never joined), then
// swaps the event bus and plays back every module's command buffer.
type Host struct {
	live  *ecs.Store
	sched *scheduler.Scheduler
	snap  *snapshot.Manager
	clock timesync.Controller

	order   []string
	modules map[string]*moduleState

	asyncSem *semaphore.Weighted

	frame int64

	metrics *telemetry.Metrics
}

// SetMetrics attaches a Metrics sink; every module run from this point on
// reports its duration, any fault, and the resulting breaker state into
// it. Optional — a nil sink
// (the default) makes every hook below a no-op.
func (h *Host) SetMetrics(m *telemetry.Metrics) {
	h.metrics = m
}

// NewHost creates a host wired to live, sched, snap, and clock. maxAsync
// bounds how many Asynchronous module workers may run concurrently.
func NewHost(live *ecs.Store, sched *scheduler.Scheduler, snap *snapshot.Manager, clock timesync.Controller, maxAsync int64) *Host {
	if maxAsync <= 0 {
		maxAsync = 1
	}
	return &Host{
		live:     live,
		sched:    sched,
		snap:     snap,
		clock:    clock,
		modules:  make(map[string]*moduleState),
		asyncSem: semaphore.NewWeighted(maxAsync),
	}
}

// Register adds mod, creating its circuit breaker from its declared
// policy. Registration order fixes command-buffer harvest/playback
// order for the life of the host.
func (h *Host) Register(mod Module) {
	policy := mod.Policy()
	ms := &moduleState{
		mod:     mod,
		breaker: NewCircuitBreaker(policy.FailureThreshold, time.Duration(policy.ResetTimeoutMs)*time.Millisecond),
	}
	h.order = append(h.order, mod.ID())
	h.modules[mod.ID()] = ms
}

// ModuleStats returns a copy of id's current bookkeeping.
func (h *Host) ModuleStats(id string) Stats {
	ms, ok := h.modules[id]
	if !ok {
		return Stats{}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	stats := ms.stats
	stats.LastRunVersion = ms.lastRunVersion
	stats.BreakerState = ms.breaker.State()
	return stats
}

// Frame returns the number of frames RunFrame has completed.
func (h *Host) Frame() int64 { return h.frame }

// RunFrame executes exactly one frame: advance time, run main-thread
// phases and Synchronous modules, dispatch FrameSynced and Asynchronous
// modules, swap buffers and play back commands, then run the remaining
// main-thread phases. Callers invoke RunFrame from a single goroutine;
// Asynchronous module workers may still be running when it returns.
func (h *Host) RunFrame(ctx context.Context, wallDelta time.Duration) error {
	globalTime := h.clock.Advance(wallDelta)
	ecs.PublishTyped(h.live.Bus(), timesync.EventGlobalTime, globalTime)

	if err := h.live.Tick(); err != nil {
		return err
	}

	view := PhaseView{Store: h.live, Time: globalTime}
	if err := h.sched.ExecutePhase(ctx, scheduler.PhaseInput, view, wallDelta); err != nil {
		return err
	}
	if err := h.sched.ExecutePhase(ctx, scheduler.PhaseBeforeSync, view, wallDelta); err != nil {
		return err
	}

	h.runSynchronous(ctx, globalTime, wallDelta)

	h.snap.RefreshFullReplica(h.live.GetSnapshotableMask())
	if err := h.runFrameSynced(ctx, globalTime, wallDelta); err != nil {
		return err
	}

	h.runAsynchronous(ctx, globalTime, wallDelta)

	h.live.Bus().SwapBuffers()
	buffers := h.live.HarvestBuffers(h.order)
	h.applyPlayback(buffers)

	if err := h.sched.ExecutePhase(ctx, scheduler.PhaseSimulation, view, wallDelta); err != nil {
		return err
	}
	if err := h.sched.ExecutePhase(ctx, scheduler.PhasePostSimulation, view, wallDelta); err != nil {
		return err
	}
	if err := h.sched.ExecutePhase(ctx, scheduler.PhaseExport, view, wallDelta); err != nil {
		return err
	}

	h.frame++
	h.live.EndFrame()
	return nil
}

// selected reports whether ms's module should run this frame: its
// breaker must allow it, and its trigger must fire against the live
// store's state as of its last completed run.
func (h *Host) selected(ms *moduleState, policy ExecutionPolicy) bool {
	if !ms.breaker.Allow() {
		return false
	}
	ms.mu.Lock()
	lastRun := ms.lastRunVersion
	ms.mu.Unlock()
	return policy.Trigger.fires(h.live, h.frame, policy.intervalFrames(), lastRun)
}

func (h *Host) runSynchronous(ctx context.Context, gt timesync.GlobalTime, delta time.Duration) {
	for _, id := range h.order {
		ms := h.modules[id]
		policy := ms.mod.Policy()
		if policy.Mode != Synchronous {
			continue
		}
		if !h.selected(ms, policy) {
			continue
		}
		view := View{Store: h.live, Commands: h.live.CommandBuffer(id), Time: gt}
		h.runOne(ctx, ms, view, delta, h.live.GlobalVersion())
	}
}

func (h *Host) runFrameSynced(ctx context.Context, gt timesync.GlobalTime, delta time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	replica := h.snap.CurrentFullReplica()
	dispatchVersion := replica.GlobalVersion()

	for _, id := range h.order {
		ms := h.modules[id]
		policy := ms.mod.Policy()
		if policy.Mode != FrameSynced {
			continue
		}
		if !h.selected(ms, policy) {
			continue
		}
		id, ms := id, ms
		view := View{Store: replica, Commands: h.live.CommandBuffer(id), Time: gt}
		g.Go(func() error {
			h.runOne(gctx, ms, view, delta, dispatchVersion)
			return nil
		})
	}
	return g.Wait()
}

func (h *Host) runAsynchronous(ctx context.Context, gt timesync.GlobalTime, delta time.Duration) {
	for _, id := range h.order {
		ms := h.modules[id]
		policy := ms.mod.Policy()
		if policy.Mode != Asynchronous {
			continue
		}

		ms.mu.Lock()
		if ms.pending != nil {
			select {
			case <-ms.pending.done:
				ms.pending.handle.Release()
				ms.pending = nil
			default:
				ms.mu.Unlock()
				continue // previous run still in flight; skip this frame
			}
		}
		ms.mu.Unlock()

		if !h.selected(ms, policy) {
			continue
		}
		if !h.asyncSem.TryAcquire(1) {
			continue // worker pool saturated; try again next frame
		}

		key := snapshot.ConvoyKey{FrequencyHz: float64(policy.FrequencyHz), Mode: string(policy.Mode)}
		handle := h.snap.AcquireConvoy(key, policy.RequiredComponents)
		task := &asyncTask{done: make(chan struct{}), handle: handle}

		ms.mu.Lock()
		ms.pending = task
		ms.mu.Unlock()

		dispatchVersion := handle.Store.GlobalVersion()
		view := View{Store: handle.Store, Commands: h.live.CommandBuffer(id), Time: gt}
		ms := ms
		go func() {
			defer h.asyncSem.Release(1)
			defer close(task.done)
			h.runOne(ctx, ms, view, delta, dispatchVersion)
		}()
	}
}

// runOne executes mod.Tick, recording the outcome into ms's breaker and
// stats. dispatchVersion is captured before Tick runs, matching
// last_run_version's dispatch-time semantics. Synchronous modules run
// inline on the calling goroutine — they block the frame by
// construction and never hand the live store to a side that might
// outlive this call. FrameSynced and Asynchronous modules run on a
// worker raced against MaxRuntimeMs, since their dispatch is already
// joined or detached from the calling goroutine.
func (h *Host) runOne(ctx context.Context, ms *moduleState, view View, delta time.Duration, dispatchVersion uint32) {
	policy := ms.mod.Policy()
	if policy.Mode == Synchronous {
		h.runInline(ctx, ms, view, delta, dispatchVersion, policy)
		return
	}
	h.runTimed(ctx, ms, view, delta, dispatchVersion, policy)
}

// runInline executes ms.mod.Tick directly on the calling goroutine, with
// panic recovery but no timeout race: a Synchronous module's view holds
// the live store directly (spec: "direct live view ... blocks frame"),
// so there must never be a losing side of a race still mutating it
// after the main thread moves on to later phases or the next frame.
func (h *Host) runInline(ctx context.Context, ms *moduleState, view View, delta time.Duration, dispatchVersion uint32, policy ExecutionPolicy) {
	start := time.Now()
	runErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &ModuleFault{Module: ms.mod.ID(), Cause: r}
			}
		}()
		return ms.mod.Tick(ctx, view, delta)
	}()
	h.finishRun(ms, runErr, dispatchVersion, start, policy)
}

// runTimed executes ms.mod.Tick on a worker goroutine raced against
// MaxRuntimeMs. On timeout the worker goroutine is abandoned — it keeps
// running to completion rather than being force-cancelled — so its
// owner's command buffer is retired rather than reset: the abandoned
// goroutine still holds a reference to the old buffer, and any write it
// issues after this point must land somewhere no later frame ever
// harvests, not in a buffer that gets reused.
func (h *Host) runTimed(ctx context.Context, ms *moduleState, view View, delta time.Duration, dispatchVersion uint32, policy ExecutionPolicy) {
	type result struct {
		err error
	}
	resCh := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- result{err: &ModuleFault{Module: ms.mod.ID(), Cause: r}}
				return
			}
		}()
		resCh <- result{err: ms.mod.Tick(ctx, view, delta)}
	}()

	var runErr error
	if policy.MaxRuntimeMs > 0 {
		select {
		case res := <-resCh:
			runErr = res.err
		case <-time.After(time.Duration(policy.MaxRuntimeMs) * time.Millisecond):
			runErr = &ModuleTimeout{Module: ms.mod.ID(), MaxRuntimeMs: policy.MaxRuntimeMs}
			h.live.RetireBuffer(ms.mod.ID())
		}
	} else {
		res := <-resCh
		runErr = res.err
	}

	h.finishRun(ms, runErr, dispatchVersion, start, policy)
}

// finishRun applies a completed (or timed-out) run's outcome to ms's
// breaker, stats, and the telemetry sink.
func (h *Host) finishRun(ms *moduleState, runErr error, dispatchVersion uint32, start time.Time, policy ExecutionPolicy) {
	if h.metrics != nil {
		h.metrics.ObserveSystemDuration(ms.mod.ID(), string(policy.Mode), time.Since(start).Seconds())
	}

	ms.mu.Lock()
	ms.stats.Runs++
	ms.lastRunVersion = dispatchVersion
	switch runErr.(type) {
	case nil:
		ms.breaker.RecordSuccess()
	case *ModuleTimeout:
		ms.stats.Timeouts++
		ms.breaker.RecordFault()
	default:
		ms.stats.Faults++
		ms.breaker.RecordFault()
	}
	breakerState := ms.breaker.State()
	ms.mu.Unlock()

	if h.metrics != nil {
		if runErr != nil {
			h.metrics.IncSystemFault(ms.mod.ID())
		}
		h.metrics.SetBreakerState(ms.mod.ID(), float64(breakerState))
	}
}

func (h *Host) applyPlayback(buffers []*ecs.CommandBuffer) {
	for _, err := range h.live.Playback(buffers) {
		se, ok := err.(*ecs.StoreError)
		if !ok {
			continue
		}
		owner, ok := se.Owner()
		if !ok {
			continue
		}
		ms, ok := h.modules[owner]
		if !ok {
			continue
		}
		ms.mu.Lock()
		ms.stats.PlaybackErrors++
		ms.breaker.RecordFault()
		ms.mu.Unlock()
	}
}
