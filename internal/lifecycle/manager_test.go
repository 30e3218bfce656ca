package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/lifecycle"
)

type tag struct{ N int }

func (t tag) Clone() ecs.Component { return t }

func TestConstructionBecomesActiveWhenAllParticipantsAck(t *testing.T) {
	store := ecs.NewStore()
	mgr := lifecycle.NewManager(store, []string{"physics", "render"}, 300)

	e, err := mgr.BeginConstruction(0, 7)
	require.NoError(t, err)
	state, _ := store.Lifecycle(e)
	require.Equal(t, ecs.LifecycleConstructing, state)

	store.Bus().Publish(lifecycle.EventConstructionAck, lifecycle.ConstructionAck{Entity: e, ModuleID: "physics", Success: true})
	store.Bus().Publish(lifecycle.EventConstructionAck, lifecycle.ConstructionAck{Entity: e, ModuleID: "render", Success: true})
	store.Bus().SwapBuffers()

	mgr.Sweep(0)

	state, _ = store.Lifecycle(e)
	require.Equal(t, ecs.LifecycleActive, state)
	require.Equal(t, int64(1), mgr.Stats().Constructed)
	require.Equal(t, int64(0), mgr.Stats().Pending)
}

func TestConstructionFailureDestroysImmediately(t *testing.T) {
	store := ecs.NewStore()
	mgr := lifecycle.NewManager(store, []string{"physics"}, 300)

	e, err := mgr.BeginConstruction(0, 1)
	require.NoError(t, err)

	store.Bus().Publish(lifecycle.EventConstructionAck, lifecycle.ConstructionAck{Entity: e, ModuleID: "physics", Success: false})
	store.Bus().SwapBuffers()
	mgr.Sweep(0)

	require.False(t, store.IsValid(e))
	require.Equal(t, int64(1), mgr.Stats().Destroyed)
}

func TestConstructionTimeoutDestroysAndCountsTimeout(t *testing.T) {
	store := ecs.NewStore()
	mgr := lifecycle.NewManager(store, []string{"physics", "render"}, 5)

	e, err := mgr.BeginConstruction(0, 1)
	require.NoError(t, err)

	store.Bus().Publish(lifecycle.EventConstructionAck, lifecycle.ConstructionAck{Entity: e, ModuleID: "physics", Success: true})
	store.Bus().SwapBuffers()
	mgr.Sweep(3)
	require.True(t, store.IsValid(e), "not yet timed out, only one of two acked")

	store.Bus().SwapBuffers()
	mgr.Sweep(5)

	require.False(t, store.IsValid(e))
	require.Equal(t, int64(1), mgr.Stats().Timeouts)
}

func TestGhostPromotionPreservesAttachedComponents(t *testing.T) {
	store := ecs.NewStore()
	ct, err := ecs.RegisterComponent[tag](store, "tag", ecs.PolicySnapshot)
	require.NoError(t, err)

	mgr := lifecycle.NewManager(store, []string{"physics"}, 300)

	e, err := mgr.CreateGhost(0)
	require.NoError(t, err)
	require.NoError(t, ecs.AddComponent(store, e, tag{N: 42}))

	require.NoError(t, mgr.PromoteGhost(0, e, 9))
	state, _ := store.Lifecycle(e)
	require.Equal(t, ecs.LifecycleConstructing, state)
	require.True(t, store.HasComponentRaw(e, ct))

	store.Bus().Publish(lifecycle.EventConstructionAck, lifecycle.ConstructionAck{Entity: e, ModuleID: "physics", Success: true})
	store.Bus().SwapBuffers()
	mgr.Sweep(0)

	state, _ = store.Lifecycle(e)
	require.Equal(t, ecs.LifecycleActive, state)
	got, err := ecs.GetComponent[tag](store, e)
	require.NoError(t, err)
	require.Equal(t, 42, got.N)
}

func TestGhostTimeoutDestroysUnpromotedEntity(t *testing.T) {
	store := ecs.NewStore()
	mgr := lifecycle.NewManager(store, []string{"physics"}, 4)

	e, err := mgr.CreateGhost(0)
	require.NoError(t, err)

	mgr.Sweep(4)
	require.False(t, store.IsValid(e))
	require.Equal(t, int64(1), mgr.Stats().Timeouts)
}
