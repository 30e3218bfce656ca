package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type Position struct{ X, Y, Z float32 }

func (p Position) Clone() Component { return p }

type Velocity struct{ X, Y, Z float32 }

func (v Velocity) Clone() Component { return v }

type Secret struct{ Value [32]byte }

func (s Secret) Clone() Component { return s }

func newTestStore(t *testing.T) (*Store, ComponentType, ComponentType) {
	t.Helper()
	s := NewStore()
	posID, err := RegisterComponent[Position](s, "position", PolicySnapshot)
	require.NoError(t, err)
	velID, err := RegisterComponent[Velocity](s, "velocity", PolicySnapshot)
	require.NoError(t, err)
	return s, posID, velID
}

func TestCreateDestroyEntity(t *testing.T) {
	s, _, _ := newTestStore(t)

	t.Run("fresh entity is valid and Active", func(t *testing.T) {
		e := s.CreateEntity()
		require.True(t, s.IsValid(e))
		lc, err := s.Lifecycle(e)
		require.NoError(t, err)
		require.Equal(t, LifecycleActive, lc)
	})

	t.Run("destroyed entity handle becomes stale", func(t *testing.T) {
		e := s.CreateEntity()
		require.NoError(t, s.DestroyEntity(e))
		require.False(t, s.IsValid(e))
		require.ErrorContains(t, s.DestroyEntity(e), ErrStaleEntity)
	})

	t.Run("slot reuse bumps generation", func(t *testing.T) {
		e1 := s.CreateEntity()
		require.NoError(t, s.DestroyEntity(e1))
		e2 := s.CreateEntity()
		require.Equal(t, e1.Index(), e2.Index())
		require.Greater(t, e2.Generation(), e1.Generation())
		require.False(t, s.IsValid(e1))
		require.True(t, s.IsValid(e2))
	})
}

func TestComponentLifecycle(t *testing.T) {
	s, posID, _ := newTestStore(t)
	e := s.CreateEntity()

	require.NoError(t, AddComponent(s, e, Position{X: 1, Y: 1, Z: 1}))
	got, err := GetComponent[Position](s, e)
	require.NoError(t, err)
	require.Equal(t, Position{X: 1, Y: 1, Z: 1}, got)

	require.True(t, s.HasComponentRaw(e, posID))
	require.NoError(t, RemoveComponent[Position](s, e))
	require.False(t, s.HasComponentRaw(e, posID))

	_, err = GetComponent[Position](s, e)
	require.Error(t, err)
}

func TestTickVersionMisuse(t *testing.T) {
	s, _, _ := newTestStore(t)
	require.NoError(t, s.Tick())
	err := s.Tick()
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrVersionMisuse)
}

func TestChangeDetectionSoundness(t *testing.T) {
	// Property 2: has_component_changed(v_{f-1}) true iff a set/add on T
	// occurred in frame f.
	s, _, _ := newTestStore(t)
	e := s.CreateEntity()
	require.NoError(t, s.Tick())
	baseline := s.GlobalVersion() - 1

	require.False(t, HasComponentChanged[Position](s, e, baseline))
	require.NoError(t, SetComponent(s, e, Position{X: 2}))
	require.True(t, HasComponentChanged[Position](s, e, baseline))

	s.EndFrame()
	require.NoError(t, s.Tick())
	newBaseline := s.GlobalVersion() - 1
	require.False(t, HasComponentChanged[Position](s, e, newBaseline))
}

func TestQueryLifecycleFilter(t *testing.T) {
	s, _, _ := newTestStore(t)
	active := s.CreateEntity()
	constructing := s.CreateEntity()
	require.NoError(t, s.SetLifecycle(constructing, LifecycleConstructing))
	ghost := s.CreateEntity()
	require.NoError(t, s.SetLifecycle(ghost, LifecycleGhost))

	results := s.Query().Build()
	require.Contains(t, results, active)
	require.NotContains(t, results, constructing)
	require.NotContains(t, results, ghost)

	all := s.Query().IncludeAll().Build()
	require.Contains(t, all, constructing)
	require.Contains(t, all, ghost)

	onlyGhost := s.Query().WithLifecycle(LifecycleGhost).Build()
	require.Equal(t, []Entity{ghost}, onlyGhost)
}

func TestQueryWithWithout(t *testing.T) {
	s, _, _ := newTestStore(t)
	e1 := s.CreateEntity()
	require.NoError(t, AddComponent(s, e1, Position{}))
	require.NoError(t, AddComponent(s, e1, Velocity{}))

	e2 := s.CreateEntity()
	require.NoError(t, AddComponent(s, e2, Position{}))

	moving := With[Velocity](s.Query()).Build()
	require.Equal(t, []Entity{e1}, moving)

	stationary := Without[Velocity](With[Position](s.Query())).Build()
	require.Equal(t, []Entity{e2}, stationary)
}

func TestDestructionSanitizesComponents(t *testing.T) {
	s := NewStore()
	_, err := RegisterComponent[Secret](s, "secret", PolicyTransient)
	require.NoError(t, err)

	e := s.CreateEntity()
	var payload [32]byte
	for i := range payload {
		payload[i] = 0x5A
	}
	require.NoError(t, AddComponent(s, e, Secret{Value: payload}))
	require.NoError(t, s.DestroyEntity(e))

	ct, _ := ComponentTypeID[Secret](s)
	raw := s.column(ct).Get(e.Index())
	require.Nil(t, raw)
}

func TestSnapshotableMaskExcludesTransient(t *testing.T) {
	s := NewStore()
	posID, err := RegisterComponent[Position](s, "position", PolicySnapshot)
	require.NoError(t, err)
	_, err = RegisterComponent[Secret](s, "secret", PolicyTransient)
	require.NoError(t, err)

	mask := s.GetSnapshotableMask()
	require.True(t, mask.Test(uint8(posID)))
	secretID, _ := ComponentTypeID[Secret](s)
	require.False(t, mask.Test(uint8(secretID)))
}

func TestCommandBufferPlaybackAtomicity(t *testing.T) {
	s, posID, _ := newTestStore(t)
	e := s.CreateEntity()

	buf := s.CommandBuffer("module-a")
	buf.AddComponent(e, posID, Position{X: 5})
	buf.AddComponent(e, posID, Position{X: 6}) // duplicate add: fails

	errs := s.Playback([]*CommandBuffer{buf})
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), ErrPlaybackError)

	got, err := GetComponent[Position](s, e)
	require.NoError(t, err)
	require.Equal(t, Position{X: 5}, got)
	require.Equal(t, 0, buf.Len())
}

func TestEventBusSwap(t *testing.T) {
	bus := NewEventBus()
	const typ EventTypeID = "frame_ack"

	require.False(t, bus.HasEvent(typ))
	bus.Publish(typ, 42)
	require.False(t, bus.HasEvent(typ), "not visible before swap")

	bus.SwapBuffers()
	require.True(t, bus.HasEvent(typ))
	require.True(t, bus.PendingEmpty())
	require.Equal(t, []int{42}, CurrentTyped[int](bus, typ))

	bus.SwapBuffers()
	require.False(t, bus.HasEvent(typ), "current cleared by next swap with nothing pending")
}
