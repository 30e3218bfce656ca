package scripting_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/modulehost"
	"github.com/pjanec/simcore/internal/scripting"
)

type Position struct {
	X float64
	Y float64
}

func (p Position) Clone() ecs.Component { return p }

func newStoreWithPosition(t *testing.T) *ecs.Store {
	t.Helper()
	store := ecs.NewStore()
	_, err := ecs.RegisterComponent[Position](store, "Position", ecs.PolicySnapshot)
	require.NoError(t, err)
	return store
}

func runTick(t *testing.T, store *ecs.Store, mod *scripting.ScriptedModule) {
	t.Helper()
	view := modulehost.View{Store: store, Commands: store.CommandBuffer(mod.ID())}
	err := mod.Tick(context.Background(), view, 16*time.Millisecond)
	require.NoError(t, err)
	errs := store.Playback([]*ecs.CommandBuffer{view.Commands})
	require.Empty(t, errs)
}

func TestScriptCreatesEntityThroughCommandBuffer(t *testing.T) {
	store := newStoreWithPosition(t)
	mod := scripting.NewScriptedModule("spawner", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous}, scripting.Budget{}, "spawner.lua", `
		function tick(dt)
			ecs.create_entity()
		end
	`)

	before := len(store.GetActiveEntities())
	runTick(t, store, mod)
	require.Len(t, store.GetActiveEntities(), before+1)
}

func TestScriptReadsAndWritesRegisteredComponent(t *testing.T) {
	store := newStoreWithPosition(t)
	e := store.CreateEntity()
	require.NoError(t, ecs.AddComponent(store, e, Position{X: 1, Y: 2}))

	mod := scripting.NewScriptedModule("mover", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous}, scripting.Budget{}, "mover.lua", `
		function tick(dt)
			local entities = ecs.active_entities()
			for _, e in ipairs(entities) do
				if ecs.has_component(e, "Position") then
					local pos = ecs.get_component(e, "Position")
					pos.X = pos.X + 10
					ecs.set_component(e, "Position", pos)
				end
			end
		end
	`)
	runTick(t, store, mod)

	got, err := ecs.GetComponent[Position](store, e)
	require.NoError(t, err)
	require.Equal(t, 11.0, got.X)
	require.Equal(t, 2.0, got.Y)
}

func TestScriptCannotReachUnregisteredComponent(t *testing.T) {
	store := newStoreWithPosition(t)
	e := store.CreateEntity()

	mod := scripting.NewScriptedModule("bad", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous}, scripting.Budget{}, "bad.lua", `
		function tick(dt)
			ecs.get_component(0, "Nonexistent")
		end
	`)
	view := modulehost.View{Store: store, Commands: store.CommandBuffer(mod.ID())}
	_ = e
	err := mod.Tick(context.Background(), view, time.Millisecond)
	require.Error(t, err)
}

func TestScriptSandboxHasNoFilesystemAccess(t *testing.T) {
	store := newStoreWithPosition(t)
	mod := scripting.NewScriptedModule("escape", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous}, scripting.Budget{}, "escape.lua", `
		function tick(dt)
			if io ~= nil then error("io should be sandboxed away") end
			if os ~= nil then error("os should be sandboxed away") end
		end
	`)
	runTick(t, store, mod)
}

func TestScriptEntityBudgetIsEnforced(t *testing.T) {
	store := newStoreWithPosition(t)
	mod := scripting.NewScriptedModule("overspawn", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous},
		scripting.Budget{MaxEntitiesCreated: 1}, "overspawn.lua", `
		function tick(dt)
			ecs.create_entity()
			ecs.create_entity()
		end
	`)
	view := modulehost.View{Store: store, Commands: store.CommandBuffer(mod.ID())}
	err := mod.Tick(context.Background(), view, time.Millisecond)
	require.Error(t, err)
}

func TestScriptWithoutTickFunctionFails(t *testing.T) {
	store := newStoreWithPosition(t)
	mod := scripting.NewScriptedModule("notick", modulehost.ExecutionPolicy{Mode: modulehost.Synchronous}, scripting.Budget{}, "notick.lua", `
		local x = 1
	`)
	view := modulehost.View{Store: store, Commands: store.CommandBuffer(mod.ID())}
	err := mod.Tick(context.Background(), view, time.Millisecond)
	require.ErrorIs(t, err, scripting.ErrNoTickFunction)
}
