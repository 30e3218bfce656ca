package scripting

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/pjanec/simcore/internal/modulehost"
)

// ScriptedModule implements modulehost.Module by driving a sandboxed Lua
// VM once per tick. Each tick gets its own fresh *lua.LState so a Lua
// script can never retain state — or a live reference into one frame's
// view — across frame boundaries; every tick re-runs the script's top
// level exactly as loaded, then calls the global tick(dt) it defines.
type ScriptedModule struct {
	id     string
	policy modulehost.ExecutionPolicy
	budget Budget
	name   string
	source string
}

// NewScriptedModule returns a module that will run source (named name,
// for error messages) against view.Store/view.Commands every tick it is
// scheduled. Source is not parsed until the first Tick — gopher-lua has
// no separate validate-without-run step worth depending on — so a syntax
// error surfaces as a Tick error rather than at construction.
func NewScriptedModule(id string, policy modulehost.ExecutionPolicy, budget Budget, name, source string) *ScriptedModule {
	return &ScriptedModule{id: id, policy: policy, budget: budget, name: name, source: source}
}

func (m *ScriptedModule) ID() string { return m.id }

func (m *ScriptedModule) Policy() modulehost.ExecutionPolicy { return m.policy }

// Tick runs the script's top level then invokes the global tick(dt) it
// must define, with delta in seconds. The deadline on ctx is not
// enforced inside the VM — gopher-lua has no preemption point — so
// MaxRuntimeMs on the module's policy, enforced by the host's own
// worker-abandonment path, is the real backstop against a runaway script.
func (m *ScriptedModule) Tick(ctx context.Context, view modulehost.View, delta time.Duration) error {
	L := lua.NewState()
	defer L.Close()

	registerAPI(L, view, m.budget, m.id)

	if err := L.DoString(m.source); err != nil {
		return fmt.Errorf("scripting: module %s: %w", m.id, err)
	}

	tickFn := L.GetGlobal("tick")
	if tickFn == lua.LNil {
		return ErrNoTickFunction
	}
	if err := L.CallByParam(lua.P{
		Fn:      tickFn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(delta.Seconds())); err != nil {
		return fmt.Errorf("scripting: module %s tick: %w", m.id, err)
	}
	return nil
}
