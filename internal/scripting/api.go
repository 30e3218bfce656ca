package scripting

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/pjanec/simcore/internal/ecs"
	"github.com/pjanec/simcore/internal/modulehost"
)

// apiBinding closes a sandboxed Lua "ecs" table over one tick's View and
// budget. Every structural write goes through view.Commands — a scripted
// module never mutates the live/replica store directly, matching how
// every other deferred-mutation module is written.
type apiBinding struct {
	view     modulehost.View
	budget   Budget
	created  int
	moduleID string
}

func registerAPI(L *lua.LState, view modulehost.View, budget Budget, moduleID string) {
	b := &apiBinding{view: view, budget: budget, moduleID: moduleID}

	t := L.NewTable()
	L.SetFuncs(t, map[string]lua.LGFunction{
		"create_entity":    b.createEntity,
		"destroy_entity":   b.destroyEntity,
		"add_component":    b.addComponent,
		"set_component":    b.setComponent,
		"remove_component": b.removeComponent,
		"get_component":    b.getComponent,
		"has_component":    b.hasComponent,
		"publish_event":    b.publishEvent,
		"active_entities":  b.activeEntities,
	})
	L.SetGlobal("ecs", t)

	applySandbox(L)
}

// applySandbox strips every global that would let a script reach outside
// the simulation: the filesystem, the OS, debug introspection, and the
// module loader.
func applySandbox(L *lua.LState) {
	for _, name := range []string{"io", "os", "debug", "package", "require", "dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (b *apiBinding) createEntity(L *lua.LState) int {
	if b.budget.MaxEntitiesCreated > 0 && b.created >= b.budget.MaxEntitiesCreated {
		L.RaiseError("%s", (&ResourceError{ModuleID: b.moduleID, Resource: "entities", Current: int64(b.created), Limit: int64(b.budget.MaxEntitiesCreated)}).Error())
		return 0
	}
	b.created++
	b.view.Commands.CreateEntity()
	return 0
}

func (b *apiBinding) destroyEntity(L *lua.LState) int {
	e := checkEntity(L, 1)
	b.view.Commands.DestroyEntity(e)
	return 0
}

func (b *apiBinding) componentType(L *lua.LState, name string) (ecs.ComponentType, *ecs.ComponentTypeInfo, bool) {
	ct, ok := b.view.Store.Registry().LookupByName(name)
	if !ok {
		L.RaiseError("%s", ErrComponentNotRegistered.Error()+": "+name)
		return 0, nil, false
	}
	if !b.budget.allows(name) {
		L.RaiseError("%s", ErrComponentNotAllowed.Error()+": "+name)
		return 0, nil, false
	}
	info, _ := b.view.Store.Registry().Lookup(ct)
	return ct, info, true
}

func (b *apiBinding) addComponent(L *lua.LState) int {
	return b.writeComponent(L, false)
}

func (b *apiBinding) setComponent(L *lua.LState) int {
	return b.writeComponent(L, true)
}

func (b *apiBinding) writeComponent(L *lua.LState, isSet bool) int {
	e := checkEntity(L, 1)
	name := L.CheckString(2)
	table := L.CheckTable(3)

	ct, info, ok := b.componentType(L, name)
	if !ok {
		return 0
	}
	if info.GoType == nil {
		L.RaiseError("scripting: component %s has no Go type bound for decoding", name)
		return 0
	}
	ptr := reflect.New(info.GoType)
	if err := luaToStruct(table, ptr.Interface()); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	comp, ok := ptr.Elem().Interface().(ecs.Component)
	if !ok {
		L.RaiseError("scripting: component %s does not implement Component", name)
		return 0
	}
	if isSet {
		b.view.Commands.SetComponent(e, ct, comp)
	} else {
		b.view.Commands.AddComponent(e, ct, comp)
	}
	return 0
}

func (b *apiBinding) removeComponent(L *lua.LState) int {
	e := checkEntity(L, 1)
	name := L.CheckString(2)
	ct, _, ok := b.componentType(L, name)
	if !ok {
		return 0
	}
	b.view.Commands.RemoveComponent(e, ct)
	return 0
}

func (b *apiBinding) getComponent(L *lua.LState) int {
	e := checkEntity(L, 1)
	name := L.CheckString(2)
	ct, _, ok := b.componentType(L, name)
	if !ok {
		return 0
	}
	v, err := b.view.Store.GetComponentRaw(e, ct)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	lv, err := goToLua(L, v)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lv)
	return 1
}

func (b *apiBinding) hasComponent(L *lua.LState) int {
	e := checkEntity(L, 1)
	name := L.CheckString(2)
	ct, _, ok := b.componentType(L, name)
	if !ok {
		return 0
	}
	L.Push(lua.LBool(b.view.Store.HasComponentRaw(e, ct)))
	return 1
}

func (b *apiBinding) publishEvent(L *lua.LState) int {
	name := L.CheckString(1)
	var payload map[string]any
	if L.GetTop() >= 2 {
		if table, ok := L.Get(2).(*lua.LTable); ok {
			payload = tableToMap(table)
		}
	}
	b.view.Commands.PublishEvent(ecs.EventTypeID(name), payload)
	return 0
}

func (b *apiBinding) activeEntities(L *lua.LState) int {
	active := b.view.Store.GetActiveEntities()
	t := L.NewTable()
	for i, e := range active {
		t.RawSetInt(i+1, lua.LNumber(float64(e)))
	}
	L.Push(t)
	return 1
}

func checkEntity(L *lua.LState, idx int) ecs.Entity {
	n := L.CheckNumber(idx)
	return ecs.Entity(uint64(n))
}

func tableToMap(table *lua.LTable) map[string]any {
	out := make(map[string]any)
	table.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch val := v.(type) {
		case lua.LString:
			out[string(key)] = string(val)
		case lua.LNumber:
			out[string(key)] = float64(val)
		case lua.LBool:
			out[string(key)] = bool(val)
		}
	})
	return out
}
