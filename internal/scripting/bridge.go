package scripting

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// goToLua converts a bounded set of Go values into Lua values: numbers,
// strings, bools, and exported struct fields as a table, by reflection —
// adapted from the teacher's Lua bridge, trimmed to what component
// payloads actually need (no slice/map support required here).
func goToLua(L *lua.LState, value any) (lua.LValue, error) {
	if value == nil {
		return lua.LNil, nil
	}
	switch v := value.(type) {
	case string:
		return lua.LString(v), nil
	case bool:
		return lua.LBool(v), nil
	case int:
		return lua.LNumber(float64(v)), nil
	case int32:
		return lua.LNumber(float64(v)), nil
	case int64:
		return lua.LNumber(float64(v)), nil
	case uint32:
		return lua.LNumber(float64(v)), nil
	case uint64:
		return lua.LNumber(float64(v)), nil
	case float32:
		return lua.LNumber(float64(v)), nil
	case float64:
		return lua.LNumber(v), nil
	default:
		return structToLua(L, value)
	}
}

func structToLua(L *lua.LState, value any) (lua.LValue, error) {
	rv := reflect.ValueOf(value)
	rt := reflect.TypeOf(value)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
		rt = rt.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scripting: unsupported component field type %T", value)
	}

	table := L.NewTable()
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rt.Field(i)
		if !field.CanInterface() {
			continue
		}
		lv, err := goToLua(L, field.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", ft.Name, err)
		}
		table.RawSetString(ft.Name, lv)
	}
	return table, nil
}

// luaToStruct fills dst (a pointer to a struct) from a Lua table whose
// keys are Go field names, by reflection — the decode side of
// structToLua.
func luaToStruct(table *lua.LTable, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scripting: decode target must be a pointer to struct")
	}
	elem := rv.Elem()
	elemType := elem.Type()

	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if !field.CanSet() {
			continue
		}
		name := elemType.Field(i).Name
		lv := table.RawGetString(name)
		if lv == lua.LNil {
			continue
		}
		if err := setField(field, lv); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, lv lua.LValue) error {
	switch field.Kind() {
	case reflect.String:
		if s, ok := lv.(lua.LString); ok {
			field.SetString(string(s))
			return nil
		}
	case reflect.Bool:
		if b, ok := lv.(lua.LBool); ok {
			field.SetBool(bool(b))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if n, ok := lv.(lua.LNumber); ok {
			field.SetFloat(float64(n))
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := lv.(lua.LNumber); ok {
			field.SetInt(int64(n))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := lv.(lua.LNumber); ok {
			field.SetUint(uint64(n))
			return nil
		}
	case reflect.Struct:
		if t, ok := lv.(*lua.LTable); ok {
			return luaToStruct(t, field.Addr().Interface())
		}
	}
	return fmt.Errorf("cannot assign Lua %s into Go %s", lv.Type(), field.Kind())
}
