package modules

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/cutelights/internal/light"
)

// contextOf returns the context attached to L, or Background
func contextOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// checkByte reads argument n as an integer in [0, 255]
func checkByte(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 0 || v > 255 {
		L.ArgError(n, fmt.Sprintf("value %d not in [0, 255]", v))
	}
	return uint8(v)
}

// checkPercent reads argument n as a brightness in [0, 100]
func checkPercent(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 0 || v > int(light.MaxBrightness) {
		L.ArgError(n, fmt.Sprintf("brightness %d not in [0, %d]", v, light.MaxBrightness))
	}
	return uint8(v)
}

// LuaToGo converts a Lua value to a Go value
func LuaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		// Check if it's an array or object
		if n := val.MaxN(); n > 0 && n == countKeys(val) {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = LuaToGo(val.RawGetInt(i))
			}
			return arr
		}
		return LuaTableToMap(val)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

func countKeys(tbl *lua.LTable) int {
	n := 0
	tbl.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

// GoToLuaValue converts a Go value to a Lua value
func GoToLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, GoToLuaValue(L, item))
		}
		return tbl
	case map[string]any:
		return MapToLuaTable(L, val)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// MapToLuaTable converts a Go map to a Lua table
func MapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		L.SetField(tbl, k, GoToLuaValue(L, v))
	}
	return tbl
}

// LuaTableToMap converts the string keyed entries of a Lua table to a Go map
func LuaTableToMap(tbl *lua.LTable) map[string]any {
	m := make(map[string]any)
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			m[string(ks)] = LuaToGo(v)
		}
	})
	return m
}
