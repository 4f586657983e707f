package modules

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

// UtilsModule provides utility functions to Lua
type UtilsModule struct{}

// NewUtilsModule creates a new utils module
func NewUtilsModule() *UtilsModule {
	return &UtilsModule{}
}

// Loader is the module loader for Lua
func (m *UtilsModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "sleep", L.NewFunction(m.sleep))
	L.SetField(mod, "now_ms", L.NewFunction(m.nowMs))

	L.Push(mod)
	return 1
}

// sleep(ms) - Sleep for specified milliseconds.
// Returns false if the script context ended first.
func (m *UtilsModule) sleep(L *lua.LState) int {
	ms := L.CheckInt(1)

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		L.Push(lua.LTrue)
	case <-contextOf(L).Done():
		L.Push(lua.LFalse)
	}
	return 1
}

// now_ms() - Milliseconds since the Unix epoch
func (m *UtilsModule) nowMs(L *lua.LState) int {
	L.Push(lua.LNumber(time.Now().UnixMilli()))
	return 1
}
