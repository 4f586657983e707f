package modules

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/frame"
)

const frameTypeName = "lights.frame"

// FrameUserdata wraps a frame for Lua access
type FrameUserdata struct {
	frame *frame.Frame
	exec  *blocking.Executor
}

// RegisterFrameType registers the lights.frame metatable
func RegisterFrameType(L *lua.LState) {
	mt := L.NewTypeMetatable(frameTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), frameMethods))
}

var frameMethods = map[string]lua.LGFunction{
	// Chainable: queue updates
	"set_on":         frameSetOn,
	"set_brightness": frameSetBrightness,
	"set_color":      frameSetColor,
	"clear":          frameClear,

	"len": frameLen,
	"run": frameRun,
}

func newFrameValue(L *lua.LState, f *frame.Frame, exec *blocking.Executor) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = &FrameUserdata{frame: f, exec: exec}
	L.SetMetatable(ud, L.GetTypeMetatable(frameTypeName))
	return ud
}

func checkFrame(L *lua.LState) (*FrameUserdata, *lua.LUserData) {
	ud := L.CheckUserData(1)
	if v, ok := ud.Value.(*FrameUserdata); ok {
		return v, ud
	}
	L.ArgError(1, "lights.frame expected")
	return nil, nil
}

// frame:set_on(light, bool) -> self
func frameSetOn(L *lua.LState) int {
	f, ud := checkFrame(L)
	l, _ := checkLight(L, 2)
	f.frame.SetOn(l.light, L.CheckBool(3))
	L.Push(ud)
	return 1
}

// frame:set_brightness(light, pct) -> self
func frameSetBrightness(L *lua.LState) int {
	f, ud := checkFrame(L)
	l, _ := checkLight(L, 2)
	f.frame.SetBrightness(l.light, checkPercent(L, 3))
	L.Push(ud)
	return 1
}

// frame:set_color(light, r, g, b) -> self
func frameSetColor(L *lua.LState) int {
	f, ud := checkFrame(L)
	l, _ := checkLight(L, 2)
	f.frame.SetColor(l.light, checkByte(L, 3), checkByte(L, 4), checkByte(L, 5))
	L.Push(ud)
	return 1
}

// frame:clear() -> self
func frameClear(L *lua.LState) int {
	f, ud := checkFrame(L)
	f.frame.Clear()
	L.Push(ud)
	return 1
}

// frame:len() -> number
func frameLen(L *lua.LState) int {
	f, _ := checkFrame(L)
	L.Push(lua.LNumber(f.frame.Len()))
	return 1
}

// frame:run() applies every queued update and returns once all have finished
func frameRun(L *lua.LState) int {
	f, _ := checkFrame(L)
	_ = f.exec.BlockOn(contextOf(L), func(ctx context.Context) error {
		f.frame.Run(ctx)
		return nil
	})
	return 0
}
