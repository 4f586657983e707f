package modules

import (
	"context"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/light"
)

const lightTypeName = "lights.light"

// LightUserdata wraps a light handle for Lua access
type LightUserdata struct {
	light light.Light
	exec  *blocking.Executor
}

// RegisterLightType registers the lights.light metatable
func RegisterLightType(L *lua.LState) {
	mt := L.NewTypeMetatable(lightTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), lightMethods))
	L.SetField(mt, "__tostring", L.NewFunction(lightToString))
	L.SetField(mt, "__eq", L.NewFunction(lightEq))
}

var lightMethods = map[string]lua.LGFunction{
	// Getters read the cached state
	"id":             lightGetID,
	"name":           lightGetName,
	"is_on":          lightIsOn,
	"brightness":     lightGetBrightness,
	"red":            lightGetRed,
	"green":          lightGetGreen,
	"blue":           lightGetBlue,
	"color":          lightGetColor,
	"supports_color": lightSupportsColor,
	"snapshot":       lightSnapshot,

	// Setters block until the device call returns.
	// They return self, plus an error message on failure.
	"set_on":         lightSetOn,
	"set_brightness": lightSetBrightness,
	"set_color":      lightSetColor,
}

// newLightValue creates a Light userdata
func newLightValue(L *lua.LState, l light.Light, exec *blocking.Executor) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = &LightUserdata{light: l, exec: exec}
	L.SetMetatable(ud, L.GetTypeMetatable(lightTypeName))
	return ud
}

// checkLight retrieves the LightUserdata at stack position n
func checkLight(L *lua.LState, n int) (*LightUserdata, *lua.LUserData) {
	ud := L.CheckUserData(n)
	if v, ok := ud.Value.(*LightUserdata); ok {
		return v, ud
	}
	L.ArgError(n, "lights.light expected")
	return nil, nil
}

func lightGetID(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LString(l.light.ID()))
	return 1
}

func lightGetName(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LString(l.light.Name()))
	return 1
}

func lightIsOn(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LBool(l.light.IsOn()))
	return 1
}

func lightGetBrightness(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LNumber(l.light.Brightness()))
	return 1
}

func lightGetRed(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LNumber(l.light.Red()))
	return 1
}

func lightGetGreen(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LNumber(l.light.Green()))
	return 1
}

func lightGetBlue(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LNumber(l.light.Blue()))
	return 1
}

// light:color() -> r, g, b
func lightGetColor(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LNumber(l.light.Red()))
	L.Push(lua.LNumber(l.light.Green()))
	L.Push(lua.LNumber(l.light.Blue()))
	return 3
}

func lightSupportsColor(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LBool(l.light.SupportsColor()))
	return 1
}

// light:snapshot() -> table of every cached attribute
func lightSnapshot(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	s := light.TakeSnapshot(l.light)
	L.Push(GoToLuaValue(L, map[string]any{
		"id":             s.ID,
		"name":           s.Name,
		"on":             s.On,
		"brightness":     s.Brightness,
		"red":            s.Red,
		"green":          s.Green,
		"blue":           s.Blue,
		"supports_color": s.SupportsColor,
		"address":        s.Address,
	}))
	return 1
}

func lightToString(L *lua.LState) int {
	l, _ := checkLight(L, 1)
	L.Push(lua.LString(light.Describe(l.light)))
	return 1
}

func lightEq(L *lua.LState) int {
	a, _ := checkLight(L, 1)
	b, _ := checkLight(L, 2)
	L.Push(lua.LBool(light.Equal(a.light, b.light)))
	return 1
}

// call runs a mutator through the executor and pushes self[, err]
func (l *LightUserdata) call(L *lua.LState, ud *lua.LUserData, op string, fn func(ctx context.Context) error) int {
	L.Push(ud)
	if err := l.exec.BlockOn(contextOf(L), fn); err != nil {
		log.Warn().Err(err).Str("source", "lua").Str("light", l.light.ID()).Str("op", op).Msg("Light update failed")
		L.Push(lua.LString(err.Error()))
		return 2
	}
	return 1
}

// light:set_on(bool) -> self[, err]
func lightSetOn(L *lua.LState) int {
	l, ud := checkLight(L, 1)
	on := L.CheckBool(2)
	return l.call(L, ud, "set_on", func(ctx context.Context) error {
		return l.light.SetOn(ctx, on)
	})
}

// light:set_brightness(0..100) -> self[, err]; values outside the range raise
func lightSetBrightness(L *lua.LState) int {
	l, ud := checkLight(L, 1)
	pct := checkPercent(L, 2)
	return l.call(L, ud, "set_brightness", func(ctx context.Context) error {
		return l.light.SetBrightness(ctx, pct)
	})
}

// light:set_color(r, g, b) -> self[, err]
func lightSetColor(L *lua.LState) int {
	l, ud := checkLight(L, 1)
	r, g, b := checkByte(L, 2), checkByte(L, 3), checkByte(L, 4)
	return l.call(L, ud, "set_color", func(ctx context.Context) error {
		return l.light.SetColor(ctx, r, g, b)
	})
}
