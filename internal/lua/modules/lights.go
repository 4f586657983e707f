package modules

import (
	"context"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/frame"
	"github.com/dokzlo13/cutelights/internal/light"
)

// DiscoverFunc finds lights
type DiscoverFunc func(ctx context.Context) []light.Light

// LightsModule exposes the light registry, discovery and frames to Lua
type LightsModule struct {
	registry       *light.Registry
	exec           *blocking.Executor
	discover       DiscoverFunc
	maxConcurrency int
}

// NewLightsModule creates a new lights module
func NewLightsModule(registry *light.Registry, exec *blocking.Executor, discover DiscoverFunc, maxConcurrency int) *LightsModule {
	return &LightsModule{
		registry:       registry,
		exec:           exec,
		discover:       discover,
		maxConcurrency: maxConcurrency,
	}
}

// Loader is the module loader for Lua
func (m *LightsModule) Loader(L *lua.LState) int {
	RegisterLightType(L)
	RegisterFrameType(L)

	mod := L.NewTable()

	L.SetField(mod, "discover", L.NewFunction(m.discoverLights))
	L.SetField(mod, "all", L.NewFunction(m.all))
	L.SetField(mod, "get", L.NewFunction(m.get))
	L.SetField(mod, "frame", L.NewFunction(m.newFrame))

	L.Push(mod)
	return 1
}

// lights.discover() -> array of lights
// Newly found lights are added to the registry; the array holds every registered light.
func (m *LightsModule) discoverLights(L *lua.LState) int {
	found, err := blocking.Do(contextOf(L), m.exec, func(ctx context.Context) ([]light.Light, error) {
		return m.discover(ctx), nil
	})
	if err != nil {
		log.Warn().Err(err).Str("source", "lua").Msg("Discovery interrupted")
	}

	added := m.registry.Merge(found)
	log.Debug().Str("source", "lua").Int("found", len(found)).Int("added", added).Msg("Lights discovered")

	return m.all(L)
}

// lights.all() -> array of registered lights sorted by id
func (m *LightsModule) all(L *lua.LState) int {
	tbl := L.NewTable()
	for _, l := range m.registry.All() {
		tbl.Append(newLightValue(L, l, m.exec))
	}
	L.Push(tbl)
	return 1
}

// lights.get(id) -> light or nil
func (m *LightsModule) get(L *lua.LState) int {
	id := L.CheckString(1)
	l, ok := m.registry.Get(id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(newLightValue(L, l, m.exec))
	return 1
}

// lights.frame() -> empty frame
func (m *LightsModule) newFrame(L *lua.LState) int {
	L.Push(newFrameValue(L, frame.NewWithLimit(m.maxConcurrency), m.exec))
	return 1
}
