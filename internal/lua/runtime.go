// Package lua runs user scripts against discovered lights.
//
// Scripts see these modules:
//
//	local lights = require("lights") -- discover, all, get, frame
//	local log = require("log")       -- debug, info, warn, error
//	local utils = require("utils")   -- sleep, now_ms
package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/light"
	"github.com/dokzlo13/cutelights/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = errors.New("lua runtime closed")

// Runtime owns one Lua VM. A Runtime is not safe for concurrent use.
type Runtime struct {
	L    *lua.LState
	deps RuntimeDeps

	mu     sync.Mutex
	closed bool
}

// NewRuntime creates a new Lua runtime
func NewRuntime(deps RuntimeDeps) *Runtime {
	if deps.Executor == nil {
		deps.Executor = blocking.Default()
	}
	if deps.Registry == nil {
		deps.Registry = light.NewRegistry()
	}
	if deps.Discover == nil {
		deps.Discover = func(context.Context) []light.Light { return nil }
	}

	r := &Runtime{
		L:    lua.NewState(),
		deps: deps,
	}
	r.registerModules()
	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	maxConcurrency := 0
	if r.deps.Config != nil {
		maxConcurrency = r.deps.Config.Frame.MaxConcurrency
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("utils", modules.NewUtilsModule().Loader)

	lightsModule := modules.NewLightsModule(r.deps.Registry, r.deps.Executor, r.deps.Discover, maxConcurrency)
	r.L.PreloadModule("lights", lightsModule.Loader)
}

// Close closes the Lua state. Lights stay in the registry.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.L.Close()
}

// RunFile executes a script; cancelling ctx interrupts it
func (r *Runtime) RunFile(ctx context.Context, path string) error {
	log.Info().Str("path", path).Msg("Running Lua script")
	return r.run(ctx, func() error { return r.L.DoFile(path) })
}

// RunString executes a chunk of Lua source
func (r *Runtime) RunString(ctx context.Context, source string) error {
	return r.run(ctx, func() error { return r.L.DoString(source) })
}

func (r *Runtime) run(ctx context.Context, exec func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}

	// Modules read the context through L.Context()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := exec(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("lua script failed: %w", err)
	}
	return nil
}
