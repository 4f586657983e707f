package lua

import (
	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
	"github.com/dokzlo13/cutelights/internal/lua/modules"
)

// RuntimeDeps groups all dependencies needed by Lua runtime.
type RuntimeDeps struct {
	Config   *config.Config
	Registry *light.Registry
	// Executor runs light calls on behalf of the script; nil uses the process-wide one
	Executor *blocking.Executor
	Discover modules.DiscoverFunc
}
