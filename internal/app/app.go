// Package app wires configuration, discovery and the light registry for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/blocking"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/discover"
	"github.com/dokzlo13/cutelights/internal/light"
	"github.com/dokzlo13/cutelights/internal/lua"
)

// ErrUnknownLight is returned when no discovered light has the requested id
var ErrUnknownLight = errors.New("unknown light")

// App holds the configuration and every light discovered so far.
type App struct {
	cfg          *config.Config
	registry     *light.Registry
	integrations []discover.Integration
}

// New creates an App using the built-in integrations
func New(cfg *config.Config) *App {
	return NewWithIntegrations(cfg, discover.Integrations()...)
}

// NewWithIntegrations creates an App using the given integrations
func NewWithIntegrations(cfg *config.Config, integrations ...discover.Integration) *App {
	return &App{
		cfg:          cfg,
		registry:     light.NewRegistry(),
		integrations: integrations,
	}
}

// Config returns the configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Registry returns the registry of discovered lights
func (a *App) Registry() *light.Registry {
	return a.registry
}

// Discover runs discovery and registers the lights found.
// It returns the lights found by this run.
func (a *App) Discover(ctx context.Context) []light.Light {
	found := discover.Run(ctx, a.cfg, a.integrations...)
	added := a.registry.Merge(found)
	log.Debug().Int("found", len(found)).Int("added", added).Msg("Lights registered")
	return found
}

// Light returns a discovered light by id, running discovery first if nothing is registered yet
func (a *App) Light(ctx context.Context, id string) (light.Light, error) {
	if a.registry.Len() == 0 {
		a.Discover(ctx)
	}
	l, ok := a.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLight, id)
	}
	return l, nil
}

// RunScript executes a Lua script with the app's registry and discovery
func (a *App) RunScript(ctx context.Context, path string) error {
	rt := lua.NewRuntime(lua.RuntimeDeps{
		Config:   a.cfg,
		Registry: a.registry,
		Executor: blocking.Default(),
		Discover: func(ctx context.Context) []light.Light {
			return discover.Run(ctx, a.cfg, a.integrations...)
		},
	})
	defer rt.Close()

	return rt.RunFile(ctx, path)
}

// Close releases every light and stops the blocking executor
func (a *App) Close() error {
	err := a.registry.Close()
	blocking.Shutdown()
	return err
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
