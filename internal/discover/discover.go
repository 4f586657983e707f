// Package discover runs every enabled integration and merges their lights.
package discover

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/batch"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/govee"
	"github.com/dokzlo13/cutelights/internal/hue"
	"github.com/dokzlo13/cutelights/internal/kasa"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Integration is one vendor family
type Integration interface {
	Name() string
	// Preflight reports whether the integration should run with cfg
	Preflight(cfg *config.Config) bool
	Discover(ctx context.Context, cfg *config.Config) ([]light.Light, error)
}

// Integrations returns every built-in integration
func Integrations() []Integration {
	return []Integration{
		hue.Integration{},
		kasa.Integration{},
		govee.Integration{},
	}
}

// Lights discovers with every built-in integration
func Lights(ctx context.Context, cfg *config.Config) []light.Light {
	return Run(ctx, cfg, Integrations()...)
}

// Run discovers concurrently with every integration whose preflight passes.
// A failing integration is logged and contributes nothing; Run itself never fails.
// Lights are grouped per integration in completion order.
func Run(ctx context.Context, cfg *config.Config, integrations ...Integration) []light.Light {
	runID := uuid.NewString()
	start := time.Now()

	b := batch.New[[]light.Light]()
	for _, in := range integrations {
		if !in.Preflight(cfg) {
			log.Debug().Str("run_id", runID).Str("adapter", in.Name()).Msg("Integration skipped")
			continue
		}

		b.Push(func(ctx context.Context) ([]light.Light, error) {
			lights, err := in.Discover(ctx, cfg)
			if err != nil {
				log.Error().Err(err).Str("run_id", runID).Str("adapter", in.Name()).Msg("Discovery failed")
				return nil, err
			}
			log.Debug().Str("run_id", runID).Str("adapter", in.Name()).Int("lights", len(lights)).Msg("Integration finished")
			return lights, nil
		})
	}

	var all []light.Light
	for _, lights := range b.Run(ctx) {
		all = append(all, lights...)
	}

	log.Info().
		Str("run_id", runID).
		Int("lights", len(all)).
		Dur("elapsed", time.Since(start)).
		Msg("Discovery complete")

	return all
}
