// Package kasa controls Kasa smart bulbs over their TCP protocol: a 4-byte
// length prefix followed by an autokey XOR obfuscated JSON document.
package kasa

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/batch"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Integration discovers Kasa bulbs from the configured address list
type Integration struct{}

// Name returns the family name
func (Integration) Name() string {
	return light.FamilyKasa
}

// Preflight reports whether the integration is enabled
func (Integration) Preflight(cfg *config.Config) bool {
	return cfg.Kasa.Enabled
}

// Discover connects to every configured address concurrently.
// Unreachable or misbehaving bulbs are logged and omitted.
func (Integration) Discover(ctx context.Context, cfg *config.Config) ([]light.Light, error) {
	b := batch.New[light.Light]()

	for _, address := range cfg.Kasa.Addresses {
		b.Push(func(ctx context.Context) (light.Light, error) {
			l, err := Connect(ctx, NewClient(address, cfg.Kasa.Timeout.Duration()))
			if err != nil {
				log.Error().Err(err).Str("adapter", light.FamilyKasa).Str("address", address).Msg("Failed to connect to Kasa bulb")
				return nil, err
			}
			return l, nil
		})
	}

	return b.Run(ctx), nil
}
