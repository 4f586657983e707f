// Package hue controls lights behind a Hue bridge through its v1 REST API.
package hue

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Integration discovers the lights of the configured bridge
type Integration struct{}

// Name returns the family name
func (Integration) Name() string {
	return light.FamilyHue
}

// Preflight reports whether the bridge is enabled and fully configured.
// Each missing field is logged once.
func (Integration) Preflight(cfg *config.Config) bool {
	if !cfg.Hue.Enabled {
		return false
	}
	ok := true
	if cfg.Hue.BridgeIP == "" {
		log.Warn().Str("adapter", light.FamilyHue).Msg("Hue is enabled but hue.bridge_ip is not set")
		ok = false
	}
	if cfg.Hue.Username == "" {
		log.Warn().Str("adapter", light.FamilyHue).Msg("Hue is enabled but hue.username is not set")
		ok = false
	}
	return ok
}

// Discover lists the bridge lights. Unreachable lights are skipped.
func (Integration) Discover(ctx context.Context, cfg *config.Config) ([]light.Light, error) {
	client := NewClient(cfg.Hue.BridgeIP, cfg.Hue.Username, cfg.Hue.Timeout.Duration(), cfg.Hue.RateLimitRPS)
	return discover(ctx, client)
}

func discover(ctx context.Context, client *Client) ([]light.Light, error) {
	raw, err := client.GetLights(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lights := make([]light.Light, 0, len(ids))
	for _, id := range ids {
		rec, err := decodeRecord(raw[id])
		if err != nil {
			log.Warn().Err(err).Str("adapter", light.FamilyHue).Str("light", id).Msg("Skipping malformed light record")
			continue
		}
		if !rec.Reachable {
			log.Debug().Str("adapter", light.FamilyHue).Str("light", id).Msg("Skipping unreachable light")
			continue
		}
		lights = append(lights, newLight(client, id, rec))
	}

	log.Info().
		Str("adapter", light.FamilyHue).
		Str("bridge", client.Address()).
		Int("lights", len(lights)).
		Msg("Hue lights discovered")

	return lights, nil
}
