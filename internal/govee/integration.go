// Package govee controls Govee bulbs through their LAN API: multicast scan,
// then plaintext JSON datagrams to each device on a shared control socket.
package govee

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/batch"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Integration discovers Govee lights among the configured addresses
type Integration struct{}

// Name returns the family name
func (Integration) Name() string {
	return light.FamilyGovee
}

// Preflight reports whether the integration is enabled
func (Integration) Preflight(cfg *config.Config) bool {
	return cfg.Govee.Enabled
}

// Discover takes a reference on the shared socket, scans, then queries every device that answered.
// Lights from earlier discoveries keep the socket open and it is reused.
// A scan that times out is not an error.
func (Integration) Discover(ctx context.Context, cfg *config.Config) ([]light.Light, error) {
	sock, err := Shared(cfg.Govee.ListenPort)
	if err != nil {
		return nil, err
	}
	defer sock.Release()

	return discoverOn(ctx, sock, scanAddr, cfg.Govee)
}

func discoverOn(ctx context.Context, sock *Socket, target *net.UDPAddr, gcfg config.GoveeConfig) ([]light.Light, error) {
	sock.scanMu.Lock()
	defer sock.scanMu.Unlock()

	scanCtx, cancel := context.WithTimeout(ctx, gcfg.ScanTimeoutDuration())
	found := scan(scanCtx, sock, target, gcfg.Addresses)
	cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := batch.New[light.Light]()
	for _, dev := range found {
		b.Push(func(ctx context.Context) (light.Light, error) {
			l, err := connect(ctx, sock, dev, gcfg.DevicePort, gcfg.StatusTimeoutDuration())
			if err != nil {
				log.Error().Err(err).Str("adapter", light.FamilyGovee).Str("ip", dev.IP).Str("device", dev.Device).Msg("Failed to connect to Govee light")
				return nil, err
			}
			return l, nil
		})
	}
	lights := b.Run(ctx)

	if err := ctx.Err(); err != nil {
		for _, l := range lights {
			_ = l.(*Light).Close()
		}
		return nil, err
	}

	log.Info().
		Str("adapter", light.FamilyGovee).
		Int("lights", len(lights)).
		Int("configured", len(gcfg.Addresses)).
		Msg("Govee lights discovered")

	return lights, nil
}
