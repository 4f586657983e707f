package hue

import (
	"context"
	"fmt"

	"github.com/amimof/huego"

	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

// BridgeInfo describes the configured bridge
type BridgeInfo struct {
	Name       string
	BridgeID   string
	ModelID    string
	APIVersion string
	SwVersion  string
	Address    string
}

// GetBridgeInfo reads the bridge configuration resource
func GetBridgeInfo(ctx context.Context, cfg *config.Config) (*BridgeInfo, error) {
	if cfg.Hue.BridgeIP == "" || cfg.Hue.Username == "" {
		return nil, fmt.Errorf("%w: hue.bridge_ip and hue.username are required", light.ErrConfigIncomplete)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Hue.Timeout.Duration())
	defer cancel()

	bridge := huego.New(cfg.Hue.BridgeIP, cfg.Hue.Username)
	c, err := bridge.GetConfigContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bridge config: %w", light.ErrTransport, err)
	}

	return &BridgeInfo{
		Name:       c.Name,
		BridgeID:   c.BridgeID,
		ModelID:    c.ModelID,
		APIVersion: c.APIVersion,
		SwVersion:  c.SwVersion,
		Address:    cfg.Hue.BridgeIP,
	}, nil
}
