package hue

import (
	"context"

	"github.com/dokzlo13/cutelights/internal/color"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Light is a bulb behind a Hue bridge
type Light struct {
	*light.State
	client   *Client
	bridgeID string
}

var _ light.Light = (*Light)(nil)

func newLight(client *Client, bridgeID string, rec record) *Light {
	r, g, b := color.HSLToRGB(rec.Hue, rec.Saturation, rec.Brightness)
	return &Light{
		State: light.NewState(light.FamilyHue, bridgeID, rec.Name, rec.SupportsColor, light.Initial{
			On:         rec.On,
			Brightness: uint8(max(0, min(rec.Brightness, int(light.MaxBrightness)))),
			Red:        r,
			Green:      g,
			Blue:       b,
		}),
		client:   client,
		bridgeID: bridgeID,
	}
}

// Address returns the bridge the light is reached through
func (l *Light) Address() string {
	return l.client.Address()
}

// Close drops idle bridge connections
func (l *Light) Close() error {
	l.client.Close()
	return nil
}

// SetOn switches the light on or off
func (l *Light) SetOn(ctx context.Context, on bool) error {
	if err := l.client.SetState(ctx, l.bridgeID, map[string]any{"on": on}); err != nil {
		return err
	}
	l.StoreOn(on)
	return nil
}

// SetBrightness sets brightness as a percentage
func (l *Light) SetBrightness(ctx context.Context, pct uint8) error {
	if err := light.CheckBrightness(pct); err != nil {
		return err
	}
	body := map[string]any{"bri": toBridge(int(pct), 100, maxBri)}
	if err := l.client.SetState(ctx, l.bridgeID, body); err != nil {
		return err
	}
	l.StoreBrightness(pct)
	return nil
}

// SetColor converts the color to HSL and applies it in bridge units
func (l *Light) SetColor(ctx context.Context, r, g, b uint8) error {
	h, s, v := color.RGBToHSL(r, g, b)
	body := map[string]any{
		"hue": toBridge(h, 360, maxHue),
		"sat": toBridge(s, 100, maxSat),
		"bri": toBridge(v, 100, maxBri),
	}
	if err := l.client.SetState(ctx, l.bridgeID, body); err != nil {
		return err
	}
	l.StoreColor(r, g, b)
	return nil
}
