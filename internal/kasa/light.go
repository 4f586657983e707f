package kasa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/color"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Light is a Kasa smart bulb controlled over TCP
type Light struct {
	*light.State
	client *Client
}

var _ light.Light = (*Light)(nil)

// Connect queries sysinfo from the bulb at address and builds its handle
func Connect(ctx context.Context, client *Client) (*Light, error) {
	resp, err := client.Send(ctx, sysInfoRequest)
	if err != nil {
		return nil, err
	}

	var decoded sysInfoResponse
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return nil, fmt.Errorf("%w: sysinfo from %s: %w", light.ErrDecode, client.Addr(), err)
	}
	info := decoded.System.GetSysInfo
	if info == nil {
		return nil, fmt.Errorf("%w: sysinfo from %s: missing system.get_sysinfo", light.ErrDecode, client.Addr())
	}
	if info.ErrCode != 0 {
		return nil, fmt.Errorf("%w: sysinfo from %s: err_code %d", light.ErrDevice, client.Addr(), info.ErrCode)
	}
	if info.vendorID() == "" {
		return nil, fmt.Errorf("%w: sysinfo from %s: no mac reported", light.ErrDecode, client.Addr())
	}

	bri, hue, sat := info.LightState.effective()
	r, g, b := color.HSLToRGB(hue, sat, bri)

	l := &Light{
		State: light.NewState(light.FamilyKasa, info.vendorID(), info.Alias, bool(info.IsColor), light.Initial{
			On:         bool(info.LightState.OnOff),
			Brightness: uint8(clampPct(bri)),
			Red:        r,
			Green:      g,
			Blue:       b,
		}),
		client: client,
	}

	log.Debug().
		Str("id", l.ID()).
		Str("address", client.Addr()).
		Str("name", l.Name()).
		Bool("color", l.SupportsColor()).
		Msg("Kasa bulb connected")

	return l, nil
}

func clampPct(v int) int {
	return max(0, min(v, int(light.MaxBrightness)))
}

// Address returns the host:port the bulb is reached on
func (l *Light) Address() string {
	return l.client.Addr()
}

func (l *Light) command(ctx context.Context, msg []byte) error {
	resp, err := l.client.Send(ctx, msg)
	if err != nil {
		return err
	}

	var decoded transitionResponse
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return fmt.Errorf("%w: response from %s: %w", light.ErrDecode, l.client.Addr(), err)
	}
	if res, ok := decoded[lightingService][transitionState]; ok && res.ErrCode != 0 {
		return fmt.Errorf("%w: %s: err_code %d %s", light.ErrDevice, l.ID(), res.ErrCode, res.ErrMsg)
	}
	return nil
}

// SetOn switches the bulb on or off
func (l *Light) SetOn(ctx context.Context, on bool) error {
	if err := l.command(ctx, onOffMessage(on)); err != nil {
		return err
	}
	l.StoreOn(on)
	return nil
}

// SetColor converts the color to HSL and applies it, switching the bulb on
func (l *Light) SetColor(ctx context.Context, r, g, b uint8) error {
	h, s, v := color.RGBToHSL(r, g, b)
	if err := l.command(ctx, colorMessage(h, s, v)); err != nil {
		return err
	}
	l.StoreColor(r, g, b)
	return nil
}

// SetBrightness sets brightness as a percentage, switching the bulb on
func (l *Light) SetBrightness(ctx context.Context, pct uint8) error {
	if err := light.CheckBrightness(pct); err != nil {
		return err
	}
	if err := l.command(ctx, brightnessMessage(int(pct))); err != nil {
		return err
	}
	l.StoreBrightness(pct)
	return nil
}
