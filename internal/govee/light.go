package govee

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/light"
)

// Light is a Govee bulb controlled through the LAN API.
// Commands are fire and forget.
type Light struct {
	*light.State
	sock      *Socket
	addr      *net.UDPAddr
	sku       string
	closeOnce sync.Once
}

var _ light.Light = (*Light)(nil)

// connect requests the device status and builds the handle.
// The handle holds its own reference on sock.
func connect(ctx context.Context, sock *Socket, dev scanResponse, port int, timeout time.Duration) (*Light, error) {
	ip := net.ParseIP(dev.IP)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid device ip %q", light.ErrDecode, dev.IP)
	}
	addr := &net.UDPAddr{IP: ip, Port: port}

	reply, err := sock.Exchange(ctx, addr, devStatusMessage, timeout, func(payload []byte) bool {
		cmd, _, err := decodeResponse(payload)
		return err == nil && cmd == cmdDevStatus
	})
	if err != nil {
		return nil, err
	}

	_, data, err := decodeResponse(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: devStatus from %s: %w", light.ErrDecode, addr, err)
	}
	var status statusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("%w: devStatus from %s: %w", light.ErrDecode, addr, err)
	}

	l := &Light{
		State: light.NewState(light.FamilyGovee, dev.Device, fmt.Sprintf("Govee Light (%s)", dev.Device), true, light.Initial{
			On:         bool(status.OnOff),
			Brightness: uint8(max(0, min(status.Brightness, int(light.MaxBrightness)))),
			Red:        status.Color.R,
			Green:      status.Color.G,
			Blue:       status.Color.B,
		}),
		sock: sock.Acquire(),
		addr: addr,
		sku:  dev.SKU,
	}

	log.Debug().
		Str("id", l.ID()).
		Stringer("address", addr).
		Str("sku", l.sku).
		Bool("on", l.IsOn()).
		Msg("Govee light connected")

	return l, nil
}

// SKU returns the model reported in the scan reply
func (l *Light) SKU() string {
	return l.sku
}

// Address returns the device control address
func (l *Light) Address() string {
	return l.addr.String()
}

// Close releases the light's reference on the shared socket
func (l *Light) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.sock.Release()
	})
	return err
}

// SetOn switches the light on or off
func (l *Light) SetOn(ctx context.Context, on bool) error {
	if err := l.sock.Send(ctx, l.addr, turnMessage(on)); err != nil {
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
	if err := l.sock.Send(ctx, l.addr, brightnessMessage(pct)); err != nil {
		return err
	}
	l.StoreBrightness(pct)
	return nil
}

// SetColor sets the RGB color
func (l *Light) SetColor(ctx context.Context, r, g, b uint8) error {
	if err := l.sock.Send(ctx, l.addr, colorMessage(r, g, b)); err != nil {
		return err
	}
	l.StoreColor(r, g, b)
	return nil
}
