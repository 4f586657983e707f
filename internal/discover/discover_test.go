package discover_test

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/discover"
	"github.com/dokzlo13/cutelights/internal/kasa"
	"github.com/dokzlo13/cutelights/internal/light"
	"github.com/dokzlo13/cutelights/internal/light/lighttest"
)

type fakeIntegration struct {
	name    string
	enabled bool
	lights  []light.Light
	err     error
	delay   time.Duration
	called  bool
}

func (f *fakeIntegration) Name() string                 { return f.name }
func (f *fakeIntegration) Preflight(*config.Config) bool { return f.enabled }

func (f *fakeIntegration) Discover(ctx context.Context, _ *config.Config) ([]light.Light, error) {
	f.called = true
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.lights, f.err
}

func TestRun_MergesHealthyIntegrations(t *testing.T) {
	a := &fakeIntegration{name: "a", enabled: true, lights: []light.Light{lighttest.New(light.FamilyHue, "1"), lighttest.New(light.FamilyHue, "2")}}
	b := &fakeIntegration{name: "b", enabled: true, err: errors.New("boom")}
	c := &fakeIntegration{name: "c", enabled: true, lights: []light.Light{lighttest.New(light.FamilyKasa, "aa")}, delay: 20 * time.Millisecond}
	d := &fakeIntegration{name: "d", enabled: false, lights: []light.Light{lighttest.New(light.FamilyGovee, "zz")}}

	lights := discover.Run(context.Background(), config.Default(), a, b, c, d)

	ids := make([]string, 0, len(lights))
	for _, l := range lights {
		ids = append(ids, l.ID())
	}
	// c finishes last, so its lights come last
	assert.Equal(t, []string{"hue::1", "hue::2", "kasa::aa"}, ids)
	assert.False(t, d.called, "integration failing preflight must not run")
}

func TestRun_Nothing(t *testing.T) {
	assert.Empty(t, discover.Run(context.Background(), config.Default()))
	assert.Empty(t, discover.Lights(context.Background(), config.Default()))
}

func TestRun_Cancelled(t *testing.T) {
	slow := &fakeIntegration{name: "slow", enabled: true, lights: []light.Light{lighttest.New(light.FamilyHue, "1")}, delay: time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Empty(t, discover.Run(ctx, config.Default(), slow))
	assert.Less(t, time.Since(start), 5*time.Second)
}

// serveKasa answers every framed request with a fixed sysinfo document
func serveKasa(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	reply := kasa.Encrypt([]byte(`{"system":{"get_sysinfo":{"alias":"Lamp","mic_mac":"5091E3000001","is_color":1,"light_state":{"on_off":1,"hue":0,"saturation":100,"brightness":50}}}}`))

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				var header [4]byte
				if _, err := conn.Read(header[:]); err != nil {
					return
				}
				body := make([]byte, binary.BigEndian.Uint32(header[:]))
				_, _ = conn.Read(body)
				_, _ = conn.Write(reply)
			}()
		}
	}()
	return ln.Addr().String()
}

func TestLights_HueMisconfiguredKasaHealthy(t *testing.T) {
	cfg := config.Default()
	cfg.Hue.Enabled = true
	cfg.Hue.Username = "u"
	cfg.Kasa.Enabled = true
	cfg.Kasa.Addresses = []string{serveKasa(t)}

	lights := discover.Lights(context.Background(), cfg)
	require.Len(t, lights, 1)
	assert.Equal(t, "kasa::5091E3000001", lights[0].ID())
	assert.Equal(t, "Lamp", lights[0].Name())
}

func TestLights_IdentityFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Kasa.Enabled = true
	cfg.Kasa.Addresses = []string{serveKasa(t), "127.0.0.1:1"}

	pattern := regexp.MustCompile(`^(hue|kasa|govee)::`)
	for _, l := range discover.Lights(context.Background(), cfg) {
		assert.Regexp(t, pattern, l.ID())
	}
}
