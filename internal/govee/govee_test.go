package govee

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

// fakeDevice answers scan requests with a unicast reply to the shared socket
// and devStatus requests to whoever sent them
type fakeDevice struct {
	t      *testing.T
	conn   *net.UDPConn
	mac    string
	status string
	noScan bool

	mu       sync.Mutex
	received []map[string]any
}

func newFakeDevice(t *testing.T, mac string) *fakeDevice {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeDevice{
		t:      t,
		conn:   conn,
		mac:    mac,
		status: `{"msg":{"cmd":"devStatus","data":{"onOff":1,"brightness":40,"color":{"r":10,"g":20,"b":30},"colorTemInKelvin":0}}}`,
	}
}

func (d *fakeDevice) addr() *net.UDPAddr {
	return d.conn.LocalAddr().(*net.UDPAddr)
}

func (d *fakeDevice) serve(shared *net.UDPAddr) {
	buf := make([]byte, 2048)
	for {
		n, from, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		var msg struct {
			Msg struct {
				Cmd  string         `json:"cmd"`
				Data map[string]any `json:"data"`
			} `json:"msg"`
		}
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			continue
		}

		d.mu.Lock()
		d.received = append(d.received, map[string]any{"cmd": msg.Msg.Cmd, "data": msg.Msg.Data})
		d.mu.Unlock()

		switch msg.Msg.Cmd {
		case cmdScan:
			if d.noScan {
				continue
			}
			reply := `{"msg":{"cmd":"scan","data":{"ip":"127.0.0.1","device":"` + d.mac + `","sku":"H6008","bleVersionHard":"3.01.01","bleVersionSoft":"1.03.01","wifiVersionHard":"1.00.10","wifiVersionSoft":"1.02.03"}}}`
			_, _ = d.conn.WriteToUDP([]byte(reply), shared)
		case cmdDevStatus:
			// a stray scan reply first, then the status
			_, _ = d.conn.WriteToUDP([]byte(`{"msg":{"cmd":"scan","data":{"ip":"127.0.0.1","device":"x"}}}`), from)
			_, _ = d.conn.WriteToUDP([]byte(d.status), from)
		}
	}
}

func (d *fakeDevice) commands() []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]map[string]any(nil), d.received...)
}

func loopbackSocket(t *testing.T) *Socket {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return newSocket(conn)
}

func testConfig(port int, addresses ...string) config.GoveeConfig {
	return config.GoveeConfig{
		Enabled:       true,
		Addresses:     addresses,
		ScanTimeout:   500,
		StatusTimeout: 500,
		DevicePort:    port,
	}
}

func TestDiscover_FakeDevice(t *testing.T) {
	sock := loopbackSocket(t)
	dev := newFakeDevice(t, "AA:BB:CC:DD:EE:FF:00:11")
	go dev.serve(sock.LocalAddr())

	lights, err := discoverOn(context.Background(), sock, dev.addr(), testConfig(dev.addr().Port, "127.0.0.1"))
	require.NoError(t, err)
	require.Len(t, lights, 1)

	l := lights[0].(*Light)
	assert.Equal(t, "govee::AA:BB:CC:DD:EE:FF:00:11", l.ID())
	assert.Equal(t, "Govee Light (AA:BB:CC:DD:EE:FF:00:11)", l.Name())
	assert.Equal(t, "H6008", l.SKU())
	assert.True(t, l.IsOn())
	assert.True(t, l.SupportsColor())
	assert.Equal(t, uint8(40), l.Brightness())
	assert.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{l.Red(), l.Green(), l.Blue()})

	// discovery reference plus the light's
	require.NoError(t, sock.Release())
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.True(t, sock.closed)
}

func TestDiscover_ScanTimeoutIsSuccess(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()

	silent, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer silent.Close()

	gcfg := testConfig(4003, "10.0.0.9")
	gcfg.ScanTimeout = 100

	start := time.Now()
	lights, err := discoverOn(context.Background(), sock, silent.LocalAddr().(*net.UDPAddr), gcfg)
	require.NoError(t, err)
	assert.Empty(t, lights)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDiscover_OneMillisecond(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()

	gcfg := testConfig(4003, "10.0.0.9")
	gcfg.ScanTimeout = 1

	lights, err := discoverOn(context.Background(), sock, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}, gcfg)
	require.NoError(t, err)
	assert.Empty(t, lights)
}

func TestDiscover_UnlistedAddressIgnored(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()
	dev := newFakeDevice(t, "11:22")
	go dev.serve(sock.LocalAddr())

	gcfg := testConfig(dev.addr().Port, "10.0.0.9")
	gcfg.ScanTimeout = 150

	lights, err := discoverOn(context.Background(), sock, dev.addr(), gcfg)
	require.NoError(t, err)
	assert.Empty(t, lights)
}

func TestDiscover_Cancelled(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := discoverOn(ctx, sock, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}, testConfig(4003, "10.0.0.9"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnect_StatusTimeout(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()
	dev := newFakeDevice(t, "11:22")

	_, err := connect(context.Background(), sock, scanResponse{IP: "127.0.0.1", Device: "11:22"}, dev.addr().Port, 50*time.Millisecond)
	assert.ErrorIs(t, err, light.ErrTransport)
}

func TestConnect_BooleanOnOff(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()
	dev := newFakeDevice(t, "11:22")
	dev.status = `{"msg":{"cmd":"devStatus","data":{"onOff":false,"brightness":5,"color":{"r":1,"g":2,"b":3}}}}`
	go dev.serve(sock.LocalAddr())

	l, err := connect(context.Background(), sock, scanResponse{IP: "127.0.0.1", Device: "11:22"}, dev.addr().Port, time.Second)
	require.NoError(t, err)
	defer l.Close()
	assert.False(t, l.IsOn())
	assert.Equal(t, uint8(5), l.Brightness())
}

func TestCommands(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()
	dev := newFakeDevice(t, "11:22")
	go dev.serve(sock.LocalAddr())

	l, err := connect(context.Background(), sock, scanResponse{IP: "127.0.0.1", Device: "11:22"}, dev.addr().Port, time.Second)
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	require.NoError(t, l.SetOn(ctx, false))
	require.NoError(t, l.SetBrightness(ctx, 75))
	require.NoError(t, l.SetColor(ctx, 255, 128, 0))
	assert.ErrorIs(t, l.SetBrightness(ctx, 150), light.ErrOutOfRange)

	assert.False(t, l.IsOn())
	assert.Equal(t, uint8(75), l.Brightness())
	assert.Equal(t, [3]uint8{255, 128, 0}, [3]uint8{l.Red(), l.Green(), l.Blue()})

	want := []map[string]any{
		{"cmd": "devStatus", "data": map[string]any{}},
		{"cmd": "turn", "data": map[string]any{"value": float64(0)}},
		{"cmd": "brightness", "data": map[string]any{"value": float64(75)}},
		{"cmd": "colorwc", "data": map[string]any{
			"color":            map[string]any{"r": float64(255), "g": float64(128), "b": float64(0)},
			"colorTemInKelvin": float64(7200),
		}},
	}
	assert.Eventually(t, func() bool { return len(dev.commands()) == len(want) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, want, dev.commands())
}

func TestSetOn_Cancelled(t *testing.T) {
	sock := loopbackSocket(t)
	defer sock.Release()
	l := &Light{
		State: light.NewState(light.FamilyGovee, "11:22", "x", true, light.Initial{}),
		sock:  sock.Acquire(),
		addr:  &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9},
	}
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.SetOn(ctx, true), context.Canceled)
	assert.False(t, l.IsOn())
}

func TestMessages(t *testing.T) {
	assert.JSONEq(t, `{"msg":{"cmd":"scan","data":{"account_topic":"reserve"}}}`, string(scanMessage))
	assert.JSONEq(t, `{"msg":{"cmd":"devStatus","data":{}}}`, string(devStatusMessage))
	assert.JSONEq(t, `{"msg":{"cmd":"turn","data":{"value":1}}}`, string(turnMessage(true)))
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

func TestDiscover_RepeatedReusesSocket(t *testing.T) {
	cfg := config.Default()
	cfg.Govee = testConfig(4003, "10.0.0.9")
	cfg.Govee.ScanTimeout = 50
	cfg.Govee.ListenPort = freeUDPPort(t)

	// stands in for a light from an earlier discovery
	held, err := Shared(cfg.Govee.ListenPort)
	require.NoError(t, err)

	for i := range 2 {
		lights, err := Integration{}.Discover(context.Background(), cfg)
		require.NoError(t, err, "discovery %d", i+1)
		assert.Empty(t, lights)
	}

	again, err := Shared(cfg.Govee.ListenPort)
	require.NoError(t, err)
	assert.Same(t, held, again)
	require.NoError(t, again.Release())
	require.NoError(t, held.Release())
	assert.True(t, held.closed)

	// once every reference is gone a fresh socket is bound
	fresh, err := Shared(cfg.Govee.ListenPort)
	require.NoError(t, err)
	defer fresh.Release()
	assert.NotSame(t, held, fresh)
}
