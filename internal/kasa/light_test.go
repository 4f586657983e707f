package kasa

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/light"
)

const stubSysInfo = `{"system":{"get_sysinfo":{"alias":"Desk Lamp","mic_mac":"50C7BF000001","is_color":1,` +
	`"light_state":{"on_off":1,"brightness":80,"hue":0,"saturation":100},"err_code":0}}}`

// stubBulb is a loopback Kasa bulb. reply maps a decrypted request to the
// plaintext answer. Requests are recorded in arrival order.
type stubBulb struct {
	ln    net.Listener
	reply func(req []byte) []byte
	chunk int // if > 0 the reply is written in pieces of this size

	mu       sync.Mutex
	requests [][]byte
}

func newStubBulb(t *testing.T, reply func(req []byte) []byte) *stubBulb {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &stubBulb{ln: ln, reply: reply}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *stubBulb) addr() string { return s.ln.Addr().String() }

func (s *stubBulb) recorded() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.requests...)
}

func (s *stubBulb) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubBulb) handle(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, body); err != nil {
		return
	}
	req, err := Decrypt(append(header, body...))
	if err != nil {
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	resp := s.reply(req)
	if resp == nil {
		return
	}
	frame := Encrypt(resp)
	if s.chunk <= 0 {
		conn.Write(frame)
		return
	}
	for len(frame) > 0 {
		n := min(s.chunk, len(frame))
		conn.Write(frame[:n])
		frame = frame[n:]
		time.Sleep(5 * time.Millisecond)
	}
}

// echoOrSysInfo answers sysinfo with stubSysInfo and echoes everything else
func echoOrSysInfo(req []byte) []byte {
	if string(req) == string(sysInfoRequest) {
		return []byte(stubSysInfo)
	}
	return req
}

func connectStub(t *testing.T, s *stubBulb) *Light {
	t.Helper()
	l, err := Connect(context.Background(), NewClient(s.addr(), time.Second))
	require.NoError(t, err)
	return l
}

func TestConnect_SysInfo(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	l := connectStub(t, s)

	assert.Equal(t, "kasa::50C7BF000001", l.ID())
	assert.Equal(t, "Desk Lamp", l.Name())
	assert.True(t, l.IsOn())
	assert.True(t, l.SupportsColor())
	assert.Equal(t, uint8(80), l.Brightness())
	// hsl(0,100,80)
	assert.Equal(t, []uint8{255, 153, 153}, []uint8{l.Red(), l.Green(), l.Blue()})
	assert.JSONEq(t, `{"system":{"get_sysinfo":{}}}`, string(s.recorded()[0]))
}

func TestConnect_OffBulbUsesDefaultOnState(t *testing.T) {
	s := newStubBulb(t, func(req []byte) []byte {
		return []byte(`{"system":{"get_sysinfo":{"alias":"Off","mac":"AA:BB","is_color":false,` +
			`"light_state":{"on_off":0,"dft_on_state":{"brightness":40,"hue":120,"saturation":100}}}}}`)
	})
	l := connectStub(t, s)

	assert.Equal(t, "kasa::AA:BB", l.ID(), "mac is used when mic_mac is absent")
	assert.False(t, l.IsOn())
	assert.False(t, l.SupportsColor())
	assert.Equal(t, uint8(40), l.Brightness())
	assert.Equal(t, []uint8{0, 204, 0}, []uint8{l.Red(), l.Green(), l.Blue()})
}

func TestConnect_ChunkedResponse(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	s.chunk = 7
	l := connectStub(t, s)
	assert.Equal(t, "Desk Lamp", l.Name())
}

func TestConnect_DecodeFailure(t *testing.T) {
	s := newStubBulb(t, func(req []byte) []byte { return []byte(`{"system":{}}`) })

	_, err := Connect(context.Background(), NewClient(s.addr(), time.Second))
	assert.True(t, errors.Is(err, light.ErrDecode), "got %v", err)
}

func TestConnect_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = Connect(context.Background(), NewClient(addr, time.Second))
	assert.True(t, errors.Is(err, light.ErrTransport), "got %v", err)
}

func TestSend_TruncatedResponseTimesOut(t *testing.T) {
	// Announces a long body but sends only part of it and keeps the socket open
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		frame := Encrypt([]byte(`{"system":{"get_sysinfo":{"alias":"x"}}}`))
		conn.Write(frame[:12])
		time.Sleep(time.Second)
	}()

	start := time.Now()
	_, err = NewClient(ln.Addr().String(), 100*time.Millisecond).Send(context.Background(), sysInfoRequest)
	assert.True(t, errors.Is(err, light.ErrTransport), "got %v", err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSetOn(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	l := connectStub(t, s)
	require.NoError(t, l.SetOn(context.Background(), false))
	assert.False(t, l.IsOn())

	require.NoError(t, l.SetOn(context.Background(), true))
	assert.True(t, l.IsOn())

	reqs := s.recorded()
	require.Len(t, reqs, 3)
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":{"on_off":0,"transition_period":0}}}`, string(reqs[1]))
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":{"on_off":1,"transition_period":0}}}`, string(reqs[2]))
}

func TestSetColor(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	l := connectStub(t, s)

	require.NoError(t, l.SetColor(context.Background(), 0, 0, 255))
	assert.Equal(t, []uint8{0, 0, 255}, []uint8{l.Red(), l.Green(), l.Blue()})

	reqs := s.recorded()
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":`+
		`{"on_off":1,"hue":240,"saturation":100,"brightness":50,"transition_period":0}}}`, string(reqs[len(reqs)-1]))
}

func TestSetBrightness(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	l := connectStub(t, s)

	require.NoError(t, l.SetBrightness(context.Background(), 30))
	assert.Equal(t, uint8(30), l.Brightness())

	reqs := s.recorded()
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":`+
		`{"on_off":1,"brightness":30,"transition_period":0}}}`, string(reqs[len(reqs)-1]))

	err := l.SetBrightness(context.Background(), 101)
	assert.True(t, errors.Is(err, light.ErrOutOfRange))
	assert.Equal(t, uint8(30), l.Brightness())
	assert.Len(t, s.recorded(), len(reqs), "rejected brightness sends nothing")
}

func TestSetOn_DeviceError(t *testing.T) {
	s := newStubBulb(t, func(req []byte) []byte {
		if string(req) == string(sysInfoRequest) {
			return []byte(stubSysInfo)
		}
		return []byte(`{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":{"err_code":-1,"err_msg":"module not support"}}}`)
	})
	l := connectStub(t, s)
	before := l.IsOn()

	err := l.SetOn(context.Background(), !before)
	assert.True(t, errors.Is(err, light.ErrDevice), "got %v", err)
	assert.Equal(t, before, l.IsOn(), "cache unchanged on failure")
}

func TestSetOn_TransportFailureLeavesCache(t *testing.T) {
	s := newStubBulb(t, echoOrSysInfo)
	l := connectStub(t, s)
	s.ln.Close()

	err := l.SetOn(context.Background(), false)
	assert.True(t, errors.Is(err, light.ErrTransport), "got %v", err)
	assert.True(t, l.IsOn())
}

func TestSetOn_Cancelled(t *testing.T) {
	s := newStubBulb(t, func(req []byte) []byte {
		if string(req) == string(sysInfoRequest) {
			return []byte(stubSysInfo)
		}
		time.Sleep(time.Second)
		return req
	})
	l := connectStub(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, l.SetOn(ctx, false))
	assert.True(t, l.IsOn())
}

func TestIntegration_Discover(t *testing.T) {
	good := newStubBulb(t, echoOrSysInfo)
	bad := newStubBulb(t, func(req []byte) []byte { return []byte(`[]`) })

	cfg := config.Default()
	cfg.Kasa.Enabled = true
	cfg.Kasa.Addresses = []string{good.addr(), bad.addr()}

	var in Integration
	require.True(t, in.Preflight(cfg))

	lights, err := in.Discover(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, lights, 1)
	assert.Equal(t, "kasa::50C7BF000001", lights[0].ID())
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.5:9999", withDefaultPort("10.0.0.5"))
	assert.Equal(t, "10.0.0.5:1234", withDefaultPort("10.0.0.5:1234"))
}

func TestMessages(t *testing.T) {
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":{"on_off":1,"transition_period":0}}}`,
		string(onOffMessage(true)))
	assert.JSONEq(t, `{"smartlife.iot.smartbulb.lightingservice":{"transition_light_state":{"on_off":1,"hue":10,"saturation":20,"brightness":30,"transition_period":0}}}`,
		string(colorMessage(10, 20, 30)))
}
