package govee

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/cutelights/internal/light"
)

// statusBufferSize bounds a devStatus reply
const statusBufferSize = 1024

// Socket is the control socket shared by every Govee light of one discovery.
// It is reference counted: the last Release closes it. At most one awaited
// receive runs at a time.
type Socket struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn

	recvMu sync.Mutex
	// scanMu keeps discoveries sharing the socket from reading it concurrently
	scanMu sync.Mutex

	mu     sync.Mutex
	refs   int
	closed bool
}

var (
	sharedMu sync.Mutex
	shared   = make(map[int]*Socket)
)

// Shared returns a reference on the open socket bound to port, binding a new one
// once every reference on the previous socket has been released.
func Shared(port int) (*Socket, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if s, ok := shared[port]; ok && s.tryAcquire() {
		return s, nil
	}
	s, err := Listen(port)
	if err != nil {
		return nil, err
	}
	shared[port] = s
	return s, nil
}

// Listen binds a new socket on every interface
func Listen(port int) (*Socket, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: bind udp :%d: %w", light.ErrTransport, port, err)
	}
	return newSocket(conn), nil
}

func newSocket(conn *net.UDPConn) *Socket {
	return &Socket{
		conn: conn,
		pc:   ipv4.NewPacketConn(conn),
		refs: 1,
	}
}

// LocalAddr returns the bound address
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Acquire adds a reference
func (s *Socket) Acquire() *Socket {
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return s
}

// tryAcquire adds a reference unless the socket is already closed
func (s *Socket) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.refs++
	return true
}

// Release drops a reference and closes the socket when none remain
func (s *Socket) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.closed = true
	log.Debug().Str("adapter", light.FamilyGovee).Stringer("addr", s.conn.LocalAddr()).Msg("Closing shared socket")
	return s.conn.Close()
}

// Send writes one datagram
func (s *Socket) Send(ctx context.Context, addr *net.UDPAddr, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		return fmt.Errorf("%w: send to %s: %w", light.ErrTransport, addr, err)
	}
	return nil
}

// Exchange sends payload to addr and returns the first reply accepted by match.
// Datagrams from other sources, or rejected by match, are skipped.
// The wait is bounded by timeout and ctx.
func (s *Socket) Exchange(ctx context.Context, addr *net.UDPAddr, payload []byte, timeout time.Duration, match func([]byte) bool) ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", light.ErrTransport, err)
	}
	defer s.conn.SetReadDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := s.Send(ctx, addr, payload); err != nil {
		return nil, err
	}

	buf := make([]byte, statusBufferSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: no reply from %s within %s", light.ErrTransport, addr, timeout)
			}
			return nil, fmt.Errorf("%w: receive from %s: %w", light.ErrTransport, addr, err)
		}
		if !from.IP.Equal(addr.IP) {
			log.Trace().Str("adapter", light.FamilyGovee).Stringer("from", from).Msg("Ignoring datagram from another source")
			continue
		}
		reply := append([]byte(nil), buf[:n]...)
		if match == nil || match(reply) {
			return reply, nil
		}
	}
}
