package kasa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dokzlo13/cutelights/internal/jsonutil"
	"github.com/dokzlo13/cutelights/internal/light"
)

// DefaultPort is the bulb's control port
const DefaultPort = "9999"

// readChunk is the size of each read into the growing response buffer
const readChunk = 4096

// Client performs one framed request/response exchange per call, each on a
// fresh connection
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewClient creates a client for address (ip or ip:port).
// timeout bounds a whole exchange; 0 means only ctx bounds it.
func NewClient(address string, timeout time.Duration) *Client {
	return &Client{addr: withDefaultPort(address), timeout: timeout}
}

// Addr returns the dialed host:port
func (c *Client) Addr() string {
	return c.addr
}

func withDefaultPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, DefaultPort)
}

// Send writes one framed request and reads until the accumulated bytes
// decrypt to a complete JSON document, which is returned as plaintext.
func (c *Client) Send(ctx context.Context, request []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", light.ErrTransport, c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Unblock pending I/O if ctx is cancelled without a deadline
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(Encrypt(request)); err != nil {
		return nil, c.ioError(ctx, "write", err)
	}

	return readResponse(ctx, conn, c.addr)
}

func readResponse(ctx context.Context, r io.Reader, addr string) ([]byte, error) {
	buf := make([]byte, 0, readChunk)
	chunk := make([]byte, readChunk)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)

		if len(buf) >= headerSize {
			plain, decErr := Decrypt(buf)
			if decErr == nil && jsonutil.IsValid(plain) {
				return plain, nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %s closed connection after %d bytes without a complete response",
					light.ErrDecode, addr, len(buf))
			}
			return nil, ioError(ctx, addr, "read", err)
		}
	}
}

func (c *Client) ioError(ctx context.Context, op string, err error) error {
	return ioError(ctx, c.addr, op, err)
}

func ioError(ctx context.Context, addr, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%w: %s %s: %w", light.ErrTransport, op, addr, err)
}
