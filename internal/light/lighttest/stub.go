// Package lighttest provides an in-memory Light for exercising callers of the
// capability contract without a network.
package lighttest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dokzlo13/cutelights/internal/light"
)

var _ light.Light = (*Stub)(nil)

// ErrStub is returned by a Stub configured to fail
var ErrStub = errors.New("stub failure")

// Call records one mutator invocation
type Call struct {
	Op         string
	On         bool
	Brightness uint8
	R, G, B    uint8
}

// Stub implements light.Light. Every mutator sleeps Delay, then fails if
// Fail is set, otherwise updates the cache.
type Stub struct {
	*light.State

	Delay time.Duration
	Fail  bool

	mu    sync.Mutex
	calls []Call
}

// New creates a stub light in the given family
func New(family, vendorID string) *Stub {
	return &Stub{
		State: light.NewState(family, vendorID, "Stub "+vendorID, true, light.Initial{}),
	}
}

// Calls returns a copy of the recorded invocations
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Stub) record(c Call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *Stub) wait(ctx context.Context) error {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.Fail {
		return ErrStub
	}
	return nil
}

func (s *Stub) SetOn(ctx context.Context, on bool) error {
	s.record(Call{Op: "set_on", On: on})
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.StoreOn(on)
	return nil
}

func (s *Stub) SetBrightness(ctx context.Context, pct uint8) error {
	s.record(Call{Op: "set_brightness", Brightness: pct})
	if err := light.CheckBrightness(pct); err != nil {
		return err
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.StoreBrightness(pct)
	return nil
}

func (s *Stub) SetColor(ctx context.Context, r, g, b uint8) error {
	s.record(Call{Op: "set_color", R: r, G: g, B: b})
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.StoreColor(r, g, b)
	return nil
}
