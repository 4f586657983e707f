// Package frame accumulates light updates and applies them concurrently.
package frame

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/batch"
	"github.com/dokzlo13/cutelights/internal/light"
)

// Kind identifies the mutator an Op calls
type Kind int

const (
	KindSetOn Kind = iota
	KindSetBrightness
	KindSetColor
)

func (k Kind) String() string {
	switch k {
	case KindSetOn:
		return "set_on"
	case KindSetBrightness:
		return "set_brightness"
	case KindSetColor:
		return "set_color"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Op is one prepared update. Only the fields of its Kind are used.
type Op struct {
	Kind       Kind
	Light      light.Light
	On         bool
	Brightness uint8
	Red        uint8
	Green      uint8
	Blue       uint8
}

// Apply performs the update
func (o Op) Apply(ctx context.Context) error {
	switch o.Kind {
	case KindSetOn:
		return o.Light.SetOn(ctx, o.On)
	case KindSetBrightness:
		return o.Light.SetBrightness(ctx, o.Brightness)
	case KindSetColor:
		return o.Light.SetColor(ctx, o.Red, o.Green, o.Blue)
	default:
		return fmt.Errorf("unknown op kind %d", int(o.Kind))
	}
}

// Frame is a set of pending updates.
// A light in a pending frame must not be changed through another path while Run executes.
type Frame struct {
	mu    sync.Mutex
	ops   []Op
	limit int
}

// New creates an empty frame with unbounded concurrency
func New() *Frame {
	return &Frame{}
}

// NewWithLimit creates an empty frame applying at most limit updates at once.
// limit <= 0 means unbounded.
func NewWithLimit(limit int) *Frame {
	return &Frame{limit: limit}
}

// Push adds a prepared update
func (f *Frame) Push(op Op) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

// SetOn queues a power change
func (f *Frame) SetOn(l light.Light, on bool) {
	f.Push(Op{Kind: KindSetOn, Light: l, On: on})
}

// SetBrightness queues a brightness change
func (f *Frame) SetBrightness(l light.Light, pct uint8) {
	f.Push(Op{Kind: KindSetBrightness, Light: l, Brightness: pct})
}

// SetColor queues a color change
func (f *Frame) SetColor(l light.Light, r, g, b uint8) {
	f.Push(Op{Kind: KindSetColor, Light: l, Red: r, Green: g, Blue: b})
}

// Len returns the number of pending updates
func (f *Frame) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

// Clear drops every pending update without applying it
func (f *Frame) Clear() {
	f.mu.Lock()
	f.ops = nil
	f.mu.Unlock()
}

// Run applies every pending update concurrently and returns once all have finished.
// Failures are logged and otherwise ignored. No ordering between updates is implied.
// The frame is empty afterwards.
func (f *Frame) Run(ctx context.Context) {
	f.mu.Lock()
	ops := f.ops
	f.ops = nil
	f.mu.Unlock()

	if len(ops) == 0 {
		return
	}

	runID := uuid.NewString()
	start := time.Now()
	var failed atomic.Int32

	b := batch.NewWithLimit[struct{}](f.limit)
	for _, op := range ops {
		b.Push(func(ctx context.Context) (struct{}, error) {
			if err := op.Apply(ctx); err != nil {
				failed.Add(1)
				log.Debug().
					Err(err).
					Str("run_id", runID).
					Stringer("op", op.Kind).
					Str("light", op.Light.ID()).
					Msg("Frame update failed")
				return struct{}{}, err
			}
			return struct{}{}, nil
		})
	}
	b.Run(ctx)

	log.Debug().
		Str("run_id", runID).
		Int("ops", len(ops)).
		Int32("failed", failed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("Frame applied")
}
