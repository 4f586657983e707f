// Package blocking runs context-aware work on a single process-wide worker
// goroutine and blocks the caller until it finishes. It exists for bindings
// that need synchronous entry points; Go callers should call the light API directly.
package blocking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned once the executor has been shut down
var ErrClosed = errors.New("blocking executor closed")

// Task is one unit of work
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// Executor runs tasks one at a time on its own goroutine
type Executor struct {
	queue     chan job
	closing   chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

// New starts an executor
func New() *Executor {
	e := &Executor{
		queue:   make(chan job),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	defer close(e.stopped)
	for {
		select {
		case <-e.closing:
			return
		case j := <-e.queue:
			j.done <- execute(j)
		}
	}
}

// execute runs a single task with panic recovery
func execute(j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Blocking task panicked - worker continuing")
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return j.task(j.ctx)
}

// BlockOn runs task on the worker and waits for its result.
// If ctx ends before the task starts, ctx.Err() is returned; once started the
// task is awaited, observing ctx itself. Must not be called from inside a task.
func (e *Executor) BlockOn(ctx context.Context, task Task) error {
	j := job{ctx: ctx, task: task, done: make(chan error, 1)}

	select {
	case <-e.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case e.queue <- j:
	}

	return <-j.done
}

// Close stops the worker after the running task, if any, finishes
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.closing)
	})
	<-e.stopped
}

// Do runs fn on e and returns its value
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.BlockOn(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

var (
	defaultMu   sync.Mutex
	defaultExec *Executor
)

// Default returns the process-wide executor, starting it on first use
func Default() *Executor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultExec == nil {
		defaultExec = New()
		log.Debug().Msg("Blocking executor started")
	}
	return defaultExec
}

// BlockOn runs task on the process-wide executor
func BlockOn(ctx context.Context, task Task) error {
	return Default().BlockOn(ctx, task)
}

// Shutdown stops the process-wide executor if it was started.
// A later Default starts a fresh one.
func Shutdown() {
	defaultMu.Lock()
	e := defaultExec
	defaultExec = nil
	defaultMu.Unlock()

	if e != nil {
		e.Close()
		log.Debug().Msg("Blocking executor stopped")
	}
}
