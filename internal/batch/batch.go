// Package batch runs a set of independent tasks concurrently and collects the
// results of the ones that succeed.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work producing a T
type Task[T any] func(ctx context.Context) (T, error)

// Batch accumulates tasks until Run is called
type Batch[T any] struct {
	mu    sync.Mutex
	tasks []Task[T]
	limit int
}

// New creates an empty batch with no concurrency limit
func New[T any]() *Batch[T] {
	return &Batch[T]{}
}

// NewWithLimit creates an empty batch running at most limit tasks at once.
// limit <= 0 means unbounded.
func NewWithLimit[T any](limit int) *Batch[T] {
	return &Batch[T]{limit: limit}
}

// Push adds a task to the batch
func (b *Batch[T]) Push(task Task[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = append(b.tasks, task)
}

// Len returns the number of pending tasks
func (b *Batch[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

// Run executes every pending task and waits for all of them.
// Results of successful tasks are returned in completion order; failed
// and panicking tasks are dropped. The batch is empty afterwards.
// Cancelling ctx cancels every in-flight task.
func (b *Batch[T]) Run(ctx context.Context) []T {
	b.mu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]T, 0, len(tasks))
	)
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}

	for _, task := range tasks {
		g.Go(func() error {
			res, err := runTask(ctx, task)
			if err != nil {
				return nil
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// runTask converts a panic into an error so one bad task cannot take down the batch
func runTask[T any](ctx context.Context, task Task[T]) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Batch task panicked")
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
