// Package pool runs batches of independent tasks on a bounded worker pool.
//
// A pool is created per batch and torn down when the batch finishes, so a
// caller that runs its stages back to back gets a full barrier between them:
// no task of the next batch starts before every worker of the previous one
// has returned.
package pool

import (
	"context"
	"fmt"
	"sync"
)

// Task is a deferred unit of work: a plain record whose inputs are fully
// captured at construction and whose Execute call does the side effects.
type Task[T any] interface {
	Execute(ctx context.Context) (T, error)
}

// Result is the outcome of one task. Index is the submission position.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Option configures a Run call.
type Option func(*options)

type options struct {
	onDone func(index int, err error)
}

// WithOnDone registers a hook invoked after each task finishes, from the
// worker goroutine that ran it. The hook must be safe for concurrent use.
func WithOnDone(fn func(index int, err error)) Option {
	return func(o *options) { o.onDone = fn }
}

// Run executes all tasks with at most workers running concurrently and
// returns one Result per task, in submission order. Every task runs to
// completion regardless of other tasks' failures; the caller chooses a
// failure policy afterwards via FirstError or Partition.
func Run[T any](ctx context.Context, workers int, tasks []Task[T], opts ...Option) []Result[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result[T], len(tasks))
	indices := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				v, err := execute(ctx, tasks[i])
				results[i] = Result[T]{Index: i, Value: v, Err: err}
				if o.onDone != nil {
					o.onDone(i, err)
				}
			}
		}()
	}

	for i := range tasks {
		indices <- i
	}
	close(indices)
	wg.Wait()
	return results
}

// execute runs one task, converting a panic into an error so a single
// misbehaving job cannot take down the whole batch.
func execute[T any](ctx context.Context, t Task[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Execute(ctx)
}

// FirstError implements the fail-fast policy: it returns the error of the
// earliest-submitted failed task, or nil if every task succeeded.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Partition implements the collect-all policy: values of the tasks that
// succeeded, in submission order, and the full results of those that failed.
func Partition[T any](results []Result[T]) (converged []T, errored []Result[T]) {
	for _, r := range results {
		if r.Err != nil {
			errored = append(errored, r)
		} else {
			converged = append(converged, r.Value)
		}
	}
	return converged, errored
}
