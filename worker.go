package grvl

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const (
	defaultWorkerQueueSize = 16
)

// ErrWorkerClosed is returned by futures of jobs submitted to closed worker
var ErrWorkerClosed = errors.New("worker is closed")

// Worker runs submitted jobs one by one on a single background goroutine
type Worker struct {
	jobs   chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewWorker starts worker with given queue capacity
func NewWorker(queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultWorkerQueueSize
	}
	w := &Worker{
		jobs: make(chan func(), queueSize),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.done)
	for job := range w.jobs {
		job()
	}
}

// Close stops accepting jobs and waits for queued ones to finish
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) enqueue(job func()) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	w.jobs <- job
	return true
}

// Future is result of a job which will be available later
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed when result is ready
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until result is ready or ctx is done
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on worker. Jobs with canceled ctx resolve with ctx error without running
func Submit[T any](w *Worker, ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	future := newFuture[T]()
	job := func() {
		var zero T
		if err := ctx.Err(); err != nil {
			future.resolve(zero, err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				future.resolve(zero, errors.Errorf("job panicked: %v", r))
			}
		}()
		value, err := fn(ctx)
		future.resolve(value, err)
	}
	if !w.enqueue(job) {
		var zero T
		future.resolve(zero, ErrWorkerClosed)
	}
	return future
}
