// Package future provides a deferred result that is submitted now and
// completed later by the simulation's own forward progress.
//
// A Future is completed exactly once, either resolved with a value or
// rejected with an error. Completion callbacks run synchronously on the
// goroutine that completes the future, in the order they were registered.
// No scheduler is involved: the producer decides when Resolve or Reject is
// called, typically from inside a clock tick.
package future

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrPending is returned by Result when the future has not completed yet.
var ErrPending = errors.New("future: result is still pending")

// Callback is invoked once when a future completes.
type Callback[T any] func(value T, err error)

// Future holds a result that becomes available at some later tick.
type Future[T any] struct {
	lock      sync.Mutex
	done      bool
	value     T
	err       error
	callbacks []Callback[T]
	ready     chan struct{}
}

// New creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{
		ready: make(chan struct{}),
	}
}

// Resolved creates a future that is already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)

	return f
}

// Rejected creates a future that is already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)

	return f
}

// Resolve completes the future with a value. It returns false and changes
// nothing if the future has already completed.
func (f *Future[T]) Resolve(v T) bool {
	return f.complete(v, nil)
}

// Reject completes the future with an error. A nil error is not a valid
// rejection reason and panics. It returns false and changes nothing if the
// future has already completed.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		panic("future: cannot reject with a nil error")
	}

	var zero T

	return f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.lock.Lock()
	if f.done {
		f.lock.Unlock()
		return false
	}

	f.done = true
	f.value = v
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.ready)
	f.lock.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}

	return true
}

// OnComplete registers a callback. If the future has already completed, the
// callback runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(cb Callback[T]) {
	f.lock.Lock()
	if !f.done {
		f.callbacks = append(f.callbacks, cb)
		f.lock.Unlock()

		return
	}

	v, err := f.value, f.err
	f.lock.Unlock()

	cb(v, err)
}

// Done tells if the future has been resolved or rejected.
func (f *Future[T]) Done() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.done
}

// Result returns the value and the rejection error of a completed future.
// For a pending future it returns ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.done {
		var zero T
		return zero, ErrPending
	}

	return f.value, f.err
}

// Ready returns a channel that is closed when the future completes.
func (f *Future[T]) Ready() <-chan struct{} {
	return f.ready
}

// Wait blocks until the future completes or ctx is done. It must not be
// called from the goroutine that drives the clock, since nothing else would
// ever complete the future.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.ready:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "future: wait abandoned")
	}
}

// Then derives a future whose value is produced by applying fn to the
// resolved value of f. Rejections pass through unchanged.
func Then[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	out := New[U]()

	f.OnComplete(func(v T, err error) {
		if err != nil {
			out.Reject(err)
			return
		}

		out.Resolve(fn(v))
	})

	return out
}
