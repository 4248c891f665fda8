package ldap

import (
	"context"
	"sync"
)

// Future holds the eventual outcome of an asynchronous LDAP operation.
//
// A Future settles exactly once, either resolved with a value or rejected
// with the error returned by the wrapped connection. The zero value is not
// usable; futures are created by Client operations, Resolved or Rejected.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already resolved with value.
func Resolved[T any](value T) *Future[T] {
	f := newFuture[T]()
	f.settle(value, nil)
	return f
}

// Rejected returns a future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.settle(zero, err)
	return f
}

// settle records the outcome. Only the first call has any effect.
func (f *Future[T]) settle(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result blocks until the future settles and returns its outcome.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the future to settle or for ctx to end, whichever comes
// first. When ctx ends first, ctx.Err() is returned and the underlying
// operation keeps running; the future still settles when it completes.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
