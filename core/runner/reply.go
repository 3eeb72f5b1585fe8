package runner

import (
	"context"
	"sync"
)

// Reply is a single-use reply slot. The first Resolve or Reject wins; later
// calls are ignored. All methods are safe on a nil Reply, which lets
// messages leave their reply unset.
type Reply[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func NewReply[T any]() *Reply[T] {
	return &Reply[T]{done: make(chan struct{})}
}

// Resolve delivers v. It reports whether this call settled the reply.
func (r *Reply[T]) Resolve(v T) bool { return r.settle(v, nil) }

// Reject delivers err. It reports whether this call settled the reply.
func (r *Reply[T]) Reject(err error) bool {
	var zero T
	return r.settle(zero, err)
}

// Wait blocks until the reply is settled or ctx is done.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-r.done:
		return r.val, r.err
	}
}

// Done is closed once the reply is settled.
func (r *Reply[T]) Done() <-chan struct{} { return r.done }

func (r *Reply[T]) settle(v T, err error) (ok bool) {
	if r == nil {
		return false
	}
	r.once.Do(func() {
		r.val, r.err = v, err
		close(r.done)
		ok = true
	})
	return ok
}
