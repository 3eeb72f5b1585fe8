package mailbox

import (
	"context"
	"fmt"
	"sync"
)

type (
	// Sender is the producing half of a [Channel]. Refs and proxies only
	// ever hold a Sender.
	Sender[T any] interface {
		TrySend(v T) error
		SendBlocking(v T) error
		Send(ctx context.Context, v T) error
	}

	// Receiver is the consuming half of a [Channel].
	Receiver[T any] interface {
		RecvMany(ctx context.Context, max int) ([]T, error)
		TryRecvMany(max int) ([]T, error)
	}
)

// Channel is a bounded multi-producer queue.
type Channel[T any] struct {
	buf  chan T
	done chan struct{}
	once sync.Once

	// senders hold mu shared while they may still write to buf; Close and
	// receivers observing the close take it exclusively so nothing lands in
	// buf after the close has been settled.
	mu sync.RWMutex
}

// New creates a channel holding at most capacity messages.
func New[T any](capacity int) (*Channel[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Channel[T]{
		buf:  make(chan T, capacity),
		done: make(chan struct{}),
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew[T any](capacity int) *Channel[T] {
	c, err := New[T](capacity)
	if err != nil {
		panic(err)
	}
	return c
}

// TrySend enqueues v without waiting.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Closed() {
		return ErrClosed
	}
	select {
	case c.buf <- v:
		return nil
	default:
		return ErrFull
	}
}

// SendBlocking enqueues v, parking the caller until there is capacity or
// the channel is closed.
func (c *Channel[T]) SendBlocking(v T) error {
	return c.Send(context.Background(), v)
}

// Send enqueues v, waiting for capacity, channel close or ctx cancellation.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Closed() {
		return ErrClosed
	}

	// fast path, keeps a closed-and-full race from picking done
	select {
	case c.buf <- v:
		return nil
	default:
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-c.done:
		return ErrClosed
	case c.buf <- v:
		return nil
	}
}

// RecvMany waits until at least one message is available and returns up to
// max of them. It returns an empty batch and a nil error once the channel is
// closed and drained.
func (c *Channel[T]) RecvMany(ctx context.Context, max int) ([]T, error) {
	if max <= 0 {
		max = 1
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v := <-c.buf:
		out := make([]T, 1, min(max, len(c.buf)+1))
		out[0] = v
		return c.fill(out, max), nil
	case <-c.done:
		c.settle()
		return c.fill(nil, max), nil
	}
}

// TryRecvMany returns up to max buffered messages without waiting.
func (c *Channel[T]) TryRecvMany(max int) ([]T, error) {
	if max <= 0 {
		max = 1
	}
	closed := c.Closed()
	if closed {
		c.settle()
	}
	out := c.fill(nil, max)
	if len(out) > 0 {
		return out, nil
	}
	if closed {
		return nil, ErrClosed
	}
	return nil, ErrEmpty
}

// Close stops the channel from accepting messages. It is idempotent.
func (c *Channel[T]) Close() {
	c.once.Do(func() {
		close(c.done)
		c.settle()
	})
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed when the channel is closed.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

// Len returns the number of buffered messages.
func (c *Channel[T]) Len() int { return len(c.buf) }

// Cap returns the capacity given to New.
func (c *Channel[T]) Cap() int { return cap(c.buf) }

// settle waits for senders that raced a close to finish writing.
func (c *Channel[T]) settle() {
	c.mu.Lock()
	//lint:ignore SA2001 empty critical section is the barrier
	c.mu.Unlock()
}

func (c *Channel[T]) fill(out []T, max int) []T {
	for len(out) < max {
		select {
		case v := <-c.buf:
			out = append(out, v)
		default:
			return out
		}
	}
	return out
}

var (
	_ Sender[any]   = (*Channel[any])(nil)
	_ Receiver[any] = (*Channel[any])(nil)
)
