package dispatch

import (
	"context"
	"fmt"

	"github.com/WIGGLES-dev/pobox/core/borrow"
)

// Sync is a synchronous dispatch built from a closure.
type Sync[S any] struct {
	name   string
	access borrow.Access
	fn     func(*S) error
}

// Read builds a dispatch that reads the given fields.
func Read[S any](fields borrow.Mask, fn func(*S) error) Sync[S] {
	return Sync[S]{name: "read", access: borrow.Read(fields), fn: fn}
}

// Write builds a whole-state mutation.
func Write[S any](fn func(*S) error) Sync[S] {
	return Sync[S]{name: "write", access: borrow.Mut(), fn: fn}
}

// WriteFields builds a mutation that only claims the given fields, so it can
// run next to reads of other fields.
func WriteFields[S any](fields borrow.Mask, fn func(*S) error) Sync[S] {
	return Sync[S]{name: "write", access: borrow.Write(fields), fn: fn}
}

// Query builds a read that reports a value. The returned channel receives
// exactly one Result once the dispatch ran; it never fires if the message is
// dropped.
func Query[S any, R any](fields borrow.Mask, fn func(*S) (R, error)) (Sync[S], <-chan Result[R]) {
	out := make(chan Result[R], 1)
	d := Read[S](fields, func(s *S) error {
		v, err := fn(s)
		deliver(out, v, err)
		return err
	})
	d.name = "query"
	return d, out
}

// Update builds a whole-state mutation that reports a value.
func Update[S any, R any](fn func(*S) (R, error)) (Sync[S], <-chan Result[R]) {
	out := make(chan Result[R], 1)
	d := Write[S](func(s *S) error {
		v, err := fn(s)
		deliver(out, v, err)
		return err
	})
	d.name = "update"
	return d, out
}

// Named returns a copy labeled name.
func (d Sync[S]) Named(name string) Sync[S] {
	d.name = name
	return d
}

func (d Sync[S]) DispatchName() string   { return d.name }
func (d Sync[S]) IsAsync() bool          { return false }
func (d Sync[S]) Access() borrow.Access  { return d.access }
func (d Sync[S]) RunSync(state *S) error { return d.call(state) }

func (d Sync[S]) RunSyncMut(state *S) error { return d.call(state) }

func (d Sync[S]) Spawn(_ context.Context, state *S) <-chan error {
	return ready(ErrWrongFlavor)
}

func (d Sync[S]) SpawnMut(_ context.Context, state *S) <-chan error {
	return ready(ErrWrongFlavor)
}

func (d Sync[S]) call(state *S) error {
	if d.fn == nil {
		return nil
	}
	return d.fn(state)
}

// Async is an asynchronous dispatch built from a closure. Its work runs on
// its own goroutine and the runner waits on the returned channel.
type Async[S any] struct {
	name   string
	access borrow.Access
	fn     func(context.Context, *S) error
}

// AsyncRead builds an asynchronous read of the given fields.
func AsyncRead[S any](fields borrow.Mask, fn func(context.Context, *S) error) Async[S] {
	return Async[S]{name: "async_read", access: borrow.Read(fields), fn: fn}
}

// AsyncWrite builds an asynchronous whole-state mutation.
func AsyncWrite[S any](fn func(context.Context, *S) error) Async[S] {
	return Async[S]{name: "async_write", access: borrow.Mut(), fn: fn}
}

// Named returns a copy labeled name.
func (d Async[S]) Named(name string) Async[S] {
	d.name = name
	return d
}

func (d Async[S]) DispatchName() string  { return d.name }
func (d Async[S]) IsAsync() bool         { return true }
func (d Async[S]) Access() borrow.Access { return d.access }

func (d Async[S]) RunSync(*S) error    { return ErrWrongFlavor }
func (d Async[S]) RunSyncMut(*S) error { return ErrWrongFlavor }

func (d Async[S]) Spawn(ctx context.Context, state *S) <-chan error {
	return d.spawn(ctx, state)
}

func (d Async[S]) SpawnMut(ctx context.Context, state *S) <-chan error {
	return d.spawn(ctx, state)
}

func (d Async[S]) spawn(ctx context.Context, state *S) <-chan error {
	if d.fn == nil {
		return ready(nil)
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()
		done <- d.fn(ctx, state)
	}()
	return done
}

var (
	_ Dispatch[struct{}] = Sync[struct{}]{}
	_ Dispatch[struct{}] = Async[struct{}]{}
	_ Named              = Sync[struct{}]{}
)
