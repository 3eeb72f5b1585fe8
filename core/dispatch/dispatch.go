// Package dispatch defines the unit of work a runner applies to actor state.
//
// Concrete dispatch types are normally generated from an actor's declared
// operations. The adapters in this package ([Read], [Write], [Query],
// [AsyncRead], ...) build the same thing by hand from closures, which is
// what tests and small actors use.
package dispatch

import (
	"context"
	"errors"

	"github.com/WIGGLES-dev/pobox/core/borrow"
	"github.com/WIGGLES-dev/pobox/internal/reflector"
)

var (
	// ErrWrongFlavor is returned when a runner calls the synchronous family
	// on an asynchronous dispatch, or the other way around.
	ErrWrongFlavor = errors.New("dispatch flavor mismatch")
	// ErrPanicked wraps a panic raised on an asynchronous dispatch's own
	// goroutine, where the runner cannot recover it.
	ErrPanicked = errors.New("dispatch panicked")
)

type (
	// Dispatch is one operation against a state of type S.
	//
	// IsAsync is fixed per concrete type and selects which family is valid:
	// RunSync/RunSyncMut for synchronous dispatches, Spawn/SpawnMut for
	// asynchronous ones. Runners call the Mut variants when Access is
	// [borrow.Mut].
	Dispatch[S any] interface {
		IsAsync() bool
		Access() borrow.Access

		RunSync(state *S) error
		RunSyncMut(state *S) error

		Spawn(ctx context.Context, state *S) <-chan error
		SpawnMut(ctx context.Context, state *S) <-chan error
	}

	// Named lets a dispatch choose the label used in logs and metrics.
	Named interface {
		DispatchName() string
	}

	// Result carries the value produced by a [Query] or [Update].
	Result[R any] struct {
		Value R
		Err   error
	}
)

// NameOf returns the label of d: its DispatchName if it has one, the Go
// type name otherwise.
func NameOf(d any) string {
	if n, ok := d.(Named); ok {
		if name := n.DispatchName(); name != "" {
			return name
		}
	}
	return reflector.TypeInfoOf(d).Name
}

// Flavor reports the flavor of D. fixed is false when D is an interface or
// otherwise cannot answer IsAsync from its zero value, i.e. individual
// values may be of either flavor.
func Flavor[S any, D Dispatch[S]]() (async bool, fixed bool) {
	var zero D
	if any(zero) == nil {
		return false, false
	}
	defer func() {
		if recover() != nil {
			async, fixed = false, false
		}
	}()
	return zero.IsAsync(), true
}

// Await waits for an asynchronous dispatch to complete.
func Await(ctx context.Context, done <-chan error) error {
	if done == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func ready(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}

func deliver[R any](ch chan Result[R], v R, err error) {
	select {
	case ch <- Result[R]{Value: v, Err: err}:
	default:
	}
}
