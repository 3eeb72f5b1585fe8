package sf

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls sharing a key. Only the first caller
// runs fn; the others wait for its result.
type Group[T any] struct {
	group singleflight.Group
}

// Do runs fn once per key among concurrent callers. A caller whose ctx is
// done stops waiting; fn keeps running for the others.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (v T, shared bool, err error) {
	ch := g.group.DoChan(key, func() (any, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

// Forget makes the next Do for key run fn again even if a call is in flight.
func (g *Group[T]) Forget(key string) { g.group.Forget(key) }
