package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WIGGLES-dev/pobox/core/borrow"
)

type counter struct {
	Value int
	Label string
}

type custom struct{ Sync[counter] }

func TestFlavor(t *testing.T) {
	async, fixed := Flavor[counter, Sync[counter]]()
	require.True(t, fixed)
	require.False(t, async)

	async, fixed = Flavor[counter, Async[counter]]()
	require.True(t, fixed)
	require.True(t, async)

	_, fixed = Flavor[counter, Dispatch[counter]]()
	require.False(t, fixed)
}

func TestSync(t *testing.T) {
	st := &counter{}

	w := Write[counter](func(c *counter) error { c.Value++; return nil })
	require.False(t, w.IsAsync())
	require.True(t, w.Access().IsMut())
	require.NoError(t, w.RunSyncMut(st))
	require.Equal(t, 1, st.Value)

	require.ErrorIs(t, <-w.Spawn(t.Context(), st), ErrWrongFlavor)

	fields := borrow.LayoutOf[counter]().MustField("Value")
	r := Read[counter](fields, func(c *counter) error { return errors.New("nope") })
	require.False(t, r.Access().IsMut())
	require.Equal(t, fields, r.Access().Shared)
	require.EqualError(t, r.RunSync(st), "nope")
}

func TestQuery(t *testing.T) {
	st := &counter{Value: 41}
	q, res := Query[counter, int](borrow.MaskOf(0), func(c *counter) (int, error) {
		return c.Value + 1, nil
	})
	require.Equal(t, "query", NameOf(q))
	require.NoError(t, q.RunSync(st))

	r := <-res
	require.NoError(t, r.Err)
	require.Equal(t, 42, r.Value)

	// running twice never blocks
	require.NoError(t, q.RunSync(st))
}

func TestUpdate(t *testing.T) {
	st := &counter{}
	u, res := Update[counter, string](func(c *counter) (string, error) {
		c.Label = "set"
		return c.Label, nil
	})
	require.True(t, u.Access().IsMut())
	require.NoError(t, u.RunSyncMut(st))
	require.Equal(t, "set", (<-res).Value)
}

func TestAsync(t *testing.T) {
	st := &counter{}
	a := AsyncWrite[counter](func(ctx context.Context, c *counter) error {
		c.Value = 7
		return nil
	}).Named("seven")

	require.True(t, a.IsAsync())
	require.Equal(t, "seven", NameOf(a))
	require.ErrorIs(t, a.RunSyncMut(st), ErrWrongFlavor)
	require.NoError(t, Await(t.Context(), a.SpawnMut(t.Context(), st)))
	require.Equal(t, 7, st.Value)
}

func TestAwait_ctx(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, Await(ctx, make(chan error)), context.Canceled)
	require.NoError(t, Await(ctx, nil))
}

func TestNameOf(t *testing.T) {
	require.Equal(t, "dispatch.custom", NameOf(custom{}))
	require.Equal(t, "renamed", NameOf(custom{Sync: Write[counter](nil).Named("renamed")}))
}
