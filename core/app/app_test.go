package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
)

type counter struct {
	Key string
	N   int
}

type op = dispatch.Sync[counter]

var incr = dispatch.Write(func(s *counter) error {
	s.N++
	return nil
}).Named("incr")

func newTestApp(t *testing.T, config Config[counter]) *App[counter, op] {
	t.Helper()
	if config.Context == nil {
		config.Context = t.Context()
	}
	a, err := New[counter, op](config)
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a
}

func TestApp_actor_per_key(t *testing.T) {
	a := newTestApp(t, Config[counter]{
		Init: func(key string) *counter { return &counter{Key: key} },
	})

	for range 3 {
		require.NoError(t, a.Send(t.Context(), "a", incr))
	}
	require.NoError(t, a.Send(t.Context(), "b", incr))
	require.Equal(t, []string{"a", "b"}, a.Keys())

	res, err := a.Forget(t.Context(), "a")
	require.NoError(t, err)
	require.Equal(t, "a", res.State.Key)
	require.Equal(t, 3, res.State.N)
	require.Equal(t, []string{"b"}, a.Keys())

	_, err = a.Forget(t.Context(), "a")
	require.ErrorIs(t, err, runner.ErrUnknownActor)
}

func TestApp_concurrent_lookup_spawns_once(t *testing.T) {
	a := newTestApp(t, Config[counter]{})

	var wg sync.WaitGroup
	refs := make([]runner.Ref[counter, op], 16)
	for i := range refs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := a.Actor(t.Context(), "shared")
			if err != nil {
				t.Error(err)
			}
			refs[i] = ref
		}()
	}
	wg.Wait()

	for _, ref := range refs {
		require.Equal(t, refs[0].ID(), ref.ID())
	}
	require.Equal(t, 1, a.Router().Actors())
}

func TestApp_Shutdown(t *testing.T) {
	a, err := New[counter, op](Config[counter]{})
	require.NoError(t, err)
	require.NoError(t, a.Send(t.Context(), "k", incr))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	select {
	case <-a.Done():
	default:
		t.Fatal("Done() should be closed after Shutdown")
	}
}

func TestApp_Stop(t *testing.T) {
	a, err := New[counter, op](Config[counter]{})
	require.NoError(t, err)

	a.Stop()
	// Should be idempotent
	a.Stop()

	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() should be closed after Stop")
	}
}

func TestApp_invalid_router_options(t *testing.T) {
	_, err := New[counter, op](Config[counter]{Router: runner.RouterOptions{MaxShards: -1}})
	require.ErrorIs(t, err, runner.ErrInvalidOptions)
}

func TestAffinity(t *testing.T) {
	require.Equal(t, Affinity("user:1"), Affinity("user:1"))
	require.NotEqual(t, Affinity("user:1"), Affinity("user:2"))
	require.NotZero(t, Affinity(""))
}

func TestApp_Forget_keeps_key_when_kill_fails(t *testing.T) {
	a := newTestApp(t, Config[counter]{})
	require.NoError(t, a.Send(t.Context(), "k", incr))

	a.Stop()
	_, err := a.Forget(t.Context(), "k")
	require.ErrorIs(t, err, runner.ErrKillUnacknowledged)
	require.Equal(t, []string{"k"}, a.Keys())
}
