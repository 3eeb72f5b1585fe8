package proxy

import (
	"testing"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	Greeted []string
}

type op = dispatch.Sync[greeter]

func greet(name string) op {
	return dispatch.Write(func(s *greeter) error {
		s.Greeted = append(s.Greeted, name)
		return nil
	})
}

func TestProxy_install_once(t *testing.T) {
	r := runner.NewTestRouter[greeter, op](t, runner.RouterOptions{})
	original, err := r.Spawn(t.Context(), 0, nil)
	require.NoError(t, err)
	handler, err := r.Spawn(t.Context(), 0, nil)
	require.NoError(t, err)

	ref := Pure(original)
	_, proxied := ref.Proxied()
	require.False(t, proxied)
	require.Equal(t, original.ID(), ref.Deref().ID())

	p := New(handler)
	require.NoError(t, p.Install(ref))
	require.ErrorIs(t, p.Install(ref), ErrAlreadyProxied)
	require.ErrorIs(t, New(original).Install(ref), ErrAlreadyProxied)

	slot, proxied := ref.Proxied()
	require.True(t, proxied)
	inner, ok := p.Inner(slot)
	require.True(t, ok)
	require.Equal(t, original.ID(), inner.ID())
	require.Equal(t, 1, p.Len())

	_, ok = p.Inner(slot + 1)
	require.False(t, ok)
}

func TestProxy_deref_routes_to_handler(t *testing.T) {
	r := runner.NewTestRouter[greeter, op](t, runner.RouterOptions{})
	original, err := r.Spawn(t.Context(), 0, nil)
	require.NoError(t, err)
	handler, err := r.Spawn(t.Context(), 0, nil)
	require.NoError(t, err)

	ref := Pure(original)
	require.NoError(t, ref.Deref().Send(t.Context(), greet("before")))

	p := New(handler)
	require.NoError(t, p.Install(ref))
	require.NoError(t, ref.Deref().Send(t.Context(), greet("after")))

	inner, _ := p.Inner(0)
	res, err := inner.Kill(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"before"}, res.State.Greeted)

	res, err = p.Handler().Kill(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"after"}, res.State.Greeted)
}
