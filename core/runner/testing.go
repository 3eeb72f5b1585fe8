package runner

import (
	"testing"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/stretchr/testify/require"
)

// NewTestRouter starts a router bound to t's lifetime.
func NewTestRouter[S any, D dispatch.Dispatch[S]](t *testing.T, opts RouterOptions) *Router[S, D] {
	t.Helper()
	if opts.Context == nil {
		opts.Context = t.Context()
	}
	r, err := NewRouter[S, D](opts)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

// NewTestIsolated starts a cooperative isolated runner bound to t's
// lifetime.
func NewTestIsolated[S any, D dispatch.Dispatch[S]](t *testing.T, opts IsolatedOptions[S]) *Isolated[S, D] {
	t.Helper()
	if opts.Context == nil {
		opts.Context = t.Context()
	}
	r, err := NewIsolated[S, D](opts)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}
