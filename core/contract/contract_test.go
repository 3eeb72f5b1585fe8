package contract

import (
	"errors"
	"testing"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
	"github.com/stretchr/testify/require"
)

type lease struct {
	Quota int
}

type vault struct {
	Granted Contracts[lease, vault, dispatch.Sync[vault]]
	Spent   map[runner.ActorID]int
}

type op = dispatch.Sync[vault]

var errNoPermit = errors.New("no permit")

func spend(holder runner.ActorID, n int) op {
	return dispatch.Write(func(s *vault) error {
		p, ok := s.Granted.Lookup(holder)
		if !ok || s.Spent[holder]+n > p.Contract.Quota {
			return errNoPermit
		}
		if s.Spent == nil {
			s.Spent = map[runner.ActorID]int{}
		}
		s.Spent[holder] += n
		return nil
	})
}

func TestContracts_grant_lookup_revoke(t *testing.T) {
	var c Contracts[lease, vault, op]
	require.Zero(t, c.Len())

	_, ok := c.Lookup(1)
	require.False(t, ok)

	c.Grant(2, lease{Quota: 2}, runner.Ref[vault, op]{})
	c.Grant(1, lease{Quota: 1}, runner.Ref[vault, op]{})
	c.Grant(2, lease{Quota: 3}, runner.Ref[vault, op]{})
	require.Equal(t, 2, c.Len())

	p, ok := c.Lookup(2)
	require.True(t, ok)
	require.Equal(t, 3, p.Contract.Quota)

	var holders []runner.ActorID
	c.Each(func(h runner.ActorID, _ Permit[lease, vault, op]) bool {
		holders = append(holders, h)
		return true
	})
	require.Equal(t, []runner.ActorID{1, 2}, holders)

	p, ok = c.Revoke(1)
	require.True(t, ok)
	require.Equal(t, 1, p.Contract.Quota)
	_, ok = c.Revoke(1)
	require.False(t, ok)
	require.Equal(t, 1, c.Len())
}

func TestPermit_send_reaches_granting_actor(t *testing.T) {
	errs := make(chan error, 1)
	r := runner.NewTestRouter[vault, op](t, runner.RouterOptions{
		Options: runner.Options{OnError: func(err error) { errs <- err }},
	})
	v, err := r.Spawn(t.Context(), 0, nil)
	require.NoError(t, err)

	const holder runner.ActorID = 42
	permits := make(chan Permit[lease, vault, op], 1)
	grant := dispatch.Write(func(s *vault) error {
		permits <- s.Granted.Grant(holder, lease{Quota: 5}, v)
		return nil
	})
	require.NoError(t, v.Send(t.Context(), grant))
	p := <-permits

	require.NoError(t, p.Send(t.Context(), spend(holder, 3)))
	require.NoError(t, p.Send(t.Context(), spend(holder, 3)))
	require.ErrorIs(t, <-errs, errNoPermit)

	res, err := v.Kill(t.Context())
	require.NoError(t, err)
	require.Equal(t, 3, res.State.Spent[holder])
	require.Equal(t, 1, res.State.Granted.Len())
}
