package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChannel_invalid_capacity(t *testing.T) {
	_, err := New[int](0)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	require.Panics(t, func() { MustNew[int](-1) })
}

func TestChannel_capacity_one(t *testing.T) {
	ch := MustNew[string](1)

	require.NoError(t, ch.TrySend("a"))
	require.ErrorIs(t, ch.TrySend("b"), ErrFull)

	got, err := ch.RecvMany(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got)

	require.NoError(t, ch.TrySend("b"))
}

func TestChannel_recv_many_batches(t *testing.T) {
	ch := MustNew[int](8)
	for i := 0; i < 5; i++ {
		require.NoError(t, ch.TrySend(i))
	}

	got, err := ch.RecvMany(t.Context(), 3)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, got)

	got, err = ch.RecvMany(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, got)

	_, err = ch.TryRecvMany(1)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestChannel_close(t *testing.T) {
	ch := MustNew[int](4)
	require.NoError(t, ch.TrySend(1))
	require.NoError(t, ch.TrySend(2))

	ch.Close()
	ch.Close()
	require.True(t, ch.Closed())

	require.ErrorIs(t, ch.TrySend(3), ErrClosed)
	require.ErrorIs(t, ch.SendBlocking(3), ErrClosed)
	require.ErrorIs(t, ch.Send(t.Context(), 3), ErrClosed)

	// buffered messages survive the close
	got, err := ch.RecvMany(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)

	// then closure is signaled with an empty batch
	got, err = ch.RecvMany(t.Context(), 10)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ch.TryRecvMany(1)
	require.ErrorIs(t, err, ErrClosed)
}

func TestChannel_send_blocking_waits_for_capacity(t *testing.T) {
	ch := MustNew[int](1)
	require.NoError(t, ch.TrySend(1))

	sent := make(chan error, 1)
	go func() { sent <- ch.SendBlocking(2) }()

	select {
	case <-sent:
		t.Fatal("send returned while channel was full")
	case <-time.After(20 * time.Millisecond):
	}

	got, err := ch.RecvMany(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, []int{1}, got)

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}

	got, err = ch.RecvMany(t.Context(), 1)
	require.NoError(t, err)
	require.Equal(t, []int{2}, got)
}

func TestChannel_send_unblocked_by_close(t *testing.T) {
	ch := MustNew[int](1)
	require.NoError(t, ch.TrySend(1))

	sent := make(chan error, 1)
	go func() { sent <- ch.Send(context.Background(), 2) }()

	time.Sleep(10 * time.Millisecond)
	ch.Close()

	select {
	case err := <-sent:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestChannel_send_ctx(t *testing.T) {
	ch := MustNew[int](1)
	require.NoError(t, ch.TrySend(1))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, ch.Send(ctx, 2), context.DeadlineExceeded)
}

func TestChannel_recv_ctx(t *testing.T) {
	ch := MustNew[int](1)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := ch.RecvMany(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChannel_fifo_many_producers(t *testing.T) {
	const perProducer = 200
	ch := MustNew[[2]int](16)

	for p := 0; p < 4; p++ {
		go func(p int) {
			for i := 0; i < perProducer; i++ {
				_ = ch.Send(t.Context(), [2]int{p, i})
			}
		}(p)
	}

	last := map[int]int{0: -1, 1: -1, 2: -1, 3: -1}
	for n := 0; n < 4*perProducer; {
		batch, err := ch.RecvMany(t.Context(), 7)
		require.NoError(t, err)
		for _, v := range batch {
			require.Equal(t, last[v[0]]+1, v[1], "producer %d out of order", v[0])
			last[v[0]] = v[1]
		}
		n += len(batch)
	}
}
