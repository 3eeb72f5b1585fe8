package sf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroup_dedupes(t *testing.T) {
	var (
		g     Group[int]
		calls atomic.Int32
		wg    sync.WaitGroup
		gate  = make(chan struct{})
	)
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := g.Do(t.Context(), "k", func() (int, error) {
				calls.Add(1)
				<-gate
				return 7, nil
			})
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		require.Equal(t, 7, v)
	}
}

func TestGroup_error(t *testing.T) {
	var g Group[string]
	boom := errors.New("boom")
	_, _, err := g.Do(t.Context(), "k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
}

func TestGroup_ctx(t *testing.T) {
	var g Group[int]
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	release := make(chan struct{})
	defer close(release)
	_, _, err := g.Do(ctx, "k", func() (int, error) {
		<-release
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
