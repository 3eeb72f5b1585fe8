package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArena_alloc_get_free(t *testing.T) {
	a := New[string]()

	id := a.Alloc("a")
	require.NotZero(t, id)
	v, ok := a.Get(id)
	require.True(t, ok)
	require.Equal(t, "a", v)
	require.Equal(t, 1, a.Len())

	require.True(t, a.Free(id))
	require.False(t, a.Free(id))
	require.False(t, a.Contains(id))
	require.Zero(t, a.Len())
}

func TestArena_reuse_bumps_generation(t *testing.T) {
	a := New[int]()

	first := a.Alloc(1)
	require.True(t, a.Free(first))
	second := a.Alloc(2)

	require.NotEqual(t, first, second)
	require.Equal(t, first.slot(), second.slot())

	_, ok := a.Get(first)
	require.False(t, ok, "stale id must not resolve")
	v, ok := a.Get(second)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestArena_update(t *testing.T) {
	a := New[int]()
	id := a.Alloc(1)
	require.True(t, a.Update(id, func(v int) int { return v + 1 }))
	v, _ := a.Get(id)
	require.Equal(t, 2, v)

	require.False(t, a.Update(0, func(v int) int { return v }))
	require.False(t, a.Update(ID(99), func(v int) int { return v }))
}

func TestArena_unique_live_ids(t *testing.T) {
	a := New[int]()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = map[ID]bool{}
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := a.Alloc(j)
				mu.Lock()
				if ids[id] {
					t.Errorf("id %s issued twice", id)
				}
				ids[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1600, a.Len())
}
