package borrow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type todos struct {
	Items  []string
	NextID int
	Owner  string
}

func TestTracker_disjoint_reads_then_exclusive(t *testing.T) {
	tr := NewTracker(NewLayout(2))

	r0, err := tr.TryAcquire(Read(MaskOf(0)))
	require.NoError(t, err)
	r1, err := tr.TryAcquire(Read(MaskOf(1)))
	require.NoError(t, err)

	_, err = tr.TryAcquire(Write(MaskOf(0, 1)))
	require.ErrorIs(t, err, ErrBorrowed)

	require.NoError(t, tr.Release(r0))
	_, err = tr.TryAcquire(Write(MaskOf(0, 1)))
	require.ErrorIs(t, err, ErrBorrowed)

	require.NoError(t, tr.Release(r1))
	w, err := tr.TryAcquire(Write(MaskOf(0, 1)))
	require.NoError(t, err)
	require.NoError(t, tr.Release(w))
	require.Zero(t, tr.Outstanding())
}

func TestTracker_rules(t *testing.T) {
	tests := []struct {
		name string
		held Access
		want Access
		ok   bool
	}{
		{"shared/shared same field", Read(MaskOf(0)), Read(MaskOf(0)), true},
		{"shared/exclusive same field", Read(MaskOf(0)), Write(MaskOf(0)), false},
		{"exclusive/shared same field", Write(MaskOf(0)), Read(MaskOf(0)), false},
		{"exclusive/exclusive same field", Write(MaskOf(0)), Write(MaskOf(0)), false},
		{"exclusive/exclusive disjoint", Write(MaskOf(0)), Write(MaskOf(1)), true},
		{"exclusive/shared disjoint", Write(MaskOf(0)), Read(MaskOf(2)), true},
		{"mut/anything", Mut(), Read(MaskOf(2)), false},
		{"anything/mut", Read(MaskOf(2)), Mut(), false},
		{"empty/mut", Read(nil), Mut(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(NewLayout(3))
			_, err := tr.TryAcquire(tt.held)
			require.NoError(t, err)

			require.Equal(t, tt.ok, tr.CanAcquire(tt.want))
			_, err = tr.TryAcquire(tt.want)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrBorrowed)
			}
		})
	}
}

func TestTracker_shared_released_by_last_reader(t *testing.T) {
	tr := NewTracker(NewLayout(1))

	a, err := tr.TryAcquire(Read(MaskOf(0)))
	require.NoError(t, err)
	b, err := tr.TryAcquire(Read(MaskOf(0)))
	require.NoError(t, err)

	require.NoError(t, tr.Release(a))
	require.False(t, tr.CanAcquire(Mut()), "second reader still holds field 0")

	require.NoError(t, tr.Release(b))
	require.True(t, tr.CanAcquire(Mut()))
}

func TestTracker_release_must_match(t *testing.T) {
	tr := NewTracker(NewLayout(1))
	g, err := tr.TryAcquire(Mut())
	require.NoError(t, err)

	require.NoError(t, tr.Release(g))
	require.ErrorIs(t, tr.Release(g), ErrUnknownGrant)
	require.ErrorIs(t, tr.Release(nil), ErrUnknownGrant)

	other := NewTracker(NewLayout(1))
	og, err := other.TryAcquire(Mut())
	require.NoError(t, err)
	require.ErrorIs(t, tr.Release(og), ErrUnknownGrant)
}

func TestTracker_unknown_field(t *testing.T) {
	tr := NewTracker(NewLayout(3))
	_, err := tr.TryAcquire(Read(MaskOf(3)))
	require.ErrorIs(t, err, ErrUnknownField)
	_, err = tr.TryAcquire(Write(MaskOf(64)))
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestTracker_wide_layout(t *testing.T) {
	l := NewLayout(130)
	require.Equal(t, 3, l.Words())
	require.Equal(t, 130, l.All().Count())

	tr := NewTracker(l)
	_, err := tr.TryAcquire(Write(MaskOf(129)))
	require.NoError(t, err)
	_, err = tr.TryAcquire(Read(MaskOf(0, 64, 128)))
	require.NoError(t, err)
	_, err = tr.TryAcquire(Read(MaskOf(129)))
	require.ErrorIs(t, err, ErrBorrowed)
}

func TestLayoutOf(t *testing.T) {
	l := LayoutOf[todos]()
	require.Equal(t, 3, l.Len())
	require.Equal(t, 1, l.Words())

	m, err := l.Field("Items", "Owner")
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, m.Fields())
	require.Equal(t, "{0,2}", m.String())

	_, err = l.Field("Missing")
	require.ErrorIs(t, err, ErrUnknownField)
	require.Panics(t, func() { l.MustField("Missing") })

	require.Equal(t, 1, LayoutOf[int]().Len())
}

func TestConflicts(t *testing.T) {
	require.True(t, Conflicts(MaskOf(0), nil, nil, MaskOf(0)))
	require.True(t, Conflicts(nil, MaskOf(1), MaskOf(1), nil))
	require.False(t, Conflicts(nil, MaskOf(1), nil, MaskOf(1)))
	require.False(t, Conflicts(MaskOf(0), MaskOf(1), MaskOf(2), MaskOf(3)))
}

func TestTracker_concurrent(t *testing.T) {
	tr := NewTracker(NewLayout(4))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		writer bool
		reads  int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc := Read(MaskOf(i % 4))
			if i%8 == 0 {
				acc = Mut()
			}
			for {
				g, err := tr.TryAcquire(acc)
				if err != nil {
					continue
				}
				mu.Lock()
				if acc.IsMut() {
					if writer || reads > 0 {
						t.Error("mut granted alongside another grant")
					}
					writer = true
				} else {
					if writer {
						t.Error("read granted alongside mut")
					}
					reads++
				}
				mu.Unlock()

				mu.Lock()
				if acc.IsMut() {
					writer = false
				} else {
					reads--
				}
				mu.Unlock()
				if err := tr.Release(g); err != nil {
					t.Error(err)
				}
				return
			}
		}(i)
	}
	wg.Wait()
	require.Zero(t, tr.Outstanding())
}
