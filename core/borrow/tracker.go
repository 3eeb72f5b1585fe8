package borrow

import (
	"fmt"
	"sync"
)

// Access is the borrow an operation requests.
type Access struct {
	Exclusive Mask
	Shared    Mask
	mut       bool
}

// Mut requests every field exclusively, the borrow of a whole-state mutation.
func Mut() Access { return Access{mut: true} }

// Read requests the given fields shared.
func Read(fields Mask) Access { return Access{Shared: fields} }

// Write requests the given fields exclusively without claiming the whole state.
func Write(fields Mask) Access { return Access{Exclusive: fields} }

// IsMut reports whether a claims the whole state.
func (a Access) IsMut() bool { return a.mut }

func (a Access) String() string {
	if a.mut {
		return "mut"
	}
	return fmt.Sprintf("excl=%s shared=%s", a.Exclusive, a.Shared)
}

// Conflicts is the borrow rule on raw masks.
func Conflicts(heldExclusive, heldShared, wantExclusive, wantShared Mask) bool {
	for i := range wantExclusive {
		var held uint64
		if i < len(heldExclusive) {
			held |= heldExclusive[i]
		}
		if i < len(heldShared) {
			held |= heldShared[i]
		}
		if held&wantExclusive[i] != 0 {
			return true
		}
	}
	return heldExclusive.Intersects(wantShared)
}

// Grant is an outstanding borrow returned by [Tracker.TryAcquire].
type Grant struct {
	id        uint64
	exclusive Mask
	shared    Mask
}

// Tracker holds the borrow state of one actor. It is safe for concurrent use.
type Tracker struct {
	layout Layout

	mu        sync.Mutex
	exclusive Mask
	shared    Mask
	readers   []uint32 // shared grants per field
	grants    map[uint64]*Grant
	nextID    uint64
}

func NewTracker(layout Layout) *Tracker {
	return &Tracker{
		layout:    layout,
		exclusive: make(Mask, layout.Words()),
		shared:    make(Mask, layout.Words()),
		readers:   make([]uint32, layout.Len()),
		grants:    make(map[uint64]*Grant),
	}
}

// Layout returns the layout the tracker was created with.
func (t *Tracker) Layout() Layout { return t.layout }

func (t *Tracker) resolve(a Access) (excl, shared Mask, err error) {
	if a.mut {
		return t.layout.All(), make(Mask, t.layout.Words()), nil
	}
	if excl, err = t.layout.normalize(a.Exclusive); err != nil {
		return nil, nil, err
	}
	if shared, err = t.layout.normalize(a.Shared); err != nil {
		return nil, nil, err
	}
	// a field asked for both ways is simply exclusive
	for i := range shared {
		shared[i] &^= excl[i]
	}
	return excl, shared, nil
}

// CanAcquire reports whether TryAcquire would currently grant a.
func (t *Tracker) CanAcquire(a Access) bool {
	excl, shared, err := t.resolve(a)
	if err != nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !Conflicts(t.exclusive, t.shared, excl, shared)
}

// TryAcquire grants a, or returns ErrBorrowed when it conflicts with an
// outstanding grant.
func (t *Tracker) TryAcquire(a Access) (*Grant, error) {
	excl, shared, err := t.resolve(a)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if Conflicts(t.exclusive, t.shared, excl, shared) {
		return nil, fmt.Errorf("%w: want %s, held excl=%s shared=%s", ErrBorrowed, a, t.exclusive, t.shared)
	}

	for i := range excl {
		t.exclusive[i] |= excl[i]
		t.shared[i] |= shared[i]
	}
	for _, f := range shared.Fields() {
		t.readers[f]++
	}

	t.nextID++
	g := &Grant{id: t.nextID, exclusive: excl, shared: shared}
	t.grants[g.id] = g
	return g, nil
}

// Release gives back exactly the masks of g.
func (t *Tracker) Release(g *Grant) error {
	if g == nil {
		return ErrUnknownGrant
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.grants[g.id]; !ok {
		return ErrUnknownGrant
	}
	delete(t.grants, g.id)

	for i := range g.exclusive {
		t.exclusive[i] &^= g.exclusive[i]
	}
	// a shared bit only clears when its last reader leaves
	for _, f := range g.shared.Fields() {
		t.readers[f]--
		if t.readers[f] == 0 {
			t.shared[f/wordBits] &^= 1 << (uint(f) % wordBits)
		}
	}
	return nil
}

// Held returns copies of the currently granted masks.
func (t *Tracker) Held() (exclusive, shared Mask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append(Mask(nil), t.exclusive...), append(Mask(nil), t.shared...)
}

// Outstanding returns the number of unreleased grants.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.grants)
}
