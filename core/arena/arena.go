// Package arena hands out stable integer ids for actors.
//
// An [ID] packs a slot index with the slot's generation. Freed slots are
// reused, but with a bumped generation, so an id is never handed out twice
// while its actor is alive and stale ids never resolve to a newer actor.
package arena

import (
	"fmt"
	"sync"
)

// ID identifies an arena slot. The zero ID is never issued.
type ID uint64

func (id ID) slot() uint32       { return uint32(id) - 1 }
func (id ID) generation() uint32 { return uint32(id >> 32) }

func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.slot(), id.generation())
}

func makeID(slot, gen uint32) ID { return ID(uint64(gen)<<32 | uint64(slot+1)) }

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Arena stores one T per live id. It is safe for concurrent use.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc stores v and returns its id.
func (a *Arena[T]) Alloc(v T) ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	s.gen++
	s.live = true
	s.val = v
	a.live++
	return makeID(idx, s.gen)
}

// Get returns the value stored under id.
func (a *Arena[T]) Get(id ID) (v T, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.lookup(id)
	if s == nil {
		return v, false
	}
	return s.val, true
}

// Update replaces the value under id via fn.
func (a *Arena[T]) Update(id ID, fn func(T) T) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.lookup(id)
	if s == nil {
		return false
	}
	s.val = fn(s.val)
	return true
}

// Free releases id. It reports false for ids that are not live.
func (a *Arena[T]) Free(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.lookup(id)
	if s == nil {
		return false
	}
	var zero T
	s.live = false
	s.val = zero
	a.free = append(a.free, id.slot())
	a.live--
	return true
}

// Contains reports whether id is live.
func (a *Arena[T]) Contains(id ID) bool {
	_, ok := a.Get(id)
	return ok
}

// Len returns the number of live ids.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

func (a *Arena[T]) lookup(id ID) *slot[T] {
	if id == 0 {
		return nil
	}
	idx := id.slot()
	if int(idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[idx]
	if !s.live || s.gen != id.generation() {
		return nil
	}
	return s
}
