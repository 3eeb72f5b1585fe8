// Package proxy adds one level of indirection to actor refs so the actor
// behind a ref can be swapped without invalidating the ref.
//
// A [Ref] starts out pure and dereferences to its original target. A
// [Proxy] may divert it exactly once: afterwards [Ref.Deref] yields the
// proxy's handler, and the proxy remembers the ref it replaced so the
// handler can forward to it.
package proxy

import (
	"errors"
	"sync"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
)

var ErrAlreadyProxied = errors.New("ref already proxied")

// Ref is a swappable actor ref. It is safe for concurrent use.
type Ref[S any, D dispatch.Dispatch[S]] struct {
	mu      sync.RWMutex
	current runner.Ref[S, D]
	slot    int
	proxied bool
}

// Pure wraps target.
func Pure[S any, D dispatch.Dispatch[S]](target runner.Ref[S, D]) *Ref[S, D] {
	return &Ref[S, D]{current: target}
}

// Deref returns the ref traffic should go to: the original target, or the
// handler of the proxy that diverted it.
func (r *Ref[S, D]) Deref() runner.Ref[S, D] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Proxied reports whether r was diverted and, if so, the slot under which
// its proxy keeps the replaced ref.
func (r *Ref[S, D]) Proxied() (slot int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slot, r.proxied
}

// Proxy diverts refs to a single handler.
type Proxy[S any, D dispatch.Dispatch[S]] struct {
	handler runner.Ref[S, D]

	mu    sync.Mutex
	inner []runner.Ref[S, D]
}

func New[S any, D dispatch.Dispatch[S]](handler runner.Ref[S, D]) *Proxy[S, D] {
	return &Proxy[S, D]{handler: handler}
}

// Install diverts target to the handler. It fails with ErrAlreadyProxied
// if target was diverted before, by this or any other proxy.
func (p *Proxy[S, D]) Install(target *Ref[S, D]) error {
	target.mu.Lock()
	defer target.mu.Unlock()

	if target.proxied {
		return ErrAlreadyProxied
	}

	p.mu.Lock()
	slot := len(p.inner)
	p.inner = append(p.inner, target.current)
	p.mu.Unlock()

	target.current = p.handler
	target.slot = slot
	target.proxied = true
	return nil
}

// Inner returns the ref replaced under slot.
func (p *Proxy[S, D]) Inner(slot int) (runner.Ref[S, D], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slot < 0 || slot >= len(p.inner) {
		return runner.Ref[S, D]{}, false
	}
	return p.inner[slot], true
}

func (p *Proxy[S, D]) Handler() runner.Ref[S, D] { return p.handler }

// Len returns the number of refs diverted so far.
func (p *Proxy[S, D]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inner)
}
