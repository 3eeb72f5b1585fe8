// Package contract lets an actor remember the permits it granted to other
// actors by storing them inline in its own state.
//
// A typical flow: actor A asks actor B for a permit. B records the grant in
// a [Contracts] field of its state and hands A a [Permit] whose sink points
// back at B. Later requests from A are checked against B's Contracts.
//
// Contracts lives inside actor state and is guarded by the runner's borrow
// tracking like any other field; it does no locking of its own.
package contract

import (
	"context"
	"maps"
	"slices"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
)

// Permit is contract state C plus the sink of the actor that granted it.
type Permit[C any, S any, D dispatch.Dispatch[S]] struct {
	Contract C
	Sink     runner.Ref[S, D]
}

// Send delivers d to the granting actor.
func (p Permit[C, S, D]) Send(ctx context.Context, d D) error {
	return p.Sink.Send(ctx, d)
}

// Contracts holds the permits an actor has granted, keyed by holder.
type Contracts[C any, S any, D dispatch.Dispatch[S]] struct {
	permits map[runner.ActorID]Permit[C, S, D]
}

// Grant records a permit for holder, replacing any earlier one.
func (c *Contracts[C, S, D]) Grant(holder runner.ActorID, contract C, sink runner.Ref[S, D]) Permit[C, S, D] {
	if c.permits == nil {
		c.permits = make(map[runner.ActorID]Permit[C, S, D])
	}
	p := Permit[C, S, D]{Contract: contract, Sink: sink}
	c.permits[holder] = p
	return p
}

// Revoke removes the permit of holder and returns it.
func (c *Contracts[C, S, D]) Revoke(holder runner.ActorID) (Permit[C, S, D], bool) {
	p, ok := c.permits[holder]
	if ok {
		delete(c.permits, holder)
	}
	return p, ok
}

func (c *Contracts[C, S, D]) Lookup(holder runner.ActorID) (Permit[C, S, D], bool) {
	p, ok := c.permits[holder]
	return p, ok
}

// Each calls fn for every permit in holder order until fn returns false.
func (c *Contracts[C, S, D]) Each(fn func(holder runner.ActorID, p Permit[C, S, D]) bool) {
	for _, holder := range slices.Sorted(maps.Keys(c.permits)) {
		if !fn(holder, c.permits[holder]) {
			return
		}
	}
}

func (c *Contracts[C, S, D]) Len() int { return len(c.permits) }
