package runner

import (
	"github.com/WIGGLES-dev/pobox/core/arena"
	"github.com/WIGGLES-dev/pobox/core/dispatch"
)

// ActorID identifies an actor for its whole lifetime.
type ActorID = arena.ID

// Message is what runners read from their channel. The set of variants is
// closed: [Deliver], [Kill], [Pause], [Resume], [Lock], [Unlock] and [Spawn].
type Message[S any, D dispatch.Dispatch[S]] interface {
	target() ActorID
	kind() string
}

type (
	// Deliver is an ordinary dispatch. Priority is advisory: it never
	// reorders messages of one actor and is only consulted when deciding
	// what to drop.
	Deliver[S any, D dispatch.Dispatch[S]] struct {
		Priority int
		Actor    ActorID
		Payload  D
	}

	// Kill terminates the actor. Reply, when set, receives the final state.
	Kill[S any, D dispatch.Dispatch[S]] struct {
		Actor ActorID
		Reply *Reply[KillResult[S]]
	}

	// KillResult is the answer to a Kill.
	KillResult[S any] struct {
		State *S
		// Dropped counts buffered messages discarded by the drop policy.
		Dropped int
	}

	// Pause suspends the actor and hands its state to Reply. Messages
	// arriving while paused are buffered until Resume.
	Pause[S any, D dispatch.Dispatch[S]] struct {
		Actor ActorID
		Reply *Reply[*S]
	}

	// Resume reinstates a paused actor with State.
	Resume[S any, D dispatch.Dispatch[S]] struct {
		Actor ActorID
		State *S
	}

	// Lock freezes the actor for an external borrower. Notify resolves once
	// nothing runs against the state anymore.
	Lock[S any, D dispatch.Dispatch[S]] struct {
		Actor  ActorID
		Notify *Reply[struct{}]
	}

	// Unlock releases a Lock and replays what was buffered meanwhile.
	Unlock[S any, D dispatch.Dispatch[S]] struct {
		Actor ActorID
	}

	// Spawn registers a new actor. Affinity is a placement hint: actors
	// sharing it are kept on the same shard.
	Spawn[S any, D dispatch.Dispatch[S]] struct {
		Affinity uint64
		State    *S
		Reply    *Reply[Ref[S, D]]

		// set when the id was already allocated (placement, migration)
		id ActorID
	}

	// migrated reports the end of a migration back to the root loop.
	migrated[S any, D dispatch.Dispatch[S]] struct {
		actor ActorID
		shard int
		err   error
	}

	// shardLocked reports the shard's answer to a forwarded Lock.
	shardLocked[S any, D dispatch.Dispatch[S]] struct {
		actor  ActorID
		notify *Reply[struct{}]
		err    error
	}
)

func (m Deliver[S, D]) target() ActorID     { return m.Actor }
func (m Kill[S, D]) target() ActorID        { return m.Actor }
func (m Pause[S, D]) target() ActorID       { return m.Actor }
func (m Resume[S, D]) target() ActorID      { return m.Actor }
func (m Lock[S, D]) target() ActorID        { return m.Actor }
func (m Unlock[S, D]) target() ActorID      { return m.Actor }
func (m Spawn[S, D]) target() ActorID       { return m.id }
func (m migrated[S, D]) target() ActorID    { return m.actor }
func (m shardLocked[S, D]) target() ActorID { return m.actor }

func (Deliver[S, D]) kind() string     { return "deliver" }
func (Kill[S, D]) kind() string        { return "kill" }
func (Pause[S, D]) kind() string       { return "pause" }
func (Resume[S, D]) kind() string      { return "resume" }
func (Lock[S, D]) kind() string        { return "lock" }
func (Unlock[S, D]) kind() string      { return "unlock" }
func (Spawn[S, D]) kind() string       { return "spawn" }
func (migrated[S, D]) kind() string    { return "migrated" }
func (shardLocked[S, D]) kind() string { return "shard_locked" }

// abandon settles the replies of messages that will never be processed and
// returns how many deliveries were lost.
func abandon[S any, D dispatch.Dispatch[S]](msgs []Message[S, D]) (dropped int) {
	for _, m := range msgs {
		switch m := m.(type) {
		case Deliver[S, D]:
			dropped++
		case Kill[S, D]:
			m.Reply.Reject(ErrKillUnacknowledged)
		case Pause[S, D]:
			m.Reply.Reject(ErrReplyDropped)
		case Lock[S, D]:
			m.Notify.Reject(ErrReplyDropped)
		case Spawn[S, D]:
			m.Reply.Reject(ErrReplyDropped)
		case shardLocked[S, D]:
			m.notify.Reject(ErrReplyDropped)
		}
	}
	return dropped
}
