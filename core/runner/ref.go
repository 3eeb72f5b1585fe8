package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/mailbox"
)

// Ref addresses one actor through the channel of the runner that routes it.
// Refs are plain values: copying one shares the sender.
type Ref[S any, D dispatch.Dispatch[S]] struct {
	id ActorID
	tx mailbox.Sender[Message[S, D]]
}

// NewRef binds id to tx.
func NewRef[S any, D dispatch.Dispatch[S]](id ActorID, tx mailbox.Sender[Message[S, D]]) Ref[S, D] {
	return Ref[S, D]{id: id, tx: tx}
}

func (r Ref[S, D]) ID() ActorID { return r.id }

// Valid reports whether r was bound to a runner.
func (r Ref[S, D]) Valid() bool { return r.tx != nil && r.id != 0 }

func (r Ref[S, D]) String() string { return fmt.Sprintf("actor(%s)", r.id) }

// TrySend enqueues d without waiting; see [mailbox.Channel.TrySend].
func (r Ref[S, D]) TrySend(d D) error { return r.TrySendPriority(0, d) }

func (r Ref[S, D]) TrySendPriority(priority int, d D) error {
	if !r.Valid() {
		return ErrUnknownActor
	}
	return r.tx.TrySend(r.deliver(priority, d))
}

// Send enqueues d, waiting for capacity until ctx is done.
func (r Ref[S, D]) Send(ctx context.Context, d D) error { return r.SendPriority(ctx, 0, d) }

func (r Ref[S, D]) SendPriority(ctx context.Context, priority int, d D) error {
	if !r.Valid() {
		return ErrUnknownActor
	}
	return r.tx.Send(ctx, r.deliver(priority, d))
}

// SendBlocking enqueues d, parking the caller until there is capacity.
func (r Ref[S, D]) SendBlocking(d D) error {
	if !r.Valid() {
		return ErrUnknownActor
	}
	return r.tx.SendBlocking(r.deliver(0, d))
}

// Kill terminates the actor and returns its final state.
func (r Ref[S, D]) Kill(ctx context.Context) (KillResult[S], error) {
	reply := NewReply[KillResult[S]]()
	if err := r.control(ctx, Kill[S, D]{Actor: r.id, Reply: reply}); err != nil {
		if errors.Is(err, mailbox.ErrClosed) {
			return KillResult[S]{}, fmt.Errorf("%w: %w", ErrKillUnacknowledged, err)
		}
		return KillResult[S]{}, err
	}
	return reply.Wait(ctx)
}

// Pause suspends the actor and returns its state.
func (r Ref[S, D]) Pause(ctx context.Context) (*S, error) {
	reply := NewReply[*S]()
	if err := r.control(ctx, Pause[S, D]{Actor: r.id, Reply: reply}); err != nil {
		return nil, err
	}
	return reply.Wait(ctx)
}

// Resume reinstates a paused actor with state.
func (r Ref[S, D]) Resume(ctx context.Context, state *S) error {
	return r.control(ctx, Resume[S, D]{Actor: r.id, State: state})
}

// Lock freezes the actor and waits until nothing runs against its state.
func (r Ref[S, D]) Lock(ctx context.Context) error {
	notify := NewReply[struct{}]()
	if err := r.control(ctx, Lock[S, D]{Actor: r.id, Notify: notify}); err != nil {
		return err
	}
	_, err := notify.Wait(ctx)
	return err
}

// Unlock releases a Lock.
func (r Ref[S, D]) Unlock(ctx context.Context) error {
	return r.control(ctx, Unlock[S, D]{Actor: r.id})
}

func (r Ref[S, D]) control(ctx context.Context, m Message[S, D]) error {
	if !r.Valid() {
		return ErrUnknownActor
	}
	return r.tx.Send(ctx, m)
}

func (r Ref[S, D]) deliver(priority int, d D) Message[S, D] {
	return Deliver[S, D]{Priority: priority, Actor: r.id, Payload: d}
}
