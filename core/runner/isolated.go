package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/WIGGLES-dev/pobox/core/arena"
	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/mailbox"
	"github.com/WIGGLES-dev/pobox/internal/reflector"
)

// Isolated is a runner owning exactly one actor.
type Isolated[S any, D dispatch.Dispatch[S]] struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	log      *slog.Logger
	metrics  Metrics
	onError  func(error)
	chunk    int
	policy   dropPolicy
	blocking bool

	ids  *arena.Arena[struct{}]
	rx   *mailbox.Channel[Message[S, D]]
	exec *executor[S, D]
	cell *cell[S]

	// owned by the loop
	locked   bool
	paused   bool
	overflow overflow[S, D]

	done chan struct{}
}

// NewIsolated starts a cooperative isolated runner on its own goroutine.
// It accepts both dispatch flavors.
func NewIsolated[S any, D dispatch.Dispatch[S]](opts IsolatedOptions[S]) (*Isolated[S, D], error) {
	return newIsolated[S, D](opts, false)
}

// NewBlockingIsolated starts an isolated runner pinned to an OS thread.
// D must be a concrete synchronous dispatch type; anything that could
// yield an asynchronous dispatch is rejected with
// [ErrAsyncInBlockingRunner].
func NewBlockingIsolated[S any, D dispatch.Dispatch[S]](opts IsolatedOptions[S]) (*Isolated[S, D], error) {
	if async, fixed := dispatch.Flavor[S, D](); async || !fixed {
		return nil, fmt.Errorf("%w: %s", ErrAsyncInBlockingRunner, reflector.TypeInfoFor[D]().Name)
	}
	return newIsolated[S, D](opts, true)
}

func newIsolated[S any, D dispatch.Dispatch[S]](opts IsolatedOptions[S], blocking bool) (*Isolated[S, D], error) {
	if err := opts.setDefaults("isolated"); err != nil {
		return nil, err
	}
	rx, err := mailbox.New[Message[S, D]](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	state := opts.State
	if state == nil {
		state = new(S)
	}

	if blocking {
		// dispatches stay on the pinned thread
		opts.StrictOrder = true
	}
	ctx, cancel := context.WithCancel(opts.Context)
	opts.Context = ctx

	ids := arena.New[struct{}]()
	r := &Isolated[S, D]{
		name:     opts.Name,
		ctx:      ctx,
		cancel:   cancel,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onError:  opts.OnError,
		chunk:    opts.ChunkSize,
		policy:   opts.policy(),
		blocking: blocking,
		ids:      ids,
		rx:       rx,
		exec:     newExecutor[S, D](&opts.Options),
		cell:     newCell(ids.Alloc(struct{}{}), state, layoutFor[S](&opts.Options)),
		done:     make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// Ref returns the ref of the owned actor.
func (r *Isolated[S, D]) Ref() Ref[S, D] { return NewRef[S, D](r.cell.id, r.rx) }

func (r *Isolated[S, D]) Name() string { return r.name }

// Close stops accepting messages. What is already queued still runs.
func (r *Isolated[S, D]) Close() { r.rx.Close() }

// Done is closed once the loop has exited.
func (r *Isolated[S, D]) Done() <-chan struct{} { return r.done }

// Stop closes the runner and waits for the loop to exit.
func (r *Isolated[S, D]) Stop() {
	r.Close()
	<-r.done
}

func (r *Isolated[S, D]) loop() {
	defer close(r.done)
	defer r.cancel()

	if r.blocking {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	r.log.Debug("runner started", slog.Bool("blocking", r.blocking))
	defer r.log.Debug("runner stopped")

	for {
		batch, err := r.rx.RecvMany(r.ctx, r.chunk)
		if err != nil || len(batch) == 0 {
			r.shutdown()
			return
		}
		r.metrics.TickReceived(r.name, len(batch))

		for i, m := range batch {
			if kill, ok := m.(Kill[S, D]); ok && m.target() == r.cell.id {
				r.finish(kill, batch[i+1:])
				return
			}
			r.handle(m)
		}
		r.metrics.MailboxDepth(r.name, r.rx.Len())
	}
}

func (r *Isolated[S, D]) handle(m Message[S, D]) {
	if m.target() != r.cell.id {
		r.unknown(m)
		return
	}

	switch m := m.(type) {
	case Deliver[S, D]:
		if r.locked || r.paused {
			r.buffer(m)
			return
		}
		r.exec.submit(r.cell, m.Payload)

	case Lock[S, D]:
		if r.paused {
			r.metrics.LockViolation(r.name, "lock_while_paused")
			m.Notify.Reject(fmt.Errorf("%w: %s", ErrPaused, m.Actor))
			return
		}
		if r.locked {
			r.metrics.LockViolation(r.name, "double_lock")
			m.Notify.Reject(fmt.Errorf("%w: %s", ErrAlreadyLocked, m.Actor))
			return
		}
		r.exec.waitCell(r.cell)
		r.locked = true
		m.Notify.Resolve(struct{}{})

	case Unlock[S, D]:
		if !r.locked {
			r.metrics.LockViolation(r.name, "unlock_without_lock")
			r.report(fmt.Errorf("%w: %s", ErrNotLocked, m.Actor))
			return
		}
		r.locked = false
		r.replay()

	case Pause[S, D]:
		if r.paused {
			r.metrics.LockViolation(r.name, "pause_while_paused")
			m.Reply.Reject(fmt.Errorf("%w: %s", ErrPaused, m.Actor))
			return
		}
		if r.locked {
			r.metrics.LockViolation(r.name, "pause_while_locked")
			m.Reply.Reject(fmt.Errorf("%w: %s", ErrAlreadyLocked, m.Actor))
			return
		}
		r.exec.waitCell(r.cell)
		state := r.cell.state
		r.cell.state = nil
		r.paused = true
		m.Reply.Resolve(state)

	case Resume[S, D]:
		if !r.paused {
			r.metrics.LockViolation(r.name, "resume_without_pause")
			r.report(fmt.Errorf("%w: %s", ErrNotPaused, m.Actor))
			return
		}
		r.cell.state = m.State
		r.paused = false
		r.replay()
	}
}

// unknown rejects messages that do not address the owned actor.
func (r *Isolated[S, D]) unknown(m Message[S, D]) {
	err := fmt.Errorf("%w: %s", ErrUnknownActor, m.target())
	switch m := m.(type) {
	case Spawn[S, D]:
		m.Reply.Reject(ErrSpawnUnsupported)
	case Kill[S, D]:
		m.Reply.Reject(err)
	case Pause[S, D]:
		m.Reply.Reject(err)
	case Lock[S, D]:
		m.Notify.Reject(err)
	default:
		r.report(err)
	}
}

func (r *Isolated[S, D]) buffer(m Message[S, D]) {
	if dropped, ok := r.overflow.push(m, r.policy); ok {
		r.drop("overflow", abandon([]Message[S, D]{dropped}))
	}
}

func (r *Isolated[S, D]) replay() {
	for _, m := range r.overflow.drain() {
		r.handle(m)
	}
}

// finish applies a Kill: buffered and queued deliveries either run
// (Forbidden) or are dropped, then the final state is handed back.
func (r *Isolated[S, D]) finish(kill Kill[S, D], rest []Message[S, D]) {
	r.rx.Close()

	pending := append(r.overflow.drain(), rest...)
	pending = append(pending, r.drainMailbox()...)

	dropped := 0
	for _, m := range pending {
		d, ok := m.(Deliver[S, D])
		if ok && r.policy.mode == Forbidden && r.cell.state != nil && d.Actor == r.cell.id {
			r.exec.submit(r.cell, d.Payload)
			continue
		}
		dropped += abandon([]Message[S, D]{m})
	}
	r.exec.wait()
	r.drop("killed", dropped)

	r.ids.Free(r.cell.id)
	kill.Reply.Resolve(KillResult[S]{State: r.cell.state, Dropped: dropped})
	r.log.Debug("actor killed", slog.String("actor", r.cell.id.String()), slog.Int("dropped", dropped))
}

func (r *Isolated[S, D]) shutdown() {
	r.rx.Close()
	r.exec.wait()
	dropped := abandon(r.drainMailbox())
	dropped += abandon(r.overflow.drain())
	r.drop("shutdown", dropped)
}

func (r *Isolated[S, D]) drainMailbox() []Message[S, D] {
	var out []Message[S, D]
	for {
		batch, err := r.rx.TryRecvMany(r.chunk)
		if err != nil || len(batch) == 0 {
			return out
		}
		out = append(out, batch...)
	}
}

func (r *Isolated[S, D]) drop(reason string, n int) {
	if n == 0 {
		return
	}
	r.metrics.MessagesDropped(r.name, reason, n)
	r.log.Debug("dropped messages", slog.String("reason", reason), slog.Int("count", n))
}

func (r *Isolated[S, D]) report(err error) {
	r.log.Warn("message rejected", slog.Any("error", err))
	if r.onError != nil {
		r.onError(err)
	}
}
