package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/WIGGLES-dev/pobox/core/arena"
	"github.com/WIGGLES-dev/pobox/core/borrow"
	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/mailbox"
)

// placement is what the shared arena records per actor.
type placement struct {
	Affinity uint64
	Owner    string
}

// Router is a runner holding many actors. The root router may spawn
// shards under sustained load and migrate actors onto them; refs always
// stay bound to the root channel, which forwards to the owning shard.
type Router[S any, D dispatch.Dispatch[S]] struct {
	name    string
	root    bool
	raw     RouterOptions
	opts    RouterOptions
	layout  borrow.Layout
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
	metrics Metrics
	onError func(error)
	policy  dropPolicy

	rx    *mailbox.Channel[Message[S, D]]
	front mailbox.Sender[Message[S, D]]
	ids   *arena.Arena[placement]
	exec  *executor[S, D]

	// owned by the loop
	registry *registry[S, D]
	shards   []*Router[S, D]
	names    []string
	load     loadMonitor

	numShards atomic.Int32
	done      chan struct{}
}

// NewRouter starts a root router.
func NewRouter[S any, D dispatch.Dispatch[S]](opts RouterOptions) (*Router[S, D], error) {
	return newRouter[S, D](opts, true, nil, nil)
}

func newRouter[S any, D dispatch.Dispatch[S]](opts RouterOptions, root bool, ids *arena.Arena[placement], front mailbox.Sender[Message[S, D]]) (*Router[S, D], error) {
	raw := opts
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	rx, err := mailbox.New[Message[S, D]](opts.Capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	ctx, cancel := context.WithCancel(opts.Context)
	opts.Context = ctx

	if ids == nil {
		ids = arena.New[placement]()
	}
	if front == nil {
		front = rx
	}

	r := &Router[S, D]{
		name:     opts.Name,
		root:     root,
		raw:      raw,
		opts:     opts,
		layout:   layoutFor[S](&opts.Options),
		ctx:      ctx,
		cancel:   cancel,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onError:  opts.OnError,
		policy:   opts.policy(),
		rx:       rx,
		front:    front,
		ids:      ids,
		exec:     newExecutor[S, D](&opts.Options),
		registry: newRegistry[S, D](),
		names:    []string{opts.Name},
		load:     loadMonitor{chunk: opts.ChunkSize, after: opts.SpawnAfterTicks},
		done:     make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

func (r *Router[S, D]) Name() string { return r.name }

// Spawn registers a new actor and returns its ref.
func (r *Router[S, D]) Spawn(ctx context.Context, affinity uint64, state *S) (Ref[S, D], error) {
	reply := NewReply[Ref[S, D]]()
	if err := r.rx.Send(ctx, Spawn[S, D]{Affinity: affinity, State: state, Reply: reply}); err != nil {
		return Ref[S, D]{}, err
	}
	return reply.Wait(ctx)
}

// Ref binds id to this router without checking that it is alive.
func (r *Router[S, D]) Ref(id ActorID) Ref[S, D] { return NewRef[S, D](id, r.front) }

// Send enqueues a raw message.
func (r *Router[S, D]) Send(ctx context.Context, m Message[S, D]) error { return r.rx.Send(ctx, m) }

// Sender returns the channel refs of this router are bound to.
func (r *Router[S, D]) Sender() mailbox.Sender[Message[S, D]] { return r.front }

// Owner returns the name of the runner currently holding id.
func (r *Router[S, D]) Owner(id ActorID) (string, bool) {
	p, ok := r.ids.Get(id)
	return p.Owner, ok
}

// Actors returns the number of live actors across the root and its shards.
func (r *Router[S, D]) Actors() int { return r.ids.Len() }

// Shards returns the number of shards spawned so far.
func (r *Router[S, D]) Shards() int { return int(r.numShards.Load()) }

// Close stops accepting messages. Queued messages are still processed and
// shards are closed once the root has drained.
func (r *Router[S, D]) Close() { r.rx.Close() }

// Done is closed once the loop and all shards have exited.
func (r *Router[S, D]) Done() <-chan struct{} { return r.done }

// Stop closes the router and waits for it to exit.
func (r *Router[S, D]) Stop() {
	r.Close()
	<-r.done
}

func (r *Router[S, D]) loop() {
	defer close(r.done)
	defer r.cancel()

	r.log.Debug("router started", slog.Bool("root", r.root))
	defer r.log.Debug("router stopped")

	for {
		batch, err := r.rx.RecvMany(r.ctx, r.opts.ChunkSize)
		if err != nil || len(batch) == 0 {
			r.shutdown()
			return
		}
		r.metrics.TickReceived(r.name, len(batch))

		for _, m := range batch {
			r.handle(m)
		}

		r.metrics.MailboxDepth(r.name, r.rx.Len())
		r.metrics.ActorsResident(r.name, r.registry.residents())
		if r.root && len(r.shards) < r.opts.MaxShards && r.load.observe(len(batch)) {
			r.scale()
		}
	}
}

func (r *Router[S, D]) handle(m Message[S, D]) {
	switch m := m.(type) {
	case Spawn[S, D]:
		r.spawn(m)
		return
	case migrated[S, D]:
		r.completeMigration(m)
		return
	case shardLocked[S, D]:
		r.completeShardLock(m)
		return
	}

	e, ok := r.registry.get(m.target())
	if !ok {
		r.unknown(m)
		return
	}
	if e.migrating || e.locking {
		r.buffer(e, m)
		return
	}

	switch m := m.(type) {
	case Deliver[S, D]:
		r.route(e, m)
	case Lock[S, D]:
		r.lock(e, m)
	case Unlock[S, D]:
		r.unlock(e, m)
	case Kill[S, D]:
		r.kill(e, m)
	case Pause[S, D]:
		r.pause(e, m)
	case Resume[S, D]:
		r.resume(e, m)
	}
}

func (r *Router[S, D]) spawn(m Spawn[S, D]) {
	state := m.State
	if state == nil {
		state = new(S)
	}

	id := m.id
	if id == 0 {
		id = r.ids.Alloc(placement{Affinity: m.Affinity, Owner: r.name})

		if r.root && len(r.shards) > 0 {
			if idx := r.place(id, m.Affinity); idx >= 0 {
				r.registry.insert(id, &entry[S, D]{kind: kindShard, shard: idx, affinity: m.Affinity})
				m.id = id
				if err := r.forwardTo(idx, m); err != nil {
					r.registry.remove(id)
					r.ids.Free(id)
					m.Reply.Reject(err)
				}
				return
			}
		}
	}

	r.ids.Update(id, func(p placement) placement {
		p.Owner = r.name
		return p
	})
	r.registry.insert(id, &entry[S, D]{
		kind:     kindLocal,
		affinity: m.Affinity,
		cell:     newCell(id, state, r.layout),
	})
	m.Reply.Resolve(NewRef[S, D](id, r.front))
}

func (r *Router[S, D]) route(e *entry[S, D], m Deliver[S, D]) {
	switch e.kind {
	case kindLocal:
		r.exec.submit(e.cell, m.Payload)
	case kindShard:
		_ = r.forwardTo(e.shard, m)
	default:
		r.buffer(e, m)
	}
}

func (r *Router[S, D]) lock(e *entry[S, D], m Lock[S, D]) {
	switch e.kind {
	case kindLocal:
		r.exec.waitCell(e.cell)
		e.kind = kindLocalLocked
		m.Notify.Resolve(struct{}{})
	case kindShard:
		r.lockShard(e, m)
	default:
		r.metrics.LockViolation(r.name, "double_lock")
		if e.paused {
			m.Notify.Reject(fmt.Errorf("%w: %s", ErrPaused, m.Actor))
			return
		}
		m.Notify.Reject(fmt.Errorf("%w: %s", ErrAlreadyLocked, m.Actor))
	}
}

func (r *Router[S, D]) unlock(e *entry[S, D], m Unlock[S, D]) {
	switch {
	case e.paused:
		r.metrics.LockViolation(r.name, "unlock_while_paused")
		r.report(fmt.Errorf("%w: %s", ErrPaused, m.Actor))
	case e.kind == kindLocalLocked:
		e.kind = kindLocal
		r.replay(m.Actor, e)
	case e.kind == kindShardLocked:
		e.kind = kindShard
		_ = r.forwardTo(e.shard, m)
		r.replay(m.Actor, e)
	default:
		r.metrics.LockViolation(r.name, "unlock_without_lock")
		r.report(fmt.Errorf("%w: %s", ErrNotLocked, m.Actor))
	}
}

func (r *Router[S, D]) pause(e *entry[S, D], m Pause[S, D]) {
	switch e.kind {
	case kindLocal:
		r.exec.waitCell(e.cell)
		state := e.cell.state
		e.cell.state = nil
		e.kind = kindLocalLocked
		e.paused = true
		m.Reply.Resolve(state)
	case kindShard, kindShardLocked:
		if err := r.forwardTo(e.shard, m); err != nil {
			m.Reply.Reject(err)
		}
	default:
		r.metrics.LockViolation(r.name, "pause_while_locked")
		if e.paused {
			m.Reply.Reject(fmt.Errorf("%w: %s", ErrPaused, m.Actor))
			return
		}
		m.Reply.Reject(fmt.Errorf("%w: %s", ErrAlreadyLocked, m.Actor))
	}
}

func (r *Router[S, D]) resume(e *entry[S, D], m Resume[S, D]) {
	switch {
	case e.paused:
		e.cell.state = m.State
		e.paused = false
		e.kind = kindLocal
		r.replay(m.Actor, e)
	case e.kind == kindShard || e.kind == kindShardLocked:
		_ = r.forwardTo(e.shard, m)
	default:
		r.metrics.LockViolation(r.name, "resume_without_pause")
		r.report(fmt.Errorf("%w: %s", ErrNotPaused, m.Actor))
	}
}

func (r *Router[S, D]) kill(e *entry[S, D], m Kill[S, D]) {
	id := m.Actor

	if !e.resident() {
		if e.kind == kindShardLocked {
			// the shard still holds the lock; lift it so the kill applies
			// after whatever is buffered here
			_ = r.forwardTo(e.shard, Unlock[S, D]{Actor: id})
			dropped := 0
			for _, p := range e.overflow.drain() {
				if r.policy.mode == Forbidden {
					_ = r.forwardTo(e.shard, p)
					continue
				}
				dropped += abandon([]Message[S, D]{p})
			}
			r.drop("killed", dropped)
		}
		r.registry.remove(id)
		if err := r.forwardTo(e.shard, m); err != nil {
			m.Reply.Reject(err)
		}
		return
	}

	r.exec.waitCell(e.cell)
	dropped := 0
	for _, p := range e.overflow.drain() {
		if d, ok := p.(Deliver[S, D]); ok && r.policy.mode == Forbidden && e.cell.state != nil {
			r.exec.submit(e.cell, d.Payload)
			continue
		}
		dropped += abandon([]Message[S, D]{p})
	}
	r.exec.waitCell(e.cell)
	r.drop("killed", dropped)

	r.registry.remove(id)
	r.ids.Free(id)
	m.Reply.Resolve(KillResult[S]{State: e.cell.state, Dropped: dropped})
	r.log.Debug("actor killed", slog.String("actor", id.String()), slog.Int("dropped", dropped))
}

// unknown rejects a message whose actor is not registered here.
func (r *Router[S, D]) unknown(m Message[S, D]) {
	err := fmt.Errorf("%w: %s", ErrUnknownActor, m.target())
	switch m := m.(type) {
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

func (r *Router[S, D]) buffer(e *entry[S, D], m Message[S, D]) {
	if dropped, ok := e.overflow.push(m, r.policy); ok {
		r.drop("overflow", abandon([]Message[S, D]{dropped}))
	}
}

// replay feeds buffered messages back through handle in arrival order.
// A replayed Lock buffers whatever follows it again.
func (r *Router[S, D]) replay(id ActorID, e *entry[S, D]) {
	msgs := e.overflow.drain()
	if len(msgs) == 0 {
		return
	}
	r.log.Debug("replaying buffered messages", slog.String("actor", id.String()), slog.Int("count", len(msgs)))
	for _, m := range msgs {
		r.handle(m)
	}
}

// forwardTo hands m to shard idx under the drop policy.
func (r *Router[S, D]) forwardTo(idx int, m Message[S, D]) error {
	shard := r.shards[idx]
	err := r.forward(shard.rx, m)
	switch {
	case err == nil:
		r.metrics.MessageForwarded(r.name)
		return nil
	case errors.Is(err, ErrDropped):
		r.drop("shard_full", abandon([]Message[S, D]{m}))
		return err
	default:
		err = fmt.Errorf("%w: %s: %w", ErrShardClosed, shard.name, err)
		r.report(err)
		return err
	}
}

func (r *Router[S, D]) forward(tx *mailbox.Channel[Message[S, D]], m Message[S, D]) error {
	d, isDeliver := m.(Deliver[S, D])
	if !isDeliver || r.policy.mode == Forbidden {
		return tx.Send(r.ctx, m)
	}
	err := tx.TrySend(m)
	if !errors.Is(err, mailbox.ErrFull) {
		return err
	}
	if r.policy.dropsOnFullShard(d.Priority) {
		return ErrDropped
	}
	return tx.Send(r.ctx, m)
}

func (r *Router[S, D]) shutdown() {
	r.rx.Close()
	r.exec.wait()

	dropped := abandon(r.drainMailbox())
	for _, id := range r.registry.ids() {
		e, _ := r.registry.get(id)
		dropped += abandon(e.overflow.drain())
		if e.resident() {
			r.ids.Free(id)
		}
		r.registry.remove(id)
	}
	r.drop("shutdown", dropped)

	for _, s := range r.shards {
		s.Close()
	}
	for _, s := range r.shards {
		<-s.Done()
	}
}

func (r *Router[S, D]) drainMailbox() []Message[S, D] {
	var out []Message[S, D]
	for {
		batch, err := r.rx.TryRecvMany(r.opts.ChunkSize)
		if err != nil || len(batch) == 0 {
			return out
		}
		out = append(out, batch...)
	}
}

func (r *Router[S, D]) drop(reason string, n int) {
	if n == 0 {
		return
	}
	r.metrics.MessagesDropped(r.name, reason, n)
	r.log.Debug("dropped messages", slog.String("reason", reason), slog.Int("count", n))
}

func (r *Router[S, D]) report(err error) {
	r.log.Warn("message rejected", slog.Any("error", err))
	if r.onError != nil {
		r.onError(err)
	}
}
