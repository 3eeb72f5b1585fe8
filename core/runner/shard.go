package runner

import (
	"fmt"
	"log/slog"

	"github.com/WIGGLES-dev/pobox/internal/hrw"
)

// loadMonitor counts consecutive ticks that filled a whole chunk.
type loadMonitor struct {
	chunk  int
	after  int
	streak int
}

// observe records a tick and reports whether the streak calls for a new
// shard. The streak restarts after each trigger.
func (l *loadMonitor) observe(received int) bool {
	if received < l.chunk {
		l.streak = 0
		return false
	}
	l.streak++
	if l.streak < l.after {
		return false
	}
	l.streak = 0
	return true
}

// place returns the shard index key belongs on, or -1 for the root.
func (r *Router[S, D]) place(id ActorID, affinity uint64) int {
	key := affinity
	if key == 0 {
		key = uint64(id)
	}
	return hrw.Best(key, r.names, r.opts.Seed) - 1
}

// scale spawns one more shard and migrates the actors that now place on it.
func (r *Router[S, D]) scale() {
	idx := len(r.shards)
	shard, err := r.newShard(idx)
	if err != nil {
		r.log.Error("spawn shard", slog.Any("error", err))
		return
	}
	r.shards = append(r.shards, shard)
	r.names = append(r.names, shard.name)
	r.numShards.Store(int32(len(r.shards)))
	r.metrics.ShardSpawned(r.name)
	r.log.Info("spawned shard", slog.String("shard", shard.name), slog.Int("shards", len(r.shards)))

	for _, id := range r.registry.ids() {
		e, _ := r.registry.get(id)
		if e.kind != kindLocal || e.migrating {
			continue
		}
		if r.place(id, e.affinity) == idx {
			r.migrate(id, e, idx)
		}
	}
}

func (r *Router[S, D]) newShard(idx int) (*Router[S, D], error) {
	opts := r.raw
	opts.Name = fmt.Sprintf("%s/shard-%d", r.name, idx)
	opts.Context = r.ctx
	opts.MaxShards = 0
	return newRouter[S, D](opts, false, r.ids, r.front)
}

// migrate moves a resident actor to shard idx. The entry stays locked
// while the shard takes over the state; messages arriving meanwhile are
// buffered and replayed once the shard has answered.
func (r *Router[S, D]) migrate(id ActorID, e *entry[S, D], idx int) {
	r.exec.waitCell(e.cell)
	e.kind = kindLocalLocked
	e.migrating = true

	reply := NewReply[Ref[S, D]]()
	spawn := Spawn[S, D]{Affinity: e.affinity, State: e.cell.state, Reply: reply, id: id}
	if err := r.forwardTo(idx, spawn); err != nil {
		e.kind = kindLocal
		e.migrating = false
		r.metrics.MigrationCompleted(r.name, false)
		return
	}

	go func() {
		_, err := reply.Wait(r.ctx)
		_ = r.rx.Send(r.ctx, migrated[S, D]{actor: id, shard: idx, err: err})
	}()
}

func (r *Router[S, D]) completeMigration(m migrated[S, D]) {
	e, ok := r.registry.get(m.actor)
	if !ok || !e.migrating {
		return
	}
	e.migrating = false

	if m.err != nil {
		e.kind = kindLocal
		r.metrics.MigrationCompleted(r.name, false)
		r.log.Warn("migration failed", slog.String("actor", m.actor.String()), slog.Any("error", m.err))
	} else {
		e.kind = kindShard
		e.shard = m.shard
		e.cell = nil
		r.metrics.MigrationCompleted(r.name, true)
		r.log.Debug("actor migrated", slog.String("actor", m.actor.String()), slog.String("shard", r.shards[m.shard].name))
	}
	r.replay(m.actor, e)
}

// lockShard forwards m to the shard holding e. The entry only becomes
// ShardLocked once the shard has locked its side; until then messages for
// it are buffered here.
func (r *Router[S, D]) lockShard(e *entry[S, D], m Lock[S, D]) {
	ack := NewReply[struct{}]()
	if err := r.forwardTo(e.shard, Lock[S, D]{Actor: m.Actor, Notify: ack}); err != nil {
		m.Notify.Reject(err)
		return
	}
	e.locking = true

	go func() {
		_, err := ack.Wait(r.ctx)
		done := shardLocked[S, D]{actor: m.Actor, notify: m.Notify, err: err}
		if serr := r.rx.Send(r.ctx, done); serr != nil {
			m.Notify.Reject(serr)
		}
	}()
}

func (r *Router[S, D]) completeShardLock(m shardLocked[S, D]) {
	e, ok := r.registry.get(m.actor)
	if !ok || !e.locking {
		m.notify.Reject(fmt.Errorf("%w: %s", ErrUnknownActor, m.actor))
		return
	}
	e.locking = false

	if m.err != nil {
		r.metrics.LockViolation(r.name, "shard_rejected_lock")
		m.notify.Reject(m.err)
	} else {
		e.kind = kindShardLocked
		m.notify.Resolve(struct{}{})
	}
	r.replay(m.actor, e)
}
