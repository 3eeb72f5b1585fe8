package runner

import (
	"slices"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
)

type entryKind uint8

const (
	// resident, taking dispatches
	kindLocal entryKind = iota
	// resident, everything buffered
	kindLocalLocked
	// lives on a shard, messages are forwarded
	kindShard
	// lives on a shard which holds it locked; deliveries are buffered here
	kindShardLocked
)

func (k entryKind) String() string {
	switch k {
	case kindLocal:
		return "local"
	case kindLocalLocked:
		return "local_locked"
	case kindShard:
		return "shard"
	case kindShardLocked:
		return "shard_locked"
	default:
		return "unknown"
	}
}

type entry[S any, D dispatch.Dispatch[S]] struct {
	kind     entryKind
	affinity uint64
	cell     *cell[S] // resident entries only
	shard    int      // shard entries only

	overflow  overflow[S, D]
	paused    bool
	migrating bool
	// a Lock was forwarded and the shard has not answered yet
	locking bool
}

func (e *entry[S, D]) resident() bool {
	return e.kind == kindLocal || e.kind == kindLocalLocked
}

// registry maps actor ids to entries. Only the owning loop touches it.
type registry[S any, D dispatch.Dispatch[S]] struct {
	entries map[ActorID]*entry[S, D]
}

func newRegistry[S any, D dispatch.Dispatch[S]]() *registry[S, D] {
	return &registry[S, D]{entries: make(map[ActorID]*entry[S, D])}
}

func (r *registry[S, D]) get(id ActorID) (*entry[S, D], bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry[S, D]) insert(id ActorID, e *entry[S, D]) { r.entries[id] = e }

func (r *registry[S, D]) remove(id ActorID) { delete(r.entries, id) }

// ids returns the registered ids in ascending order.
func (r *registry[S, D]) ids() []ActorID {
	ids := make([]ActorID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// residents counts the actors whose state lives on this runner.
func (r *registry[S, D]) residents() int {
	n := 0
	for _, e := range r.entries {
		if e.resident() {
			n++
		}
	}
	return n
}
