package runner

import (
	"slices"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
)

// MessageDropping decides what happens to deliveries a runner cannot hand
// on right away: while their actor is locked, paused or migrating, when a
// shard channel is full, and when the actor is killed with mail pending.
// Control messages are never dropped.
type MessageDropping int

const (
	// Forbidden never drops. Overflow grows without bound, forwarding
	// waits for shard capacity and a kill first runs what was buffered.
	Forbidden MessageDropping = iota
	// Always drops deliveries once OverflowLimit are buffered, when a
	// shard is full, and whatever is buffered at kill.
	Always
	// Optimized sheds the lowest priority deliveries once the overflow
	// reaches OptimizedThreshold, and only drops forwards below
	// OptimizedMinPriority.
	Optimized
)

func (m MessageDropping) String() string {
	switch m {
	case Forbidden:
		return "forbidden"
	case Always:
		return "always"
	case Optimized:
		return "optimized"
	default:
		return "unknown"
	}
}

type dropPolicy struct {
	mode        MessageDropping
	limit       int
	threshold   int
	minPriority int
}

// dropsOnFullShard reports whether a delivery with priority p is dropped
// rather than waited on when the shard channel is full.
func (p dropPolicy) dropsOnFullShard(priority int) bool {
	switch p.mode {
	case Always:
		return true
	case Optimized:
		return priority < p.minPriority
	default:
		return false
	}
}

// overflow buffers the messages of one actor while it cannot take them.
type overflow[S any, D dispatch.Dispatch[S]] struct {
	msgs       []Message[S, D]
	deliveries int
}

// push buffers m under p. If something had to go, it is returned with
// ok set: either m itself or an older delivery evicted in its favour.
func (q *overflow[S, D]) push(m Message[S, D], p dropPolicy) (dropped Message[S, D], ok bool) {
	d, isDeliver := m.(Deliver[S, D])
	if !isDeliver {
		q.msgs = append(q.msgs, m)
		return nil, false
	}

	switch p.mode {
	case Always:
		if q.deliveries >= p.limit {
			return m, true
		}
	case Optimized:
		if q.deliveries >= p.threshold {
			low := q.lowest()
			if low < 0 || q.msgs[low].(Deliver[S, D]).Priority >= d.Priority {
				return m, true
			}
			dropped = q.msgs[low]
			q.msgs = slices.Delete(q.msgs, low, low+1)
			q.msgs = append(q.msgs, m)
			return dropped, true
		}
	}

	q.msgs = append(q.msgs, m)
	q.deliveries++
	return nil, false
}

// lowest returns the index of the earliest delivery with the lowest
// priority, or -1.
func (q *overflow[S, D]) lowest() int {
	idx := -1
	var prio int
	for i, m := range q.msgs {
		d, ok := m.(Deliver[S, D])
		if !ok {
			continue
		}
		if idx < 0 || d.Priority < prio {
			idx, prio = i, d.Priority
		}
	}
	return idx
}

// drain empties the buffer and returns its messages in arrival order.
func (q *overflow[S, D]) drain() []Message[S, D] {
	msgs := q.msgs
	q.msgs, q.deliveries = nil, 0
	return msgs
}
