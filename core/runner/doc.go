// Package runner executes dispatches against actor state.
//
// Two kinds of runner read [Message] values from a bounded
// [mailbox.Channel] in chunks:
//
//   - [Isolated] owns exactly one actor. [NewBlockingIsolated] pins it to an
//     OS thread and only accepts synchronous dispatch types;
//     [NewIsolated] is the cooperative variant.
//   - [Router] holds many actors. The root router watches its own load and,
//     after SpawnAfterTicks consecutive full ticks, spawns a shard and
//     migrates the actors whose rendezvous placement moved to it. Refs stay
//     bound to the root, which forwards to the owning shard.
//
// Within one actor dispatches start in arrival order. A dispatch whose
// access is [borrow.Mut] runs alone; others run in parallel as long as the
// fields they borrow do not conflict. StrictOrder turns parallelism off.
//
// # Locking
//
// [Lock] freezes an actor for an outside borrower: the notify resolves
// once nothing runs against the state, and deliveries are buffered until
// [Unlock]. [Pause] goes further and hands the state out; [Resume] brings
// it back. Buffered messages are replayed in arrival order. What happens
// when buffers or shard channels fill up is decided by [MessageDropping].
//
// # Usage
//
//	r, err := runner.NewRouter[Todos, dispatch.Sync[Todos]](runner.RouterOptions{
//	    Options:   runner.Options{Name: "todos"},
//	    MaxShards: 4,
//	})
//	ref, err := r.Spawn(ctx, 0, &Todos{})
//	err = ref.Send(ctx, dispatch.Write(func(s *Todos) error { ... }))
package runner
