// Package mailbox provides the bounded channel every runner reads its
// messages from.
//
// A [Channel] has a fixed capacity chosen at creation. Producers pick how
// they want to behave when it is full:
//
//   - [Channel.TrySend] never waits and returns [ErrFull] or [ErrClosed]
//   - [Channel.SendBlocking] parks the calling goroutine until there is room
//   - [Channel.Send] waits like SendBlocking but also gives up when its
//     context is done
//
// The consumer drains in batches with [Channel.RecvMany]. An empty batch
// with a nil error means the channel was closed and everything buffered
// before the close has already been handed out.
//
//	ch, _ := mailbox.New[string](16)
//	_ = ch.TrySend("hello")
//	batch, err := ch.RecvMany(ctx, 8)
//
// Closing is terminal: no send succeeds afterwards, but buffered messages
// stay receivable.
package mailbox
