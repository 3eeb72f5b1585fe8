// Package borrow decides whether operations on the same actor state may run
// at the same time.
//
// Every state type has a [Layout]: a numbering of its fields. An operation
// declares an [Access], a pair of masks naming the fields it wants
// exclusively and the fields it only reads. A [Tracker] keeps the masks of
// everything currently granted and answers, without ever blocking, whether
// a new request conflicts with them.
//
// A request is rejected with [ErrBorrowed] when
//
//	(heldExclusive | heldShared) & wantExclusive != 0 ||
//	heldExclusive & wantShared != 0
//
// Whole-state mutations use [Mut], which expands to every field exclusively:
//
//	layout := borrow.LayoutOf[Todos]()
//	tr := borrow.NewTracker(layout)
//	g, err := tr.TryAcquire(borrow.Read(layout.MustField("Items")))
//	...
//	_ = tr.Release(g)
//
// What to do with a rejected request is up to the caller; runners wait for
// the conflicting operations to finish and try again.
package borrow
