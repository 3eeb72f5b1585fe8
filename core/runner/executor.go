package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/WIGGLES-dev/pobox/core/borrow"
	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"golang.org/x/sync/errgroup"
)

// cell is a resident actor: its state, the fields currently borrowed from
// it and the dispatches still running against it.
type cell[S any] struct {
	id      ActorID
	state   *S
	tracker *borrow.Tracker
	tasks   sync.WaitGroup
}

func newCell[S any](id ActorID, state *S, layout borrow.Layout) *cell[S] {
	return &cell[S]{id: id, state: state, tracker: borrow.NewTracker(layout)}
}

// executor runs dispatches for the loop that owns it. Exclusive (Mut)
// dispatches run inline once everything else on the cell has finished.
// The rest are started in arrival order on the parallel pool, each as soon
// as the fields it borrows are free.
//
// Only the owning loop may call submit, waitCell and wait.
type executor[S any, D dispatch.Dispatch[S]] struct {
	ctx      context.Context
	runner   string
	log      *slog.Logger
	metrics  Metrics
	onPanic  OnPanic
	onError  func(error)
	parallel bool

	group    errgroup.Group
	inflight atomic.Int32
}

func newExecutor[S any, D dispatch.Dispatch[S]](o *Options) *executor[S, D] {
	e := &executor[S, D]{
		ctx:      o.Context,
		runner:   o.Name,
		log:      o.Logger,
		metrics:  o.Metrics,
		onPanic:  o.OnPanic,
		onError:  o.OnError,
		parallel: !o.StrictOrder && o.MaxParallel > 1,
	}
	e.group.SetLimit(max(o.MaxParallel, 1))
	return e
}

// submit starts d against c.
func (e *executor[S, D]) submit(c *cell[S], d D) {
	access := d.Access()
	name := dispatch.NameOf(d)

	if access.IsMut() || !e.parallel {
		e.waitCell(c)
	}
	grant, err := e.acquire(c, access)
	if err != nil {
		e.fail(c.id, name, err)
		return
	}

	if access.IsMut() || !e.parallel {
		e.run(c, d, access, name)
		e.release(c, grant)
		return
	}

	c.tasks.Add(1)
	e.group.Go(func() error {
		defer c.tasks.Done()
		defer e.release(c, grant)

		e.metrics.ParallelInflight(e.runner, int(e.inflight.Add(1)))
		defer func() {
			e.metrics.ParallelInflight(e.runner, int(e.inflight.Add(-1)))
		}()

		e.run(c, d, access, name)
		return nil
	})
}

// acquire borrows access from c, draining the cell whenever an earlier
// dispatch still holds a conflicting field.
func (e *executor[S, D]) acquire(c *cell[S], access borrow.Access) (*borrow.Grant, error) {
	for {
		g, err := c.tracker.TryAcquire(access)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, borrow.ErrBorrowed) {
			return nil, err
		}
		e.metrics.BorrowConflict(e.runner)
		e.waitCell(c)
	}
}

func (e *executor[S, D]) release(c *cell[S], g *borrow.Grant) {
	if err := c.tracker.Release(g); err != nil {
		e.log.Error("release borrow", slog.String("actor", c.id.String()), slog.Any("error", err))
	}
}

func (e *executor[S, D]) run(c *cell[S], d D, access borrow.Access, name string) {
	defer e.metrics.DispatchDuration(name).ObserveDuration()

	err := e.call(c.state, d, access.IsMut(), name)
	e.metrics.DispatchCompleted(name, err == nil)
	if err != nil {
		e.fail(c.id, name, err)
	}
}

// call invokes the family matching d's flavor, containing panics.
func (e *executor[S, D]) call(state *S, d D, mut bool, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.DispatchPanic(name)
			e.onPanic(r, debug.Stack(), d)
			err = fmt.Errorf("%w: %v", dispatch.ErrPanicked, r)
		}
	}()

	switch {
	case d.IsAsync() && mut:
		return dispatch.Await(e.ctx, d.SpawnMut(e.ctx, state))
	case d.IsAsync():
		return dispatch.Await(e.ctx, d.Spawn(e.ctx, state))
	case mut:
		return d.RunSyncMut(state)
	default:
		return d.RunSync(state)
	}
}

func (e *executor[S, D]) fail(id ActorID, name string, err error) {
	e.log.Error("dispatch failed", slog.String("actor", id.String()), slog.String("dispatch", name), slog.Any("error", err))
	if e.onError != nil {
		e.onError(&DispatchError{Actor: id, Dispatch: name, Err: err})
	}
}

// waitCell blocks until nothing runs against c.
func (e *executor[S, D]) waitCell(c *cell[S]) { c.tasks.Wait() }

// wait blocks until the pool is idle.
func (e *executor[S, D]) wait() { _ = e.group.Wait() }
