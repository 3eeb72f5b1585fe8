package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/WIGGLES-dev/pobox/core/dispatch"
	"github.com/WIGGLES-dev/pobox/core/runner"
	"github.com/WIGGLES-dev/pobox/core/sf"
	"github.com/cespare/xxhash/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Config[S any] struct {
	ID      string
	Context context.Context
	Log     *slog.Logger
	Metrics runner.Metrics
	Router  runner.RouterOptions
	// Init builds the state of a keyed actor on first use. Defaults to a
	// zero S.
	Init func(key string) *S
}

// App runs one root router and addresses its actors by string key.
type App[S any, D dispatch.Dispatch[S]] struct {
	ctx       context.Context
	cancelCtx context.CancelFunc
	log       *slog.Logger
	router    *runner.Router[S, D]
	init      func(key string) *S

	flight sf.Group[runner.Ref[S, D]]
	mu     sync.RWMutex
	actors map[string]runner.Ref[S, D]
}

func New[S any, D dispatch.Dispatch[S]](config Config[S]) (app *App[S, D], err error) {
	app = &App[S, D]{actors: map[string]runner.Ref[S, D]{}}

	if config.ID == "" {
		config.ID = fmt.Sprintf("app-%s", gonanoid.Must(6))
	}

	// === logger ===
	if config.Log == nil {
		config.Log = slog.Default()
	}
	app.log = config.Log.With(slog.String("app", config.ID))

	// === context ===
	if config.Context == nil {
		config.Context = context.Background()
	}
	app.ctx, app.cancelCtx = context.WithCancel(config.Context)

	// === actor state ===
	app.init = config.Init
	if app.init == nil {
		app.init = func(string) *S { return new(S) }
	}

	// === router ===
	opts := config.Router
	if opts.Name == "" {
		opts.Name = config.ID
	}
	if opts.Seed == "" {
		opts.Seed = config.ID
	}
	opts.Context = app.ctx
	opts.Logger = app.log
	if config.Metrics != nil {
		opts.Metrics = config.Metrics
	}

	app.log.Debug("creating app", slog.String("router", opts.Name), slog.Int("max_shards", opts.MaxShards))

	app.router, err = runner.NewRouter[S, D](opts)
	if err != nil {
		app.cancelCtx()
		return nil, err
	}
	return app, nil
}

func (a *App[S, D]) Router() *runner.Router[S, D] { return a.router }

// Actor returns the actor for key, spawning it on first use. Concurrent
// first lookups spawn it once.
func (a *App[S, D]) Actor(ctx context.Context, key string) (runner.Ref[S, D], error) {
	a.mu.RLock()
	ref, ok := a.actors[key]
	a.mu.RUnlock()
	if ok {
		return ref, nil
	}

	ref, _, err := a.flight.Do(ctx, key, func() (runner.Ref[S, D], error) {
		a.mu.RLock()
		ref, ok := a.actors[key]
		a.mu.RUnlock()
		if ok {
			return ref, nil
		}

		ref, err := a.router.Spawn(a.ctx, Affinity(key), a.init(key))
		if err != nil {
			return ref, err
		}
		a.mu.Lock()
		a.actors[key] = ref
		a.mu.Unlock()
		a.log.Debug("spawned actor", slog.String("key", key), slog.String("actor", ref.ID().String()))
		return ref, nil
	})
	return ref, err
}

// Send delivers d to the actor for key.
func (a *App[S, D]) Send(ctx context.Context, key string, d D) error {
	ref, err := a.Actor(ctx, key)
	if err != nil {
		return err
	}
	return ref.Send(ctx, d)
}

// Forget kills the actor for key and returns its final state.
func (a *App[S, D]) Forget(ctx context.Context, key string) (runner.KillResult[S], error) {
	a.mu.RLock()
	ref, ok := a.actors[key]
	a.mu.RUnlock()
	if !ok {
		return runner.KillResult[S]{}, fmt.Errorf("%w: %s", runner.ErrUnknownActor, key)
	}

	res, err := ref.Kill(ctx)
	if err != nil && !errors.Is(err, runner.ErrUnknownActor) {
		// the actor may still be alive; keep it addressable
		return res, err
	}
	a.mu.Lock()
	if cur, ok := a.actors[key]; ok && cur.ID() == ref.ID() {
		delete(a.actors, key)
	}
	a.mu.Unlock()
	return res, err
}

// Keys returns the keys of the live actors, sorted.
func (a *App[S, D]) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.actors))
	for k := range a.actors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Shutdown closes the router and waits until it has drained or ctx is
// done.
func (a *App[S, D]) Shutdown(ctx context.Context) error {
	a.router.Close()
	select {
	case <-a.router.Done():
		a.cancelCtx()
		a.log.Info("app stopped")
		return nil
	case <-ctx.Done():
		a.cancelCtx()
		return ctx.Err()
	}
}

// Stop cancels the app context without waiting for queued messages.
func (a *App[S, D]) Stop() {
	a.cancelCtx()
	<-a.router.Done()
}

// Done is closed once the router has exited.
func (a *App[S, D]) Done() <-chan struct{} { return a.router.Done() }

// Affinity maps a key to the placement hint used for its actor.
func Affinity(key string) uint64 {
	if h := xxhash.Sum64String(key); h != 0 {
		return h
	}
	return 1
}
