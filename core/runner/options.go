package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/WIGGLES-dev/pobox/core/borrow"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	// OnPanic is called when a dispatch panics. msg is the dispatch.
	OnPanic func(recovered any, stack []byte, msg any)

	// Options configure both runner kinds.
	Options struct {
		// Name labels logs and metrics. Defaults to a random id.
		Name    string
		Context context.Context
		Logger  *slog.Logger
		Metrics Metrics
		OnPanic OnPanic
		// OnError receives every [*DispatchError] and routing failure. It
		// may be called concurrently.
		OnError func(error)

		// Capacity bounds the runner channel. Defaults to 1024.
		Capacity int
		// ChunkSize is the most messages taken per tick. Defaults to 64.
		ChunkSize int

		Dropping MessageDropping
		// OverflowLimit caps buffered deliveries per actor under the
		// Always and Optimized policies. Defaults to Capacity.
		OverflowLimit int
		// OptimizedThreshold is the fraction of OverflowLimit at which the
		// Optimized policy starts shedding. Defaults to 0.75.
		OptimizedThreshold float64
		// OptimizedMinPriority is the lowest priority the Optimized policy
		// still waits for when a shard is full. Defaults to 1.
		OptimizedMinPriority int

		// StrictOrder runs every dispatch inline, in arrival order.
		StrictOrder bool
		// MaxParallel bounds concurrently running non-exclusive dispatches.
		// Defaults to 32.
		MaxParallel int

		// Layout numbers the state fields for borrow tracking. Defaults to
		// the exported fields of the state struct.
		Layout borrow.Layout
	}

	// IsolatedOptions configure a runner owning exactly one actor.
	IsolatedOptions[S any] struct {
		Options
		// State is the initial state. Defaults to a new zero S.
		State *S
	}

	// RouterOptions configure a routing runner.
	RouterOptions struct {
		Options
		// MaxShards caps the number of shards the root spawns under load.
		// Zero disables sharding.
		MaxShards int
		// SpawnAfterTicks is how many consecutive full ticks trigger a new
		// shard. Defaults to 3.
		SpawnAfterTicks int
		// Seed salts rendezvous placement.
		Seed string
	}
)

func (o *Options) setDefaults(prefix string) error {
	if o.Capacity < 0 || o.ChunkSize < 0 || o.OverflowLimit < 0 || o.MaxParallel < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidOptions)
	}
	if o.OptimizedThreshold < 0 || o.OptimizedThreshold > 1 {
		return fmt.Errorf("%w: optimized threshold %v not in [0, 1]", ErrInvalidOptions, o.OptimizedThreshold)
	}
	if o.Name == "" {
		o.Name = fmt.Sprintf("%s-%s", prefix, gonanoid.Must(6))
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With(slog.String("runner", o.Name))
	if o.Metrics == nil {
		o.Metrics = NopMetrics()
	}
	if o.OnPanic == nil {
		log := o.Logger
		o.OnPanic = func(recovered any, stack []byte, msg any) {
			log.Error("dispatch panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.Any("msg", msg))
		}
	}
	if o.Capacity == 0 {
		o.Capacity = 1024
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = 64
	}
	if o.OverflowLimit == 0 {
		o.OverflowLimit = o.Capacity
	}
	if o.OptimizedThreshold == 0 {
		o.OptimizedThreshold = 0.75
	}
	if o.OptimizedMinPriority == 0 {
		o.OptimizedMinPriority = 1
	}
	if o.MaxParallel == 0 {
		o.MaxParallel = 32
	}
	return nil
}

func (o *Options) policy() dropPolicy {
	threshold := int(math.Ceil(float64(o.OverflowLimit) * o.OptimizedThreshold))
	return dropPolicy{
		mode:        o.Dropping,
		limit:       o.OverflowLimit,
		threshold:   max(threshold, 1),
		minPriority: o.OptimizedMinPriority,
	}
}

func layoutFor[S any](o *Options) borrow.Layout {
	if o.Layout.IsZero() {
		return borrow.LayoutOf[S]()
	}
	return o.Layout
}

func (o *RouterOptions) setDefaults() error {
	if err := o.Options.setDefaults("router"); err != nil {
		return err
	}
	if o.MaxShards < 0 || o.SpawnAfterTicks < 0 {
		return fmt.Errorf("%w: negative shard settings", ErrInvalidOptions)
	}
	if o.SpawnAfterTicks == 0 {
		o.SpawnAfterTicks = 3
	}
	return nil
}
