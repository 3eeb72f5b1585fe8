// Package sf deduplicates concurrent calls with the same key.
//
// core/app uses it so that concurrent first lookups of a keyed actor spawn
// it exactly once:
//
//	var g sf.Group[runner.Ref[S, D]]
//	ref, _, err := g.Do(ctx, "user:123", func() (runner.Ref[S, D], error) {
//	    return router.Spawn(ctx, affinity, nil)
//	})
package sf
