// Package app wires a root [runner.Router] into a small service facade that
// addresses actors by string key.
//
// The first lookup of a key spawns its actor with an affinity derived from
// the key, so the same key always places on the same shard once the router
// has scaled out.
//
// # Basic Usage
//
//	a, err := app.New[Todos, dispatch.Sync[Todos]](app.Config[Todos]{
//	    ID: "todos",
//	    Router: runner.RouterOptions{MaxShards: 4},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = a.Send(ctx, "user:123", addTodo("buy milk"))
//
//	// Graceful shutdown
//	a.Shutdown(ctx)
package app
