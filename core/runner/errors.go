package runner

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors, returned when a runner is created
	ErrInvalidOptions        = errors.New("invalid runner options")
	ErrAsyncInBlockingRunner = errors.New("asynchronous dispatch cannot run on a blocking runner")

	// Routing errors
	ErrUnknownActor     = errors.New("unknown actor")
	ErrShardClosed      = errors.New("shard closed")
	ErrDropped          = errors.New("message dropped")
	ErrSpawnUnsupported = errors.New("runner does not accept spawn")

	// Lock state violations
	ErrAlreadyLocked = errors.New("actor already locked")
	ErrNotLocked     = errors.New("actor not locked")
	ErrPaused        = errors.New("actor paused")
	ErrNotPaused     = errors.New("actor not paused")

	// Reply errors
	ErrKillUnacknowledged = errors.New("runner closed before acknowledging kill")
	ErrReplyDropped       = errors.New("runner closed before replying")
)

// DispatchError is reported when a dispatch fails or panics. It never stops
// the runner.
type DispatchError struct {
	Actor    ActorID
	Dispatch string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s on actor %s: %v", e.Dispatch, e.Actor, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
