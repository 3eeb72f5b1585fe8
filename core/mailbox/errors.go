package mailbox

import "errors"

var (
	// Send errors
	ErrFull   = errors.New("mailbox full")
	ErrClosed = errors.New("mailbox closed")

	// Receive errors
	ErrEmpty = errors.New("mailbox empty")

	ErrInvalidCapacity = errors.New("mailbox capacity must be positive")
)
