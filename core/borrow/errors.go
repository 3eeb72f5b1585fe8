package borrow

import "errors"

var (
	// ErrBorrowed means the request conflicts with an in-flight grant. Try
	// again once it is released.
	ErrBorrowed = errors.New("state is borrowed")

	ErrUnknownGrant = errors.New("grant is not outstanding")
	ErrUnknownField = errors.New("unknown field")
)
