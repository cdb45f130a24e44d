package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrMalformedInput = errors.New("malformed input")
	// ErrConflict is reserved for identity collisions on create; nothing
	// returns it yet.
	ErrConflict = errors.New("conflict")
)
