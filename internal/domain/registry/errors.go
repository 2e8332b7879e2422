package registry

import "errors"

var (
	// ErrNotFound is returned for unknown session IDs
	ErrNotFound = errors.New("session not found")
	// ErrInvalidArgument wraps malformed requests
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTooManySessions is returned once MaxSessions are open
	ErrTooManySessions = errors.New("too many open sessions")
)
