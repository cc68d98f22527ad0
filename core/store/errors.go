package store

import "errors"

var (
	// ErrNotFound is returned when a referenced suggestion or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrQueueEmpty is returned by ClaimTask when no ready task is available.
	ErrQueueEmpty = errors.New("no ready task available")
)
