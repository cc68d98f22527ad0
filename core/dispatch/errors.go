package dispatch

import "github.com/kilianp07/bikeflow/core/store"

var (
	// ErrNotFound is returned when a suggestion or task id does not exist.
	ErrNotFound = store.ErrNotFound
	// ErrQueueEmpty is returned by Claim when no task is ready.
	ErrQueueEmpty = store.ErrQueueEmpty
)
