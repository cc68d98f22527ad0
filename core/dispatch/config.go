package dispatch

import "github.com/kilianp07/bikeflow/core/dispatch/logging"

// Config defines task queue settings.
type Config struct {
	// ListLimit caps List results when the caller gives no limit.
	ListLimit int            `json:"list_limit"`
	Log       logging.Config `json:"log"`
}

// DefaultConfig returns the default queue settings.
func DefaultConfig() Config {
	return Config{ListLimit: 100, Log: logging.DefaultConfig()}
}
