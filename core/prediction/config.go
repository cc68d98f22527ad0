package prediction

import "fmt"

// Config holds the risk thresholds of the forecast engine.
type Config struct {
	// EmptyThreshold marks a station empty_soon at or below this bike count.
	EmptyThreshold int `json:"empty_threshold"`
	// FullMargin marks a station full_soon within this many bikes of capacity.
	FullMargin int `json:"full_margin"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config { return Config{EmptyThreshold: 2, FullMargin: 3} }

// Validate rejects negative thresholds.
func (c Config) Validate() error {
	if c.EmptyThreshold < 0 || c.FullMargin < 0 {
		return fmt.Errorf("forecast thresholds must not be negative")
	}
	return nil
}
