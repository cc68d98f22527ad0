package rebalance

import "fmt"

// TargetFill is the fraction of capacity every station is steered toward.
const TargetFill = 0.5

// Config holds the matcher settings.
type Config struct {
	// MaxDistanceM discards source/sink pairs farther apart than this.
	MaxDistanceM float64 `json:"max_distance_m"`
}

// DefaultConfig returns the default matcher settings.
func DefaultConfig() Config { return Config{MaxDistanceM: 5000} }

// Validate checks the distance bound.
func (c Config) Validate() error {
	if c.MaxDistanceM < 0 {
		return fmt.Errorf("max_distance_m must not be negative")
	}
	return nil
}
