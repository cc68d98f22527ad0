package main

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	API          string
	Workers      int
	Prefix       string
	PollInterval time.Duration
	WorkDuration time.Duration
	// DropRate is the probability that a crew abandons a claimed task.
	DropRate float64
	// StopWhenEmpty ends a worker after this many consecutive empty polls.
	// Zero keeps polling until interrupted.
	StopWhenEmpty int
	Verbose       bool
}

// Validate checks the flag values.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API); err != nil {
		return fmt.Errorf("api url: %w", err)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("drop rate must be within [0,1], got %v", c.DropRate)
	}
	if c.StopWhenEmpty < 0 {
		return fmt.Errorf("stop-when-empty must be >= 0")
	}
	return nil
}
