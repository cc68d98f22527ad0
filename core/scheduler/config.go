package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultIntervalMinutes matches the width of a demand bucket.
const DefaultIntervalMinutes = 15

// Config controls the periodic pipeline trigger.
type Config struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	IntervalMinutes int  `json:"interval_minutes" yaml:"interval_minutes"`
	RunOnStart      bool `json:"run_on_start" yaml:"run_on_start"`
}

// DefaultConfig returns a disabled scheduler with the default interval.
func DefaultConfig() Config {
	return Config{IntervalMinutes: DefaultIntervalMinutes}
}

// Interval returns the configured period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Validate checks the interval of an enabled scheduler.
func (c Config) Validate() error {
	if c.Enabled && c.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %d", c.IntervalMinutes)
	}
	return nil
}

// LoadConfig loads a Config from a JSON or YAML file. Missing fields keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeConfig(f, ext)
}

// DecodeConfig reads from r to decode a Config.
func DecodeConfig(r io.Reader, format string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	return cfg, cfg.Validate()
}
