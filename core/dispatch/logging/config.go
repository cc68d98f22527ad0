package logging

import "fmt"

// Config selects and tunes the audit log backend.
type Config struct {
	// Backend is one of "none", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl backend when positive.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// DefaultConfig keeps the audit log in a rotating JSONL file.
func DefaultConfig() Config {
	return Config{Backend: "jsonl", Path: "tasks.log", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 30}
}

// Validate checks the backend and path.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown log backend %q", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("log path is required for backend %s", c.Backend)
	}
	return nil
}

// New opens the configured LogStore.
func New(c Config) (LogStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case "sqlite":
		return NewSQLiteStore(c.Path)
	case "jsonl":
		if c.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
		}
		return NewJSONLStore(c.Path)
	}
	return NopStore{}, nil
}
