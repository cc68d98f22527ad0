package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/bikeflow/api/suggestions"
	"github.com/kilianp07/bikeflow/infra/store/postgres"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// StorageConfig selects where trips, forecasts, suggestions and tasks live.
type StorageConfig struct {
	Backend  string          `json:"backend"`
	Postgres postgres.Config `json:"postgres"`
}

// Validate checks the backend name and its settings.
func (c StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		return c.Postgres.Validate()
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// SuggestionsView is the default shape of GET /suggestions: "moves" or
	// "stations".
	SuggestionsView string `json:"suggestions_view"`
	// Token protects the audit log and the pipeline trigger.
	Token string `json:"token"`
}

// DefaultHTTPConfig listens on :8080 and serves moves.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{Addr: ":8080", SuggestionsView: suggestions.ViewMoves}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if !suggestions.ValidView(c.SuggestionsView) {
		return fmt.Errorf("unknown suggestions_view %q", c.SuggestionsView)
	}
	return nil
}

// IngestConfig tunes the CSV loaders.
type IngestConfig struct {
	// Timezone interprets trip timestamps that carry no offset and is the
	// location demand buckets are evaluated in.
	Timezone  string `json:"timezone"`
	BatchSize int    `json:"batch_size"`
}

// Location resolves Timezone.
func (c IngestConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c IngestConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0, got %d", c.BatchSize)
	}
	return nil
}
