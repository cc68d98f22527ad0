// Package postgres implements core/store on PostgreSQL through pgx.
//
// Claiming uses FOR UPDATE SKIP LOCKED so concurrent workers never block on
// each other's candidate row. Suggestion generations are swapped by updating
// a single pointer row in the same transaction that inserts the new batch.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/bikeflow/core/store"
)

// Config holds the connection settings.
type Config struct {
	DSN      string `json:"dsn"`
	MaxConns int32  `json:"max_conns"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres dsn is required")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must be >= 0, got %d", c.MaxConns)
	}
	return nil
}

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects, pings and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	station_id TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS trips (
	ride_id          TEXT PRIMARY KEY,
	start_station_id TEXT NOT NULL DEFAULT '',
	end_station_id   TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ,
	ended_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS station_inventory (
	station_id    TEXT PRIMARY KEY,
	current_bikes INTEGER NOT NULL,
	capacity      INTEGER NOT NULL,
	last_reported TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS demand_profile (
	station_id         TEXT NOT NULL,
	day_of_week        SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	hour_of_day        SMALLINT NOT NULL CHECK (hour_of_day BETWEEN 0 AND 23),
	quarter_hour       SMALLINT NOT NULL CHECK (quarter_hour BETWEEN 0 AND 3),
	avg_arrivals_15m   DOUBLE PRECISION NOT NULL,
	avg_departures_15m DOUBLE PRECISION NOT NULL,
	avg_net_flow_15m   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (station_id, day_of_week, hour_of_day, quarter_hour)
);

CREATE TABLE IF NOT EXISTS forecasts (
	station_id          TEXT NOT NULL,
	forecast_ts         TIMESTAMPTZ NOT NULL,
	predicted_bikes_15m INTEGER NOT NULL,
	risk_status         TEXT NOT NULL CHECK (risk_status IN ('empty_soon', 'full_soon', 'balanced')),
	PRIMARY KEY (station_id, forecast_ts)
);

CREATE TABLE IF NOT EXISTS suggestion_generations (
	id         BIGSERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS suggestion_current (
	singleton  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	generation BIGINT NOT NULL REFERENCES suggestion_generations(id)
);

CREATE TABLE IF NOT EXISTS suggestions (
	id              BIGSERIAL PRIMARY KEY,
	generation      BIGINT NOT NULL REFERENCES suggestion_generations(id) ON DELETE CASCADE,
	from_station_id TEXT NOT NULL,
	to_station_id   TEXT NOT NULL,
	qty             INTEGER NOT NULL CHECK (qty > 0),
	distance_m      DOUBLE PRECISION NOT NULL,
	forecast_ts     TIMESTAMPTZ NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS suggestions_generation_idx ON suggestions (generation);

CREATE TABLE IF NOT EXISTS tasks (
	id              BIGSERIAL PRIMARY KEY,
	from_station_id TEXT NOT NULL,
	to_station_id   TEXT NOT NULL,
	qty             INTEGER NOT NULL CHECK (qty > 0),
	reason          TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'ready' CHECK (status IN ('ready', 'assigned', 'completed')),
	worker_id       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	assigned_at     TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS tasks_ready_idx ON tasks (created_at, id) WHERE status = 'ready';
`
