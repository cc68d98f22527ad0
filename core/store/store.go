// Package store declares the persistence boundaries consumed by the
// forecasting pipeline and the task queue. Implementations live under
// infra/store.
package store

import (
	"context"

	"github.com/kilianp07/bikeflow/core/model"
)

// TripSource yields the historical trip events used to build demand profiles.
type TripSource interface {
	Trips(ctx context.Context) ([]model.TripEvent, error)
}

// TripSink stores ingested trips. Inserting a ride id twice is a no-op.
type TripSink interface {
	InsertTrips(ctx context.Context, trips []model.TripEvent) (int, error)
}

// StationStore holds station metadata.
type StationStore interface {
	UpsertStations(ctx context.Context, stations []model.Station) error
	Stations(ctx context.Context) ([]model.Station, error)
}

// InventoryStore exposes the live inventory feed.
type InventoryStore interface {
	Snapshots(ctx context.Context) ([]model.InventorySnapshot, error)
	PutSnapshot(ctx context.Context, s model.InventorySnapshot) error
}

// ProfileStore persists demand buckets keyed by station and bucket.
type ProfileStore interface {
	UpsertBuckets(ctx context.Context, buckets []model.DemandBucket) error
	Buckets(ctx context.Context) ([]model.DemandBucket, error)
}

// ForecastStore persists forecast records keyed by station and timestamp.
type ForecastStore interface {
	UpsertForecasts(ctx context.Context, recs []model.ForecastRecord) error
	// LatestForecasts returns the records sharing the most recent forecast
	// timestamp across the fleet.
	LatestForecasts(ctx context.Context) ([]model.ForecastRecord, error)
}

// SuggestionStore publishes suggestion sets as generations. Readers always
// see one complete generation.
type SuggestionStore interface {
	PublishSuggestions(ctx context.Context, batch []model.Suggestion) (generation int64, err error)
	Suggestions(ctx context.Context) ([]model.Suggestion, error)
}

// TaskStore implements the transactional task lifecycle.
type TaskStore interface {
	// PromoteSuggestion creates a ready task from the suggestion and deletes
	// the suggestion in one atomic step.
	PromoteSuggestion(ctx context.Context, suggestionID int64) (model.Task, error)
	CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error)
	// ClaimTask assigns the oldest ready task not locked by a concurrent
	// claim to workerID.
	ClaimTask(ctx context.Context, workerID string) (model.Task, error)
	CompleteTask(ctx context.Context, taskID int64) (model.Task, error)
	Task(ctx context.Context, taskID int64) (model.Task, error)
	Tasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
}

// TaskFilter restricts Tasks results. A nil Status matches every status.
type TaskFilter struct {
	Status   *model.TaskStatus
	WorkerID string
	Limit    int
}

// Store aggregates every interface implemented by a storage backend.
type Store interface {
	TripSource
	TripSink
	StationStore
	InventoryStore
	ProfileStore
	ForecastStore
	SuggestionStore
	TaskStore
	Close() error
}
