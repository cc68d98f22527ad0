package prediction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/bikeflow/core/logger"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

// Classify returns the risk status of a predicted bike count.
func (c Config) Classify(predicted, capacity int) model.RiskStatus {
	if capacity <= 0 {
		return model.RiskBalanced
	}
	if predicted <= c.EmptyThreshold {
		return model.RiskEmptySoon
	}
	if predicted >= capacity-c.FullMargin {
		return model.RiskFullSoon
	}
	return model.RiskBalanced
}

// Predict computes the forecast for one snapshot using flows.
func (c Config) Predict(s model.InventorySnapshot, flows FlowSource) (model.ForecastRecord, Level) {
	flow, lvl := flows.ExpectedNetFlow(s.StationID, model.BucketOf(s.LastReported))
	predicted := int(math.Round(float64(s.CurrentBikes) + flow))
	predicted = clamp(predicted, 0, s.Capacity)
	return model.ForecastRecord{
		StationID:         s.StationID,
		ForecastTS:        s.LastReported,
		PredictedBikes15m: predicted,
		Risk:              c.Classify(predicted, s.Capacity),
	}, lvl
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Engine runs the forecast pass over every inventory snapshot.
type Engine struct {
	cfg       Config
	inventory store.InventoryStore
	profiles  store.ProfileStore
	forecasts store.ForecastStore
	loc       *time.Location
	log       logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLocation looks up snapshot buckets in loc. It must match the location
// the demand profile was built in.
func WithLocation(loc *time.Location) EngineOption { return func(e *Engine) { e.loc = loc } }

// NewEngine creates a forecast engine.
func NewEngine(cfg Config, inv store.InventoryStore, prof store.ProfileStore, fc store.ForecastStore, log logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{cfg: cfg, inventory: inv, profiles: prof, forecasts: fc, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run forecasts every station and upserts the records. Each record is keyed
// by its own snapshot's last_reported time, so a station whose feed went
// stale falls out of the latest round the matcher reads.
func (e *Engine) Run(ctx context.Context) ([]model.ForecastRecord, error) {
	snaps, err := e.inventory.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	buckets, err := e.profiles.Buckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load demand buckets: %w", err)
	}
	e.log.Infof("running forecast (empty_threshold=%d, full_margin=%d) for %d stations",
		e.cfg.EmptyThreshold, e.cfg.FullMargin, len(snaps))
	profile := NewProfile(buckets)
	recs := make([]model.ForecastRecord, 0, len(snaps))
	levels := make(map[Level]int)
	for _, s := range snaps {
		if e.loc != nil {
			s.LastReported = s.LastReported.In(e.loc)
		}
		rec, lvl := e.cfg.Predict(s, profile)
		levels[lvl]++
		recs = append(recs, rec)
	}
	if err := e.forecasts.UpsertForecasts(ctx, recs); err != nil {
		return nil, fmt.Errorf("upsert forecasts: %w", err)
	}
	fields := map[string]any{"records": len(recs)}
	for lvl, n := range levels {
		fields["level_"+lvl.String()] = n
	}
	e.log.Infow("forecasts written", fields)
	return recs, nil
}
