// Package pipeline runs the batch passes in order: demand profile, forecast,
// then rebalancing. Only one run executes at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/bikeflow/core/demand"
	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/logger"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	coremon "github.com/kilianp07/bikeflow/core/monitoring"
	"github.com/kilianp07/bikeflow/core/prediction"
	"github.com/kilianp07/bikeflow/core/rebalance"
	"github.com/kilianp07/bikeflow/internal/eventbus"
)

// ErrBusy is returned by Run while another run is in progress.
var ErrBusy = errors.New("pipeline run already in progress")

// Summary describes a completed run.
type Summary struct {
	Buckets     int           `json:"buckets"`
	Forecasts   int           `json:"forecasts"`
	Generation  int64         `json:"generation"`
	Suggestions int           `json:"suggestions"`
	TotalBikes  int           `json:"total_bikes"`
	ForecastTS  time.Time     `json:"forecast_ts"`
	Duration    time.Duration `json:"duration_ns"`
}

// Runner executes the pipeline.
type Runner struct {
	mu      sync.Mutex
	builder *demand.Builder
	engine  *prediction.Engine
	matcher *rebalance.Matcher
	sink    coremetrics.MetricsSink
	bus     *eventbus.TypedBus[events.PipelineEvent]
	log     logger.Logger
	now     func() time.Time
}

// Option customises a Runner.
type Option func(*Runner)

// WithMetricsSink records forecasts and suggestion runs on s when it
// implements the matching recorder interfaces.
func WithMetricsSink(s coremetrics.MetricsSink) Option {
	return func(r *Runner) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithEventBus publishes one PipelineEvent per stage on bus.
func WithEventBus(bus *eventbus.TypedBus[events.PipelineEvent]) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner wires the three passes together.
func NewRunner(b *demand.Builder, e *prediction.Engine, m *rebalance.Matcher, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		builder: b,
		engine:  e,
		matcher: m,
		sink:    coremetrics.NopSink{},
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes every stage in order and stops at the first failure. It
// returns ErrBusy without doing anything when a run is already active.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.mu.TryLock() {
		runsTotal.WithLabelValues("busy").Inc()
		return Summary{}, ErrBusy
	}
	defer r.mu.Unlock()

	start := r.now()
	var sum Summary
	err := r.stage(ctx, events.StageDemand, func(ctx context.Context) (int, int64, error) {
		buckets, err := r.builder.Run(ctx)
		sum.Buckets = len(buckets)
		return len(buckets), 0, err
	})
	if err == nil {
		err = r.stage(ctx, events.StageForecast, func(ctx context.Context) (int, int64, error) {
			recs, err := r.engine.Run(ctx)
			if err != nil {
				return 0, 0, err
			}
			sum.Forecasts = len(recs)
			if fr, ok := r.sink.(coremetrics.ForecastRecorder); ok {
				if rerr := fr.RecordForecasts(recs); rerr != nil {
					r.log.Warnf("record forecasts: %v", rerr)
				}
			}
			return len(recs), 0, nil
		})
	}
	if err == nil {
		err = r.stage(ctx, events.StageRebalance, func(ctx context.Context) (int, int64, error) {
			res, err := r.matcher.Run(ctx)
			if err != nil {
				return 0, 0, err
			}
			sum.Generation = res.Generation
			sum.Suggestions = len(res.Suggestions)
			sum.TotalBikes = res.TotalBikes
			sum.ForecastTS = res.ForecastTS
			r.recordSuggestions(res)
			return len(res.Suggestions), res.Generation, nil
		})
	}
	sum.Duration = r.now().Sub(start)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return sum, err
	}
	runsTotal.WithLabelValues("ok").Inc()
	lastSuccess.Set(float64(r.now().Unix()))
	r.log.Infow("pipeline finished", map[string]any{
		"buckets":     sum.Buckets,
		"forecasts":   sum.Forecasts,
		"generation":  sum.Generation,
		"suggestions": sum.Suggestions,
		"total_bikes": sum.TotalBikes,
		"duration_ms": sum.Duration.Milliseconds(),
	})
	return sum, nil
}

func (r *Runner) stage(ctx context.Context, name string, fn func(context.Context) (int, int64, error)) error {
	start := r.now()
	n, gen, err := fn(ctx)
	ev := events.PipelineEvent{
		Stage:      name,
		Records:    n,
		Generation: gen,
		Duration:   r.now().Sub(start),
		Err:        err,
		Time:       r.now(),
	}
	if r.bus != nil {
		r.bus.Publish(ev)
	}
	if err != nil {
		r.log.Errorf("pipeline stage %s failed: %v", name, err)
		coremon.CaptureException(err, map[string]string{"module": "pipeline", "stage": name})
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

func (r *Runner) recordSuggestions(res rebalance.Result) {
	sr, ok := r.sink.(coremetrics.SuggestionRecorder)
	if !ok {
		return
	}
	run := coremetrics.SuggestionRun{
		Generation: res.Generation,
		Count:      len(res.Suggestions),
		TotalBikes: res.TotalBikes,
		Time:       r.now(),
	}
	if err := sr.RecordSuggestions(run); err != nil {
		r.log.Warnf("record suggestions: %v", err)
	}
}
