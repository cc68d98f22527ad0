package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/core/demand"
	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/prediction"
	"github.com/kilianp07/bikeflow/core/rebalance"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/infra/store/memory"
	"github.com/kilianp07/bikeflow/internal/eventbus"
)

var reported = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.UpsertStations(ctx, []model.Station{
		{ID: "A", Lat: 48.85, Lng: 2.35},
		{ID: "B", Lat: 48.86, Lng: 2.35},
	}))
	require.NoError(t, st.PutSnapshot(ctx, model.InventorySnapshot{StationID: "A", CurrentBikes: 1, Capacity: 20, LastReported: reported}))
	require.NoError(t, st.PutSnapshot(ctx, model.InventorySnapshot{StationID: "B", CurrentBikes: 19, Capacity: 20, LastReported: reported}))
	return st
}

func newRunner(trips store.TripSource, st store.Store, opts ...Option) *Runner {
	log := logger.NopLogger{}
	return NewRunner(
		demand.NewBuilder(trips, st, log),
		prediction.NewEngine(prediction.DefaultConfig(), st, st, st, log),
		rebalance.NewMatcher(rebalance.DefaultConfig(), st, st, st, st, log),
		log, opts...,
	)
}

type recordingSink struct {
	coremetrics.NopSink
	mu        sync.Mutex
	forecasts []model.ForecastRecord
	runs      []coremetrics.SuggestionRun
}

func (s *recordingSink) RecordForecasts(recs []model.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = append(s.forecasts, recs...)
	return nil
}

func (s *recordingSink) RecordSuggestions(run coremetrics.SuggestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func TestRunProducesSuggestions(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	st := seed(t)
	sink := &recordingSink{}
	bus := eventbus.NewTyped[events.PipelineEvent]()
	sub := bus.Subscribe()

	r := newRunner(st, st, WithMetricsSink(sink), WithEventBus(bus))
	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Forecasts)
	assert.Equal(t, 1, sum.Suggestions)
	assert.Equal(t, 9, sum.TotalBikes)
	assert.Equal(t, int64(1), sum.Generation)

	got, err := st.Suggestions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].FromStationID)
	assert.Equal(t, "A", got[0].ToStationID)
	assert.Equal(t, 9, got[0].Qty)

	assert.Len(t, sink.forecasts, 2)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, 9, sink.runs[0].TotalBikes)

	var stages []string
	for i := 0; i < 3; i++ {
		ev := <-sub
		assert.NoError(t, ev.Err)
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []string{events.StageDemand, events.StageForecast, events.StageRebalance}, stages)
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("ok")))

	// a second run replaces the generation
	sum, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Generation)
	got, err = st.Suggestions(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

type failingInventory struct {
	store.Store
}

func (failingInventory) Snapshots(context.Context) ([]model.InventorySnapshot, error) {
	return nil, errors.New("inventory feed down")
}

func TestRunStopsAtFailingStage(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	st := failingInventory{Store: seed(t)}
	bus := eventbus.NewTyped[events.PipelineEvent]()
	sub := bus.Subscribe()

	_, err := newRunner(st, st, WithEventBus(bus)).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forecast stage")

	first := <-sub
	second := <-sub
	assert.Equal(t, events.StageDemand, first.Stage)
	assert.NoError(t, first.Err)
	assert.Equal(t, events.StageForecast, second.Stage)
	assert.Error(t, second.Err)
	select {
	case ev := <-sub:
		t.Fatalf("unexpected stage %s after failure", ev.Stage)
	default:
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("error")))
}

type blockingTrips struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingTrips) Trips(context.Context) ([]model.TripEvent, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	st := seed(t)
	trips := blockingTrips{entered: make(chan struct{}), release: make(chan struct{})}
	r := newRunner(trips, st)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()
	<-trips.entered

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("busy")))

	close(trips.release)
	require.NoError(t, <-done)
}
