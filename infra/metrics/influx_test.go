package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/model"
)

type capture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, strings.TrimSpace(string(data)))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (c *capture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.bodies...)
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordTaskEvent(t *testing.T) {
	var c capture
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})

	now := time.Date(2024, 5, 6, 8, 15, 0, 0, time.UTC)
	w := "w1"
	ev := events.TaskEvent{
		ID:     "ev-1",
		Action: events.TaskClaimed,
		Task:   model.Task{ID: 7, FromStationID: "B", ToStationID: "A", Qty: 9, Status: model.TaskAssigned, WorkerID: &w},
		Time:   now,
	}
	require.NoError(t, sink.RecordTaskEvent(ev))

	p := write.NewPointWithMeasurement("task_event").
		AddTag("action", "claimed").
		AddTag("status", "assigned").
		AddTag("from_station_id", "B").
		AddTag("to_station_id", "A").
		AddTag("worker_id", "w1").
		AddTag("event_id", "ev-1").
		AddField("task_id", int64(7)).
		AddField("qty", 9).
		SetTime(now)
	assert.Equal(t, []string{line(p)}, c.all())
}

func TestInfluxSink_RecordForecastsSingleRequest(t *testing.T) {
	var c capture
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})

	ts := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	recs := []model.ForecastRecord{
		{StationID: "A", ForecastTS: ts, PredictedBikes15m: 1, Risk: model.RiskEmptySoon},
		{StationID: "B", ForecastTS: ts, PredictedBikes15m: 19, Risk: model.RiskFullSoon},
	}
	require.NoError(t, sink.RecordForecasts(recs))
	require.NoError(t, sink.RecordForecasts(nil))

	bodies := c.all()
	require.Len(t, bodies, 1)
	a := write.NewPointWithMeasurement("forecast").
		AddTag("station_id", "A").
		AddTag("risk", "empty_soon").
		AddField("predicted_bikes", 1).
		SetTime(ts)
	assert.Contains(t, bodies[0], line(a))
	assert.Contains(t, bodies[0], "station_id=B")
}

func TestInfluxSink_RecordSuggestionsAndStages(t *testing.T) {
	var c capture
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	require.NoError(t, sink.RecordSuggestions(coremetrics.SuggestionRun{Generation: 3, Count: 2, TotalBikes: 11, Time: now}))
	require.NoError(t, sink.RecordPipelineStage(events.PipelineEvent{
		Stage: events.StageForecast, Records: 4, Duration: 1500 * time.Microsecond, Err: errors.New("boom"), Time: now,
	}))

	run := write.NewPointWithMeasurement("suggestion_run").
		AddTag("generation", "3").
		AddField("count", 2).
		AddField("total_bikes", 11).
		SetTime(now)
	stage := write.NewPointWithMeasurement("pipeline_stage").
		AddTag("stage", "forecast").
		AddTag("ok", "false").
		AddField("records", 4).
		AddField("duration_ms", 1.5).
		AddField("error", "boom").
		SetTime(now)
	assert.Equal(t, []string{line(run), line(stage)}, c.all())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
