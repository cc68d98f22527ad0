package metrics

import (
	"time"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

// MetricsSink records task queue activity.
type MetricsSink interface {
	RecordTaskEvent(ev events.TaskEvent) error
}

// ForecastRecorder records the outcome of a forecast pass.
type ForecastRecorder interface {
	RecordForecasts(recs []model.ForecastRecord) error
}

// SuggestionRun summarises one matcher run.
type SuggestionRun struct {
	Generation int64
	Count      int
	TotalBikes int
	Time       time.Time
}

// SuggestionRecorder records matcher runs.
type SuggestionRecorder interface {
	RecordSuggestions(run SuggestionRun) error
}

// PipelineRecorder records pipeline stage durations and failures.
type PipelineRecorder interface {
	RecordPipelineStage(ev events.PipelineEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTaskEvent(events.TaskEvent) error         { return nil }
func (NopSink) RecordForecasts([]model.ForecastRecord) error   { return nil }
func (NopSink) RecordSuggestions(SuggestionRun) error          { return nil }
func (NopSink) RecordPipelineStage(events.PipelineEvent) error { return nil }
