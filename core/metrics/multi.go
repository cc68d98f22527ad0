package metrics

import (
	"errors"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

// MultiSink fans out records to multiple sinks. Every sink is called even
// when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordTaskEvent(ev events.TaskEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordTaskEvent(ev))
	}
	return errors.Join(errs...)
}

// RecordForecasts forwards to sinks implementing ForecastRecorder.
func (m *MultiSink) RecordForecasts(recs []model.ForecastRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ForecastRecorder); ok {
			errs = append(errs, r.RecordForecasts(recs))
		}
	}
	return errors.Join(errs...)
}

// RecordSuggestions forwards to sinks implementing SuggestionRecorder.
func (m *MultiSink) RecordSuggestions(run SuggestionRun) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(SuggestionRecorder); ok {
			errs = append(errs, r.RecordSuggestions(run))
		}
	}
	return errors.Join(errs...)
}

// RecordPipelineStage forwards to sinks implementing PipelineRecorder.
func (m *MultiSink) RecordPipelineStage(ev events.PipelineEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(PipelineRecorder); ok {
			errs = append(errs, r.RecordPipelineStage(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		switch c := s.(type) {
		case interface{ Close() error }:
			errs = append(errs, c.Close())
		case interface{ Close() }:
			c.Close()
		}
	}
	return errors.Join(errs...)
}
