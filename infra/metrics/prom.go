package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/model"
)

// PromSink exposes pipeline and queue activity as Prometheus collectors.
type PromSink struct {
	bikes         *prometheus.CounterVec
	forecasts     *prometheus.GaugeVec
	suggestions   prometheus.Gauge
	suggestBikes  prometheus.Gauge
	generation    prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
}

// NewPromSink registers the collectors on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. A nil registerer
// defaults to the global one. Collectors already registered under the same
// name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.bikes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bikeflow_task_bikes_total",
		Help: "Bikes carried by tasks, by queue action",
	}, []string{"action"})); err != nil {
		return nil, err
	}
	if s.forecasts, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bikeflow_forecast_stations",
		Help: "Stations per risk status in the latest forecast pass",
	}, []string{"risk"})); err != nil {
		return nil, err
	}
	if s.suggestions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bikeflow_suggestions_current",
		Help: "Suggestions in the current generation",
	})); err != nil {
		return nil, err
	}
	if s.suggestBikes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bikeflow_suggestion_bikes",
		Help: "Bikes proposed for moving by the current generation",
	})); err != nil {
		return nil, err
	}
	if s.generation, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bikeflow_suggestion_generation",
		Help: "Number of the current suggestion generation",
	})); err != nil {
		return nil, err
	}
	if s.stageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bikeflow_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if s.stageErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bikeflow_pipeline_stage_errors_total",
		Help: "Failed pipeline stages",
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTaskEvent adds the task quantity to the counter of its action.
func (s *PromSink) RecordTaskEvent(ev events.TaskEvent) error {
	s.bikes.WithLabelValues(string(ev.Action)).Add(float64(ev.Task.Qty))
	return nil
}

// RecordForecasts sets the per-risk station gauges from a complete pass.
func (s *PromSink) RecordForecasts(recs []model.ForecastRecord) error {
	counts := map[model.RiskStatus]int{
		model.RiskBalanced:  0,
		model.RiskEmptySoon: 0,
		model.RiskFullSoon:  0,
	}
	for _, r := range recs {
		counts[r.Risk]++
	}
	for risk, n := range counts {
		s.forecasts.WithLabelValues(risk.String()).Set(float64(n))
	}
	return nil
}

// RecordSuggestions publishes the size of the new generation.
func (s *PromSink) RecordSuggestions(run coremetrics.SuggestionRun) error {
	s.suggestions.Set(float64(run.Count))
	s.suggestBikes.Set(float64(run.TotalBikes))
	s.generation.Set(float64(run.Generation))
	return nil
}

// RecordPipelineStage observes the stage duration and counts failures.
func (s *PromSink) RecordPipelineStage(ev events.PipelineEvent) error {
	s.stageDuration.WithLabelValues(ev.Stage).Observe(ev.Duration.Seconds())
	if ev.Err != nil {
		s.stageErrors.WithLabelValues(ev.Stage).Inc()
	}
	return nil
}
