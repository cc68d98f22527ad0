package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal   *prometheus.CounterVec
	lastSuccess prometheus.Gauge
)

func newCollectors() (*prometheus.CounterVec, prometheus.Gauge) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeflow_pipeline_runs_total",
			Help: "Pipeline runs by result",
		},
		[]string{"result"},
	)
	last := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bikeflow_pipeline_last_success_timestamp_seconds",
		Help: "Unix time of the last successful pipeline run",
	})
	return runs, last
}

func init() {
	runsTotal, lastSuccess = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers pipeline metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, lastSuccess)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, lastSuccess = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
