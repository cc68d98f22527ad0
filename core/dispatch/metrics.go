package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tasksTotal  *prometheus.CounterVec
	claimsTotal *prometheus.CounterVec
	taskWait    prometheus.Histogram
	opErrors    *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec) {
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeflow_tasks_total",
			Help: "Task queue transitions by action",
		},
		[]string{"action"},
	)
	claims := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeflow_task_claims_total",
			Help: "Claim attempts by outcome",
		},
		[]string{"result"},
	)
	wait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bikeflow_task_wait_seconds",
			Help:    "Time a task spent ready before a worker claimed it",
			Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bikeflow_task_errors_total",
			Help: "Storage failures by queue operation",
		},
		[]string{"op"},
	)
	return tasks, claims, wait, errs
}

func init() {
	tasksTotal, claimsTotal, taskWait, opErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers task queue metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tasksTotal, claimsTotal, taskWait, opErrors)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	tasksTotal, claimsTotal, taskWait, opErrors = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
