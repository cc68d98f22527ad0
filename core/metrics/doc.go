// Package metrics defines the sinks recording pipeline and task queue
// activity. A sink implements MetricsSink and any of the optional recorder
// interfaces it supports; NewMultiSink fans out to several sinks and the
// factory helpers build one from configuration. Concrete Prometheus and
// InfluxDB sinks live in infra/metrics.
package metrics
