package events

import "time"

// Pipeline stages.
const (
	StageDemand    = "demand"
	StageForecast  = "forecast"
	StageRebalance = "rebalance"
)

// PipelineEvent reports the outcome of one pipeline stage.
type PipelineEvent struct {
	Stage      string
	Records    int
	Generation int64
	Duration   time.Duration
	Err        error
	Time       time.Time
}
