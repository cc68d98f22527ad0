package prediction

import "github.com/kilianp07/bikeflow/core/model"

// StaticFlows is a FlowSource returning a fixed net flow per station. Unknown
// stations resolve to zero.
type StaticFlows map[string]float64

// ExpectedNetFlow returns the configured flow for the station.
func (s StaticFlows) ExpectedNetFlow(id string, _ model.Bucket) (float64, Level) {
	if v, ok := s[id]; ok {
		return v, LevelExact
	}
	return 0, LevelNone
}
