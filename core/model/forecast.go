package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// RiskStatus classifies a forecasted station.
type RiskStatus int

const (
	RiskBalanced RiskStatus = iota
	RiskEmptySoon
	RiskFullSoon
)

// String returns the persisted name of the risk status.
func (r RiskStatus) String() string {
	switch r {
	case RiskEmptySoon:
		return "empty_soon"
	case RiskFullSoon:
		return "full_soon"
	default:
		return "balanced"
	}
}

// ParseRiskStatus converts a persisted name back into a RiskStatus.
func ParseRiskStatus(s string) (RiskStatus, error) {
	switch s {
	case "balanced":
		return RiskBalanced, nil
	case "empty_soon":
		return RiskEmptySoon, nil
	case "full_soon":
		return RiskFullSoon, nil
	default:
		return RiskBalanced, fmt.Errorf("unknown risk status %q", s)
	}
}

func (r RiskStatus) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

func (r *RiskStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseRiskStatus(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ForecastRecord is the predicted state of a station 15 minutes after
// ForecastTS.
type ForecastRecord struct {
	StationID         string     `json:"station_id"`
	ForecastTS        time.Time  `json:"forecast_ts"`
	PredictedBikes15m int        `json:"predicted_bikes_15m"`
	Risk              RiskStatus `json:"risk_status"`
}
