package model

import "time"

// Suggestion is a proposed move of bikes between two stations. Suggestions
// live until approved or replaced by the next matcher run.
type Suggestion struct {
	ID            int64     `json:"id"`
	FromStationID string    `json:"from_station_id"`
	ToStationID   string    `json:"to_station_id"`
	Qty           int       `json:"qty"`
	DistanceM     float64   `json:"distance_m"`
	ForecastTS    time.Time `json:"forecast_ts"`
	Reason        string    `json:"reason"`
	Generation    int64     `json:"generation"`
	CreatedAt     time.Time `json:"created_at"`
}
