package model

import "time"

// Station is a docking station with a fixed location.
type Station struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// InventorySnapshot is the live state of a station as reported by the
// operator feed. There is one snapshot per station.
type InventorySnapshot struct {
	StationID    string    `json:"station_id"`
	CurrentBikes int       `json:"current_bikes"`
	Capacity     int       `json:"capacity"`
	LastReported time.Time `json:"last_reported"`
}
