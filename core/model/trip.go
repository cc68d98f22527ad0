package model

import "time"

// TripEvent is one historical ride between two stations.
type TripEvent struct {
	RideID         string    `json:"ride_id"`
	StartStationID string    `json:"start_station_id"`
	EndStationID   string    `json:"end_station_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}
