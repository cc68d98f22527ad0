// Package demand aggregates historical trips into per-station 15-minute
// demand profiles. A profile bucket stores the average arrivals, departures
// and net flow observed across every historical occurrence of that bucket.
package demand
