// Package prediction forecasts the number of bikes a station will hold 15
// minutes after its last inventory report. The expected net flow comes from
// the station's demand profile, falling back to coarser aggregates when the
// exact bucket has no history.
package prediction
