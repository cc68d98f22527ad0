package rebalance

import (
	"math"

	"github.com/kilianp07/bikeflow/core/model"
)

const earthRadiusM = 6371008.8

// DistanceM returns the great-circle distance between two stations in
// metres.
func DistanceM(a, b model.Station) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}
