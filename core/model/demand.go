package model

import (
	"fmt"
	"time"
)

// QuarterDuration is the width of a demand bucket.
const QuarterDuration = 15 * time.Minute

// Bucket is a recurring 15-minute slot of the week.
type Bucket struct {
	DayOfWeek int `json:"day_of_week"` // 0 = Sunday
	HourOfDay int `json:"hour_of_day"`
	Quarter   int `json:"quarter_hour"`
}

// BucketOf returns the bucket ts falls into, evaluated in ts' location.
func BucketOf(ts time.Time) Bucket {
	return Bucket{
		DayOfWeek: int(ts.Weekday()),
		HourOfDay: ts.Hour(),
		Quarter:   ts.Minute() / 15,
	}
}

// Valid reports whether every component is within range.
func (b Bucket) Valid() bool {
	return b.DayOfWeek >= 0 && b.DayOfWeek <= 6 &&
		b.HourOfDay >= 0 && b.HourOfDay <= 23 &&
		b.Quarter >= 0 && b.Quarter <= 3
}

// Less orders buckets chronologically within a week.
func (b Bucket) Less(o Bucket) bool {
	if b.DayOfWeek != o.DayOfWeek {
		return b.DayOfWeek < o.DayOfWeek
	}
	if b.HourOfDay != o.HourOfDay {
		return b.HourOfDay < o.HourOfDay
	}
	return b.Quarter < o.Quarter
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s %02d:%02d", time.Weekday(b.DayOfWeek), b.HourOfDay, b.Quarter*15)
}

// DemandBucket holds the historical averages of one station for one bucket.
type DemandBucket struct {
	StationID     string  `json:"station_id"`
	Bucket        Bucket  `json:"bucket"`
	AvgArrivals   float64 `json:"avg_arrivals_15m"`
	AvgDepartures float64 `json:"avg_departures_15m"`
	AvgNetFlow    float64 `json:"avg_net_flow_15m"`
}
