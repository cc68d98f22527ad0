package prediction

import (
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/bikeflow/core/model"
)

// Level identifies which step of the fallback chain produced a flow value.
type Level int

const (
	LevelExact       Level = iota + 1 // station, day, hour, quarter
	LevelDayHour                      // station, day, hour
	LevelHourQuarter                  // station, hour, quarter
	LevelStation                      // station
	LevelNone                         // no history
)

func (l Level) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelDayHour:
		return "day_hour"
	case LevelHourQuarter:
		return "hour_quarter"
	case LevelStation:
		return "station"
	default:
		return "none"
	}
}

// FlowSource returns the expected net flow of a station for a bucket.
type FlowSource interface {
	ExpectedNetFlow(stationID string, b model.Bucket) (float64, Level)
}

type dayHour struct{ day, hour int }

type hourQuarter struct{ hour, quarter int }

type stationIndex struct {
	exact       map[model.Bucket]float64
	dayHour     map[dayHour][]float64
	hourQuarter map[hourQuarter][]float64
	all         []float64
}

// Profile indexes demand buckets for the fallback lookups.
type Profile struct {
	stations map[string]*stationIndex
}

// NewProfile indexes the given buckets. Duplicate keys keep the last value.
func NewProfile(buckets []model.DemandBucket) *Profile {
	p := &Profile{stations: make(map[string]*stationIndex)}
	for _, b := range buckets {
		idx, ok := p.stations[b.StationID]
		if !ok {
			idx = &stationIndex{
				exact:       make(map[model.Bucket]float64),
				dayHour:     make(map[dayHour][]float64),
				hourQuarter: make(map[hourQuarter][]float64),
			}
			p.stations[b.StationID] = idx
		}
		idx.exact[b.Bucket] = b.AvgNetFlow
	}
	// Aggregates are built from the deduplicated exact map.
	for _, idx := range p.stations {
		for b, v := range idx.exact {
			dh := dayHour{b.DayOfWeek, b.HourOfDay}
			hq := hourQuarter{b.HourOfDay, b.Quarter}
			idx.dayHour[dh] = append(idx.dayHour[dh], v)
			idx.hourQuarter[hq] = append(idx.hourQuarter[hq], v)
			idx.all = append(idx.all, v)
		}
	}
	return p
}

// ExpectedNetFlow walks the fallback chain and returns the first level that
// has data.
func (p *Profile) ExpectedNetFlow(stationID string, b model.Bucket) (float64, Level) {
	idx, ok := p.stations[stationID]
	if !ok {
		return 0, LevelNone
	}
	if v, ok := idx.exact[b]; ok {
		return v, LevelExact
	}
	if vs := idx.dayHour[dayHour{b.DayOfWeek, b.HourOfDay}]; len(vs) > 0 {
		return stat.Mean(vs, nil), LevelDayHour
	}
	if vs := idx.hourQuarter[hourQuarter{b.HourOfDay, b.Quarter}]; len(vs) > 0 {
		return stat.Mean(vs, nil), LevelHourQuarter
	}
	if len(idx.all) > 0 {
		return stat.Mean(idx.all, nil), LevelStation
	}
	return 0, LevelNone
}
