package demand

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/bikeflow/core/logger"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

type bucketKey struct {
	station string
	bucket  model.Bucket
}

// instantCount counts the flows of a station during one concrete 15-minute
// window.
type instantCount struct {
	arrivals   float64
	departures float64
}

// Builder computes demand profiles from trips.
type Builder struct {
	trips   store.TripSource
	profile store.ProfileStore
	loc     *time.Location
	log     logger.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLocation evaluates buckets in loc whatever location the trip source
// returns timestamps in.
func WithLocation(loc *time.Location) Option { return func(b *Builder) { b.loc = loc } }

// NewBuilder returns a Builder reading from trips and writing to profile.
func NewBuilder(trips store.TripSource, profile store.ProfileStore, log logger.Logger, opts ...Option) *Builder {
	b := &Builder{trips: trips, profile: profile, log: log}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run rebuilds every demand bucket from the full trip history and upserts the
// result. Re-running on the same trips produces the same buckets.
func (b *Builder) Run(ctx context.Context) ([]model.DemandBucket, error) {
	trips, err := b.trips.Trips(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trips: %w", err)
	}
	b.log.Infof("building demand profile from %d trips", len(trips))
	if b.loc != nil {
		trips = InLocation(trips, b.loc)
	}
	buckets := Aggregate(trips)
	if err := b.profile.UpsertBuckets(ctx, buckets); err != nil {
		return nil, fmt.Errorf("upsert buckets: %w", err)
	}
	b.log.Infof("demand profile written: %d buckets", len(buckets))
	return buckets, nil
}

// InLocation returns a copy of trips with both timestamps converted to loc.
func InLocation(trips []model.TripEvent, loc *time.Location) []model.TripEvent {
	out := make([]model.TripEvent, len(trips))
	for i, t := range trips {
		t.StartedAt = t.StartedAt.In(loc)
		t.EndedAt = t.EndedAt.In(loc)
		out[i] = t
	}
	return out
}

// Aggregate turns trips into one DemandBucket per (station, bucket). Buckets
// are evaluated in each timestamp's own location. The output is sorted by
// station then bucket.
func Aggregate(trips []model.TripEvent) []model.DemandBucket {
	instants := make(map[bucketKey]map[time.Time]*instantCount)
	add := func(station string, ts time.Time, arrival bool) {
		if station == "" || ts.IsZero() {
			return
		}
		key := bucketKey{station: station, bucket: model.BucketOf(ts)}
		byInstant, ok := instants[key]
		if !ok {
			byInstant = make(map[time.Time]*instantCount)
			instants[key] = byInstant
		}
		at := ts.Truncate(model.QuarterDuration)
		c, ok := byInstant[at]
		if !ok {
			c = &instantCount{}
			byInstant[at] = c
		}
		if arrival {
			c.arrivals++
		} else {
			c.departures++
		}
	}
	for _, t := range trips {
		add(t.StartStationID, t.StartedAt, false)
		add(t.EndStationID, t.EndedAt, true)
	}

	out := make([]model.DemandBucket, 0, len(instants))
	for key, byInstant := range instants {
		arr := make([]float64, 0, len(byInstant))
		dep := make([]float64, 0, len(byInstant))
		net := make([]float64, 0, len(byInstant))
		for _, c := range byInstant {
			arr = append(arr, c.arrivals)
			dep = append(dep, c.departures)
			net = append(net, c.arrivals-c.departures)
		}
		out = append(out, model.DemandBucket{
			StationID:     key.station,
			Bucket:        key.bucket,
			AvgArrivals:   stat.Mean(arr, nil),
			AvgDepartures: stat.Mean(dep, nil),
			AvgNetFlow:    stat.Mean(net, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].Bucket.Less(out[j].Bucket)
	})
	return out
}
