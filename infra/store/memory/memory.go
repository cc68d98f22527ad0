// Package memory implements store.Store in process memory. It backs tests,
// demos and single-instance deployments without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

type bucketKey struct {
	station string
	bucket  model.Bucket
}

type forecastKey struct {
	station string
	ts      int64
}

// generation is an immutable published suggestion set.
type generation struct {
	id    int64
	items []model.Suggestion
}

// Store is a mutex guarded in-memory store.
type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	trips     map[string]model.TripEvent
	tripOrder []string
	stations  map[string]model.Station
	snapshots map[string]model.InventorySnapshot
	buckets   map[bucketKey]model.DemandBucket
	forecasts map[forecastKey]model.ForecastRecord

	current    atomic.Pointer[generation]
	nextSuggID int64
	tasks      map[int64]model.Task
	nextTaskID int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{
		now:       time.Now,
		trips:     make(map[string]model.TripEvent),
		stations:  make(map[string]model.Station),
		snapshots: make(map[string]model.InventorySnapshot),
		buckets:   make(map[bucketKey]model.DemandBucket),
		forecasts: make(map[forecastKey]model.ForecastRecord),
		tasks:     make(map[int64]model.Task),
	}
	s.current.Store(&generation{})
	return s
}

// WithClock overrides the clock used for created/assigned timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) Trips(context.Context) ([]model.TripEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TripEvent, 0, len(s.tripOrder))
	for _, id := range s.tripOrder {
		out = append(out, s.trips[id])
	}
	return out, nil
}

func (s *Store) InsertTrips(_ context.Context, trips []model.TripEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range trips {
		if _, ok := s.trips[t.RideID]; ok {
			continue
		}
		s.trips[t.RideID] = t
		s.tripOrder = append(s.tripOrder, t.RideID)
		n++
	}
	return n, nil
}

func (s *Store) UpsertStations(_ context.Context, stations []model.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stations {
		s.stations[st.ID] = st
	}
	return nil
}

func (s *Store) Stations(context.Context) ([]model.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Snapshots(context.Context) ([]model.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.InventorySnapshot, 0, len(s.snapshots))
	for _, sn := range s.snapshots {
		out = append(out, sn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, nil
}

func (s *Store) PutSnapshot(_ context.Context, sn model.InventorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sn.StationID] = sn
	return nil
}

func (s *Store) UpsertBuckets(_ context.Context, buckets []model.DemandBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range buckets {
		s.buckets[bucketKey{b.StationID, b.Bucket}] = b
	}
	return nil
}

func (s *Store) Buckets(context.Context) ([]model.DemandBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DemandBucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].Bucket.Less(out[j].Bucket)
	})
	return out, nil
}

func (s *Store) UpsertForecasts(_ context.Context, recs []model.ForecastRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		s.forecasts[forecastKey{r.StationID, r.ForecastTS.UnixNano()}] = r
	}
	return nil
}

// LatestForecasts returns the records of the most recent forecast round.
func (s *Store) LatestForecasts(context.Context) ([]model.ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var round time.Time
	for _, r := range s.forecasts {
		if r.ForecastTS.After(round) {
			round = r.ForecastTS
		}
	}
	out := make([]model.ForecastRecord, 0)
	for _, r := range s.forecasts {
		if r.ForecastTS.Equal(round) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out, nil
}
