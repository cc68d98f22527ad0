// Package ingest loads trip history and inventory feeds from CSV exports.
//
// Trip files follow the public Bay Wheels layout. Headers are matched case
// insensitively and several alternate column names are accepted. Rows that
// cannot be used are logged and skipped rather than failing the file.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
)

// DefaultBatchSize is the number of trips inserted per store call.
const DefaultBatchSize = 1000

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts the timestamp layouts found in trip exports. Values
// without a zone are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))] = i
	}
	return h
}

// cell returns the first non-empty value among the candidate column names.
func (h header) cell(row []string, names ...string) string {
	for _, n := range names {
		if i, ok := h[n]; ok && i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (h header) has(names ...string) bool {
	for _, n := range names {
		if _, ok := h[n]; ok {
			return true
		}
	}
	return false
}

// TripBatch is the parsed content of one trip file.
type TripBatch struct {
	Trips    []model.TripEvent
	Stations []model.Station
	Rows     int
	Skipped  int
}

// Reader parses CSV exports. Timestamps without a zone are read in Location,
// UTC when nil.
type Reader struct {
	Location *time.Location
	Log      logger.Logger
}

func (tr Reader) log() logger.Logger {
	if tr.Log == nil {
		return logger.NopLogger{}
	}
	return tr.Log
}

// ReadTrips parses every row of r. Rows missing a ride id or either station id
// are skipped, as are rows whose timestamps do not parse. Station names and
// coordinates are collected from the valid rows, the last non-empty value
// winning.
func (tr Reader) ReadTrips(r io.Reader) (TripBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cols, err := cr.Read()
	if err != nil {
		return TripBatch{}, fmt.Errorf("read header: %w", err)
	}
	h := newHeader(cols)
	if !h.has("ride_id") || !h.has("started_at") || !h.has("start_station_id", "start_station_code") {
		return TripBatch{}, fmt.Errorf("missing trip columns in header %v", cols)
	}

	var out TripBatch
	stations := newStationSet()
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		out.Rows++
		if err != nil {
			out.Skipped++
			tr.log().Warnf("skipping trip row %d: %v", out.Rows, err)
			continue
		}
		trip, ok := tr.parseRow(h, row, out.Rows)
		if !ok {
			out.Skipped++
			continue
		}
		out.Trips = append(out.Trips, trip)
		stations.observe(trip.StartStationID,
			h.cell(row, "start_station_name"),
			h.cell(row, "start_lat", "start_latitude"),
			h.cell(row, "start_lng", "start_longitude"))
		stations.observe(trip.EndStationID,
			h.cell(row, "end_station_name"),
			h.cell(row, "end_lat", "end_latitude"),
			h.cell(row, "end_lng", "end_longitude"))
	}
	out.Stations = stations.list()
	return out, nil
}

func (tr Reader) parseRow(h header, row []string, n int) (model.TripEvent, bool) {
	t := model.TripEvent{
		RideID:         h.cell(row, "ride_id"),
		StartStationID: h.cell(row, "start_station_id", "start_station_code"),
		EndStationID:   h.cell(row, "end_station_id", "end_station_code"),
	}
	if t.RideID == "" {
		tr.log().Debugf("skipping trip row %d: missing ride id", n)
		return t, false
	}
	if t.StartStationID == "" || t.EndStationID == "" {
		tr.log().Debugf("skipping trip %s: missing start or end station id", t.RideID)
		return t, false
	}
	started, err := ParseTime(h.cell(row, "started_at"), tr.Location)
	if err != nil {
		tr.log().Warnf("skipping trip %s: started_at: %v", t.RideID, err)
		return t, false
	}
	t.StartedAt = started
	// a missing end only drops the arrival contribution
	if v := h.cell(row, "ended_at"); v != "" {
		ended, err := ParseTime(v, tr.Location)
		if err != nil {
			tr.log().Warnf("skipping trip %s: ended_at: %v", t.RideID, err)
			return t, false
		}
		t.EndedAt = ended
	}
	return t, true
}

type stationSet struct {
	order []string
	byID  map[string]*stationObs
}

type stationObs struct {
	station model.Station
	located bool
}

func newStationSet() *stationSet {
	return &stationSet{byID: make(map[string]*stationObs)}
}

func (s *stationSet) observe(id, name, lat, lng string) {
	obs, ok := s.byID[id]
	if !ok {
		obs = &stationObs{station: model.Station{ID: id}}
		s.byID[id] = obs
		s.order = append(s.order, id)
	}
	if name != "" {
		obs.station.Name = name
	}
	la, errLat := strconv.ParseFloat(lat, 64)
	ln, errLng := strconv.ParseFloat(lng, 64)
	if errLat == nil && errLng == nil {
		obs.station.Lat, obs.station.Lng = la, ln
		obs.located = true
	}
}

// list returns the stations with known coordinates in first-seen order.
func (s *stationSet) list() []model.Station {
	out := make([]model.Station, 0, len(s.order))
	for _, id := range s.order {
		if obs := s.byID[id]; obs.located {
			out = append(out, obs.station)
		}
	}
	return out
}

// TripTarget receives parsed trips and stations.
type TripTarget interface {
	store.TripSink
	store.StationStore
}

// Summary reports the outcome of LoadTripFiles.
type Summary struct {
	Files    int `json:"files"`
	Rows     int `json:"rows"`
	Skipped  int `json:"skipped"`
	Inserted int `json:"inserted"`
	Stations int `json:"stations"`
}

// LoadTripFiles parses each file and writes its trips in batches of
// batchSize, then upserts the stations it mentions.
func LoadTripFiles(ctx context.Context, target TripTarget, paths []string, reader Reader, batchSize int) (Summary, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var sum Summary
	for _, p := range paths {
		batch, err := readFile(p, reader)
		if err != nil {
			return sum, err
		}
		for start := 0; start < len(batch.Trips); start += batchSize {
			end := min(start+batchSize, len(batch.Trips))
			n, err := target.InsertTrips(ctx, batch.Trips[start:end])
			if err != nil {
				return sum, fmt.Errorf("%s: %w", p, err)
			}
			sum.Inserted += n
		}
		if err := target.UpsertStations(ctx, batch.Stations); err != nil {
			return sum, fmt.Errorf("%s: %w", p, err)
		}
		sum.Files++
		sum.Rows += batch.Rows
		sum.Skipped += batch.Skipped
		sum.Stations += len(batch.Stations)
		reader.log().Infow("trip file loaded", map[string]any{
			"file": p, "rows": batch.Rows, "skipped": batch.Skipped, "stations": len(batch.Stations),
		})
	}
	return sum, nil
}

func readFile(path string, reader Reader) (TripBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return TripBatch{}, err
	}
	defer f.Close()
	batch, err := reader.ReadTrips(f)
	if err != nil {
		return TripBatch{}, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}
