package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kilianp07/bikeflow/core/model"
)

// InsertTrips inserts trips, ignoring ride ids already stored, and returns
// how many rows were new.
func (s *Store) InsertTrips(ctx context.Context, trips []model.TripEvent) (int, error) {
	if len(trips) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for _, t := range trips {
		b.Queue(`INSERT INTO trips (ride_id, start_station_id, end_station_id, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5) ON CONFLICT (ride_id) DO NOTHING`,
			t.RideID, t.StartStationID, t.EndStationID, nullTime(t.StartedAt), nullTime(t.EndedAt))
	}
	br := s.pool.SendBatch(ctx, b)
	defer br.Close()
	inserted := 0
	for range trips {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert trip: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Trips returns every stored trip ordered by start time.
func (s *Store) Trips(ctx context.Context) ([]model.TripEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT ride_id, start_station_id, end_station_id, started_at, ended_at
		FROM trips ORDER BY started_at NULLS LAST, ride_id`)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TripEvent, error) {
		var t model.TripEvent
		var started, ended *time.Time
		if err := row.Scan(&t.RideID, &t.StartStationID, &t.EndStationID, &started, &ended); err != nil {
			return t, err
		}
		if started != nil {
			t.StartedAt = *started
		}
		if ended != nil {
			t.EndedAt = *ended
		}
		return t, nil
	})
}

// UpsertStations inserts or updates station metadata.
func (s *Store) UpsertStations(ctx context.Context, stations []model.Station) error {
	b := &pgx.Batch{}
	for _, st := range stations {
		b.Queue(`INSERT INTO stations (station_id, name, lat, lng) VALUES ($1, $2, $3, $4)
			ON CONFLICT (station_id) DO UPDATE SET name = EXCLUDED.name, lat = EXCLUDED.lat, lng = EXCLUDED.lng`,
			st.ID, st.Name, st.Lat, st.Lng)
	}
	return s.sendBatch(ctx, b, "upsert stations")
}

// Stations returns every station ordered by id.
func (s *Store) Stations(ctx context.Context) ([]model.Station, error) {
	rows, err := s.pool.Query(ctx, `SELECT station_id, name, lat, lng FROM stations ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Station, error) {
		var st model.Station
		err := row.Scan(&st.ID, &st.Name, &st.Lat, &st.Lng)
		return st, err
	})
}

// PutSnapshot replaces the live inventory row of a station.
func (s *Store) PutSnapshot(ctx context.Context, snap model.InventorySnapshot) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO station_inventory (station_id, current_bikes, capacity, last_reported)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (station_id) DO UPDATE SET current_bikes = EXCLUDED.current_bikes,
			capacity = EXCLUDED.capacity, last_reported = EXCLUDED.last_reported`,
		snap.StationID, snap.CurrentBikes, snap.Capacity, snap.LastReported)
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.StationID, err)
	}
	return nil
}

// Snapshots returns the live inventory ordered by station id.
func (s *Store) Snapshots(ctx context.Context) ([]model.InventorySnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT station_id, current_bikes, capacity, last_reported
		FROM station_inventory ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.InventorySnapshot, error) {
		var snap model.InventorySnapshot
		err := row.Scan(&snap.StationID, &snap.CurrentBikes, &snap.Capacity, &snap.LastReported)
		return snap, err
	})
}

// UpsertBuckets writes demand buckets, replacing existing rows of the same
// (station, bucket) key.
func (s *Store) UpsertBuckets(ctx context.Context, buckets []model.DemandBucket) error {
	b := &pgx.Batch{}
	for _, d := range buckets {
		b.Queue(`INSERT INTO demand_profile (station_id, day_of_week, hour_of_day, quarter_hour,
				avg_arrivals_15m, avg_departures_15m, avg_net_flow_15m)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (station_id, day_of_week, hour_of_day, quarter_hour) DO UPDATE SET
				avg_arrivals_15m = EXCLUDED.avg_arrivals_15m,
				avg_departures_15m = EXCLUDED.avg_departures_15m,
				avg_net_flow_15m = EXCLUDED.avg_net_flow_15m`,
			d.StationID, d.Bucket.DayOfWeek, d.Bucket.HourOfDay, d.Bucket.Quarter,
			d.AvgArrivals, d.AvgDepartures, d.AvgNetFlow)
	}
	return s.sendBatch(ctx, b, "upsert demand buckets")
}

// Buckets returns every demand bucket ordered by station and bucket.
func (s *Store) Buckets(ctx context.Context) ([]model.DemandBucket, error) {
	rows, err := s.pool.Query(ctx, `SELECT station_id, day_of_week, hour_of_day, quarter_hour,
			avg_arrivals_15m, avg_departures_15m, avg_net_flow_15m
		FROM demand_profile ORDER BY station_id, day_of_week, hour_of_day, quarter_hour`)
	if err != nil {
		return nil, fmt.Errorf("query demand buckets: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DemandBucket, error) {
		var d model.DemandBucket
		err := row.Scan(&d.StationID, &d.Bucket.DayOfWeek, &d.Bucket.HourOfDay, &d.Bucket.Quarter,
			&d.AvgArrivals, &d.AvgDepartures, &d.AvgNetFlow)
		return d, err
	})
}

// UpsertForecasts writes forecast records keyed by (station, forecast_ts).
func (s *Store) UpsertForecasts(ctx context.Context, recs []model.ForecastRecord) error {
	b := &pgx.Batch{}
	for _, r := range recs {
		b.Queue(`INSERT INTO forecasts (station_id, forecast_ts, predicted_bikes_15m, risk_status)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (station_id, forecast_ts) DO UPDATE SET
				predicted_bikes_15m = EXCLUDED.predicted_bikes_15m,
				risk_status = EXCLUDED.risk_status`,
			r.StationID, r.ForecastTS, r.PredictedBikes15m, r.Risk.String())
	}
	return s.sendBatch(ctx, b, "upsert forecasts")
}

// LatestForecasts returns the records of the most recent forecast round.
func (s *Store) LatestForecasts(ctx context.Context) ([]model.ForecastRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT station_id, forecast_ts, predicted_bikes_15m, risk_status
		FROM forecasts WHERE forecast_ts = (SELECT max(forecast_ts) FROM forecasts)
		ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ForecastRecord, error) {
		var r model.ForecastRecord
		var riskName string
		if err := row.Scan(&r.StationID, &r.ForecastTS, &r.PredictedBikes15m, &riskName); err != nil {
			return r, err
		}
		risk, perr := model.ParseRiskStatus(riskName)
		r.Risk = risk
		return r, perr
	})
}

// sendBatch runs b inside one transaction so a failing row leaves nothing
// behind.
func (s *Store) sendBatch(ctx context.Context, b *pgx.Batch, op string) error {
	if b.Len() == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
