package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/infra/store/memory"
)

const tripCSV = "\ufeffRide_ID,rideable_type,started_at,ended_at,start_station_name,start_station_id,end_station_name,end_station_id,start_lat,start_lng,end_lat,end_lng,member_casual\n" +
	"r1,classic_bike,2024-05-06 08:01:12,2024-05-06 08:14:03.512,Market St,A,Mission St,B,37.77,-122.41,37.78,-122.42,member\n" +
	"r2,electric_bike,2024-05-06T08:20:00Z,2024-05-06T08:40:00Z,,B,,C,,,,,casual\n" +
	"r3,electric_bike,2024-05-06 09:00:00,2024-05-06 09:10:00,Market St,A,,,37.77,-122.41,,,member\n" +
	"r4,classic_bike,yesterday,2024-05-06 09:10:00,Market St,A,Mission St,B,37.77,-122.41,37.78,-122.42,member\n" +
	",classic_bike,2024-05-06 09:00:00,2024-05-06 09:10:00,Market St,A,Mission St,B,37.77,-122.41,37.78,-122.42,member\n"

func TestParseTime(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("tzdata not available")
	}
	got, err := ParseTime("2024-05-06 08:01:12", la)
	require.NoError(t, err)
	assert.Equal(t, la, got.Location())
	assert.Equal(t, 8, got.Hour())

	got, err = ParseTime("2024-05-06T08:01:12.25+02:00", la)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
	_, offset := got.Zone()
	assert.Equal(t, 2*3600, offset)

	_, err = ParseTime("", nil)
	assert.Error(t, err)
	_, err = ParseTime("06/05/2024", nil)
	assert.Error(t, err)
}

func TestReadTripsSkipsUnusableRows(t *testing.T) {
	batch, err := Reader{}.ReadTrips(strings.NewReader(tripCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Rows)
	assert.Equal(t, 3, batch.Skipped)
	require.Len(t, batch.Trips, 2)
	assert.Equal(t, "r1", batch.Trips[0].RideID)
	assert.Equal(t, "A", batch.Trips[0].StartStationID)
	assert.Equal(t, 512*time.Millisecond, time.Duration(batch.Trips[0].EndedAt.Nanosecond()))
	assert.Equal(t, "C", batch.Trips[1].EndStationID)

	// C never reports coordinates
	require.Len(t, batch.Stations, 2)
	assert.Equal(t, "A", batch.Stations[0].ID)
	assert.Equal(t, "Market St", batch.Stations[0].Name)
	assert.InDelta(t, -122.42, batch.Stations[1].Lng, 1e-9)
}

func TestReadTripsRejectsForeignHeader(t *testing.T) {
	_, err := Reader{}.ReadTrips(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestLoadTripFilesIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(tripCSV), 0o600))

	st := memory.New()
	ctx := context.Background()
	sum, err := LoadTripFiles(ctx, st, []string{path}, Reader{}, 1)
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 1, Rows: 5, Skipped: 3, Inserted: 2, Stations: 2}, sum)

	sum, err = LoadTripFiles(ctx, st, []string{path}, Reader{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)

	trips, err := st.Trips(ctx)
	require.NoError(t, err)
	assert.Len(t, trips, 2)
	stations, err := st.Stations(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 2)

	_, err = LoadTripFiles(ctx, st, []string{filepath.Join(dir, "missing.csv")}, Reader{}, 0)
	assert.Error(t, err)
}

func TestLoadInventoryFile(t *testing.T) {
	data := "station_id,name,lat,lon,num_bikes_available,capacity,last_reported\n" +
		"A,Market St,37.77,-122.41,1,20,1714982400\n" +
		"B,Mission St,37.78,-122.42,19,20,2024-05-06 08:00:00\n" +
		"C,,,,x,20,1714982400\n"
	path := filepath.Join(t.TempDir(), "inventory.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	st := memory.New()
	ctx := context.Background()
	batch, err := LoadInventoryFile(ctx, st, path, Reader{})
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Rows)
	assert.Equal(t, 1, batch.Skipped)

	snaps, err := st.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	want := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	assert.True(t, snaps[0].LastReported.Equal(want))
	assert.True(t, snaps[1].LastReported.Equal(want))
	assert.Equal(t, 19, snaps[1].CurrentBikes)

	stations, err := st.Stations(ctx)
	require.NoError(t, err)
	assert.Len(t, stations, 2)
}
