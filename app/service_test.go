package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/config"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/pipeline"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Dispatch.Log.Backend = "none"
	return &cfg
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StorageConfig{Backend: "mongo"})
	assert.Error(t, err)
}

func TestServiceEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, err := New(ctx, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	reported := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Store.UpsertStations(ctx, []model.Station{
		{ID: "A", Name: "Market St", Lat: 37.7749, Lng: -122.4194},
		{ID: "B", Name: "Mission St", Lat: 37.7849, Lng: -122.4194},
	}))
	require.NoError(t, svc.Store.PutSnapshot(ctx, model.InventorySnapshot{StationID: "A", CurrentBikes: 1, Capacity: 20, LastReported: reported}))
	require.NoError(t, svc.Store.PutSnapshot(ctx, model.InventorySnapshot{StationID: "B", CurrentBikes: 19, Capacity: 20, LastReported: reported}))

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/pipeline/run", "application/json", nil)
	require.NoError(t, err)
	var sum pipeline.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, sum.Suggestions)
	assert.Equal(t, 9, sum.TotalBikes)

	resp, err = http.Get(srv.URL + "/suggestions")
	require.NoError(t, err)
	var moves []model.Suggestion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&moves))
	resp.Body.Close()
	require.Len(t, moves, 1)

	body := strings.NewReader(`{"suggestion_id":` + jsonInt(moves[0].ID) + `}`)
	resp, err = http.Post(srv.URL+"/task/approve", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/dispatch/next", "application/json", strings.NewReader(`{"worker_id":"crew-1"}`))
	require.NoError(t, err)
	var task model.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
	resp.Body.Close()
	assert.Equal(t, "B", task.FromStationID)
	assert.Equal(t, 9, task.Qty)
	assert.Equal(t, model.TaskAssigned, task.Status)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
