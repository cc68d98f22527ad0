package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apidispatch "github.com/kilianp07/bikeflow/api/dispatch"
	"github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/infra/store/memory"
)

func newQueueServer(t *testing.T, tasks int) (*httptest.Server, *memory.Store) {
	t.Helper()
	dispatch.ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { dispatch.ResetMetrics(nil) })
	st := memory.New()
	for i := 0; i < tasks; i++ {
		_, err := st.CreateTask(context.Background(), model.TaskInput{FromStationID: "B", ToStationID: "A", Qty: 2})
		require.NoError(t, err)
	}
	m, err := dispatch.NewManager(st, dispatch.DefaultConfig(), logger.NopLogger{})
	require.NoError(t, err)
	mux := http.NewServeMux()
	apidispatch.NewTaskHandler(m).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func TestConfigValidate(t *testing.T) {
	ok := Config{API: "http://localhost:8080", Workers: 2, PollInterval: time.Second}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Workers = 0
	assert.Error(t, bad.Validate())
	bad = ok
	bad.DropRate = 1.5
	assert.Error(t, bad.Validate())
	bad = ok
	bad.API = "localhost"
	assert.Error(t, bad.Validate())
}

func TestGenerateCrews(t *testing.T) {
	crews := GenerateCrews(3, "crew")
	require.Len(t, crews, 3)
	assert.Equal(t, "crew0001", crews[0].ID)
	assert.Equal(t, "crew0003", crews[2].ID)
	assert.Nil(t, GenerateCrews(0, "crew"))
}

func TestCrewsDrainQueueWithoutDuplicates(t *testing.T) {
	srv, st := newQueueServer(t, 25)
	cfg := Config{API: srv.URL, Workers: 6, PollInterval: 5 * time.Millisecond, StopWhenEmpty: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report := runCrews(ctx, GenerateCrews(cfg.Workers, "crew"), cfg, logger.NopLogger{})

	assert.Equal(t, 25, report.Claimed)
	assert.Equal(t, 25, report.Completed)
	assert.Equal(t, 50, report.Bikes)
	assert.Empty(t, report.Duplicates)

	completed := model.TaskCompleted
	done, err := st.Tasks(context.Background(), store.TaskFilter{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, done, 25)
}

func TestAbandonedTasksStayAssigned(t *testing.T) {
	srv, st := newQueueServer(t, 3)
	cfg := Config{API: srv.URL, Workers: 1, PollInterval: 5 * time.Millisecond, StopWhenEmpty: 1, DropRate: 1}

	report := runCrews(context.Background(), GenerateCrews(1, "crew"), cfg, logger.NopLogger{})
	assert.Equal(t, 3, report.Claimed)
	assert.Equal(t, 0, report.Completed)
	assert.Equal(t, 3, report.Crews["crew0001"].Abandoned)

	assigned := model.TaskAssigned
	left, err := st.Tasks(context.Background(), store.TaskFilter{Status: &assigned})
	require.NoError(t, err)
	assert.Len(t, left, 3)
}
