package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/core/dispatch/logging"
	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

type memLogs struct{ recs []logging.LogRecord }

func (m *memLogs) Logs(_ context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	var res []logging.LogRecord
	for _, r := range m.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func TestLogHandlerAuthAndFilters(t *testing.T) {
	now := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	src := &memLogs{recs: []logging.LogRecord{
		{Timestamp: now, Action: events.TaskPromoted, TaskID: 1, Status: model.TaskReady},
		{Timestamp: now.Add(time.Minute), Action: events.TaskClaimed, TaskID: 1, Status: model.TaskAssigned, WorkerID: "w1"},
		{Timestamp: now.Add(2 * time.Minute), Action: events.TaskClaimed, TaskID: 2, Status: model.TaskAssigned, WorkerID: "w2"},
	}}
	h := NewLogHandler(src, "tok")

	req := httptest.NewRequest(http.MethodGet, "/api/tasks/logs?worker_id=w1&action=claimed", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var out []logging.LogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TaskID)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks/logs?start=2024-05-06T08:00:30Z", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks/logs", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogHandlerRejectsBadFilters(t *testing.T) {
	h := NewLogHandler(&memLogs{}, "")
	for _, q := range []string{"start=yesterday", "task_id=x", "action=teleported"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks/logs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/tasks/logs", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}
