package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/api/httpx"
	coredispatch "github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/infra/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	coredispatch.ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { coredispatch.ResetMetrics(nil) })

	st := memory.New()
	m, err := coredispatch.NewManager(st, coredispatch.DefaultConfig(), logger.NopLogger{})
	require.NoError(t, err)
	mux := http.NewServeMux()
	NewTaskHandler(m).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeProblem(t *testing.T, body []byte) httpx.Problem {
	t.Helper()
	var p httpx.Problem
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func publish(t *testing.T, st *memory.Store, n int) {
	t.Helper()
	batch := make([]model.Suggestion, n)
	for i := range batch {
		batch[i] = model.Suggestion{FromStationID: "B", ToStationID: "A", Qty: i + 1, Reason: "B full soon, A empty soon"}
	}
	_, err := st.PublishSuggestions(context.Background(), batch)
	require.NoError(t, err)
}

func TestApprovePromotesSuggestion(t *testing.T) {
	srv, st := newTestServer(t)
	publish(t, st, 5)

	resp, body := post(t, srv.URL+"/task/approve", `{"suggestion_id":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var task model.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, model.TaskReady, task.Status)
	assert.Equal(t, 5, task.Qty)
	assert.Nil(t, task.WorkerID)

	left, err := st.Suggestions(context.Background())
	require.NoError(t, err)
	assert.Len(t, left, 4)
	for _, s := range left {
		assert.NotEqual(t, int64(5), s.ID)
	}

	resp, body = post(t, srv.URL+"/task/approve", `{"suggestion_id":5}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httpx.CodeNotFound, decodeProblem(t, body).Type)
}

func TestApproveUnknownSuggestion(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := post(t, srv.URL+"/task/approve", `{"suggestion_id":9999}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httpx.CodeNotFound, decodeProblem(t, body).Type)
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := map[string]string{
		"/task/approve":  `{"suggestion_id":`,
		"/dispatch/next": `{}`,
		"/tasks":         `{"from_station_id":"A","to_station_id":"A","qty":3}`,
	}
	for path, body := range cases {
		resp, out := post(t, srv.URL+path, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, httpx.CodeBadRequest, decodeProblem(t, out).Type, path)
	}
	resp, _ := post(t, srv.URL+"/task/abc/complete", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDispatchLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/dispatch/next", `{"worker_id":"w1"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httpx.CodeQueueEmpty, decodeProblem(t, body).Type)

	resp, body = post(t, srv.URL+"/tasks", `{"from_station_id":"B","to_station_id":"A","qty":4,"reason":"manual"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created model.Task
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = post(t, srv.URL+"/dispatch/next", `{"worker_id":"w1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var claimed model.Task
	require.NoError(t, json.Unmarshal(body, &claimed))
	assert.Equal(t, created.ID, claimed.ID)
	assert.Equal(t, model.TaskAssigned, claimed.Status)
	require.NotNil(t, claimed.WorkerID)
	assert.Equal(t, "w1", *claimed.WorkerID)

	path := fmt.Sprintf("%s/task/%d/complete", srv.URL, claimed.ID)
	for i := 0; i < 2; i++ {
		resp, body = post(t, path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var done model.Task
		require.NoError(t, json.Unmarshal(body, &done))
		assert.Equal(t, model.TaskCompleted, done.Status)
		assert.Equal(t, "w1", *done.WorkerID)
	}

	resp, _ = post(t, srv.URL+"/task/424242/complete", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	get, err := http.Get(fmt.Sprintf("%s/tasks/%d", srv.URL, claimed.ID))
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)

	get, err = http.Get(srv.URL + "/tasks?status=completed")
	require.NoError(t, err)
	var list []model.Task
	require.NoError(t, json.NewDecoder(get.Body).Decode(&list))
	get.Body.Close()
	assert.Len(t, list, 1)

	get, err = http.Get(srv.URL + "/tasks?status=lost")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusBadRequest, get.StatusCode)
}

func TestConcurrentDispatchHandsOutDistinctTasks(t *testing.T) {
	srv, st := newTestServer(t)
	const tasks, workers = 20, 32
	for i := 0; i < tasks; i++ {
		_, err := st.CreateTask(context.Background(), model.TaskInput{FromStationID: "B", ToStationID: "A", Qty: 1})
		require.NoError(t, err)
	}

	var (
		mu    sync.Mutex
		seen  = map[int64]string{}
		empty int
		wg    sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/dispatch/next", "application/json",
				strings.NewReader(fmt.Sprintf(`{"worker_id":%q}`, worker)))
			if err != nil {
				return
			}
			defer resp.Body.Close()
			mu.Lock()
			defer mu.Unlock()
			if resp.StatusCode == http.StatusNotFound {
				empty++
				return
			}
			var task model.Task
			if json.NewDecoder(resp.Body).Decode(&task) == nil {
				seen[task.ID] = worker
			}
		}(fmt.Sprintf("w%d", w))
	}
	wg.Wait()
	assert.Len(t, seen, tasks)
	assert.Equal(t, workers-tasks, empty)
}

type brokenQueue struct{ Queue }

func (brokenQueue) Claim(context.Context, string) (model.Task, error) {
	return model.Task{}, errors.New("connection reset")
}

func (brokenQueue) List(context.Context, store.TaskFilter) ([]model.Task, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailuresMapTo500(t *testing.T) {
	h := NewTaskHandler(brokenQueue{})
	rr := httptest.NewRecorder()
	h.Next(rr, httptest.NewRequest(http.MethodPost, "/dispatch/next", strings.NewReader(`{"worker_id":"w1"}`)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
