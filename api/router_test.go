package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredispatch "github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/pipeline"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/infra/store/memory"
)

type stubRunner struct {
	sum pipeline.Summary
	err error
}

func (s stubRunner) Run(context.Context) (pipeline.Summary, error) { return s.sum, s.err }

func newRouter(t *testing.T, d Deps) http.Handler {
	t.Helper()
	coredispatch.ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { coredispatch.ResetMetrics(nil) })
	st := memory.New()
	m, err := coredispatch.NewManager(st, coredispatch.DefaultConfig(), logger.NopLogger{})
	require.NoError(t, err)
	d.Queue = m
	d.Logs = m
	d.Suggestions = st
	d.Log = logger.NopLogger{}
	return NewRouter(d)
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterMountsRoutes(t *testing.T) {
	h := newRouter(t, Deps{Token: "secret", Pipeline: stubRunner{sum: pipeline.Summary{Generation: 3, Suggestions: 2}}})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/suggestions", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/dispatch/next", "", `{"worker_id":"w1"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, http.MethodGet, "/dispatch/next", "", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/tasks/logs", "", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/tasks/logs", "secret", "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/pipeline/run", "", "").Code)
	rr := do(h, http.MethodPost, "/pipeline/run", "secret", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"generation":3`)
}

func TestPipelineRunConflicts(t *testing.T) {
	h := newRouter(t, Deps{Pipeline: stubRunner{err: pipeline.ErrBusy}})
	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/pipeline/run", "", "").Code)

	h = newRouter(t, Deps{Pipeline: stubRunner{err: errors.New("forecast stage: boom")}})
	assert.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/pipeline/run", "", "").Code)
}

func TestHealthReportsStorage(t *testing.T) {
	h := newRouter(t, Deps{Health: func(context.Context) error { return errors.New("no route to host") }})
	rr := do(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no route to host")
}

func TestPipelineRouteIsOptional(t *testing.T) {
	h := newRouter(t, Deps{})
	rr := do(h, http.MethodPost, "/pipeline/run", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
