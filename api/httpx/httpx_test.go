package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/infra/logger"
)

func TestDecodeJSON(t *testing.T) {
	var v struct {
		WorkerID string `json:"worker_id"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"worker_id":"w1"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "w1", v.WorkerID)

	for _, body := range []string{"", "{", `{"worker":"w1"}`, `["w1"]`} {
		r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.Error(t, DecodeJSON(r, &v), body)
	}
}

func TestWriteProblem(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteProblem(rr, http.StatusNotFound, CodeQueueEmpty, "no task with status ready")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	var p Problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, Problem{Type: CodeQueueEmpty, Title: "Not Found", Status: 404, Detail: "no task with status ready"}, p)
}

func TestPathInt64(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var gotErr error
	mux.HandleFunc("/task/{task_id}", func(_ http.ResponseWriter, r *http.Request) {
		got, gotErr = PathInt64(r, "task_id")
	})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/task/42", nil))
	require.NoError(t, gotErr)
	assert.Equal(t, int64(42), got)

	for _, p := range []string{"/task/0", "/task/-3", "/task/x"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
		assert.Error(t, gotErr, p)
	}
}

func TestRequireBearer(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireBearer("tok", ok)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	RequireBearer("", ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	h := Middleware(logger.NopLogger{}, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil station")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/suggestions", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), CodeInternal)
}
