package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kilianp07/bikeflow/api/httpx"
	"github.com/kilianp07/bikeflow/core/dispatch/logging"
	"github.com/kilianp07/bikeflow/core/events"
)

// LogQuerier answers audit log queries.
type LogQuerier interface {
	Logs(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error)
}

// NewLogHandler returns an HTTP handler exposing the task audit log via GET
// /api/tasks/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(src LogQuerier, token string) http.Handler {
	return httpx.RequireBearer(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := parseLogQuery(r.URL.Query())
		if err != nil {
			httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
			return
		}
		records, err := src.Logs(r.Context(), q)
		if err != nil {
			httpx.WriteProblem(w, http.StatusInternalServerError, httpx.CodeInternal, err.Error())
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		httpx.WriteJSON(w, http.StatusOK, records)
	}))
}

func parseLogQuery(v url.Values) (logging.LogQuery, error) {
	q := logging.LogQuery{WorkerID: v.Get("worker_id")}
	var err error
	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(time.RFC3339, s); err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
	}
	if s := v.Get("end"); s != "" {
		if q.End, err = time.Parse(time.RFC3339, s); err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
	}
	if s := v.Get("task_id"); s != "" {
		if q.TaskID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return q, fmt.Errorf("task_id: %w", err)
		}
	}
	if s := v.Get("action"); s != "" {
		a := events.TaskAction(s)
		switch a {
		case events.TaskPromoted, events.TaskCreated, events.TaskClaimed, events.TaskCompleted:
			q.Action = a
		default:
			return q, fmt.Errorf("unknown action %q", s)
		}
	}
	return q, nil
}
