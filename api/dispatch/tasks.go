// Package dispatch exposes the task queue over HTTP.
package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/bikeflow/api/httpx"
	coredispatch "github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

// Queue is the subset of the dispatch manager used by the handlers.
type Queue interface {
	Promote(ctx context.Context, suggestionID int64) (model.Task, error)
	Create(ctx context.Context, in model.TaskInput) (model.Task, error)
	Claim(ctx context.Context, workerID string) (model.Task, error)
	Complete(ctx context.Context, taskID int64) (model.Task, error)
	Get(ctx context.Context, taskID int64) (model.Task, error)
	List(ctx context.Context, f store.TaskFilter) ([]model.Task, error)
}

// ApproveRequest is the body of POST /task/approve.
type ApproveRequest struct {
	SuggestionID int64 `json:"suggestion_id"`
}

// DispatchRequest is the body of POST /dispatch/next.
type DispatchRequest struct {
	WorkerID string `json:"worker_id"`
}

// TaskHandler serves the task queue routes.
type TaskHandler struct {
	queue Queue
}

// NewTaskHandler creates a TaskHandler backed by q.
func NewTaskHandler(q Queue) *TaskHandler {
	return &TaskHandler{queue: q}
}

// Register mounts the task routes on mux.
func (h *TaskHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /task/approve", h.Approve)
	mux.HandleFunc("POST /dispatch/next", h.Next)
	mux.HandleFunc("POST /task/{task_id}/complete", h.Complete)
	mux.HandleFunc("POST /tasks", h.Create)
	mux.HandleFunc("GET /tasks", h.List)
	mux.HandleFunc("GET /tasks/{task_id}", h.Get)
}

// Approve promotes a suggestion into a ready task.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	if req.SuggestionID <= 0 {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, "suggestion_id is required")
		return
	}
	task, err := h.queue.Promote(r.Context(), req.SuggestionID)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Next claims the oldest ready task for the calling worker.
func (h *TaskHandler) Next(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	if req.WorkerID == "" {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, "worker_id is required")
		return
	}
	task, err := h.queue.Claim(r.Context(), req.WorkerID)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Complete marks a task completed.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "task_id")
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	task, err := h.queue.Complete(r.Context(), id)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

// Create enqueues a task that was not proposed by the matcher.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.TaskInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	task, err := h.queue.Create(r.Context(), in)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, task)
}

// List returns tasks filtered by the status, worker_id and limit query
// parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.TaskFilter
	if s := q.Get("status"); s != "" {
		st, err := model.ParseTaskStatus(s)
		if err != nil {
			httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
			return
		}
		f.Status = &st
	}
	f.WorkerID = q.Get("worker_id")
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	tasks, err := h.queue.List(r.Context(), f)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	httpx.WriteJSON(w, http.StatusOK, tasks)
}

// Get returns a single task.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathInt64(r, "task_id")
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, err.Error())
		return
	}
	task, err := h.queue.Get(r.Context(), id)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, task)
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coredispatch.ErrQueueEmpty):
		httpx.WriteProblem(w, http.StatusNotFound, httpx.CodeQueueEmpty, "no task with status ready")
	case errors.Is(err, coredispatch.ErrNotFound):
		httpx.WriteProblem(w, http.StatusNotFound, httpx.CodeNotFound, err.Error())
	default:
		httpx.WriteProblem(w, http.StatusInternalServerError, httpx.CodeInternal, err.Error())
	}
}
