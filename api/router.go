// Package api assembles the HTTP surface of the service.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/bikeflow/api/dispatch"
	"github.com/kilianp07/bikeflow/api/httpx"
	"github.com/kilianp07/bikeflow/api/suggestions"
	"github.com/kilianp07/bikeflow/core/logger"
	"github.com/kilianp07/bikeflow/core/pipeline"
)

// PipelineRunner triggers a batch run.
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Deps carries everything the router mounts. Pipeline and Logs are
// optional.
type Deps struct {
	Queue           dispatch.Queue
	Logs            dispatch.LogQuerier
	Suggestions     suggestions.Source
	SuggestionsView string
	Pipeline        PipelineRunner
	// Token protects the audit log and the pipeline trigger when set.
	Token string
	// Health reports storage reachability for /healthz.
	Health func(ctx context.Context) error
	Log    logger.Logger
}

// NewRouter returns the service handler.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /suggestions", suggestions.NewHandler(d.Suggestions, d.SuggestionsView))
	dispatch.NewTaskHandler(d.Queue).Register(mux)
	if d.Logs != nil {
		mux.Handle("GET /api/tasks/logs", dispatch.NewLogHandler(d.Logs, d.Token))
	}
	if d.Pipeline != nil {
		mux.Handle("POST /pipeline/run", httpx.RequireBearer(d.Token, newRunHandler(d.Pipeline)))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r.Context()); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return httpx.Middleware(d.Log, mux)
}

func newRunHandler(p PipelineRunner) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sum, err := p.Run(r.Context())
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			httpx.WriteProblem(w, http.StatusConflict, httpx.CodeConflict, err.Error())
		case err != nil:
			httpx.WriteProblem(w, http.StatusInternalServerError, httpx.CodeInternal, err.Error())
		default:
			httpx.WriteJSON(w, http.StatusOK, sum)
		}
	})
}

// Serve runs h on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
	}()
	log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
