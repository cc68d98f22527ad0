package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilianp07/bikeflow/api"
	"github.com/kilianp07/bikeflow/config"
	"github.com/kilianp07/bikeflow/core/demand"
	"github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/dispatch/logging"
	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	coremon "github.com/kilianp07/bikeflow/core/monitoring"
	"github.com/kilianp07/bikeflow/core/notify"
	"github.com/kilianp07/bikeflow/core/pipeline"
	"github.com/kilianp07/bikeflow/core/prediction"
	"github.com/kilianp07/bikeflow/core/rebalance"
	"github.com/kilianp07/bikeflow/core/scheduler"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/infra/metrics"
	"github.com/kilianp07/bikeflow/infra/monitoring"
	"github.com/kilianp07/bikeflow/infra/store/memory"
	"github.com/kilianp07/bikeflow/infra/store/postgres"
	"github.com/kilianp07/bikeflow/internal/eventbus"

	_ "github.com/kilianp07/bikeflow/app/plugins"
)

// OpenStore opens the configured storage backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.Postgres)
	case config.BackendMemory, "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// NewPipeline wires the demand builder, forecast engine and matcher on st.
func NewPipeline(cfg *config.Config, st store.Store, opts ...pipeline.Option) *pipeline.Runner {
	loc, err := cfg.Ingest.Location()
	if err != nil {
		loc = time.UTC
	}
	return pipeline.NewRunner(
		demand.NewBuilder(st, st, logger.New("demand"), demand.WithLocation(loc)),
		prediction.NewEngine(cfg.Forecast, st, st, st, logger.New("forecast"), prediction.WithLocation(loc)),
		rebalance.NewMatcher(cfg.Rebalance, st, st, st, st, logger.New("rebalance")),
		logger.New("pipeline"),
		opts...,
	)
}

// Service owns the store, the task queue and the batch pipeline and serves
// them over HTTP.
type Service struct {
	cfg      *config.Config
	Store    store.Store
	Manager  *dispatch.Manager
	Runner   *pipeline.Runner
	sink     coremetrics.MetricsSink
	notifier notify.Notifier
	tasks    *eventbus.TypedBus[events.TaskEvent]
	stages   *eventbus.TypedBus[events.PipelineEvent]
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	st, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	svc := &Service{cfg: cfg, Store: st, log: logg}
	if err := svc.init(); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) init() error {
	sink, err := coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink
	s.notifier, err = notify.New(s.cfg.Notify.Notifiers)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	logStore, err := logging.New(s.cfg.Dispatch.Log)
	if err != nil {
		return fmt.Errorf("task log: %w", err)
	}
	s.tasks = eventbus.NewTyped[events.TaskEvent]()
	s.stages = eventbus.NewTyped[events.PipelineEvent]()
	s.Manager, err = dispatch.NewManager(s.Store, s.cfg.Dispatch, logger.New("dispatch"),
		dispatch.WithLogStore(logStore),
		dispatch.WithMetricsSink(sink),
		dispatch.WithEventBus(s.tasks),
	)
	if err != nil {
		_ = logStore.Close()
		return fmt.Errorf("dispatch manager: %w", err)
	}
	s.Runner = NewPipeline(s.cfg, s.Store,
		pipeline.WithMetricsSink(sink),
		pipeline.WithEventBus(s.stages),
	)
	return nil
}

// Handler returns the API handler.
func (s *Service) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		Queue:           s.Manager,
		Logs:            s.Manager,
		Suggestions:     s.Store,
		SuggestionsView: s.cfg.HTTP.SuggestionsView,
		Pipeline:        s.Runner,
		Token:           s.cfg.HTTP.Token,
		Health:          s.health,
		Log:             logger.New("api"),
	})
}

func (s *Service) health(ctx context.Context) error {
	if p, ok := s.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// runPipeline adapts the runner to the scheduler.
func (s *Service) runPipeline(ctx context.Context) error {
	_, err := s.Runner.Run(ctx)
	if errors.Is(err, pipeline.ErrBusy) {
		return scheduler.ErrSkipped
	}
	return err
}

// Run starts the background workers and the API server and blocks until
// the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	forwarded := notify.Forward(ctx, s.tasks, s.notifier, logger.New("notify"))
	collected := metrics.StartEventCollector(ctx, s.stages, s.sink, logger.New("metrics"))
	scheduled := scheduler.New(s.cfg.Scheduler, s.runPipeline, logger.New("scheduler")).Start(ctx)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		coremon.Go(func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	err := api.Serve(ctx, s.cfg.HTTP.Addr, s.Handler(), logger.New("api"))
	cancel()
	<-scheduled
	<-forwarded
	<-collected
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if s.tasks != nil {
		s.tasks.Close()
	}
	if s.stages != nil {
		s.stages.Close()
	}
	if s.notifier != nil {
		errs = append(errs, s.notifier.Close())
	}
	switch c := s.sink.(type) {
	case io.Closer:
		errs = append(errs, c.Close())
	case interface{ Close() }:
		c.Close()
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
