package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/bikeflow/core/dispatch/logging"
	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/logger"
	"github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/model"
	coremon "github.com/kilianp07/bikeflow/core/monitoring"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/internal/eventbus"
)

// Manager wraps a store.TaskStore with metrics, audit logging and event
// publication. It is safe for concurrent use when the store is.
type Manager struct {
	store     store.TaskStore
	listLimit int
	logStore  logging.LogStore
	sink      metrics.MetricsSink
	bus       *eventbus.TypedBus[events.TaskEvent]
	log       logger.Logger
	now       func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogStore records every transition in s.
func WithLogStore(s logging.LogStore) Option { return func(m *Manager) { m.logStore = s } }

// WithMetricsSink forwards every transition to s.
func WithMetricsSink(s metrics.MetricsSink) Option { return func(m *Manager) { m.sink = s } }

// WithEventBus publishes every transition on bus.
func WithEventBus(bus *eventbus.TypedBus[events.TaskEvent]) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithClock overrides the event clock.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager creates a task queue manager on top of st.
func NewManager(st store.TaskStore, cfg Config, log logger.Logger, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("dispatch: nil task store")
	}
	m := &Manager{
		store:     st,
		listLimit: cfg.ListLimit,
		logStore:  logging.NopStore{},
		sink:      metrics.NopSink{},
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Promote converts a pending suggestion into a ready task.
func (m *Manager) Promote(ctx context.Context, suggestionID int64) (model.Task, error) {
	task, err := m.store.PromoteSuggestion(ctx, suggestionID)
	if err != nil {
		return model.Task{}, m.fail("promote", err, map[string]string{"suggestion_id": fmt.Sprint(suggestionID)})
	}
	m.log.Infof("suggestion %d promoted to task %d (%s -> %s, %d bikes)",
		suggestionID, task.ID, task.FromStationID, task.ToStationID, task.Qty)
	ev := events.NewTaskEvent(events.TaskPromoted, task, m.now())
	ev.SuggestionID = suggestionID
	m.emit(ctx, ev)
	return task, nil
}

// Create enqueues a ready task that does not originate from a suggestion.
func (m *Manager) Create(ctx context.Context, in model.TaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, fmt.Errorf("invalid task: %w", err)
	}
	task, err := m.store.CreateTask(ctx, in)
	if err != nil {
		return model.Task{}, m.fail("create", err, nil)
	}
	m.log.Infof("task %d created (%s -> %s, %d bikes)", task.ID, task.FromStationID, task.ToStationID, task.Qty)
	m.emit(ctx, events.NewTaskEvent(events.TaskCreated, task, m.now()))
	return task, nil
}

// Claim assigns the oldest ready task to workerID. It returns ErrQueueEmpty
// when nothing is ready.
func (m *Manager) Claim(ctx context.Context, workerID string) (model.Task, error) {
	if workerID == "" {
		return model.Task{}, fmt.Errorf("worker id is required")
	}
	task, err := m.store.ClaimTask(ctx, workerID)
	if errors.Is(err, ErrQueueEmpty) {
		claimsTotal.WithLabelValues("empty").Inc()
		m.log.Debugf("worker %s polled an empty queue", workerID)
		return model.Task{}, err
	}
	if err != nil {
		claimsTotal.WithLabelValues("error").Inc()
		return model.Task{}, m.fail("claim", err, map[string]string{"worker_id": workerID})
	}
	claimsTotal.WithLabelValues("claimed").Inc()
	if task.AssignedAt != nil {
		taskWait.Observe(task.AssignedAt.Sub(task.CreatedAt).Seconds())
	}
	m.log.Infof("task %d assigned to worker %s", task.ID, workerID)
	m.emit(ctx, events.NewTaskEvent(events.TaskClaimed, task, m.now()))
	return task, nil
}

// Complete marks a task completed. Completing a completed task succeeds.
func (m *Manager) Complete(ctx context.Context, taskID int64) (model.Task, error) {
	task, err := m.store.CompleteTask(ctx, taskID)
	if err != nil {
		return model.Task{}, m.fail("complete", err, map[string]string{"task_id": fmt.Sprint(taskID)})
	}
	m.log.Infof("task %d completed", task.ID)
	m.emit(ctx, events.NewTaskEvent(events.TaskCompleted, task, m.now()))
	return task, nil
}

// Get returns one task.
func (m *Manager) Get(ctx context.Context, taskID int64) (model.Task, error) {
	task, err := m.store.Task(ctx, taskID)
	if err != nil {
		return model.Task{}, m.fail("get", err, nil)
	}
	return task, nil
}

// List returns tasks matching f, newest first.
func (m *Manager) List(ctx context.Context, f store.TaskFilter) ([]model.Task, error) {
	if f.Limit <= 0 {
		f.Limit = m.listLimit
	}
	tasks, err := m.store.Tasks(ctx, f)
	if err != nil {
		return nil, m.fail("list", err, nil)
	}
	return tasks, nil
}

// Logs queries the audit log.
func (m *Manager) Logs(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	return m.logStore.Query(ctx, q)
}

// Close releases the audit log.
func (m *Manager) Close() error {
	return m.logStore.Close()
}

func (m *Manager) emit(ctx context.Context, ev events.TaskEvent) {
	tasksTotal.WithLabelValues(string(ev.Action)).Inc()
	if err := m.logStore.Append(ctx, logging.RecordFromEvent(ev)); err != nil {
		m.log.Errorf("audit log append failed for task %d: %v", ev.Task.ID, err)
	}
	if err := m.sink.RecordTaskEvent(ev); err != nil {
		m.log.Warnf("metrics sink error: %v", err)
	}
	if m.bus != nil {
		m.bus.Publish(ev)
	}
}

// fail passes through the queue sentinels and reports anything else.
func (m *Manager) fail(op string, err error, tags map[string]string) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrQueueEmpty) {
		return err
	}
	opErrors.WithLabelValues(op).Inc()
	if tags == nil {
		tags = map[string]string{}
	}
	tags["module"] = "task_queue"
	tags["op"] = op
	coremon.CaptureException(err, tags)
	m.log.Errorf("%s failed: %v", op, err)
	return fmt.Errorf("%s: %w", op, err)
}
