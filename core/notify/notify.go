// Package notify forwards task queue events to external channels such as
// MQTT topics or an AMQP exchange so field crews learn about new and
// finished work without polling.
package notify

import (
	"context"
	"errors"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/factory"
	"github.com/kilianp07/bikeflow/core/logger"
)

// Notifier delivers one task event.
type Notifier interface {
	Notify(ctx context.Context, ev events.TaskEvent) error
	Close() error
}

// Config lists the notifier modules to build.
type Config struct {
	Notifiers []factory.ModuleConfig `json:"notifiers"`
}

var registry = factory.NewRegistry[Notifier]()

// RegisterNotifier adds a notifier factory identified by name.
func RegisterNotifier(name string, f factory.Factory[Notifier]) error {
	return registry.Register(name, f)
}

// Types lists the registered notifier types.
func Types() []string { return registry.Names() }

// New builds the configured notifiers. An empty list yields NopNotifier.
func New(cfgs []factory.ModuleConfig) (Notifier, error) {
	if len(cfgs) == 0 {
		return NopNotifier{}, nil
	}
	out := make(Multi, 0, len(cfgs))
	for _, c := range cfgs {
		n, err := registry.Create(c)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, events.TaskEvent) error { return nil }
func (NopNotifier) Close() error                                   { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev events.TaskEvent) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Notify(ctx, ev))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}

// LogNotifier writes events to a logger. It is registered as "log".
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) Notify(_ context.Context, ev events.TaskEvent) error {
	fields := map[string]any{
		"event_id": ev.ID,
		"action":   string(ev.Action),
		"task_id":  ev.Task.ID,
		"status":   ev.Task.Status.String(),
		"from":     ev.Task.FromStationID,
		"to":       ev.Task.ToStationID,
		"qty":      ev.Task.Qty,
	}
	if ev.Task.WorkerID != nil {
		fields["worker_id"] = *ev.Task.WorkerID
	}
	n.log.Infow("task event", fields)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
