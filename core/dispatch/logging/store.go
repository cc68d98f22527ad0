// Package logging persists an audit trail of task queue operations and
// answers filtered queries over it.
package logging

import (
	"context"
	"time"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

// LogRecord captures one task queue operation.
type LogRecord struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventID       string            `json:"event_id"`
	Action        events.TaskAction `json:"action"`
	TaskID        int64             `json:"task_id"`
	Status        model.TaskStatus  `json:"status"`
	WorkerID      string            `json:"worker_id,omitempty"`
	FromStationID string            `json:"from_station_id"`
	ToStationID   string            `json:"to_station_id"`
	Qty           int               `json:"qty"`
	SuggestionID  int64             `json:"suggestion_id,omitempty"`
}

// RecordFromEvent flattens a TaskEvent into a LogRecord.
func RecordFromEvent(ev events.TaskEvent) LogRecord {
	rec := LogRecord{
		Timestamp:     ev.Time,
		EventID:       ev.ID,
		Action:        ev.Action,
		TaskID:        ev.Task.ID,
		Status:        ev.Task.Status,
		FromStationID: ev.Task.FromStationID,
		ToStationID:   ev.Task.ToStationID,
		Qty:           ev.Task.Qty,
		SuggestionID:  ev.SuggestionID,
	}
	if ev.Task.WorkerID != nil {
		rec.WorkerID = *ev.Task.WorkerID
	}
	return rec
}

// LogQuery defines filters for retrieving records. Zero values match
// everything.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	WorkerID string
	TaskID   int64
	Action   events.TaskAction
}

// Match reports whether r satisfies q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.WorkerID != "" && r.WorkerID != q.WorkerID {
		return false
	}
	if q.TaskID != 0 && r.TaskID != q.TaskID {
		return false
	}
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error              { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
