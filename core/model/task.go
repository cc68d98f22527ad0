package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus int

const (
	TaskReady TaskStatus = iota
	TaskAssigned
	TaskCompleted
)

func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskAssigned:
		return "assigned"
	case TaskCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseTaskStatus converts a persisted name back into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch s {
	case "ready":
		return TaskReady, nil
	case "assigned":
		return TaskAssigned, nil
	case "completed":
		return TaskCompleted, nil
	default:
		return TaskReady, fmt.Errorf("unknown task status %q", s)
	}
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Re-completing a completed task is allowed.
func (s TaskStatus) CanAdvanceTo(next TaskStatus) bool {
	if next == TaskCompleted {
		return true
	}
	return next > s
}

func (s TaskStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *TaskStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := ParseTaskStatus(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Task is a committed rebalancing work item.
type Task struct {
	ID            int64      `json:"id"`
	FromStationID string     `json:"from_station_id"`
	ToStationID   string     `json:"to_station_id"`
	Qty           int        `json:"qty"`
	Reason        string     `json:"reason,omitempty"`
	Status        TaskStatus `json:"status"`
	WorkerID      *string    `json:"worker_id"`
	CreatedAt     time.Time  `json:"created_at"`
	AssignedAt    *time.Time `json:"assigned_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TaskInput carries the fields needed to create a task.
type TaskInput struct {
	FromStationID string `json:"from_station_id"`
	ToStationID   string `json:"to_station_id"`
	Qty           int    `json:"qty"`
	Reason        string `json:"reason"`
}

// Validate checks the mandatory fields.
func (in TaskInput) Validate() error {
	if in.FromStationID == "" || in.ToStationID == "" {
		return fmt.Errorf("from_station_id and to_station_id are required")
	}
	if in.FromStationID == in.ToStationID {
		return fmt.Errorf("from and to station must differ")
	}
	if in.Qty <= 0 {
		return fmt.Errorf("qty must be positive")
	}
	return nil
}

// TaskFromSuggestion copies the move described by s into a TaskInput.
func TaskFromSuggestion(s Suggestion) TaskInput {
	return TaskInput{
		FromStationID: s.FromStationID,
		ToStationID:   s.ToStationID,
		Qty:           s.Qty,
		Reason:        s.Reason,
	}
}
