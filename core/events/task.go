package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bikeflow/core/model"
)

// TaskAction names the queue operation behind a TaskEvent.
type TaskAction string

const (
	TaskPromoted  TaskAction = "promoted"
	TaskCreated   TaskAction = "created"
	TaskClaimed   TaskAction = "claimed"
	TaskCompleted TaskAction = "completed"
)

// TaskEvent is published after every successful queue mutation.
type TaskEvent struct {
	ID           string     `json:"id"`
	Action       TaskAction `json:"action"`
	Task         model.Task `json:"task"`
	SuggestionID int64      `json:"suggestion_id,omitempty"`
	Time         time.Time  `json:"time"`
}

// NewTaskEvent stamps a TaskEvent with a fresh id.
func NewTaskEvent(action TaskAction, task model.Task, at time.Time) TaskEvent {
	return TaskEvent{ID: uuid.NewString(), Action: action, Task: task, Time: at}
}
