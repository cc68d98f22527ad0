package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

func TestSQLiteStorePersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:tasklog_test.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	t0 := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, LogRecord{Timestamp: t0, TaskID: 1, Action: events.TaskCreated, Status: model.TaskReady}))
	require.NoError(t, store.Append(ctx, LogRecord{Timestamp: t0.Add(time.Minute), TaskID: 1, Action: events.TaskClaimed, Status: model.TaskAssigned, WorkerID: "w1"}))
	require.NoError(t, store.Append(ctx, LogRecord{Timestamp: t0.Add(2 * time.Minute), TaskID: 1, Action: events.TaskCompleted, Status: model.TaskCompleted, WorkerID: "w1"}))

	out, err := store.Query(ctx, LogQuery{WorkerID: "w1"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, events.TaskClaimed, out[0].Action)
	assert.Equal(t, model.TaskCompleted, out[1].Status)

	out, err = store.Query(ctx, LogQuery{Start: t0.Add(30 * time.Second), End: t0.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, events.TaskClaimed, out[0].Action)

	out, err = store.Query(ctx, LogQuery{Action: events.TaskCreated})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
