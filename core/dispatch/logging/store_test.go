package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/model"
)

func TestRecordFromEvent(t *testing.T) {
	w := "w7"
	ev := events.NewTaskEvent(events.TaskClaimed, model.Task{
		ID: 3, FromStationID: "B", ToStationID: "A", Qty: 9, Status: model.TaskAssigned, WorkerID: &w,
	}, time.Now())
	rec := RecordFromEvent(ev)
	assert.Equal(t, ev.ID, rec.EventID)
	assert.Equal(t, "w7", rec.WorkerID)
	assert.Equal(t, int64(3), rec.TaskID)
	assert.Equal(t, model.TaskAssigned, rec.Status)
}

func TestJSONLStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.log")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, LogRecord{TaskID: 1, Action: events.TaskCreated}))
	require.NoError(t, appendRaw(path, "{not json\n"))
	require.NoError(t, store.Append(ctx, LogRecord{TaskID: 2, Action: events.TaskCreated}))

	out, err := store.Query(ctx, LogQuery{})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Backend: "none"}.Validate())
	assert.Error(t, Config{Backend: "jsonl"}.Validate())
	assert.Error(t, Config{Backend: "kafka", Path: "x"}.Validate())

	s, err := New(Config{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	s, err = New(Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "a.log")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = New(Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "b.log"), MaxSizeMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &RotatingJSONLStore{}, s)
	_ = s.Close()
}
