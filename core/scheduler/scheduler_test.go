package scheduler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bikeflow/infra/logger"
)

func TestDecodeConfigYAML(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewBufferString("enabled: true\nrun_on_start: true\n"), "yaml")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, DefaultIntervalMinutes, cfg.IntervalMinutes)
	assert.Equal(t, 15*time.Minute, cfg.Interval())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scheduler.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enabled":true,"interval_minutes":5}`), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.IntervalMinutes)

	yml := filepath.Join(dir, "scheduler.yml")
	require.NoError(t, os.WriteFile(yml, []byte("enabled: true\ninterval_minutes: 0\n"), 0o644))
	_, err = LoadConfig(yml)
	assert.Error(t, err)

	txt := filepath.Join(dir, "scheduler.txt")
	require.NoError(t, os.WriteFile(txt, []byte("enabled"), 0o644))
	_, err = LoadConfig(txt)
	assert.Error(t, err)
}

func TestSchedulerRunsJobUntilCanceled(t *testing.T) {
	var runs atomic.Int32
	s := New(Config{Enabled: true, IntervalMinutes: 1, RunOnStart: true}, func(context.Context) error {
		if runs.Add(1) == 2 {
			return errors.New("transient")
		}
		return nil
	}, logger.NopLogger{})
	s.every = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestDisabledSchedulerNeverRuns(t *testing.T) {
	called := false
	s := New(DefaultConfig(), func(context.Context) error {
		called = true
		return nil
	}, logger.NopLogger{})
	<-s.Start(context.Background())
	assert.False(t, called)
}
