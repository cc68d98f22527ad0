package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	NopMonitor
	errs   []error
	tags   []map[string]string
	panics []any
}

func (r *recordMonitor) CapturePanic(v any) { r.panics = append(r.panics, v) }

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func TestCaptureException(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "dispatch"})
	Flush(time.Millisecond)

	assert.Len(t, rec.errs, 1)
	assert.Equal(t, "dispatch", rec.tags[0]["component"])
}

func TestInitIgnoresNil(t *testing.T) {
	Init(nil)
	assert.IsType(t, NopMonitor{}, get())
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	assert.PanicsWithValue(t, "kaboom", func() {
		defer Recover()
		panic("kaboom")
	})
	assert.Equal(t, []any{"kaboom"}, rec.panics)
}
