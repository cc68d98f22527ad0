package metrics

import (
	"context"

	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/infra/logger"
	"github.com/kilianp07/bikeflow/internal/eventbus"
)

// StartEventCollector subscribes to pipeline events and records them on sink
// when it implements PipelineRecorder. The returned channel is closed once
// the collector has stopped, which happens when ctx is canceled or the bus is
// closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.PipelineEvent], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.PipelineRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordPipelineStage(ev); err != nil {
					log.Warnf("record pipeline stage %s: %v", ev.Stage, err)
				}
			}
		}
	}()
	return done
}
