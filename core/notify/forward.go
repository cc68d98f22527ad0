package notify

import (
	"context"
	"time"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/core/logger"
	coremon "github.com/kilianp07/bikeflow/core/monitoring"
	"github.com/kilianp07/bikeflow/internal/eventbus"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Forward delivers every event published on bus to n until ctx is done or
// the bus is closed. Delivery failures are logged and reported, never
// retried. The returned channel is closed once the forwarder exits.
func Forward(ctx context.Context, bus *eventbus.TypedBus[events.TaskEvent], n Notifier, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		defer coremon.Recover()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				dctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
				err := n.Notify(dctx, ev)
				cancel()
				if err != nil {
					log.Errorf("notify task %d %s: %v", ev.Task.ID, ev.Action, err)
					coremon.CaptureException(err, map[string]string{"module": "notify", "action": string(ev.Action)})
				}
			}
		}
	}()
	return done
}
