// Package plugins links the built-in metrics sinks and task notifiers into
// the binary. Each infra package registers its factories from init.
package plugins

import (
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/notify"
	_ "github.com/kilianp07/bikeflow/infra/amqp"
	_ "github.com/kilianp07/bikeflow/infra/metrics"
	_ "github.com/kilianp07/bikeflow/infra/mqtt"
)

// Available returns the registered module types by kind.
func Available() map[string][]string {
	return map[string][]string{
		"metrics": coremetrics.SinkTypes(),
		"notify":  notify.Types(),
	}
}
