package amqp

import (
	"github.com/kilianp07/bikeflow/core/factory"
	"github.com/kilianp07/bikeflow/core/notify"
)

func init() {
	_ = notify.RegisterNotifier("amqp", func(conf map[string]any) (notify.Notifier, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return Dial(c)
	})
}
