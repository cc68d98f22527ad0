package notify

import (
	"github.com/kilianp07/bikeflow/core/factory"
	infralogger "github.com/kilianp07/bikeflow/infra/logger"
)

func init() {
	_ = RegisterNotifier("nop", func(map[string]any) (Notifier, error) {
		return NopNotifier{}, nil
	})
	_ = RegisterNotifier("log", func(conf map[string]any) (Notifier, error) {
		var c struct {
			Component string `json:"component"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Component == "" {
			c.Component = "task-notifier"
		}
		return NewLogNotifier(infralogger.New(c.Component)), nil
	})
}
