// Package factory provides a small generic registry used to instantiate
// pluggable modules (metrics sinks, task notifiers) from configuration. A
// module is declared by a type string and a map of raw settings; factories
// decode the settings into typed structs with Decode.
//
//	reg := factory.NewRegistry[notify.Notifier]()
//	_ = reg.Register("log", func(conf map[string]any) (notify.Notifier, error) {
//	    var c struct{ Component string `json:"component"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return notify.NewLogNotifier(logger.New(c.Component)), nil
//	})
//	n, err := reg.Create(factory.ModuleConfig{Type: "log"})
package factory
