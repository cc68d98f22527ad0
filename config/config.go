package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/notify"
	"github.com/kilianp07/bikeflow/core/prediction"
	"github.com/kilianp07/bikeflow/core/rebalance"
	"github.com/kilianp07/bikeflow/core/scheduler"
	"github.com/kilianp07/bikeflow/infra/monitoring"
)

// EnvPrefix marks environment overrides, e.g. BIKEFLOW_STORAGE__BACKEND.
const EnvPrefix = "BIKEFLOW_"

type Config struct {
	Storage   StorageConfig     `json:"storage"`
	HTTP      HTTPConfig        `json:"http"`
	Ingest    IngestConfig      `json:"ingest"`
	Forecast  prediction.Config `json:"forecast"`
	Rebalance rebalance.Config  `json:"rebalance"`
	Scheduler scheduler.Config  `json:"scheduler"`
	Dispatch  dispatch.Config   `json:"dispatch"`
	Metrics   metrics.Config    `json:"metrics"`
	Notify    notify.Config     `json:"notify"`
	Sentry    monitoring.Config `json:"sentry"`
}

// Default returns a configuration that runs fully in memory.
func Default() Config {
	return Config{
		Storage:   StorageConfig{Backend: BackendMemory},
		HTTP:      DefaultHTTPConfig(),
		Ingest:    IngestConfig{Timezone: "UTC"},
		Forecast:  prediction.DefaultConfig(),
		Rebalance: rebalance.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Dispatch:  dispatch.DefaultConfig(),
	}
}

// Load reads path (YAML or JSON) over the defaults and applies environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("storage", c.Storage.Validate())
	add("http", c.HTTP.Validate())
	add("ingest", c.Ingest.Validate())
	add("forecast", c.Forecast.Validate())
	add("rebalance", c.Rebalance.Validate())
	add("scheduler", c.Scheduler.Validate())
	add("dispatch.log", c.Dispatch.Log.Validate())
	return errors.Join(errs...)
}
