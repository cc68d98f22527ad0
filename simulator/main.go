// Command simulator runs field crews against the task queue API: each crew
// polls /dispatch/next, works the task and completes it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilianp07/bikeflow/core/logger"
	infralogger "github.com/kilianp07/bikeflow/infra/logger"
)

func main() {
	cfg := parseFlags()
	log := infralogger.New("simulator")
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	crews := GenerateCrews(cfg.Workers, cfg.Prefix)
	report := runCrews(ctx, crews, cfg, log)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.API, "api", "http://localhost:8080", "task queue API base URL")
	flag.IntVar(&cfg.Workers, "workers", 4, "number of concurrent crews")
	flag.StringVar(&cfg.Prefix, "prefix", "crew", "crew id prefix")
	flag.DurationVar(&cfg.PollInterval, "poll", 2*time.Second, "wait between polls of an empty queue")
	flag.DurationVar(&cfg.WorkDuration, "work", 0, "time spent on each task")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "probability of abandoning a claimed task")
	flag.IntVar(&cfg.StopWhenEmpty, "stop-when-empty", 0, "stop a crew after this many consecutive empty polls")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "log every claim")
	flag.Parse()
	return cfg
}

// Report summarises a simulation.
type Report struct {
	Crews     map[string]Stats `json:"crews"`
	Claimed   int              `json:"claimed"`
	Completed int              `json:"completed"`
	Bikes     int              `json:"bikes"`
	// Duplicates lists task ids claimed by more than one crew.
	Duplicates []int64 `json:"duplicates"`
}

func runCrews(ctx context.Context, crews []Crew, cfg Config, log logger.Logger) Report {
	client := NewClient(cfg.API)
	var strat CompletionStrategy = AutoComplete{Delay: cfg.WorkDuration}
	if cfg.DropRate > 0 {
		strat = RandomComplete{Delay: cfg.WorkDuration, DropRate: cfg.DropRate}
	}
	if !cfg.Verbose {
		log = infralogger.NopLogger{}
	}
	var wg sync.WaitGroup
	for i := range crews {
		c := &crews[i]
		c.Client = client
		c.Strategy = strat
		c.PollInterval = cfg.PollInterval
		c.StopWhenEmpty = cfg.StopWhenEmpty
		c.Log = log
		wg.Add(1)
		go func(c *Crew) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Errorf("%s: %v", c.ID, err)
			}
		}(c)
	}
	wg.Wait()
	return buildReport(crews)
}

func buildReport(crews []Crew) Report {
	r := Report{Crews: make(map[string]Stats, len(crews)), Duplicates: []int64{}}
	owners := map[int64]int{}
	for _, c := range crews {
		r.Crews[c.ID] = c.Stats
		r.Claimed += c.Stats.Claimed
		r.Completed += c.Stats.Completed
		r.Bikes += c.Stats.Bikes
		for _, id := range c.Stats.TaskIDs {
			owners[id]++
			if owners[id] == 2 {
				r.Duplicates = append(r.Duplicates, id)
			}
		}
	}
	return r
}
