package rebalance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/bikeflow/core/logger"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

// Priority ranks candidates; primary candidates come from risky stations.
type Priority int

const (
	Primary Priority = iota + 1
	Fallback
)

func (p Priority) String() string {
	if p == Primary {
		return "primary"
	}
	return "fallback"
}

// StationState is the matcher input for one station.
type StationState struct {
	Station  model.Station
	Capacity int
	Forecast model.ForecastRecord
}

// TargetLevel returns the bike count the station is steered toward.
func (s StationState) TargetLevel() int {
	return int(math.Round(float64(s.Capacity) * TargetFill))
}

// Candidate is a station able to give or receive bikes.
type Candidate struct {
	State    StationState
	Priority Priority
	// Amount is the surplus for sources and the deficit for sinks.
	Amount int
}

// Classify splits stations into sources and sinks.
func Classify(states []StationState) (sources, sinks []Candidate) {
	for _, s := range states {
		target := s.TargetLevel()
		p := s.Forecast.PredictedBikes15m
		switch {
		case p > target && s.Forecast.Risk == model.RiskFullSoon:
			sources = append(sources, Candidate{State: s, Priority: Primary, Amount: p - target})
		case p > target && s.Forecast.Risk == model.RiskBalanced:
			sources = append(sources, Candidate{State: s, Priority: Fallback, Amount: p - target})
		case p < target && s.Forecast.Risk == model.RiskEmptySoon:
			sinks = append(sinks, Candidate{State: s, Priority: Primary, Amount: target - p})
		case p < target && s.Forecast.Risk == model.RiskBalanced:
			sinks = append(sinks, Candidate{State: s, Priority: Fallback, Amount: target - p})
		}
	}
	return sources, sinks
}

// Match pairs every source with at most one sink. Sources are visited
// primary first, then by decreasing surplus. The remaining need of a sink is
// reduced by each move so later sources never overfill it.
func (c Config) Match(states []StationState) []model.Suggestion {
	sources, sinks := Classify(states)
	sort.SliceStable(sources, func(i, j int) bool {
		a, b := sources[i], sources[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.State.Station.ID < b.State.Station.ID
	})
	remaining := make([]int, len(sinks))
	for i, s := range sinks {
		remaining[i] = s.Amount
	}

	var out []model.Suggestion
	for _, src := range sources {
		best, bestDist := -1, 0.0
		for i, snk := range sinks {
			if remaining[i] <= 0 || snk.State.Station.ID == src.State.Station.ID {
				continue
			}
			d := DistanceM(src.State.Station, snk.State.Station)
			if d > c.MaxDistanceM {
				continue
			}
			if best < 0 || snk.Priority < sinks[best].Priority ||
				(snk.Priority == sinks[best].Priority && d < bestDist) ||
				(snk.Priority == sinks[best].Priority && d == bestDist && snk.State.Station.ID < sinks[best].State.Station.ID) {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			continue
		}
		snk := sinks[best]
		move := min(src.Amount, remaining[best])
		if move <= 0 {
			continue
		}
		remaining[best] -= move
		out = append(out, model.Suggestion{
			FromStationID: src.State.Station.ID,
			ToStationID:   snk.State.Station.ID,
			Qty:           move,
			DistanceM:     bestDist,
			ForecastTS:    src.State.Forecast.ForecastTS,
			Reason: fmt.Sprintf("%s %s surplus %d -> %s %s deficit %d",
				src.Priority, src.State.Forecast.Risk, src.Amount,
				snk.Priority, snk.State.Forecast.Risk, snk.Amount),
		})
	}
	return out
}

// Matcher runs the rebalancing pass against storage.
type Matcher struct {
	cfg         Config
	forecasts   store.ForecastStore
	stations    store.StationStore
	inventory   store.InventoryStore
	suggestions store.SuggestionStore
	log         logger.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(cfg Config, fc store.ForecastStore, st store.StationStore, inv store.InventoryStore, sg store.SuggestionStore, log logger.Logger) *Matcher {
	return &Matcher{cfg: cfg, forecasts: fc, stations: st, inventory: inv, suggestions: sg, log: log}
}

// Result summarises a matcher run.
type Result struct {
	Generation  int64
	Suggestions []model.Suggestion
	TotalBikes  int
	ForecastTS  time.Time
}

// Run computes suggestions from the latest forecast round and publishes
// them as a new generation.
func (m *Matcher) Run(ctx context.Context) (Result, error) {
	states, err := m.loadStates(ctx)
	if err != nil {
		return Result{}, err
	}
	m.log.Infof("computing rebalancing suggestions (max_distance=%.0fm, target=%.0f%% capacity) over %d stations",
		m.cfg.MaxDistanceM, TargetFill*100, len(states))
	batch := m.cfg.Match(states)
	gen, err := m.suggestions.PublishSuggestions(ctx, batch)
	if err != nil {
		return Result{}, fmt.Errorf("publish suggestions: %w", err)
	}
	res := Result{Generation: gen, Suggestions: batch}
	for _, s := range batch {
		res.TotalBikes += s.Qty
		res.ForecastTS = s.ForecastTS
	}
	m.log.Infof("rebalancing suggestions published: generation=%d count=%d total_bikes=%d", gen, len(batch), res.TotalBikes)
	return res, nil
}

// loadStates joins the latest forecasts with station coordinates and
// capacity. Stations missing either are skipped.
func (m *Matcher) loadStates(ctx context.Context) ([]StationState, error) {
	recs, err := m.forecasts.LatestForecasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load forecasts: %w", err)
	}
	stations, err := m.stations.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	snaps, err := m.inventory.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	byID := make(map[string]model.Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}
	capacity := make(map[string]int, len(snaps))
	for _, s := range snaps {
		capacity[s.StationID] = s.Capacity
	}
	states := make([]StationState, 0, len(recs))
	for _, r := range recs {
		st, ok := byID[r.StationID]
		if !ok {
			m.log.Debugf("station %s has no coordinates, skipped", r.StationID)
			continue
		}
		c, ok := capacity[r.StationID]
		if !ok {
			m.log.Debugf("station %s has no inventory, skipped", r.StationID)
			continue
		}
		states = append(states, StationState{Station: st, Capacity: c, Forecast: r})
	}
	return states, nil
}
