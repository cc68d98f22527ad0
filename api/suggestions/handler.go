// Package suggestions serves the current rebalancing suggestions either as
// raw moves or as per-station cards for a map view.
package suggestions

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/kilianp07/bikeflow/api/httpx"
	"github.com/kilianp07/bikeflow/core/model"
)

// Views accepted by NewHandler.
const (
	ViewMoves    = "moves"
	ViewStations = "stations"
)

// Source is the read side needed to render either view.
type Source interface {
	Suggestions(ctx context.Context) ([]model.Suggestion, error)
	Stations(ctx context.Context) ([]model.Station, error)
	Snapshots(ctx context.Context) ([]model.InventorySnapshot, error)
}

// Move is one entry of the moves view.
type Move struct {
	ID            int64     `json:"id"`
	FromStationID string    `json:"from_station_id"`
	ToStationID   string    `json:"to_station_id"`
	Qty           int       `json:"qty"`
	Reason        string    `json:"reason"`
	DistanceM     float64   `json:"distance_m"`
	ForecastTS    time.Time `json:"forecast_ts"`
	Generation    int64     `json:"generation"`
}

// ValidView reports whether v names a known view.
func ValidView(v string) bool {
	return v == ViewMoves || v == ViewStations
}

// NewHandler returns the GET /suggestions handler. The view query parameter
// overrides the deployment default. In the stations view, only=suggested
// restricts the cards to stations named by a current suggestion.
func NewHandler(src Source, defaultView string) http.Handler {
	if defaultView == "" {
		defaultView = ViewMoves
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteProblem(w, http.StatusMethodNotAllowed, httpx.CodeBadRequest, "method not allowed")
			return
		}
		view := r.URL.Query().Get("view")
		if view == "" {
			view = defaultView
		}
		if !ValidView(view) {
			httpx.WriteProblem(w, http.StatusBadRequest, httpx.CodeBadRequest, fmt.Sprintf("unknown view %q", view))
			return
		}
		sugg, err := src.Suggestions(r.Context())
		if err != nil {
			httpx.WriteProblem(w, http.StatusInternalServerError, httpx.CodeInternal, "fetch suggestions: "+err.Error())
			return
		}
		if view == ViewMoves {
			httpx.WriteJSON(w, http.StatusOK, moves(sugg))
			return
		}
		cards, err := stationCards(r.Context(), src, sugg, r.URL.Query().Get("only") == "suggested")
		if err != nil {
			httpx.WriteProblem(w, http.StatusInternalServerError, httpx.CodeInternal, "fetch stations: "+err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, cards)
	})
}

func moves(in []model.Suggestion) []Move {
	out := make([]Move, len(in))
	for i, s := range in {
		out[i] = Move{
			ID:            s.ID,
			FromStationID: s.FromStationID,
			ToStationID:   s.ToStationID,
			Qty:           s.Qty,
			Reason:        s.Reason,
			DistanceM:     s.DistanceM,
			ForecastTS:    s.ForecastTS,
			Generation:    s.Generation,
		}
	}
	return out
}

func stationCards(ctx context.Context, src Source, sugg []model.Suggestion, onlySuggested bool) ([]Card, error) {
	stations, err := src.Stations(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := src.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}
	var named map[string]bool
	if onlySuggested {
		named = make(map[string]bool, 2*len(sugg))
		for _, s := range sugg {
			named[s.FromStationID] = true
			named[s.ToStationID] = true
		}
	}
	cards := make([]Card, 0, len(snaps))
	for _, sn := range snaps {
		if named != nil && !named[sn.StationID] {
			continue
		}
		st, ok := byID[sn.StationID]
		if !ok {
			continue
		}
		cards = append(cards, NewCard(st, sn))
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return cards, nil
}
