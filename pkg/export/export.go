// Package export writes suggestion sets for offline review.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/bikeflow/core/model"
)

// WriteJSON writes the suggestions to w as a JSON array.
func WriteJSON(w io.Writer, suggestions []model.Suggestion) error {
	if suggestions == nil {
		suggestions = []model.Suggestion{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(suggestions)
}

// WriteCSV writes the suggestions to w in CSV format with a header row.
func WriteCSV(w io.Writer, suggestions []model.Suggestion) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "generation", "from_station_id", "to_station_id", "qty", "distance_m", "forecast_ts", "reason"}); err != nil {
		return err
	}
	for _, s := range suggestions {
		rec := []string{
			strconv.FormatInt(s.ID, 10),
			strconv.FormatInt(s.Generation, 10),
			s.FromStationID,
			s.ToStationID,
			strconv.Itoa(s.Qty),
			strconv.FormatFloat(s.DistanceM, 'f', 1, 64),
			s.ForecastTS.UTC().Format(time.RFC3339),
			s.Reason,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write picks the format from the file extension of path.
func Write(w io.Writer, path string, suggestions []model.Suggestion) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return WriteJSON(w, suggestions)
	case ".csv":
		return WriteCSV(w, suggestions)
	default:
		return fmt.Errorf("unsupported export format %q", ext)
	}
}
