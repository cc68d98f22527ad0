package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
)

// InventoryBatch is the parsed content of an inventory file.
type InventoryBatch struct {
	Snapshots []model.InventorySnapshot
	Stations  []model.Station
	Rows      int
	Skipped   int
}

// ReadInventory parses a station status export. Required columns are
// station_id, current_bikes (or num_bikes_available), capacity and
// last_reported, the latter as a unix timestamp or any layout accepted by
// ParseTime. Optional name, lat and lon columns produce station metadata.
func (tr Reader) ReadInventory(r io.Reader) (InventoryBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, err := cr.Read()
	if err != nil {
		return InventoryBatch{}, fmt.Errorf("read header: %w", err)
	}
	h := newHeader(cols)
	if !h.has("station_id") || !h.has("current_bikes", "num_bikes_available") || !h.has("capacity") {
		return InventoryBatch{}, fmt.Errorf("missing inventory columns in header %v", cols)
	}
	var out InventoryBatch
	stations := newStationSet()
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		out.Rows++
		if err != nil {
			out.Skipped++
			tr.log().Warnf("skipping inventory row %d: %v", out.Rows, err)
			continue
		}
		snap, err := tr.parseSnapshot(h, row)
		if err != nil {
			out.Skipped++
			tr.log().Warnf("skipping inventory row %d: %v", out.Rows, err)
			continue
		}
		out.Snapshots = append(out.Snapshots, snap)
		stations.observe(snap.StationID, h.cell(row, "name", "station_name"),
			h.cell(row, "lat", "latitude"), h.cell(row, "lon", "lng", "longitude"))
	}
	out.Stations = stations.list()
	return out, nil
}

func (tr Reader) parseSnapshot(h header, row []string) (model.InventorySnapshot, error) {
	snap := model.InventorySnapshot{StationID: h.cell(row, "station_id")}
	if snap.StationID == "" {
		return snap, errors.New("missing station id")
	}
	var err error
	if snap.CurrentBikes, err = strconv.Atoi(h.cell(row, "current_bikes", "num_bikes_available")); err != nil {
		return snap, fmt.Errorf("current_bikes: %w", err)
	}
	if snap.Capacity, err = strconv.Atoi(h.cell(row, "capacity")); err != nil {
		return snap, fmt.Errorf("capacity: %w", err)
	}
	if snap.CurrentBikes < 0 {
		return snap, fmt.Errorf("negative bike count %d", snap.CurrentBikes)
	}
	raw := h.cell(row, "last_reported")
	if unix, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
		snap.LastReported = time.Unix(unix, 0).UTC()
	} else if snap.LastReported, err = ParseTime(raw, tr.Location); err != nil {
		return snap, fmt.Errorf("last_reported: %w", err)
	}
	return snap, nil
}

// InventoryTarget receives parsed snapshots and stations.
type InventoryTarget interface {
	store.InventoryStore
	store.StationStore
}

// LoadInventoryFile replaces the live inventory of every station listed in
// path.
func LoadInventoryFile(ctx context.Context, target InventoryTarget, path string, reader Reader) (InventoryBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return InventoryBatch{}, err
	}
	defer f.Close()
	batch, err := reader.ReadInventory(f)
	if err != nil {
		return batch, fmt.Errorf("%s: %w", path, err)
	}
	if err := target.UpsertStations(ctx, batch.Stations); err != nil {
		return batch, fmt.Errorf("%s: %w", path, err)
	}
	for _, s := range batch.Snapshots {
		if err := target.PutSnapshot(ctx, s); err != nil {
			return batch, fmt.Errorf("%s: %w", path, err)
		}
	}
	reader.log().Infow("inventory file loaded", map[string]any{
		"file": path, "rows": batch.Rows, "skipped": batch.Skipped, "stations": len(batch.Stations),
	})
	return batch, nil
}
