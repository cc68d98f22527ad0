package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/bikeflow/core/events"
	coremetrics "github.com/kilianp07/bikeflow/core/metrics"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/infra/logger"
)

const writeTimeout = 5 * time.Second

// InfluxConfig locates the InfluxDB bucket receiving the points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes forecasts, suggestion runs and task events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given endpoint. A trailing
// /api/v2/write on the URL is ignored.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: writeTimeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the instance and returns a NopSink when
// the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(points ...*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordTaskEvent writes one task_event point.
func (s *InfluxSink) RecordTaskEvent(ev events.TaskEvent) error {
	t := ev.Task
	p := write.NewPointWithMeasurement("task_event").
		AddTag("action", string(ev.Action)).
		AddTag("status", t.Status.String()).
		AddTag("from_station_id", t.FromStationID).
		AddTag("to_station_id", t.ToStationID)
	if t.WorkerID != nil {
		p = p.AddTag("worker_id", *t.WorkerID)
	}
	p = p.AddTag("event_id", ev.ID).
		AddField("task_id", t.ID).
		AddField("qty", t.Qty).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordForecasts writes one forecast point per station in a single request.
func (s *InfluxSink) RecordForecasts(recs []model.ForecastRecord) error {
	points := make([]*write.Point, 0, len(recs))
	for _, r := range recs {
		points = append(points, write.NewPointWithMeasurement("forecast").
			AddTag("station_id", r.StationID).
			AddTag("risk", r.Risk.String()).
			AddField("predicted_bikes", r.PredictedBikes15m).
			SetTime(r.ForecastTS))
	}
	return s.write(points...)
}

// RecordSuggestions writes a suggestion_run point.
func (s *InfluxSink) RecordSuggestions(run coremetrics.SuggestionRun) error {
	p := write.NewPointWithMeasurement("suggestion_run").
		AddTag("generation", strconv.FormatInt(run.Generation, 10)).
		AddField("count", run.Count).
		AddField("total_bikes", run.TotalBikes).
		SetTime(run.Time)
	return s.write(p)
}

// RecordPipelineStage writes a pipeline_stage point.
func (s *InfluxSink) RecordPipelineStage(ev events.PipelineEvent) error {
	p := write.NewPointWithMeasurement("pipeline_stage").
		AddTag("stage", ev.Stage).
		AddTag("ok", strconv.FormatBool(ev.Err == nil)).
		AddField("records", ev.Records).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond)))
	if ev.Err != nil {
		p = p.AddField("error", ev.Err.Error())
	}
	return s.write(p.SetTime(ev.Time))
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
