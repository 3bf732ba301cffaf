// Package main implements the sensorsync syncer.
//
// The syncer pulls a bounded window of readings for every configured sensor,
// filters them against the per-sensor watermark and appends only the new
// readings to the sensor's log. It runs once and exits, or loops on an
// interval while serving status over HTTP and gRPC health.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/HatiCode/sensorsync/cmd/syncer/metrics"
	"github.com/HatiCode/sensorsync/pkg/adapters"
	"github.com/HatiCode/sensorsync/pkg/ingest"
	"github.com/HatiCode/sensorsync/pkg/sensors"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

// completionTimeout bounds the metadata and history writes, which run even
// after the run context is canceled.
const completionTimeout = 10 * time.Second

// Options tunes a Syncer.
type Options struct {
	// Lookback is the length of the fetch window ending at run start.
	Lookback time.Duration
	// Pacing is the fixed delay between two sensors.
	Pacing time.Duration
}

// RunResult describes one Tick.
type RunResult struct {
	RunID   string
	Summary ingest.RunSummary
	// SensorErrors aggregates per-sensor failures. They never fail the run.
	SensorErrors *multierror.Error
	// DegradedWatermarks is set when the bulk watermark read failed.
	DegradedWatermarks bool
}

// Syncer orchestrates runs: load watermarks → per sensor fetch, merge,
// append → write metadata and history.
type Syncer struct {
	sensors    []sensors.Sensor
	adapter    adapters.Adapter
	watermarks *ingest.WatermarkStore
	writer     *ingest.Writer
	summaries  *ingest.SummaryWriter
	opts       Options
	metrics    *metrics.Metrics
	logger     *slog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	// OnRun, if set, is called after every Tick.
	OnRun func(RunResult, error)

	mu   sync.RWMutex
	last *ingest.RunSummary
}

// New creates a Syncer for the sensors in catalog order.
func New(
	catalog []sensors.Sensor,
	adapter adapters.Adapter,
	store storage.Store,
	opts Options,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		sensors:    catalog,
		adapter:    adapter,
		watermarks: ingest.NewWatermarkStore(store),
		writer:     ingest.NewWriter(store),
		summaries:  ingest.NewSummaryWriter(store),
		opts:       opts,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Run executes a sync at start and then at every interval.
// Blocks until ctx is canceled.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("starting sync loop", "interval", interval, "sensors", len(s.sensors))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("sync run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("sync run failed", "error", err)
			}
		}
	}
}

// Last returns the summary of the most recent run.
func (s *Syncer) Last() (ingest.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return ingest.RunSummary{}, false
	}
	return *s.last, true
}

// Tick performs one run. The returned error is non-nil only when the Run
// Summary could not be written; per-sensor failures are reported in
// RunResult.SensorErrors.
func (s *Syncer) Tick(ctx context.Context) (RunResult, error) {
	runID := uuid.NewString()
	log := s.logger.With("run_id", runID)
	start := s.now()
	window := ingest.TimeRange{Start: start.Add(-s.opts.Lookback), End: start}

	log.Info("starting sync run",
		"sensors", len(s.sensors),
		"window_start", window.Start.Unix(),
		"window_end", window.End.Unix(),
	)

	result := RunResult{RunID: runID}

	wms, err := s.watermarks.LoadAll(ctx)
	if err != nil {
		result.DegradedWatermarks = true
		s.recordStorageError("load_watermarks")
		log.Warn("watermark read failed, continuing without them", "error", err, "loaded", len(wms))
	}
	for key, wm := range wms {
		s.metrics.SetWatermark(key, wm.LastTimestamp)
	}

	summary := ingest.RunSummary{
		RunID:        runID,
		TimeRange:    window,
		LatestValues: make(map[string]ingest.LatestValue),
	}

	for i, sensor := range s.sensors {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.Pacing); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		prev, known := wms[sensor.Key]
		out := s.syncSensor(ctx, log, sensor, window, prev, result.DegradedWatermarks && !known)

		if out.err != nil {
			result.SensorErrors = multierror.Append(result.SensorErrors, out.err)
			summary.FailedSensors = append(summary.FailedSensors, sensor.Key)
		} else {
			summary.SensorsUpdated++
		}
		summary.RecordsAdded += out.added
		if out.latest != nil {
			summary.LatestValues[sensor.Key] = *out.latest
		}
	}
	if ctx.Err() != nil {
		log.Warn("run interrupted, remaining sensors skipped", "error", ctx.Err())
	}

	summary.FetchedAt = s.now()
	summary.SensorCount = len(summary.LatestValues)
	result.Summary = summary

	err = s.complete(ctx, log, summary)

	status := "success"
	if err != nil {
		status = "failed"
	}
	duration := s.now().Sub(start)
	s.metrics.RecordRun(status, duration.Seconds())

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	log.Info("sync run complete",
		"status", status,
		"sensors_updated", summary.SensorsUpdated,
		"records_added", summary.RecordsAdded,
		"failed_sensors", len(summary.FailedSensors),
		"duration_ms", duration.Milliseconds(),
	)

	if s.OnRun != nil {
		s.OnRun(result, err)
	}
	return result, err
}

// complete writes the Run Summary and then, best effort, the History Entry.
func (s *Syncer) complete(ctx context.Context, log *slog.Logger, summary ingest.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionTimeout)
	defer cancel()

	if err := s.summaries.WriteMetadata(ctx, summary); err != nil {
		s.recordStorageError("metadata")
		log.Error("failed to write run metadata", "error", err)
		return err
	}
	if err := s.summaries.WriteHistory(ctx, summary.History()); err != nil {
		s.recordStorageError("history")
		log.Warn("failed to write history entry", "error", err)
	}
	return nil
}

type sensorOutcome struct {
	added  int
	latest *ingest.LatestValue
	err    error
}

// syncSensor runs fetch → merge → append for one sensor. unknownWatermark
// is set when the sensor's watermark could not be read this run.
func (s *Syncer) syncSensor(
	ctx context.Context,
	log *slog.Logger,
	sensor sensors.Sensor,
	window ingest.TimeRange,
	prev ingest.Watermark,
	unknownWatermark bool,
) sensorOutcome {
	log = log.With("sensor", sensor.Key)
	fallback := sensorOutcome{latest: fromWatermark(sensor, prev)}

	res := s.adapter.Fetch(ctx, sensor, window.Start, window.End)
	s.metrics.RecordFetch(res.Attempts, res.RateLimited, res.Err == nil)
	if res.Err != nil {
		log.Warn("fetch failed", "attempts", res.Attempts, "rate_limited", res.RateLimited, "error", res.Err)
		fallback.err = res.Err
		return fallback
	}

	merged := ingest.Merge(res.Readings, prev, s.now())
	log.Debug("merged readings",
		"fetched", len(res.Readings),
		"new", len(merged.Increment),
		"watermark", prev.LastTimestamp,
	)

	if len(merged.Increment) > 0 {
		if unknownWatermark {
			if err := s.checkEmptyLog(ctx, sensor.Key); err != nil {
				log.Warn("append skipped", "error", err)
				fallback.err = err
				return fallback
			}
		}

		if _, err := s.writer.Append(ctx, sensor.Key, merged.Increment, merged.Watermark); err != nil {
			s.recordStorageError("append")
			log.Error("append failed, watermark not advanced", "error", err)
			fallback.err = err
			return fallback
		}
		s.metrics.RecordAppended(sensor.Key, len(merged.Increment))
		s.metrics.SetWatermark(sensor.Key, merged.Watermark.LastTimestamp)
		log.Info("appended readings",
			"records_added", len(merged.Increment),
			"watermark", merged.Watermark.LastTimestamp,
		)
	}

	return sensorOutcome{
		added:  len(merged.Increment),
		latest: freshest(sensor, merged.Latest, prev),
	}
}

// errWatermarkUnavailable is reported for sensors whose watermark could not
// be read while their log already holds records: appending the whole window
// would duplicate stored readings.
var errWatermarkUnavailable = errors.New("watermark unavailable")

func (s *Syncer) checkEmptyLog(ctx context.Context, key string) error {
	n, err := s.writer.RecordCount(ctx, key)
	if err != nil {
		s.recordStorageError("record_count")
		return fmt.Errorf("%s: %w: %w", key, errWatermarkUnavailable, err)
	}
	if n > 0 {
		return fmt.Errorf("%s: %w and log holds %d records", key, errWatermarkUnavailable, n)
	}
	return nil
}

func (s *Syncer) recordStorageError(op string) {
	s.metrics.RecordStorageError(op)
}

func fromWatermark(sensor sensors.Sensor, wm ingest.Watermark) *ingest.LatestValue {
	if wm.IsZero() {
		return nil
	}
	return &ingest.LatestValue{
		Value:     wm.LatestValue,
		Unit:      sensor.Unit,
		Name:      sensor.Name,
		Timestamp: wm.LastTimestamp,
	}
}

// freshest picks the newer of the fetched latest reading and the stored
// watermark.
func freshest(sensor sensors.Sensor, latest *sensors.Reading, wm ingest.Watermark) *ingest.LatestValue {
	if latest == nil || latest.Timestamp < wm.LastTimestamp {
		return fromWatermark(sensor, wm)
	}
	return &ingest.LatestValue{
		Value:     latest.Value,
		Unit:      sensor.Unit,
		Name:      sensor.Name,
		Timestamp: latest.Timestamp,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
