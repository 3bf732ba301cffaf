package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HatiCode/sensorsync/pkg/storage"
)

// ErrMetadata marks a failed Run Summary write, the only failure that fails
// a run as a whole.
var ErrMetadata = errors.New("write run metadata")

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LatestValue is the most recent known value of one sensor.
type LatestValue struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
}

// RunSummary describes one completed run. SensorCount is the number of
// sensors with a known latest value.
type RunSummary struct {
	RunID          string                 `json:"runId,omitempty"`
	TimeRange      TimeRange              `json:"timeRange"`
	FetchedAt      time.Time              `json:"fetchedAt"`
	SensorCount    int                    `json:"sensorCount"`
	LatestValues   map[string]LatestValue `json:"latestValues"`
	SensorsUpdated int                    `json:"sensorsUpdated"`
	RecordsAdded   int                    `json:"recordsAdded"`
	FailedSensors  []string               `json:"failedSensors,omitempty"`
}

// HistoryEntry is an immutable snapshot of latest values.
type HistoryEntry struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// History derives the History Entry for s.
func (s RunSummary) History() HistoryEntry {
	values := make(map[string]float64, len(s.LatestValues))
	for k, v := range s.LatestValues {
		values[k] = v.Value
	}
	return HistoryEntry{Timestamp: s.FetchedAt, Values: values}
}

// SummaryWriter persists run metadata and history.
type SummaryWriter struct {
	store storage.Store
}

func NewSummaryWriter(store storage.Store) *SummaryWriter {
	return &SummaryWriter{store: store}
}

// WriteMetadata overwrites the latest Run Summary. Errors wrap ErrMetadata.
func (w *SummaryWriter) WriteMetadata(ctx context.Context, s RunSummary) error {
	if err := w.store.Set(ctx, MetadataPath, s); err != nil {
		return fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	return nil
}

// WriteHistory adds h under its own timestamp.
func (w *SummaryWriter) WriteHistory(ctx context.Context, h HistoryEntry) error {
	if err := w.store.Set(ctx, HistoryPath(h.Timestamp), h); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
