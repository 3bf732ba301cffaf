package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HatiCode/sensorsync/pkg/sensors"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

// ErrInvalidIncrement is returned by Append when the increment is not
// strictly ascending or is not covered by the new watermark.
var ErrInvalidIncrement = errors.New("invalid increment")

// Writer appends increments to sensor logs.
//
// Append reads recordCount and then writes at the positions after it, so two
// writers appending to the same sensor concurrently can overwrite each
// other's records. Callers must ensure a single writer per sensor; the syncer
// does this by processing sensors sequentially in one process.
type Writer struct {
	store storage.Store
	now   func() time.Time
}

func NewWriter(store storage.Store) *Writer {
	return &Writer{store: store, now: time.Now}
}

// RecordCount returns the next free position of the sensor's log, 0 when the
// log does not exist yet.
func (w *Writer) RecordCount(ctx context.Context, sensorKey string) (int64, error) {
	n, _, err := w.store.GetInt(ctx, recordCountPath(sensorKey))
	if err != nil {
		return 0, fmt.Errorf("read record count for %s: %w", sensorKey, err)
	}
	return n, nil
}

// Append stores increment at the end of the sensor's log and advances its
// watermark to wm in one atomic update. Within that update the records come
// first, then recordCount and lastUpdated, then the watermark.
//
// Nothing is written when the record count cannot be read. An empty
// increment is a no-op and returns 0 without touching the store.
func (w *Writer) Append(ctx context.Context, sensorKey string, increment []sensors.Reading, wm Watermark) (int64, error) {
	if len(increment) == 0 {
		return 0, nil
	}
	if err := checkIncrement(increment, wm); err != nil {
		return 0, fmt.Errorf("append %s: %w", sensorKey, err)
	}

	count, err := w.RecordCount(ctx, sensorKey)
	if err != nil {
		return 0, err
	}

	updated := wm.LastUpdated
	if updated.IsZero() {
		updated = w.now()
		wm.LastUpdated = updated
	}

	muts := make([]storage.Mutation, 0, len(increment)+3)
	for i, r := range increment {
		muts = append(muts, storage.Mutation{Path: dataPath(sensorKey, count+int64(i)), Value: r})
	}
	next := count + int64(len(increment))
	muts = append(muts,
		storage.Mutation{Path: recordCountPath(sensorKey), Value: next},
		storage.Mutation{Path: lastUpdatedPath(sensorKey), Value: updated.UTC()},
		storage.Mutation{Path: watermarkPath(sensorKey), Value: wm},
	)

	if err := w.store.Update(ctx, muts); err != nil {
		return 0, fmt.Errorf("append %d records to %s: %w", len(increment), sensorKey, err)
	}
	return next, nil
}

func checkIncrement(increment []sensors.Reading, wm Watermark) error {
	for i := 1; i < len(increment); i++ {
		if increment[i].Timestamp <= increment[i-1].Timestamp {
			return fmt.Errorf("%w: timestamp %d at index %d not after %d",
				ErrInvalidIncrement, increment[i].Timestamp, i, increment[i-1].Timestamp)
		}
	}
	if last := increment[len(increment)-1].Timestamp; wm.LastTimestamp < last {
		return fmt.Errorf("%w: watermark %d behind last record %d", ErrInvalidIncrement, wm.LastTimestamp, last)
	}
	return nil
}
