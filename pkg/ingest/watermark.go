package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/HatiCode/sensorsync/pkg/storage"
)

// Watermark records what has already been persisted for one sensor.
// LastTimestamp never decreases and is only written together with the
// append that justifies it.
type Watermark struct {
	LastTimestamp int64     `json:"lastTimestamp"`
	LatestValue   float64   `json:"latestValue"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// IsZero reports whether nothing has been persisted yet.
func (w Watermark) IsZero() bool { return w.LastTimestamp == 0 }

// WatermarkStore reads watermarks in bulk.
type WatermarkStore struct {
	store storage.Store
}

func NewWatermarkStore(store storage.Store) *WatermarkStore {
	return &WatermarkStore{store: store}
}

// LoadAll reads every watermark with a single collection read.
//
// If the collection cannot be read the returned map is empty and err is the
// storage error. Entries that fail to decode are left out of the map and
// reported in err; all other entries are still returned.
func (w *WatermarkStore) LoadAll(ctx context.Context) (map[string]Watermark, error) {
	out := make(map[string]Watermark)

	raw, err := w.store.Children(ctx, sensorMetaRoot)
	if err != nil {
		return out, err
	}

	var errs *multierror.Error
	for key, b := range raw {
		var wm Watermark
		if err := json.Unmarshal(b, &wm); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("decode watermark %s: %w", key, err))
			continue
		}
		out[key] = wm
	}
	return out, errs.ErrorOrNil()
}
