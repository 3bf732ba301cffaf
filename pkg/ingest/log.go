package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/HatiCode/sensorsync/pkg/sensors"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

// ReadLog returns the stored log of one sensor in position order. It reads
// the whole log and is meant for inspection, never for the append path.
func ReadLog(ctx context.Context, store storage.Store, sensorKey string) ([]sensors.Reading, error) {
	raw, err := store.Children(ctx, dataCollection(sensorKey))
	if err != nil {
		return nil, err
	}

	type entry struct {
		pos int64
		r   sensors.Reading
	}
	entries := make([]entry, 0, len(raw))
	for name, b := range raw {
		pos, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("log %s: bad position %q", sensorKey, name)
		}
		var r sensors.Reading
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("log %s: decode position %d: %w", sensorKey, pos, err)
		}
		entries = append(entries, entry{pos: pos, r: r})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	out := make([]sensors.Reading, len(entries))
	for i, e := range entries {
		out[i] = e.r
	}
	return out, nil
}
