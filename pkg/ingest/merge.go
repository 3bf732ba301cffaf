package ingest

import (
	"sort"
	"time"

	"github.com/HatiCode/sensorsync/pkg/sensors"
)

// MergeResult is the outcome of filtering one fetched window.
type MergeResult struct {
	// Increment holds the readings newer than the watermark in ascending
	// timestamp order, at most one per timestamp.
	Increment []sensors.Reading
	// Watermark is the watermark to persist with Increment. It equals the
	// input watermark when Increment is empty.
	Watermark Watermark
	// Latest is the freshest fetched reading, nil when nothing was fetched.
	// It is set even when Increment is empty.
	Latest *sensors.Reading
}

// Merge computes the strictly-new increment of fetched against wm.
//
// fetched may overlap earlier windows. Readings at or below
// wm.LastTimestamp are dropped, the rest are sorted ascending, and readings
// that share a timestamp collapse to the one fetched last. now stamps the
// advanced watermark. Merge does not modify fetched.
func Merge(fetched []sensors.Reading, wm Watermark, now time.Time) MergeResult {
	res := MergeResult{Watermark: wm}
	if len(fetched) == 0 {
		return res
	}

	sorted := make([]sensors.Reading, len(fetched))
	copy(sorted, fetched)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	// Collapse equal timestamps in place; stable sort keeps fetch order
	// inside each run, so the last one wins.
	deduped := sorted[:1]
	for _, r := range sorted[1:] {
		if r.Timestamp == deduped[len(deduped)-1].Timestamp {
			deduped[len(deduped)-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	latest := deduped[len(deduped)-1]
	res.Latest = &latest

	first := sort.Search(len(deduped), func(i int) bool {
		return deduped[i].Timestamp > wm.LastTimestamp
	})
	if first == len(deduped) {
		return res
	}

	res.Increment = deduped[first:]
	res.Watermark = Watermark{
		LastTimestamp: latest.Timestamp,
		LatestValue:   latest.Value,
		LastUpdated:   now,
	}
	return res
}
