package adapters

import (
	"context"
	"time"

	"github.com/HatiCode/sensorsync/pkg/sensors"
)

// FetchResult is the outcome of fetching one sensor's window.
//
// Readings is either everything the upstream reported for the window
// (unsorted, unfiltered) or empty when Err is set. A FetchResult never
// carries both readings and an error.
type FetchResult struct {
	SensorKey   string
	Readings    []sensors.Reading
	Attempts    int
	RateLimited int
	Err         error
}

// Adapter is the interface that all sensorsync upstream connectors implement.
//
// Adapters pull raw readings for one sensor over a time window and leave
// deduplication and persistence to the ingest layer. Fetch must not panic and
// must not return an error value: failures are reported inside FetchResult so
// that one sensor's failure never aborts a run.
type Adapter interface {
	// Fetch retrieves readings for sensor with timestamps in [start, end].
	Fetch(ctx context.Context, sensor sensors.Sensor, start, end time.Time) FetchResult

	// Name returns a short, unique identifier for the adapter.
	Name() string
}
