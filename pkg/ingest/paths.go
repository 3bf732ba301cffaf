package ingest

import (
	"strconv"
	"time"

	"github.com/HatiCode/sensorsync/pkg/storage"
)

const (
	sensorDataRoot = "sensorData"
	sensorMetaRoot = "sensorMeta"
	historyRoot    = "weatherHistory"

	// MetadataPath holds the latest Run Summary.
	MetadataPath = "weatherData/metadata"
)

func logPath(key string) string { return storage.Join(sensorDataRoot, key) }

func dataCollection(key string) string { return storage.Join(sensorDataRoot, key, "data") }

func dataPath(key string, pos int64) string {
	return storage.Join(sensorDataRoot, key, "data", strconv.FormatInt(pos, 10))
}

func recordCountPath(key string) string { return storage.Join(logPath(key), "recordCount") }

func lastUpdatedPath(key string) string { return storage.Join(logPath(key), "lastUpdated") }

func watermarkPath(key string) string { return storage.Join(sensorMetaRoot, key) }

// HistoryPath is where a History Entry written at ts is stored.
func HistoryPath(ts time.Time) string {
	return storage.Join(historyRoot, strconv.FormatInt(ts.UnixMilli(), 10))
}
