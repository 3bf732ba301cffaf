// Package ingest implements incremental, duplicate-free ingestion of sensor
// readings into per-sensor append-only logs.
//
// A run works against three pieces of persisted state per sensor:
//
//   - the watermark at sensorMeta/<key>, the newest timestamp already stored;
//   - the log at sensorData/<key>/data/<position>;
//   - the log's recordCount, the next free position.
//
// Merge filters a fetched window against the watermark. Writer appends the
// resulting increment and advances the watermark in one atomic store update,
// reading only recordCount beforehand so the cost of an append does not grow
// with the log.
package ingest
