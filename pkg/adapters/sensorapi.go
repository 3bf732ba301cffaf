// Package adapters provides sensorsync upstream connectors that retrieve
// sensor readings from external systems and normalize them into
// [sensors.Reading] values.
//
// Each adapter implements the Adapter interface. The only production adapter
// is SensorAPIAdapter, which talks to the device cloud HTTP API:
//
//	GET <base>/data?deviceSerialNumber=&sensorSerialNumber=&startTime=&endTime=
//
// Adapters are intentionally lightweight. They focus on pulling raw data and
// retrying transient failures, leaving watermark filtering and persistence to
// the ingest layer.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/klauspost/compress/gzhttp"

	"github.com/HatiCode/sensorsync/pkg/sensors"
)

const maxBodyBytes = 32 << 20

// SensorAPIAdapter fetches readings from the device cloud HTTP API.
//
// The response body is JSON holding nested arrays of [timestamp, value]
// pairs. Every pair that is an array element, at any depth, becomes a
// Reading; timestamps are Unix seconds on the device clock.
type SensorAPIAdapter struct {
	// BaseURL is the API root, e.g. https://api.example.com/v2
	BaseURL string
	// Token is sent as a bearer token.
	Token string
	// DeviceSerial identifies the one logical device.
	DeviceSerial string
	// Retry bounds attempts and delays; zero fields take defaults.
	Retry RetryPolicy
	// HTTPClient is optional; if nil a default client with timeout and
	// transparent gzip decoding is used.
	HTTPClient *http.Client
	// Timeout for the default client (defaults to 10s if <= 0).
	Timeout time.Duration
	// Logger is optional.
	Logger *slog.Logger

	client *http.Client
}

func (a *SensorAPIAdapter) Name() string { return "sensorapi" }

// Fetch implements Adapter. It retries rate-limited and transient failures
// according to a.Retry and respects ctx for cancellation. After the final
// failed attempt it returns an empty result tagged with the error.
func (a *SensorAPIAdapter) Fetch(ctx context.Context, sensor sensors.Sensor, start, end time.Time) FetchResult {
	res := FetchResult{SensorKey: sensor.Key}

	if a.BaseURL == "" || a.Token == "" || a.DeviceSerial == "" {
		res.Err = errors.New("sensorapi adapter: BaseURL, Token and DeviceSerial are required")
		return res
	}
	if sensor.Serial == "" {
		res.Err = fmt.Errorf("sensorapi adapter: sensor %q has no serial", sensor.Key)
		return res
	}

	policy := a.Retry.withDefaults()
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	err := retry.Do(
		func() error {
			res.Attempts++
			readings, err := a.fetchOnce(ctx, sensor, start, end)
			if err != nil {
				if errors.Is(err, ErrRateLimited) {
					res.RateLimited++
				}
				return err
			}
			res.Readings = readings
			return nil
		},
		retry.Attempts(uint(policy.MaxRetries)),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return policy.Delay(n, err)
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retry.IsRecoverable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("fetch attempt failed",
				"sensor", sensor.Key,
				"attempt", n+1,
				"max_attempts", policy.MaxRetries,
				"error", err,
			)
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		res.Readings = nil
		res.Err = fmt.Errorf("fetch %s after %d attempts: %w", sensor.Key, res.Attempts, err)
	}
	return res
}

func (a *SensorAPIAdapter) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	if a.client == nil {
		timeout := a.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		a.client = &http.Client{
			Timeout:   timeout,
			Transport: gzhttp.Transport(http.DefaultTransport),
		}
	}
	return a.client
}

// fetchOnce performs a single attempt.
func (a *SensorAPIAdapter) fetchOnce(ctx context.Context, sensor sensors.Sensor, start, end time.Time) ([]sensors.Reading, error) {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("invalid BaseURL: %w", err))
	}
	u = u.JoinPath("data")

	q := u.Query()
	q.Set("deviceSerialNumber", a.DeviceSerial)
	q.Set("sensorSerialNumber", sensor.Serial)
	q.Set("startTime", strconv.FormatInt(start.Unix(), 10))
	q.Set("endTime", strconv.FormatInt(end.Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &TransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %q", string(body)),
		}
	}

	readings, err := decodeReadings(io.LimitReader(resp.Body, maxBodyBytes), sensor)
	if err != nil {
		return nil, &TransientError{StatusCode: resp.StatusCode, Err: err}
	}
	return readings, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// decodeReadings walks an arbitrary JSON document and collects every
// [timestamp, value] pair it finds inside an array, in document order. A pair
// held directly by an object member (e.g. a "range" echo of the query window)
// is metadata, not a reading. Object members are visited in key order so that
// the result is deterministic.
func decodeReadings(r io.Reader, sensor sensors.Sensor) ([]sensors.Reading, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var out []sensors.Reading
	var walk func(v any, inArray bool)
	walk = func(v any, inArray bool) {
		switch node := v.(type) {
		case []any:
			if ts, val, ok, skip := asPair(node); ok {
				if inArray && !skip {
					out = append(out, sensors.Reading{
						Timestamp: ts,
						Value:     val,
						SensorKey: sensor.Key,
						Unit:      sensor.Unit,
					})
				}
				return
			}
			for _, child := range node {
				walk(child, true)
			}
		case map[string]any:
			keys := make([]string, 0, len(node))
			for k := range node {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(node[k], false)
			}
		}
	}
	walk(doc, false)

	return out, nil
}

// asPair reports whether node is a [timestamp, value] pair. skip is true for
// pairs whose value is null.
func asPair(node []any) (ts int64, val float64, ok, skip bool) {
	if len(node) != 2 {
		return 0, 0, false, false
	}
	ts, ok = parseTimestamp(node[0])
	if !ok {
		return 0, 0, false, false
	}
	if node[1] == nil {
		return ts, 0, true, true
	}
	val, ok = parseValue(node[1])
	if !ok {
		return 0, 0, false, false
	}
	return ts, val, true, false
}

func parseTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i, true
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts.Unix(), true
		}
	}
	return 0, false
}

func parseValue(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
