package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/HatiCode/sensorsync/pkg/adapters"
	"github.com/HatiCode/sensorsync/pkg/ingest"
	"github.com/HatiCode/sensorsync/pkg/sensors"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

// TestSyncAgainstRedisE2E runs fetch → merge → append twice over
// overlapping windows against a mock sensor API and a real Redis.
func TestSyncAgainstRedisE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Mock sensor API: nested [timestamp, value] pairs, unsorted, with an
	// in-window duplicate.
	apiResponse := `{"sensors":[{"data":[[1700000120,21.5],[1700000000,20.1],[1700000060,"20.8"],[1700000120,21.5]]}]}`
	nginxConf := `
events {
    worker_connections 1024;
}
http {
    server {
        listen 80;
        location /v2/data {
            default_type application/json;
            return 200 '` + apiResponse + `';
        }
    }
}
`
	apiContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nginx:alpine",
			ExposedPorts: []string{"80/tcp"},
			Files: []testcontainers.ContainerFile{
				{
					ContainerFilePath: "/etc/nginx/nginx.conf",
					FileMode:          0644,
					Reader:            strings.NewReader(nginxConf),
				},
			},
			WaitingFor: wait.ForHTTP("/v2/data").WithPort("80/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start sensor API mock container: %v", err)
	}
	defer apiContainer.Terminate(ctx)

	apiHost, err := apiContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get API host: %v", err)
	}
	apiPort, err := apiContainer.MappedPort(ctx, "80")
	if err != nil {
		t.Fatalf("Failed to get API port: %v", err)
	}

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	conn, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get redis connection string: %v", err)
	}
	opts, err := goredis.ParseURL(conn)
	if err != nil {
		t.Fatalf("Failed to parse redis URL %q: %v", conn, err)
	}

	store, err := storage.NewRedisStore(opts.Addr, "", 0, "it:")
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}

	sensor := sensors.Sensor{Key: "temperature", Serial: "21079936-1", Name: "Temperature", Unit: "°C"}
	adapter := &adapters.SensorAPIAdapter{
		BaseURL:      fmt.Sprintf("http://%s:%s/v2", apiHost, apiPort.Port()),
		Token:        "integration",
		DeviceSerial: "21079936",
		Retry:        adapters.RetryPolicy{MaxRetries: 3, RetryDelay: 100 * time.Millisecond},
	}

	syncOnce := func() int {
		wms, err := ingest.NewWatermarkStore(store).LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll() error = %v", err)
		}

		end := time.Unix(1700000200, 0)
		res := adapter.Fetch(ctx, sensor, end.Add(-2*time.Hour), end)
		if res.Err != nil {
			t.Fatalf("Fetch() error = %v", res.Err)
		}

		merged := ingest.Merge(res.Readings, wms[sensor.Key], time.Now())
		if _, err := ingest.NewWriter(store).Append(ctx, sensor.Key, merged.Increment, merged.Watermark); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		return len(merged.Increment)
	}

	if added := syncOnce(); added != 3 {
		t.Errorf("first run added %d records, want 3", added)
	}
	if added := syncOnce(); added != 0 {
		t.Errorf("second run added %d records, want 0", added)
	}

	log, err := ingest.ReadLog(ctx, store, sensor.Key)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	want := []int64{1700000000, 1700000060, 1700000120}
	if len(log) != len(want) {
		t.Fatalf("log has %d records, want %d: %v", len(log), len(want), log)
	}
	for i, ts := range want {
		if log[i].Timestamp != ts {
			t.Errorf("log[%d] = %v, want timestamp %d", i, log[i], ts)
		}
	}

	wms, err := ingest.NewWatermarkStore(store).LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if wm := wms[sensor.Key]; wm.LastTimestamp != 1700000120 || wm.LatestValue != 21.5 {
		t.Errorf("watermark = %+v", wm)
	}

	summary := ingest.RunSummary{
		FetchedAt:    time.Now(),
		SensorCount:  1,
		LatestValues: map[string]ingest.LatestValue{sensor.Key: {Value: 21.5, Unit: sensor.Unit, Name: sensor.Name, Timestamp: 1700000120}},
	}
	if err := ingest.NewSummaryWriter(store).WriteMetadata(ctx, summary); err != nil {
		t.Fatalf("WriteMetadata() error = %v", err)
	}
}
