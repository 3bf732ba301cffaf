// Package router configures the syncer's HTTP API, served in loop mode.
//
// Routes configured:
//   - GET /healthz - Storage health check (200 OK or 503)
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /status - Last Run Summary; X-Sensorsync-Stale is set when it is
//     older than the stale threshold
//   - GET /watermarks - Current watermark of every sensor
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/sensorsync/pkg/httpx"
	"github.com/HatiCode/sensorsync/pkg/ingest"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

const StaleHeader = "X-Sensorsync-Stale"

// StatusSource returns the last published Run Summary, if any.
type StatusSource interface {
	Last() (ingest.RunSummary, bool)
}

// SetupRoutes configures HTTP endpoints for the syncer.
func SetupRoutes(store storage.Store, status StatusSource, staleAfter time.Duration, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return store.Ping(ctx)
	}))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", handleStatus(status, staleAfter))
	mux.HandleFunc("GET /watermarks", handleWatermarks(ingest.NewWatermarkStore(store), logger))

	var h http.Handler = mux
	h = httpx.GzipMiddleware()(h)
	h = httpx.LoggingMiddleware(logger)(h)
	h = httpx.RecoveryMiddleware(logger)(h)
	return h
}

func handleStatus(status StatusSource, staleAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, ok := status.Last()
		if !ok {
			httpx.WriteErrorMessage(w, http.StatusNotFound, "no completed run yet")
			return
		}
		if staleAfter > 0 && time.Since(summary.FetchedAt) > staleAfter {
			w.Header().Set(StaleHeader, "true")
		}
		_ = httpx.WriteJSON(w, http.StatusOK, summary)
	}
}

func handleWatermarks(wms *ingest.WatermarkStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := wms.LoadAll(r.Context())
		if err != nil && len(all) == 0 {
			logger.Error("failed to load watermarks", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err != nil {
			logger.Warn("skipped undecodable watermarks", "error", err)
		}
		_ = httpx.WriteJSON(w, http.StatusOK, all)
	}
}
