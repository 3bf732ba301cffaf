package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/HatiCode/sensorsync/cmd/syncer/config"
	"github.com/HatiCode/sensorsync/cmd/syncer/logger"
	"github.com/HatiCode/sensorsync/cmd/syncer/metrics"
	"github.com/HatiCode/sensorsync/cmd/syncer/router"
	"github.com/HatiCode/sensorsync/cmd/syncer/store"
	"github.com/HatiCode/sensorsync/pkg/adapters"
	"github.com/HatiCode/sensorsync/pkg/httpx"
	"github.com/HatiCode/sensorsync/pkg/sensors"
	"github.com/HatiCode/sensorsync/pkg/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	catalog, err := sensors.LoadCatalog(cfg.SensorsFile)
	if err != nil {
		log.Error("failed to load sensor catalog", "path", cfg.SensorsFile, "error", err)
		return 1
	}

	log.Info("starting sensorsync syncer",
		"version", "v0.1.0",
		"device", cfg.DeviceSerial,
		"sensors", catalog.Keys(),
		"storage", cfg.Storage,
		"once", cfg.Once,
	)

	st, err := store.New(cfg, log)
	if err != nil {
		log.Error("storage initialization failed", "error", err)
		return 1
	}
	defer st.Close()

	adapter := &adapters.SensorAPIAdapter{
		BaseURL:      cfg.APIURL,
		Token:        cfg.APIToken,
		DeviceSerial: cfg.DeviceSerial,
		Retry: adapters.RetryPolicy{
			MaxRetries:         cfg.MaxRetries,
			RateLimitBaseDelay: cfg.RateLimitDelay,
			RetryDelay:         cfg.RetryDelay,
			MaxDelay:           cfg.MaxRetryDelay,
		},
		Timeout: cfg.RequestTimeout,
		Logger:  log,
	}

	s := New(
		catalog.Sensors,
		adapter,
		st,
		Options{Lookback: cfg.Lookback, Pacing: cfg.Pacing},
		metrics.New(prometheus.DefaultRegisterer),
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Once {
		if _, err := s.Tick(ctx); err != nil {
			return 1
		}
		return 0
	}

	if err := serve(ctx, cfg, s, st, log); err != nil {
		log.Error("syncer failed", "error", err)
		return 1
	}
	log.Info("shutdown complete")
	return 0
}

// serve runs the sync loop next to the HTTP API and the gRPC health service
// until ctx is canceled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, s *Syncer, st storage.Store, log *slog.Logger) error {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	s.OnRun = func(_ RunResult, err error) {
		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		healthServer.SetServingStatus("", status)
	}

	lis, err := net.Listen("tcp", cfg.GRPCListen)
	if err != nil {
		return err
	}

	staleAfter := 2 * cfg.Interval
	httpServer := httpx.NewServer(cfg.Listen, router.SetupRoutes(st, s, staleAfter, log), log)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server listening", "address", cfg.GRPCListen)
		return grpcServer.Serve(lis)
	})
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return httpServer.Stop(10 * time.Second)
	})

	return g.Wait()
}
