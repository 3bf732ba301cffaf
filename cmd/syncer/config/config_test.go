package config

import (
	"errors"
	"testing"
	"time"
)

var required = []string{"-api-token=secret", "-device=21079936", "-redis-addr=localhost:6379"}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(required)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.APIURL != "http://localhost:8090" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SensorsFile != "sensors.yaml" {
		t.Errorf("SensorsFile = %q", cfg.SensorsFile)
	}
	if cfg.Lookback != 2*time.Hour {
		t.Errorf("Lookback = %v, want 2h", cfg.Lookback)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RateLimitDelay != 2*time.Second || cfg.RetryDelay != time.Second {
		t.Errorf("delays = %v/%v, want 2s/1s", cfg.RateLimitDelay, cfg.RetryDelay)
	}
	if cfg.Pacing != time.Second {
		t.Errorf("Pacing = %v, want 1s", cfg.Pacing)
	}
	if cfg.Storage != "redis" {
		t.Errorf("Storage = %q, want redis", cfg.Storage)
	}
	if !cfg.Once {
		t.Error("Once should default to true")
	}
	if cfg.Interval != time.Hour {
		t.Errorf("Interval = %v, want 1h", cfg.Interval)
	}
	if cfg.Listen != ":8083" || cfg.GRPCListen != ":50053" {
		t.Errorf("Listen = %q, GRPCListen = %q", cfg.Listen, cfg.GRPCListen)
	}
	if cfg.LogFormat != "text" || cfg.LogLevel != "info" {
		t.Errorf("LogFormat = %q, LogLevel = %q", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestParse_CustomValues(t *testing.T) {
	cfg, err := Parse([]string{
		"-api-url=https://api.example.com/v2",
		"-api-token=secret",
		"-device=21079936",
		"-storage=badger",
		"-badger-path=/var/lib/sensorsync",
		"-lookback=6h",
		"-max-retries=5",
		"-pacing=250ms",
		"-once=false",
		"-interval=15m",
		"-log-format=json",
		"-log-level=debug",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.APIURL != "https://api.example.com/v2" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Storage != "badger" || cfg.BadgerPath != "/var/lib/sensorsync" {
		t.Errorf("storage = %q at %q", cfg.Storage, cfg.BadgerPath)
	}
	if cfg.Lookback != 6*time.Hour || cfg.MaxRetries != 5 || cfg.Pacing != 250*time.Millisecond {
		t.Errorf("lookback=%v retries=%d pacing=%v", cfg.Lookback, cfg.MaxRetries, cfg.Pacing)
	}
	if cfg.Once || cfg.Interval != 15*time.Minute {
		t.Errorf("once=%v interval=%v", cfg.Once, cfg.Interval)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "debug" {
		t.Errorf("LogFormat = %q, LogLevel = %q", cfg.LogFormat, cfg.LogLevel)
	}
}

func TestParse_EnvironmentFallback(t *testing.T) {
	t.Setenv("SENSOR_API_TOKEN", "from-env")
	t.Setenv("DEVICE_SERIAL", "42")
	t.Setenv("STORAGE", "memory")
	t.Setenv("PACING", "3s")
	t.Setenv("ONCE", "false")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.APIToken != "from-env" || cfg.DeviceSerial != "42" {
		t.Errorf("token = %q, device = %q", cfg.APIToken, cfg.DeviceSerial)
	}
	if cfg.Pacing != 3*time.Second || cfg.Once {
		t.Errorf("pacing = %v, once = %v", cfg.Pacing, cfg.Once)
	}

	cfg, err = Parse([]string{"-api-token=from-flag"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.APIToken != "from-flag" {
		t.Errorf("flags must take precedence, got %q", cfg.APIToken)
	}
}

func TestParse_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"missing token", []string{"-device=1", "-storage=memory"}, "api-token"},
		{"missing device", []string{"-api-token=x", "-storage=memory"}, "device"},
		{"redis without addr", []string{"-api-token=x", "-device=1"}, "redis-addr"},
		{"badger without path", []string{"-api-token=x", "-device=1", "-storage=badger"}, "badger-path"},
		{"unknown storage", []string{"-api-token=x", "-device=1", "-storage=s3"}, "storage"},
		{"zero retries", []string{"-api-token=x", "-device=1", "-storage=memory", "-max-retries=0"}, "max-retries"},
		{"negative lookback", []string{"-api-token=x", "-device=1", "-storage=memory", "-lookback=-1h"}, "lookback"},
		{"loop without interval", []string{"-api-token=x", "-device=1", "-storage=memory", "-once=false", "-interval=0"}, "interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	if _, err := Parse([]string{"-nope"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_DURATION", "90s")

	if got := getEnv("NONEXISTENT_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q", got)
	}
	if got := getEnvInt("TEST_INT", 1); got != 42 {
		t.Errorf("getEnvInt() = %d, want 42", got)
	}
	if got := getEnvInt("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("getEnvInt() invalid = %d, want default 7", got)
	}
	if got := getEnvBool("TEST_BOOL", true); got {
		t.Error("getEnvBool() = true, want false")
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration() = %v, want 90s", got)
	}
}
