// Package config provides configuration parsing for the syncer.
//
// Values come from command-line flags, falling back to environment variables
// and then to defaults. Parse validates the result and reports problems as a
// *ConfigError before any network activity happens.
//
//	cfg := config.ParseFlags()
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds all syncer configuration. It is not modified after Parse.
type Config struct {
	APIURL         string
	APIToken       string
	DeviceSerial   string
	SensorsFile    string
	Lookback       time.Duration
	MaxRetries     int
	RateLimitDelay time.Duration
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	Pacing         time.Duration
	RequestTimeout time.Duration

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	BadgerPath    string

	Once       bool
	Interval   time.Duration
	Listen     string
	GRPCListen string

	LogFormat string
	LogLevel  string
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: -%s %s", e.Field, e.Reason)
}

// Parse reads args (without the program name) and the environment.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("syncer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Upstream
	fs.StringVar(&cfg.APIURL, "api-url", getEnv("SENSOR_API_URL", "http://localhost:8090"), "Sensor API base URL")
	fs.StringVar(&cfg.APIToken, "api-token", getEnv("SENSOR_API_TOKEN", ""), "Sensor API bearer token (required)")
	fs.StringVar(&cfg.DeviceSerial, "device", getEnv("DEVICE_SERIAL", ""), "Device serial number (required)")
	fs.StringVar(&cfg.SensorsFile, "sensors", getEnv("SENSORS_FILE", "sensors.yaml"), "Sensor catalog file")
	fs.DurationVar(&cfg.Lookback, "lookback", getEnvDuration("LOOKBACK", 2*time.Hour), "Fetch window length")
	fs.IntVar(&cfg.MaxRetries, "max-retries", getEnvInt("MAX_RETRIES", 3), "Maximum fetch attempts per sensor")
	fs.DurationVar(&cfg.RateLimitDelay, "rate-limit-delay", getEnvDuration("RATE_LIMIT_DELAY", 2*time.Second), "Base delay after HTTP 429, doubled per attempt")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", getEnvDuration("RETRY_DELAY", time.Second), "Delay after a transient failure")
	fs.DurationVar(&cfg.MaxRetryDelay, "max-retry-delay", getEnvDuration("MAX_RETRY_DELAY", time.Minute), "Upper bound for any retry delay")
	fs.DurationVar(&cfg.Pacing, "pacing", getEnvDuration("PACING", time.Second), "Delay between sensors")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", getEnvDuration("REQUEST_TIMEOUT", 10*time.Second), "Per-request HTTP timeout")

	// Storage
	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "redis"), "Storage backend: memory, redis or badger")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", ""), "Redis address (required for redis storage)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.StringVar(&cfg.RedisPrefix, "redis-prefix", getEnv("REDIS_PREFIX", "sensorsync:"), "Redis key prefix")
	fs.StringVar(&cfg.BadgerPath, "badger-path", getEnv("BADGER_PATH", ""), "Badger data directory (required for badger storage)")

	// Scheduling and serving
	fs.BoolVar(&cfg.Once, "once", getEnvBool("ONCE", true), "Run a single sync and exit")
	fs.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", time.Hour), "Sync interval when -once=false")
	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8083"), "HTTP listen address when -once=false")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50053"), "gRPC health listen address when -once=false")

	// Logging
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseFlags parses os.Args and exits with status 1 on any configuration
// error.
func ParseFlags() *Config {
	cfg, err := Parse(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	switch {
	case c.APIToken == "":
		return &ConfigError{Field: "api-token", Reason: "is required"}
	case c.DeviceSerial == "":
		return &ConfigError{Field: "device", Reason: "is required"}
	case c.APIURL == "":
		return &ConfigError{Field: "api-url", Reason: "is required"}
	case c.SensorsFile == "":
		return &ConfigError{Field: "sensors", Reason: "is required"}
	case c.Lookback <= 0:
		return &ConfigError{Field: "lookback", Reason: "must be positive"}
	case c.MaxRetries < 1:
		return &ConfigError{Field: "max-retries", Reason: "must be at least 1"}
	case c.Pacing < 0:
		return &ConfigError{Field: "pacing", Reason: "must not be negative"}
	case !c.Once && c.Interval <= 0:
		return &ConfigError{Field: "interval", Reason: "must be positive"}
	}

	switch c.Storage {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return &ConfigError{Field: "redis-addr", Reason: "is required for redis storage"}
		}
	case "badger":
		if c.BadgerPath == "" {
			return &ConfigError{Field: "badger-path", Reason: "is required for badger storage"}
		}
	default:
		return &ConfigError{Field: "storage", Reason: fmt.Sprintf("must be memory, redis or badger, got %q", c.Storage)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
