// Package config loads the coordination core's process configuration
// from environment variables, following the flat FromEnv()-with-defaults
// idiom SPLAI's worker uses rather than a config framework: every field
// has a documented default so an operator can start the process with no
// environment at all and get something runnable in-memory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TLS describes how a listener terminates TLS, mirroring the
// mode/cert/key/ca shape used across the pack's control-plane services.
// Mode "off" serves plaintext; "tls" loads Cert/Key (and, if CA is set,
// requires and verifies client certificates).
type TLS struct {
	Mode string `yaml:"mode"`
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
	CA   string `yaml:"ca"`
}

// Enabled reports whether TLS should be terminated at all.
func (t TLS) Enabled() bool {
	return t.Mode == "tls"
}

// Store configures the durable State Store backend.
type Store struct {
	// Driver selects the backend: "memory" (default, non-durable),
	// "postgres", "sqlite", or "mysql".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string. Ignored for
	// "memory".
	DSN string `yaml:"dsn"`
}

// Config is the coordination core's full process configuration. Fields
// carry yaml tags so an operator can override FromEnv()'s values with
// a config file via Load, giving a layered defaults-then-env-then-file
// precedence (a key present in the file wins over the environment)
// without requiring either source.
type Config struct {
	Store Store `yaml:"store"`

	// GatewayAddr is the listen address for the executor-facing HTTP API.
	GatewayAddr string `yaml:"gateway_addr"`
	// GatewayTLS configures the gateway listener's TLS termination.
	GatewayTLS TLS `yaml:"gateway_tls"`
	// GatewayAuthToken, if set, is required as a bearer token on every
	// gateway request.
	GatewayAuthToken string `yaml:"gateway_auth_token"`

	// StreamAddr is the listen address for the content-change SSE stream.
	StreamAddr string `yaml:"stream_addr"`
	// StreamTLS configures the stream listener's TLS termination.
	StreamTLS TLS `yaml:"stream_tls"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// HeartbeatTTL is how long an executor may go silent before it is
	// marked Lost.
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl"`
	// SweepInterval is how often the gateway's liveness sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// RemovalGrace is how long a Lost executor is kept (and its tasks
	// held for possible resumption) before outright removal.
	RemovalGrace time.Duration `yaml:"removal_grace"`

	// SchedulerPollInterval is how often the Scheduler drains the change
	// log and re-runs allocation when idle.
	SchedulerPollInterval time.Duration `yaml:"scheduler_poll_interval"`

	// AllocatorStrategy selects the Allocator's task-placement strategy:
	// "least_loaded" (default) or "round_robin".
	AllocatorStrategy string `yaml:"allocator_strategy"`
	// MaxConcurrentTasksPerExecutor is the default MaxConcurrent applied
	// to a registering executor that does not declare its own limit.
	MaxConcurrentTasksPerExecutor int `yaml:"max_concurrent_tasks_per_executor"`

	// ChangeLogRetention is the number of already-consumed StateChange
	// entries the background prune loop keeps around below the safe
	// prune point, for cmd/coordinator inspect and post-hoc debugging.
	// 0 disables pruning entirely.
	ChangeLogRetention int `yaml:"change_log_retention"`
	// PruneInterval is how often the background prune loop runs.
	PruneInterval time.Duration `yaml:"prune_interval"`

	// StreamPollInterval is how often a stream subscriber connection
	// checks for new changes once caught up to the log tail.
	StreamPollInterval time.Duration `yaml:"stream_poll_interval"`
	// StreamKeepAliveInterval is how often idle stream connections
	// receive a keep-alive comment frame.
	StreamKeepAliveInterval time.Duration `yaml:"stream_keepalive_interval"`

	// MinIOEndpoint, MinIOAccessKey, MinIOSecretKey, MinIOUseSSL
	// configure the blob storage collaborator's MinIO client. Left
	// blank, the coordination core runs with no blob backend configured
	// (fine for tests and for deployments where content resolution is
	// handled entirely by the out-of-scope ingestion frontend).
	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`

	// OTelServiceName is the resource attribute reported to the tracing
	// exporter. Exporter selection itself is controlled by
	// COORDINATOR_OTEL_EXPORTER and friends, read directly by the
	// tracing package rather than threaded through this struct, since
	// those are operator-facing exporter knobs, not application config.
	OTelServiceName string `yaml:"otel_service_name"`
}

// FromEnv builds a Config from environment variables, applying the
// defaults documented on each field.
func FromEnv() Config {
	return Config{
		Store: Store{
			Driver: getenv("COORDINATOR_STORE_DRIVER", "memory"),
			DSN:    getenv("COORDINATOR_STORE_DSN", ""),
		},
		GatewayAddr:      getenv("COORDINATOR_GATEWAY_ADDR", ":8080"),
		GatewayTLS:       tlsFromEnv("COORDINATOR_GATEWAY_TLS"),
		GatewayAuthToken: getenv("COORDINATOR_GATEWAY_AUTH_TOKEN", ""),

		StreamAddr: getenv("COORDINATOR_STREAM_ADDR", ":8081"),
		StreamTLS:  tlsFromEnv("COORDINATOR_STREAM_TLS"),

		MetricsAddr: getenv("COORDINATOR_METRICS_ADDR", ":9090"),

		HeartbeatTTL:  getenvDuration("COORDINATOR_HEARTBEAT_TTL", 30*time.Second),
		SweepInterval: getenvDuration("COORDINATOR_SWEEP_INTERVAL", 10*time.Second),
		RemovalGrace:  getenvDuration("COORDINATOR_REMOVAL_GRACE", 5*time.Minute),

		SchedulerPollInterval: getenvDuration("COORDINATOR_SCHEDULER_POLL_INTERVAL", 2*time.Second),

		AllocatorStrategy:             getenv("COORDINATOR_ALLOCATOR_STRATEGY", "least_loaded"),
		MaxConcurrentTasksPerExecutor: getenvInt("COORDINATOR_MAX_CONCURRENT_TASKS_PER_EXECUTOR", 32),

		ChangeLogRetention: getenvInt("COORDINATOR_CHANGE_LOG_RETENTION", 100_000),
		PruneInterval:      getenvDuration("COORDINATOR_PRUNE_INTERVAL", 5*time.Minute),

		StreamPollInterval:      getenvDuration("COORDINATOR_STREAM_POLL_INTERVAL", time.Second),
		StreamKeepAliveInterval: getenvDuration("COORDINATOR_STREAM_KEEPALIVE_INTERVAL", 15*time.Second),

		MinIOEndpoint:  getenv("COORDINATOR_MINIO_ENDPOINT", ""),
		MinIOAccessKey: getenv("COORDINATOR_MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getenv("COORDINATOR_MINIO_SECRET_KEY", ""),
		MinIOUseSSL:    getenvBool("COORDINATOR_MINIO_USE_SSL", false),

		OTelServiceName: getenv("COORDINATOR_OTEL_SERVICE_NAME", "coordinator"),
	}
}

// Load builds a Config starting from FromEnv()'s defaults and overlays
// a YAML config file's contents on top when path is non-empty. Only
// keys actually present in the file override the environment-derived
// base, so a config file can set just the fields an operator cares
// about (say, GatewayTLS) and inherit everything else.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func tlsFromEnv(prefix string) TLS {
	return TLS{
		Mode: getenv(prefix+"_MODE", "off"),
		Cert: getenv(prefix+"_CERT", ""),
		Key:  getenv(prefix+"_KEY", ""),
		CA:   getenv(prefix+"_CA", ""),
	}
}

// Validate reports a descriptive error for configuration combinations
// that would fail later in a more confusing way (a TLS mode requiring a
// cert that was never set, a non-memory store driver with no DSN).
func (c Config) Validate() error {
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("config: store driver %q requires a DSN", c.Store.Driver)
	}
	switch c.AllocatorStrategy {
	case "", "least_loaded", "round_robin":
	default:
		return fmt.Errorf("config: unknown allocator strategy %q", c.AllocatorStrategy)
	}
	for _, t := range []struct {
		name string
		tls  TLS
	}{{"gateway", c.GatewayTLS}, {"stream", c.StreamTLS}} {
		if t.tls.Enabled() && (t.tls.Cert == "" || t.tls.Key == "") {
			return fmt.Errorf("config: %s TLS mode requires both cert and key", t.name)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
