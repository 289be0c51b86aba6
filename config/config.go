// Package config loads and validates the bridge configuration from JSON
// files with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/c360/maxbridge/errors"
)

// Queue capacity bounds. Values outside this range are rejected rather
// than clamped so misconfiguration is visible at startup.
const (
	MinQueueSize     = 8
	MaxQueueSize     = 1024
	DefaultQueueSize = 64

	MinWorkerThreads     = 1
	MaxWorkerThreads     = 8
	DefaultWorkerThreads = 2
)

// OrchestratorConfig controls the message queue and worker pool.
type OrchestratorConfig struct {
	QueueSize     int    `json:"queueSize"`
	WorkerThreads int    `json:"workerThreads"`
	Strategy      string `json:"strategy"` // technology selection override, "auto" by default
	AutoReconnect bool   `json:"autoReconnect"`
}

// SyncConfig controls the state synchronization engine.
type SyncConfig struct {
	Strategy       string `json:"strategy"` // "full" or "diff"
	StoragePath    string `json:"storagePath"`
	IntervalMs     int    `json:"intervalMs"` // auto-persist interval, 0 disables
	AutoPersist    bool   `json:"autoPersist"`
	HistoryLimit   int    `json:"historyLimit"`
	ConflictPolicy string `json:"conflictPolicy"` // "timestamp" or "priority"
}

// TransportConfig controls the WebSocket endpoints.
type TransportConfig struct {
	ListenAddr   string `json:"listenAddr"`
	OSCPort      int    `json:"oscPort"`
	ReadTimeout  int    `json:"readTimeoutMs"`
	WriteTimeout int    `json:"writeTimeoutMs"`
}

// SecurityConfig controls message admission policy.
type SecurityConfig struct {
	MaxMessageSize   int      `json:"maxMessageSize"`
	RateLimitPerSec  int      `json:"rateLimitPerSec"`
	MinPort          int      `json:"minPort"`
	MaxPort          int      `json:"maxPort"`
	AllowedCommands  []string `json:"allowedCommands"`
	EnforceRateLimit bool     `json:"enforceRateLimit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Config is the root bridge configuration.
type Config struct {
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Sync         SyncConfig         `json:"sync"`
	Transport    TransportConfig    `json:"transport"`
	Security     SecurityConfig     `json:"security"`
	Metrics      MetricsConfig      `json:"metrics"`
	LogLevel     string             `json:"logLevel"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			QueueSize:     DefaultQueueSize,
			WorkerThreads: DefaultWorkerThreads,
			Strategy:      "auto",
			AutoReconnect: true,
		},
		Sync: SyncConfig{
			Strategy:       "diff",
			StoragePath:    "~/.maxbridge/state.json",
			IntervalMs:     0,
			AutoPersist:    false,
			HistoryLimit:   1000,
			ConflictPolicy: "timestamp",
		},
		Transport: TransportConfig{
			ListenAddr:   ":8090",
			OSCPort:      7400,
			ReadTimeout:  30000,
			WriteTimeout: 10000,
		},
		Security: SecurityConfig{
			MaxMessageSize:  1 << 20,
			RateLimitPerSec: 100,
			MinPort:         1024,
			MaxPort:         65535,
			AllowedCommands: nil, // nil means no command restriction
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

// PersistInterval returns the auto-persist interval as a duration.
func (sc SyncConfig) PersistInterval() time.Duration {
	return time.Duration(sc.IntervalMs) * time.Millisecond
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Orchestrator.QueueSize < MinQueueSize || c.Orchestrator.QueueSize > MaxQueueSize {
		return errors.WrapInvalid(
			fmt.Errorf("queueSize %d outside [%d, %d]", c.Orchestrator.QueueSize, MinQueueSize, MaxQueueSize),
			"Config", "Validate", "orchestrator queue size")
	}
	if c.Orchestrator.WorkerThreads < MinWorkerThreads || c.Orchestrator.WorkerThreads > MaxWorkerThreads {
		return errors.WrapInvalid(
			fmt.Errorf("workerThreads %d outside [%d, %d]", c.Orchestrator.WorkerThreads, MinWorkerThreads, MaxWorkerThreads),
			"Config", "Validate", "orchestrator worker count")
	}
	switch c.Sync.Strategy {
	case "full", "diff":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown sync strategy %q", c.Sync.Strategy),
			"Config", "Validate", "sync strategy")
	}
	switch c.Sync.ConflictPolicy {
	case "timestamp", "priority":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown conflict policy %q", c.Sync.ConflictPolicy),
			"Config", "Validate", "conflict policy")
	}
	if c.Sync.HistoryLimit <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("historyLimit must be positive, got %d", c.Sync.HistoryLimit),
			"Config", "Validate", "history limit")
	}
	if c.Sync.IntervalMs < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("intervalMs cannot be negative, got %d", c.Sync.IntervalMs),
			"Config", "Validate", "persist interval")
	}
	if c.Security.MinPort < 0 || c.Security.MaxPort > 65535 || c.Security.MinPort > c.Security.MaxPort {
		return errors.WrapInvalid(
			fmt.Errorf("port range [%d, %d] invalid", c.Security.MinPort, c.Security.MaxPort),
			"Config", "Validate", "security port range")
	}
	if c.Security.MaxMessageSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("maxMessageSize must be positive, got %d", c.Security.MaxMessageSize),
			"Config", "Validate", "message size limit")
	}
	if c.Transport.OSCPort != 0 {
		if c.Transport.OSCPort < c.Security.MinPort || c.Transport.OSCPort > c.Security.MaxPort {
			return errors.WrapInvalid(
				fmt.Errorf("oscPort %d outside security port range [%d, %d]",
					c.Transport.OSCPort, c.Security.MinPort, c.Security.MaxPort),
				"Config", "Validate", "osc port")
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown log level %q", c.LogLevel),
			"Config", "Validate", "log level")
	}
	return nil
}

// Loader reads configuration files and applies environment overrides.
type Loader struct {
	// EnvPrefix is prepended to override variable names, default "MAXBRIDGE".
	EnvPrefix string
}

// NewLoader creates a Loader with the default environment prefix.
func NewLoader() *Loader {
	return &Loader{EnvPrefix: "MAXBRIDGE"}
}

// LoadFile reads a JSON config file, fills unset fields from defaults,
// applies environment overrides, and validates the result.
// An empty path returns the default configuration (with overrides applied).
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapIO(err, "Loader", "LoadFile", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "LoadFile", "parse config file")
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Loader", "LoadFile", "validate config")
	}
	return cfg, nil
}

// applyEnv overrides select fields from environment variables.
func (l *Loader) applyEnv(cfg *Config) {
	prefix := l.EnvPrefix
	if prefix == "" {
		prefix = "MAXBRIDGE"
	}

	if v := os.Getenv(prefix + "_LISTEN_ADDR"); v != "" {
		cfg.Transport.ListenAddr = v
	}
	if v := os.Getenv(prefix + "_STORAGE_PATH"); v != "" {
		cfg.Sync.StoragePath = v
	}
	if v := os.Getenv(prefix + "_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(prefix + "_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.QueueSize = n
		}
	}
	if v := os.Getenv(prefix + "_WORKER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Orchestrator.WorkerThreads = n
		}
	}
	if v := os.Getenv(prefix + "_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = n
		}
	}
}
