// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	SessionTTL      time.Duration
	ReapInterval    time.Duration
	LogLevel        string
	Grid            GridConfig
	ConversationLog ConversationLogConfig
	Metrics         MetricsConfig
}

// GridConfig selects and configures the grid service transport.
type GridConfig struct {
	Transport      string // "http" or "grpc"
	BaseURL        string
	GrpcAddr       string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
}

// ConversationLogConfig controls NDJSON transcript logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Transport names accepted in GRID_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// EnvPrefix namespaces every environment variable, e.g. GRIDASSIST_PORT.
const EnvPrefix = "GRIDASSIST"

// Load reads .env (if present), an optional config file named by
// GRIDASSIST_CONFIG, and GRIDASSIST_* environment variables, in increasing
// order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	queueSize := v.GetInt("conversation_log.queue_size")
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:         v.GetString("port"),
		FrontendURL:  v.GetString("frontend_url"),
		DBPath:       v.GetString("db_path"),
		SessionTTL:   v.GetDuration("session_ttl"),
		ReapInterval: v.GetDuration("reap_interval"),
		LogLevel:     strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		Grid: GridConfig{
			Transport:      strings.ToLower(strings.TrimSpace(v.GetString("grid.transport"))),
			BaseURL:        v.GetString("grid.base_url"),
			GrpcAddr:       v.GetString("grid.grpc_addr"),
			RequestTimeout: v.GetDuration("grid.request_timeout"),
			ConnectTimeout: v.GetDuration("grid.connect_timeout"),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   v.GetBool("conversation_log.enabled"),
			Dir:       v.GetString("conversation_log.dir"),
			QueueSize: queueSize,
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("frontend_url", "")
	v.SetDefault("db_path", "./data/gridassist.db")
	v.SetDefault("session_ttl", 60*time.Minute)
	v.SetDefault("reap_interval", 5*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("grid.transport", TransportHTTP)
	v.SetDefault("grid.base_url", "http://localhost:8000")
	v.SetDefault("grid.grpc_addr", "localhost:50051")
	v.SetDefault("grid.request_timeout", 120*time.Second)
	v.SetDefault("grid.connect_timeout", 5*time.Second)
	v.SetDefault("conversation_log.enabled", true)
	v.SetDefault("conversation_log.dir", "./data/logs/conversations")
	v.SetDefault("conversation_log.queue_size", 1000)
	v.SetDefault("metrics.enabled", true)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("REAP_INTERVAL must be > 0")
	}
	switch c.Grid.Transport {
	case TransportHTTP:
		if c.Grid.BaseURL == "" {
			return fmt.Errorf("GRID_BASE_URL cannot be empty for http transport")
		}
	case TransportGRPC:
		if c.Grid.GrpcAddr == "" {
			return fmt.Errorf("GRID_GRPC_ADDR cannot be empty for grpc transport")
		}
	default:
		return fmt.Errorf("GRID_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportGRPC, c.Grid.Transport)
	}
	if c.Grid.RequestTimeout <= 0 {
		return fmt.Errorf("GRID_REQUEST_TIMEOUT must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
