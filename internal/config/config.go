// Package config provides configuration loading for the ragassistant daemon.
//
// Configuration comes from environment variables with defaults (Load) or
// from a YAML file overridden by environment variables (LoadWithFile).
// Every key lives in a section; the environment name is the section and key
// joined by an underscore, uppercased, behind the RAGASSISTANT_ prefix:
//
//	siyuan.base_url          -> RAGASSISTANT_SIYUAN_BASE_URL
//	history.save_debounce    -> RAGASSISTANT_HISTORY_SAVE_DEBOUNCE
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "RAGASSISTANT_"

// Storage providers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageNATS   = "nats"
	StorageSiYuan = "siyuan"
)

// Settings providers.
const (
	SettingsStore = "store"
	SettingsFile  = "file"
)

// ErrInvalidConfig is wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete daemon configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	SiYuan        SiYuanConfig        `koanf:"siyuan"`
	Ollama        OllamaConfig        `koanf:"ollama"`
	History       HistoryConfig       `koanf:"history"`
	Storage       StorageConfig       `koanf:"storage"`
	Settings      SettingsConfig      `koanf:"settings"`
	NATS          NATSConfig          `koanf:"nats"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds the loopback HTTP API configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// SiYuanConfig holds the editor kernel API client configuration.
type SiYuanConfig struct {
	BaseURL    string   `koanf:"base_url"`
	Token      Secret   `koanf:"token"`
	Timeout    Duration `koanf:"timeout"`
	RateLimit  float64  `koanf:"rate_limit"` // requests per second, 0 disables pacing
	Burst      int      `koanf:"burst"`
	PluginName string   `koanf:"plugin_name"` // plugin storage directory name
}

// OllamaConfig holds model backend timeouts. The backend URL and model are
// user settings, not daemon configuration.
type OllamaConfig struct {
	ListTimeout Duration `koanf:"list_timeout"`
	ChatTimeout Duration `koanf:"chat_timeout"`
}

// HistoryConfig holds conversation persistence tuning.
type HistoryConfig struct {
	SaveDebounce Duration `koanf:"save_debounce"`
	SwitchQueue  int      `koanf:"switch_queue"`
}

// StorageConfig selects and configures the history blob store.
type StorageConfig struct {
	Provider   string `koanf:"provider"`
	SQLitePath string `koanf:"sqlite_path"`
	NATSBucket string `koanf:"nats_bucket"`
}

// SettingsConfig selects where user settings are read from and their
// defaults.
type SettingsConfig struct {
	Provider           string  `koanf:"provider"`
	File               string  `koanf:"file"`
	DefaultURL         string  `koanf:"default_url"`
	DefaultModel       string  `koanf:"default_model"`
	DefaultTemperature float64 `koanf:"default_temperature"`
}

// NATSConfig holds the message bus connection used by the nats storage
// provider and the context event publisher.
type NATSConfig struct {
	URL           string `koanf:"url"`
	Subject       string `koanf:"subject"`
	PublishEvents bool   `koanf:"publish_events"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	Endpoint        string  `koanf:"endpoint"`
	Protocol        string  `koanf:"protocol"`
	Insecure        bool    `koanf:"insecure"`
	SampleRate      float64 `koanf:"sample_rate"`
}

// LoggingConfig holds the logger level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		SiYuan: SiYuanConfig{
			BaseURL:    "http://127.0.0.1:6806",
			Timeout:    Duration(15 * time.Second),
			RateLimit:  20,
			Burst:      5,
			PluginName: "siyuan-rag-assistant",
		},
		Ollama: OllamaConfig{
			ListTimeout: Duration(5 * time.Second),
			ChatTimeout: Duration(60 * time.Second),
		},
		History: HistoryConfig{
			SaveDebounce: Duration(300 * time.Millisecond),
			SwitchQueue:  16,
		},
		Storage: StorageConfig{
			Provider:   StorageSQLite,
			SQLitePath: filepath.Join(home, ".config", "ragassistant", "history.db"),
			NATSBucket: "ragassistant",
		},
		Settings: SettingsConfig{
			Provider:           SettingsStore,
			DefaultURL:         "http://localhost:11434",
			DefaultTemperature: 0.1,
		},
		NATS: NATSConfig{
			Subject: "ragassistant.context.switched",
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "ragassistant",
			Endpoint:        "localhost:4317",
			Protocol:        "grpc",
			Insecure:        true,
			SampleRate:      1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from environment variables with defaults.
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("Server port:", cfg.Server.Port)
func Load() *Config {
	cfg := Default()

	cfg.Server.Host = getEnvString("SERVER_HTTP_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_HTTP_PORT", cfg.Server.Port)
	cfg.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.SiYuan.BaseURL = getEnvString("SIYUAN_BASE_URL", cfg.SiYuan.BaseURL)
	cfg.SiYuan.Token = Secret(getEnvString("SIYUAN_TOKEN", cfg.SiYuan.Token.Value()))
	cfg.SiYuan.Timeout = getEnvDuration("SIYUAN_TIMEOUT", cfg.SiYuan.Timeout)
	cfg.SiYuan.RateLimit = getEnvFloat("SIYUAN_RATE_LIMIT", cfg.SiYuan.RateLimit)
	cfg.SiYuan.Burst = getEnvInt("SIYUAN_BURST", cfg.SiYuan.Burst)
	cfg.SiYuan.PluginName = getEnvString("SIYUAN_PLUGIN_NAME", cfg.SiYuan.PluginName)

	cfg.Ollama.ListTimeout = getEnvDuration("OLLAMA_LIST_TIMEOUT", cfg.Ollama.ListTimeout)
	cfg.Ollama.ChatTimeout = getEnvDuration("OLLAMA_CHAT_TIMEOUT", cfg.Ollama.ChatTimeout)

	cfg.History.SaveDebounce = getEnvDuration("HISTORY_SAVE_DEBOUNCE", cfg.History.SaveDebounce)
	cfg.History.SwitchQueue = getEnvInt("HISTORY_SWITCH_QUEUE", cfg.History.SwitchQueue)

	cfg.Storage.Provider = getEnvString("STORAGE_PROVIDER", cfg.Storage.Provider)
	cfg.Storage.SQLitePath = getEnvString("STORAGE_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.NATSBucket = getEnvString("STORAGE_NATS_BUCKET", cfg.Storage.NATSBucket)

	cfg.Settings.Provider = getEnvString("SETTINGS_PROVIDER", cfg.Settings.Provider)
	cfg.Settings.File = getEnvString("SETTINGS_FILE", cfg.Settings.File)
	cfg.Settings.DefaultURL = getEnvString("SETTINGS_DEFAULT_URL", cfg.Settings.DefaultURL)
	cfg.Settings.DefaultModel = getEnvString("SETTINGS_DEFAULT_MODEL", cfg.Settings.DefaultModel)
	cfg.Settings.DefaultTemperature = getEnvFloat("SETTINGS_DEFAULT_TEMPERATURE", cfg.Settings.DefaultTemperature)

	cfg.NATS.URL = getEnvString("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getEnvString("NATS_SUBJECT", cfg.NATS.Subject)
	cfg.NATS.PublishEvents = getEnvBool("NATS_PUBLISH_EVENTS", cfg.NATS.PublishEvents)

	cfg.Observability.EnableTelemetry = getEnvBool("OBSERVABILITY_ENABLE_TELEMETRY", cfg.Observability.EnableTelemetry)
	cfg.Observability.ServiceName = getEnvString("OBSERVABILITY_SERVICE_NAME", cfg.Observability.ServiceName)
	cfg.Observability.Endpoint = getEnvString("OBSERVABILITY_ENDPOINT", cfg.Observability.Endpoint)
	cfg.Observability.Protocol = getEnvString("OBSERVABILITY_PROTOCOL", cfg.Observability.Protocol)
	cfg.Observability.Insecure = getEnvBool("OBSERVABILITY_INSECURE", cfg.Observability.Insecure)
	cfg.Observability.SampleRate = getEnvFloat("OBSERVABILITY_SAMPLE_RATE", cfg.Observability.SampleRate)

	cfg.Logging.Level = getEnvString("LOGGING_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvString("LOGGING_FORMAT", cfg.Logging.Format)

	return cfg
}

// Validate validates the configuration. All errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server port %d must be 1-65535", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("shutdown timeout must be positive")
	}

	if c.SiYuan.BaseURL == "" {
		return invalid("siyuan base_url is required")
	}
	if u, err := url.Parse(c.SiYuan.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("siyuan base_url %q is not an absolute URL", c.SiYuan.BaseURL)
	}
	if c.SiYuan.RateLimit < 0 {
		return invalid("siyuan rate_limit cannot be negative")
	}

	if c.Ollama.ListTimeout <= 0 || c.Ollama.ChatTimeout <= 0 {
		return invalid("ollama timeouts must be positive")
	}
	if c.History.SaveDebounce <= 0 {
		return invalid("history save_debounce must be positive")
	}
	if c.History.SwitchQueue < 1 {
		return invalid("history switch_queue must be at least 1")
	}

	switch c.Storage.Provider {
	case StorageMemory, StorageSiYuan:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return invalid("storage sqlite_path is required for the sqlite provider")
		}
	case StorageNATS:
		if c.NATS.URL == "" {
			return invalid("nats url is required for the nats storage provider")
		}
		if c.Storage.NATSBucket == "" {
			return invalid("storage nats_bucket is required for the nats provider")
		}
	default:
		return invalid("unsupported storage provider %q (supported: memory, sqlite, nats, siyuan)", c.Storage.Provider)
	}

	switch c.Settings.Provider {
	case SettingsStore:
	case SettingsFile:
		if c.Settings.File == "" {
			return invalid("settings file is required for the file provider")
		}
	default:
		return invalid("unsupported settings provider %q (supported: store, file)", c.Settings.Provider)
	}
	if c.Settings.DefaultTemperature < 0 || c.Settings.DefaultTemperature > 2 {
		return invalid("settings default_temperature must be within 0-2")
	}

	if c.NATS.PublishEvents && c.NATS.URL == "" {
		return invalid("nats url is required when publish_events is enabled")
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return invalid("service name required when telemetry is enabled")
		}
		if c.Observability.Protocol != "grpc" && c.Observability.Protocol != "http" {
			return invalid("observability protocol must be grpc or http, got %q", c.Observability.Protocol)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
