package logging

import (
	"fmt"
	"io"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level     zapcore.Level
	Format    string // "json" or "console"
	Output    OutputConfig
	Caller    bool
	Fields    map[string]string
	Sampling  SamplingConfig
	Redaction RedactionConfig
}

// SamplingConfig limits repeated debug and info entries. Warnings and
// errors are never sampled.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int // entries per message per tick logged in full
	Thereafter int // then every Nth entry
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool
	OTEL   bool
	// Writer replaces stdout when set.
	Writer io.Writer
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns JSON logging at info level to stdout.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Caller: true,
		Fields: map[string]string{
			"service": "ragassistant",
		},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 100,
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"token", "authorization", "password", "secret", "api_key",
			},
			Patterns: []string{
				`(?i)\btoken\s+[A-Za-z0-9]\S*`,
				`(?i)bearer\s+\S+`,
			},
		},
	}
}

// FromAppConfig derives a logging config from the daemon configuration.
// OTEL output follows the telemetry switch.
func FromAppConfig(cfg *config.Config) (*Config, error) {
	lc := NewDefaultConfig()
	level, err := LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	lc.Level = level
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	lc.Output.OTEL = cfg.Observability.EnableTelemetry
	if cfg.Observability.ServiceName != "" {
		lc.Fields["service"] = cfg.Observability.ServiceName
	}
	return lc, lc.Validate()
}

// LevelFromString parses a level name. An empty string means info.
func LevelFromString(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && (c.Sampling.Tick <= 0 || c.Sampling.Initial < 1 || c.Sampling.Thereafter < 1) {
		return fmt.Errorf("sampling tick, initial and thereafter must be positive")
	}
	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > 200 {
				return fmt.Errorf("redaction pattern too long (max 200 chars): %q", pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
