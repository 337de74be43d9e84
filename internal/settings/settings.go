// Package settings provides the user's assistant settings.
//
// Settings belong to the user, not the daemon: the editor's settings form
// writes them and they can change between two chat turns. Providers
// therefore read the backing source on every Get and never cache.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
)

// StorageKey is the blob key the editor plugin stores settings under.
const StorageKey = "plugin-settings"

// ErrReadOnly is returned by Put on providers that cannot be written.
var ErrReadOnly = errors.New("settings provider is read-only")

// Settings is a snapshot of user settings.
type Settings struct {
	ServerURL           string  `json:"ollamaUrl" toml:"ollama_url"`
	SelectedModel       string  `json:"selectedModel" toml:"selected_model"`
	Temperature         float64 `json:"temperature" toml:"temperature"`
	ContextFree         bool    `json:"contextFree" toml:"context_free"`
	IncludeSubDocuments bool    `json:"includeSubDocuments" toml:"include_sub_documents"`
}

// Defaults returns the settings used before the user saves anything.
func Defaults() Settings {
	return Settings{
		ServerURL:   "http://localhost:11434",
		Temperature: 0.1,
	}
}

// DefaultsFromConfig returns Defaults overridden by daemon configuration.
func DefaultsFromConfig(cfg config.SettingsConfig) Settings {
	s := Defaults()
	if cfg.DefaultURL != "" {
		s.ServerURL = cfg.DefaultURL
	}
	if cfg.DefaultModel != "" {
		s.SelectedModel = cfg.DefaultModel
	}
	if cfg.DefaultTemperature > 0 {
		s.Temperature = cfg.DefaultTemperature
	}
	return s
}

// Configured reports whether a backend URL and a model are both set.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.ServerURL) != "" && strings.TrimSpace(s.SelectedModel) != ""
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range 0-2", s.Temperature)
	}
	return nil
}

// Provider supplies settings snapshots.
type Provider interface {
	Get(ctx context.Context) (Settings, error)
}

// Writer is implemented by providers whose settings can be updated through
// the API.
type Writer interface {
	Put(ctx context.Context, s Settings) error
}
