package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
)

// FileProvider reads settings from a TOML file on every call:
//
//	ollama_url = "http://localhost:11434"
//	selected_model = "llama3.2"
//	temperature = 0.1
//	context_free = false
//	include_sub_documents = true
type FileProvider struct {
	path     string
	defaults Settings
}

// NewFileProvider creates a provider for the TOML file at path.
func NewFileProvider(path string, defaults Settings) *FileProvider {
	return &FileProvider{path: path, defaults: defaults}
}

// Get implements Provider. A missing file yields the defaults.
func (p *FileProvider) Get(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return p.defaults, err
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return p.defaults, nil
	}
	if err != nil {
		return p.defaults, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := p.defaults
	if _, err := toml.Decode(string(data), &s); err != nil {
		return p.defaults, fmt.Errorf("failed to parse settings file %s: %w", p.path, err)
	}
	return s, nil
}

// Put implements Writer by rewriting the file.
func (p *FileProvider) Put(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
