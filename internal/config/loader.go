package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	appDirName     = "ragassistant"
	configFileName = "config.yaml"
	maxConfigBytes = 1 << 20
)

// LoadWithFile layers Default(), the YAML file at configPath and
// RAGASSISTANT_* environment variables, in increasing precedence, and
// validates the result. An empty configPath means
// ~/.config/ragassistant/config.yaml.
//
// The file is optional. When present it must sit under
// ~/.config/ragassistant/ or /etc/ragassistant/, be no larger than 1MB and
// be readable by its owner only (0600 or 0400), because it may carry the
// SiYuan API token.
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, configFileName)
	}
	if err := checkConfigLocation(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")

	raw, err := readConfigFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile checks mode and size on the opened descriptor, not the
// path, so the file cannot be swapped between check and read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := checkConfigFileMode(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(f, maxConfigBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return raw, nil
}

// envKey turns RAGASSISTANT_SIYUAN_BASE_URL into siyuan.base_url. The first
// underscore separates section from field; field names keep theirs.
func envKey(s string) string {
	section, field, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_")
	if !ok {
		return section
	}
	return section + "." + field
}

// DefaultConfigDir returns ~/.config/ragassistant.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", appDirName), nil
}

func checkConfigLocation(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	// A file that does not exist yet cannot be resolved; check the clean path.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	userDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, filepath.Join("/etc", appDirName)} {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/%s/ or /etc/%s/", appDirName, appDirName)
}

func checkConfigFileMode(info fs.FileInfo) error {
	// Windows has no comparable permission bits.
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigBytes {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigBytes)
	}
	return nil
}
