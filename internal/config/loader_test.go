package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the allowed config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "ragassistant")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9300
siyuan:
  base_url: http://127.0.0.1:6806
  token: abc
history:
  save_debounce: 500ms
storage:
  provider: memory
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9300, cfg.Server.Port)
	assert.Equal(t, "abc", cfg.SiYuan.Token.Value())
	assert.Equal(t, 500*time.Millisecond, cfg.History.SaveDebounce.Duration())
	assert.Equal(t, StorageMemory, cfg.Storage.Provider)
	// untouched keys keep defaults
	assert.Equal(t, 60*time.Second, cfg.Ollama.ChatTimeout.Duration())
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9300\n", 0600)

	t.Setenv("RAGASSISTANT_SERVER_HTTP_PORT", "9400")
	t.Setenv("RAGASSISTANT_SETTINGS_DEFAULT_MODEL", "llama3")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9400, cfg.Server.Port)
	assert.Equal(t, "llama3", cfg.Settings.DefaultModel)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server: [unterminated\n", 0600)

	_, err := LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFile_Validation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "storage:\n  provider: redis\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	other := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")

	_, err = LoadWithFile("/tmp/../etc/passwd")
	assert.Error(t, err)
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  http_port: 9300\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	dir := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigBytes) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.http_port", envKey("RAGASSISTANT_SERVER_HTTP_PORT"))
	assert.Equal(t, "siyuan.base_url", envKey("RAGASSISTANT_SIYUAN_BASE_URL"))
	assert.Equal(t, "debug", envKey("RAGASSISTANT_DEBUG"))
}
