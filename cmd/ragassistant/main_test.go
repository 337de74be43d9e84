package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
	"github.com/fyrsmithlabs/ragassistant/internal/settings"
	"github.com/fyrsmithlabs/ragassistant/internal/storage"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	port := freePort(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RAGASSISTANT_SERVER_HTTP_PORT", fmt.Sprint(port))
	t.Setenv("RAGASSISTANT_STORAGE_PROVIDER", config.StorageMemory)
	t.Setenv("RAGASSISTANT_LOGGING_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/context")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RAGASSISTANT_STORAGE_PROVIDER", "redis")

	err := run(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestBuildApp(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Provider = config.StorageMemory

	a, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.server)
	assert.NotNil(t, a.chat)
	assert.NotNil(t, a.history)
	assert.Nil(t, a.nats)
	assert.Len(t, a.closers, 1, "context subscription only")
}

func TestBuildApp_NATSStorageWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Provider = config.StorageNATS

	_, err := buildApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connection required")
}

func TestNewSettingsProvider(t *testing.T) {
	store := storage.NewMemoryStore()

	tests := []struct {
		name     string
		provider string
		file     string
		wantType any
		wantErr  bool
	}{
		{name: "default is store", provider: "", wantType: &settings.StoreProvider{}},
		{name: "store", provider: config.SettingsStore, wantType: &settings.StoreProvider{}},
		{name: "file", provider: config.SettingsFile, file: filepath.Join(t.TempDir(), "settings.toml"), wantType: &settings.FileProvider{}},
		{name: "file without path", provider: config.SettingsFile, wantErr: true},
		{name: "unknown", provider: "consul", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Settings.Provider = tt.provider
			cfg.Settings.File = tt.file

			p, err := newSettingsProvider(cfg, store)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)

			s, err := p.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, cfg.Settings.DefaultURL, s.ServerURL)
		})
	}
}
