package storage

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/fyrsmithlabs/ragassistant/internal/sanitize"
	"github.com/fyrsmithlabs/ragassistant/internal/siyuan"
)

// FileClient is the subset of the editor API used for plugin storage.
type FileClient interface {
	GetFile(ctx context.Context, path string) ([]byte, error)
	PutFile(ctx context.Context, path string, data []byte) error
}

// SiYuanStore keeps blobs in the editor's plugin storage directory, the
// same location the editor plugin reads and writes.
type SiYuanStore struct {
	client FileClient
	dir    string
}

// NewSiYuanStore stores blobs under /data/storage/petal/<plugin>/.
func NewSiYuanStore(client FileClient, plugin string) *SiYuanStore {
	return &SiYuanStore{
		client: client,
		dir:    path.Join("/data/storage/petal", plugin),
	}
}

// filePath keeps every key inside the plugin directory.
func (s *SiYuanStore) filePath(key string) (string, error) {
	if err := sanitize.ValidateKey(key); err != nil {
		return "", err
	}
	return path.Join(s.dir, sanitize.FileName(key)), nil
}

// Load implements Store.
func (s *SiYuanStore) Load(ctx context.Context, key string) ([]byte, error) {
	p, err := s.filePath(key)
	if err != nil {
		return nil, err
	}
	data, err := s.client.GetFile(ctx, p)
	if errors.Is(err, siyuan.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return data, nil
}

// Save implements Store.
func (s *SiYuanStore) Save(ctx context.Context, key string, blob []byte) error {
	p, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := s.client.PutFile(ctx, p, blob); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *SiYuanStore) Close() error {
	return nil
}
