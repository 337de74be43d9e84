package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ragassistant/internal/storage"
)

// StoreProvider reads settings from a blob store, using the same JSON layout
// as the editor plugin.
type StoreProvider struct {
	store    storage.Store
	defaults Settings
}

// NewStoreProvider creates a provider backed by store.
func NewStoreProvider(store storage.Store, defaults Settings) *StoreProvider {
	return &StoreProvider{store: store, defaults: defaults}
}

// Get implements Provider. Saved fields override defaults; fields absent from
// the blob keep their default.
func (p *StoreProvider) Get(ctx context.Context) (Settings, error) {
	s := p.defaults

	blob, err := p.store.Load(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal(blob, &s); err != nil {
		return p.defaults, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// Put implements Writer.
func (p *StoreProvider) Put(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return p.store.Save(ctx, StorageKey, blob)
}
