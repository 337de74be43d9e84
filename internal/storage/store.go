// Package storage persists opaque blobs by key.
//
// Conversation histories and user settings are stored as JSON blobs under
// keys such as "chat-history_<documentID>" and "plugin-settings". A Save
// replaces the value for its key atomically; readers never observe a
// partially written blob.
//
// Backends:
//   - memory: process-local map, for tests and throwaway sessions
//   - sqlite: a local database file (default)
//   - nats:   a JetStream key-value bucket, shared between machines
//   - siyuan: the editor's own plugin storage directory
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the key has never been saved.
var ErrNotFound = errors.New("storage: key not found")

// Store is a keyed blob store.
type Store interface {
	// Load returns the blob for key or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the blob for key.
	Save(ctx context.Context, key string, blob []byte) error
	// Close releases backend resources.
	Close() error
}
