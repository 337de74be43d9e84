package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fyrsmithlabs/ragassistant/internal/sanitize"
)

// NATSStore keeps blobs in a JetStream key-value bucket.
type NATSStore struct {
	kv jetstream.KeyValue
}

// NewNATSStore binds to bucket, creating it when it does not exist. The
// connection is owned by the caller.
func NewNATSStore(ctx context.Context, nc *nats.Conn, bucket string) (*NATSStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "ragassistant conversation history and settings",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind key-value bucket %s: %w", bucket, err)
	}
	return &NATSStore{kv: kv}, nil
}

// Load implements Store.
func (s *NATSStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := sanitize.ValidateKey(key); err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(ctx, sanitize.KVKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Save implements Store.
func (s *NATSStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := sanitize.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, sanitize.KVKey(key), blob); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *NATSStore) Close() error {
	return nil
}
