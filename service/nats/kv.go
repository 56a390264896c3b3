package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/mcphub/service/wallet"
	"github.com/nats-io/nats.go/jetstream"
)

var _ wallet.Storage = (*KVStorage)(nil)

// DefaultWalletBucket is the KV bucket wallet state is kept in.
const DefaultWalletBucket = "mcphub_wallet"

// KVStorage implements wallet.Storage on a JetStream key-value bucket.
type KVStorage struct {
	kv jetstream.KeyValue
}

// NewKVStorage opens bucket, creating it when missing.
func NewKVStorage(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStorage, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Persisted wallet connection state",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}
	return &KVStorage{kv: kv}, nil
}

// Load implements wallet.Storage.
func (s *KVStorage) Load(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Save implements wallet.Storage.
func (s *KVStorage) Save(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}
