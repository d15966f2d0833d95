package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"filegate/internal/server/database"
)

// keyAttempts bounds generation on collision: the first try plus one regeneration.
const keyAttempts = 2

// KeyStore persists access keys.
type KeyStore interface {
	CreateKey(ctx context.Context, key *database.AccessKey) error
	IsKeyActive(ctx context.Context, key string) (bool, error)
	DeactivateKey(ctx context.Context, key string) error
	ListActiveKeys(ctx context.Context) ([]*database.AccessKey, error)
}

// KeyRegistry owns the lifecycle of access keys.
type KeyRegistry struct {
	store  KeyStore
	length int
}

// NewKeyRegistry creates a registry issuing keys of the given length.
func NewKeyRegistry(store KeyStore, length int) *KeyRegistry {
	return &KeyRegistry{store: store, length: length}
}

// Issue generates and persists a new active key.
func (r *KeyRegistry) Issue(ctx context.Context, sourceAddress string) (*database.AccessKey, error) {
	for attempt := 1; attempt <= keyAttempts; attempt++ {
		key, err := GenerateKey(r.length)
		if err != nil {
			return nil, err
		}

		record := &database.AccessKey{
			Key:           key,
			CreatedAt:     time.Now().UTC(),
			SourceAddress: sourceAddress,
			Active:        true,
		}

		err = r.store.CreateKey(ctx, record)
		if err == nil {
			keysIssuedTotal.Inc()
			return record, nil
		}
		if !errors.Is(err, database.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		keyCollisionsTotal.WithLabelValues("access").Inc()
		slog.Warn("generated access key collided", "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: access key collided %d times", ErrStoreUnavailable, keyAttempts)
}

// IsActive reports whether key exists and is active.
func (r *KeyRegistry) IsActive(ctx context.Context, key string) (bool, error) {
	active, err := r.store.IsKeyActive(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return active, nil
}

// Deactivate marks an active key inactive. Unknown and already inactive
// keys both report ErrNotFound.
func (r *KeyRegistry) Deactivate(ctx context.Context, key string) error {
	err := r.store.DeactivateKey(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrKeyNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

// ListActive returns every active key from one snapshot read.
func (r *KeyRegistry) ListActive(ctx context.Context) ([]*database.AccessKey, error) {
	keys, err := r.store.ListActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return keys, nil
}
