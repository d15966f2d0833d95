package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"filegate/internal/server/database"
)

// FileStore persists file records.
type FileStore interface {
	CreateFile(ctx context.Context, file *database.FileRecord) error
	GetActiveFile(ctx context.Context, fileKey string) (*database.FileRecord, error)
	DeactivateFilesByOwner(ctx context.Context, ownerKey string) (int64, error)
	DeactivateFile(ctx context.Context, ownerKey, fileKey string) error
}

// FileRegistry owns the lifecycle of file records.
type FileRegistry struct {
	store  FileStore
	length int
}

// NewFileRegistry creates a registry issuing file keys of the given length.
func NewFileRegistry(store FileStore, length int) *FileRegistry {
	return &FileRegistry{store: store, length: length}
}

// Bind records blobID under a fresh file key owned by ownerKey.
// The store checks that ownerKey is active in the same statement as the
// insert; an unknown or inactive owner yields ErrInvalidKey.
func (r *FileRegistry) Bind(ctx context.Context, ownerKey, blobID, originalName string, sizeBytes int64) (*database.FileRecord, error) {
	for attempt := 1; attempt <= keyAttempts; attempt++ {
		fileKey, err := GenerateKey(r.length)
		if err != nil {
			return nil, err
		}

		record := &database.FileRecord{
			OwnerKey:     ownerKey,
			FileKey:      fileKey,
			BlobID:       blobID,
			OriginalName: originalName,
			SizeBytes:    sizeBytes,
			UploadedAt:   time.Now().UTC(),
			Active:       true,
		}

		err = r.store.CreateFile(ctx, record)
		switch {
		case err == nil:
			return record, nil
		case errors.Is(err, database.ErrKeyNotFound):
			return nil, ErrInvalidKey
		case !errors.Is(err, database.ErrDuplicateKey):
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		keyCollisionsTotal.WithLabelValues("file").Inc()
		slog.Warn("generated file key collided", "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: file key collided %d times", ErrStoreUnavailable, keyAttempts)
}

// Resolve returns the blob id of an active file.
func (r *FileRegistry) Resolve(ctx context.Context, fileKey string) (string, error) {
	record, err := r.store.GetActiveFile(ctx, fileKey)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return record.BlobID, nil
}

// DeactivateByOwner deactivates every active file of ownerKey.
// It is idempotent; zero matches is success.
func (r *FileRegistry) DeactivateByOwner(ctx context.Context, ownerKey string) (int64, error) {
	n, err := r.store.DeactivateFilesByOwner(ctx, ownerKey)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeactivateOne deactivates fileKey only if it is active and owned by ownerKey.
func (r *FileRegistry) DeactivateOne(ctx context.Context, ownerKey, fileKey string) error {
	err := r.store.DeactivateFile(ctx, ownerKey, fileKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrFileNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
