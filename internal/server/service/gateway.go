package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"filegate/internal/server/config"
	"filegate/internal/server/database"
	"filegate/internal/server/storage"
)

// Store is everything the gateway needs from the metadata index.
type Store interface {
	KeyStore
	FileStore
	storage.StatsSource
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Status  string `json:"status"`
	FileKey string `json:"file_key"`
	FileID  string `json:"file_id"`
	URL     string `json:"url"`
}

// KeyInfo is the admin view of an active access key.
type KeyInfo struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
}

// Gateway composes the key and file registries with the blob sink.
// It holds no per-request state.
type Gateway struct {
	keys  *KeyRegistry
	files *FileRegistry
	sink  storage.Sink
	stats storage.StatsSource
	cfg   *config.Config
}

// NewGateway wires the registries over store and sink.
func NewGateway(store Store, sink storage.Sink, cfg *config.Config) *Gateway {
	return &Gateway{
		keys:  NewKeyRegistry(store, cfg.AccessKeyLength),
		files: NewFileRegistry(store, cfg.FileKeyLength),
		sink:  sink,
		stats: store,
		cfg:   cfg,
	}
}

// IssueKey creates a new access key for a client at sourceAddress.
func (g *Gateway) IssueKey(ctx context.Context, sourceAddress string) (string, error) {
	record, err := g.keys.Issue(ctx, sourceAddress)
	if err != nil {
		return "", err
	}
	slog.Info("access key issued", "source_address", sourceAddress)
	return record.Key, nil
}

// Upload stores data in the sink and then binds it to ownerKey.
//
// The key is checked once before the sink call so unauthorized uploads never
// reach the sink, and the insert re-checks it atomically. A key deactivated
// between those two points fails the insert and orphans the blob.
// The sink call always completes before the metadata insert, so a sink
// failure leaves nothing behind. A metadata failure after a successful sink
// call leaves an orphaned blob; it is logged and counted, not rolled back.
func (g *Gateway) Upload(ctx context.Context, ownerKey, filename string, data io.Reader, size int64) (*UploadResult, error) {
	filename = storage.SanitizeFilename(filename)

	if size > g.cfg.MaxFileSize {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, ErrFileTooLarge
	}

	active, err := g.keys.IsActive(ctx, ownerKey)
	if err != nil {
		uploadsTotal.WithLabelValues("store_error").Inc()
		return nil, err
	}
	if !active {
		uploadsTotal.WithLabelValues("invalid_key").Inc()
		return nil, ErrInvalidKey
	}

	blobID, err := g.sink.Store(ctx, filename, data, size)
	if err != nil {
		uploadsTotal.WithLabelValues("sink_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}

	record, err := g.files.Bind(ctx, ownerKey, blobID, filename, size)
	if err != nil {
		orphanedBlobsTotal.Inc()
		slog.Warn("blob stored but metadata insert failed; blob is orphaned",
			"sink", g.sink.Kind(),
			"blob_id", blobID,
			"filename", filename,
			"error", err,
		)
		if errors.Is(err, ErrInvalidKey) {
			uploadsTotal.WithLabelValues("invalid_key").Inc()
		} else {
			uploadsTotal.WithLabelValues("store_error").Inc()
		}
		return nil, err
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	slog.Info("upload processed",
		"blob_id", blobID,
		"filename", filename,
		"size", size,
		"sink", g.sink.Kind(),
	)

	return &UploadResult{
		Status:  "uploaded",
		FileKey: record.FileKey,
		FileID:  blobID,
		URL:     g.cfg.BaseURL + "/get",
	}, nil
}

// Fetch resolves an active file key to its blob id.
func (g *Gateway) Fetch(ctx context.Context, fileKey string) (string, error) {
	return g.files.Resolve(ctx, fileKey)
}

// ListKeys returns every active access key.
func (g *Gateway) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	keys, err := g.keys.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]KeyInfo, 0, len(keys))
	for _, k := range keys {
		infos = append(infos, KeyInfo{Key: k.Key, CreatedAt: k.CreatedAt, IPAddress: k.SourceAddress})
	}
	return infos, nil
}

// RevokeKey deactivates key and every file it owns.
//
// The file cascade runs even when the key is already inactive, so a revoke
// interrupted between the two steps is completed by repeating it. The caller
// still sees ErrNotFound in that case.
func (g *Gateway) RevokeKey(ctx context.Context, key string) error {
	keyErr := g.keys.Deactivate(ctx, key)
	if keyErr != nil && !errors.Is(keyErr, ErrNotFound) {
		return keyErr
	}

	n, err := g.files.DeactivateByOwner(ctx, key)
	if err != nil {
		return err
	}

	if keyErr != nil {
		if n > 0 {
			slog.Warn("deactivated files left behind by an earlier revoke", "files", n)
		}
		return keyErr
	}

	revocationsTotal.WithLabelValues("key").Inc()
	slog.Info("access key revoked", "files_deactivated", n)
	return nil
}

// RevokeFile deactivates fileKey if ownerKey owns it.
func (g *Gateway) RevokeFile(ctx context.Context, ownerKey, fileKey string) error {
	if err := g.files.DeactivateOne(ctx, ownerKey, fileKey); err != nil {
		return err
	}
	revocationsTotal.WithLabelValues("file").Inc()
	slog.Info("file revoked")
	return nil
}

// Stats returns aggregate index statistics.
func (g *Gateway) Stats(ctx context.Context) (*database.Stats, error) {
	stats, err := g.stats.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return stats, nil
}
