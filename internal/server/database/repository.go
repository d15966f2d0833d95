package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrKeyNotFound  = errors.New("access key not found")
	ErrFileNotFound = errors.New("file not found")
	// ErrDuplicateKey reports a generated key that already exists in the index.
	ErrDuplicateKey = errors.New("duplicate key")
)

const uniqueViolation = "23505"

// Repository persists access keys and file records in PostgreSQL.
// Every active-flag transition is a single conditional UPDATE, so concurrent
// deactivations of the same row are serialized by the row lock.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateKey inserts a new access key.
func (r *Repository) CreateKey(ctx context.Context, key *AccessKey) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO access_keys (key, created_at, source_address, active)
		VALUES ($1, $2, $3, $4)
	`, key.Key, key.CreatedAt, key.SourceAddress, key.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create access key: %w", err)
	}
	return nil
}

// IsKeyActive reports whether key exists and is active.
func (r *Repository) IsKeyActive(ctx context.Context, key string) (bool, error) {
	var active bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM access_keys WHERE key = $1 AND active)", key,
	).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check access key: %w", err)
	}
	return active, nil
}

// DeactivateKey flips an active key to inactive. A missing or already
// inactive key reports ErrKeyNotFound.
func (r *Repository) DeactivateKey(ctx context.Context, key string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE access_keys SET active = FALSE WHERE key = $1 AND active", key)
	if err != nil {
		return fmt.Errorf("failed to deactivate access key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListActiveKeys returns all active keys ordered by creation time.
func (r *Repository) ListActiveKeys(ctx context.Context) ([]*AccessKey, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT key, created_at, source_address, active
		FROM access_keys WHERE active
		ORDER BY created_at, key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active keys: %w", err)
	}
	defer rows.Close()

	keys := []*AccessKey{}
	for rows.Next() {
		k := &AccessKey{}
		if err := rows.Scan(&k.Key, &k.CreatedAt, &k.SourceAddress, &k.Active); err != nil {
			return nil, fmt.Errorf("failed to scan access key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CreateFile inserts a new file record if its owner key is active, in one
// statement. An unknown or inactive owner reports ErrKeyNotFound.
func (r *Repository) CreateFile(ctx context.Context, file *FileRecord) error {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO files (
			owner_key, file_key, blob_id, original_name,
			size_bytes, uploaded_at, active
		)
		SELECT $1::VARCHAR, $2::VARCHAR, $3::TEXT, $4::VARCHAR,
			   $5::BIGINT, $6::TIMESTAMPTZ, $7::BOOLEAN
		WHERE EXISTS (SELECT 1 FROM access_keys WHERE key = $1 AND active)
	`,
		file.OwnerKey,
		file.FileKey,
		file.BlobID,
		file.OriginalName,
		file.SizeBytes,
		file.UploadedAt,
		file.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// GetActiveFile returns the active record for fileKey.
func (r *Repository) GetActiveFile(ctx context.Context, fileKey string) (*FileRecord, error) {
	f := &FileRecord{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT owner_key, file_key, blob_id, original_name,
			   size_bytes, uploaded_at, active
		FROM files WHERE file_key = $1 AND active
	`, fileKey).Scan(
		&f.OwnerKey,
		&f.FileKey,
		&f.BlobID,
		&f.OriginalName,
		&f.SizeBytes,
		&f.UploadedAt,
		&f.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return f, nil
}

// DeactivateFilesByOwner deactivates every active file of ownerKey and
// returns how many rows changed. Zero is not an error.
func (r *Repository) DeactivateFilesByOwner(ctx context.Context, ownerKey string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE files SET active = FALSE WHERE owner_key = $1 AND active", ownerKey)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate files: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateFile deactivates the active file matching both ownerKey and fileKey.
func (r *Repository) DeactivateFile(ctx context.Context, ownerKey, fileKey string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE files SET active = FALSE WHERE owner_key = $1 AND file_key = $2 AND active",
		ownerKey, fileKey)
	if err != nil {
		return fmt.Errorf("failed to deactivate file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// GetStats returns aggregate index statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM access_keys),
			(SELECT COUNT(*) FROM access_keys WHERE active),
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE active),
			(SELECT COALESCE(SUM(size_bytes), 0)::BIGINT FROM files WHERE active)
	`).Scan(
		&stats.TotalKeys,
		&stats.ActiveKeys,
		&stats.TotalFiles,
		&stats.ActiveFiles,
		&stats.ActiveBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
