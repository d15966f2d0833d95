package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// index is the method set shared by Repository and MemoryRepository.
type index interface {
	CreateKey(ctx context.Context, key *AccessKey) error
	IsKeyActive(ctx context.Context, key string) (bool, error)
	DeactivateKey(ctx context.Context, key string) error
	ListActiveKeys(ctx context.Context) ([]*AccessKey, error)
	CreateFile(ctx context.Context, file *FileRecord) error
	GetActiveFile(ctx context.Context, fileKey string) (*FileRecord, error)
	DeactivateFilesByOwner(ctx context.Context, ownerKey string) (int64, error)
	DeactivateFile(ctx context.Context, ownerKey, fileKey string) error
	GetStats(ctx context.Context) (*Stats, error)
	HealthCheck(ctx context.Context) error
}

var (
	_ index = (*MemoryRepository)(nil)
	_ index = (*postgresIndex)(nil)
)

// postgresIndex adds HealthCheck to Repository for the shared suite.
type postgresIndex struct {
	*Repository
}

func (p postgresIndex) HealthCheck(ctx context.Context) error {
	return p.db.HealthCheck(ctx)
}

func newKey(key string, createdAt time.Time) *AccessKey {
	return &AccessKey{Key: key, CreatedAt: createdAt, SourceAddress: "10.0.0.1", Active: true}
}

func newFile(owner, fileKey, blobID string, size int64) *FileRecord {
	return &FileRecord{
		OwnerKey:     owner,
		FileKey:      fileKey,
		BlobID:       blobID,
		OriginalName: fileKey + ".bin",
		SizeBytes:    size,
		UploadedAt:   time.Now().UTC().Truncate(time.Microsecond),
		Active:       true,
	}
}

func testIndex(t *testing.T, newIndex func(t *testing.T) index) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create and check key", func(t *testing.T) {
		idx := newIndex(t)

		if err := idx.CreateKey(ctx, newKey("alpha", base)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		active, err := idx.IsKeyActive(ctx, "alpha")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !active {
			t.Error("expected key to be active")
		}

		active, err = idx.IsKeyActive(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if active {
			t.Error("expected unknown key to be inactive")
		}
	})

	t.Run("duplicate key rejected", func(t *testing.T) {
		idx := newIndex(t)

		if err := idx.CreateKey(ctx, newKey("dup", base)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := idx.CreateKey(ctx, newKey("dup", base)); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("deactivate key once", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("once", base))

		if err := idx.DeactivateKey(ctx, "once"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := idx.DeactivateKey(ctx, "once"); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound on second deactivate, got %v", err)
		}
		if err := idx.DeactivateKey(ctx, "never-issued"); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound for unknown key, got %v", err)
		}

		active, _ := idx.IsKeyActive(ctx, "once")
		if active {
			t.Error("deactivated key must stay inactive")
		}
	})

	t.Run("list active keys in creation order", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("k2", base.Add(time.Minute)))
		idx.CreateKey(ctx, newKey("k1", base))
		idx.CreateKey(ctx, newKey("k3", base.Add(2*time.Minute)))
		idx.DeactivateKey(ctx, "k3")

		keys, err := idx.ListActiveKeys(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(keys) != 2 {
			t.Fatalf("expected 2 active keys, got %d", len(keys))
		}
		if keys[0].Key != "k1" || keys[1].Key != "k2" {
			t.Errorf("unexpected order: %s, %s", keys[0].Key, keys[1].Key)
		}
		if keys[0].SourceAddress != "10.0.0.1" {
			t.Errorf("expected source address to round-trip, got %q", keys[0].SourceAddress)
		}
	})

	t.Run("list active keys empty", func(t *testing.T) {
		idx := newIndex(t)

		keys, err := idx.ListActiveKeys(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if keys == nil || len(keys) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", keys)
		}
	})

	t.Run("file lifecycle", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("owner", base))

		if err := idx.CreateFile(ctx, newFile("owner", "f1", "blob-1", 10)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		f, err := idx.GetActiveFile(ctx, "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.BlobID != "blob-1" || f.OwnerKey != "owner" || f.SizeBytes != 10 {
			t.Errorf("unexpected record: %+v", f)
		}

		if err := idx.DeactivateFile(ctx, "owner", "f1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := idx.GetActiveFile(ctx, "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound after deactivate, got %v", err)
		}
		if err := idx.DeactivateFile(ctx, "owner", "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound on second deactivate, got %v", err)
		}
	})

	t.Run("file requires active owner", func(t *testing.T) {
		idx := newIndex(t)

		if err := idx.CreateFile(ctx, newFile("ghost", "f1", "blob", 1)); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound for unknown owner, got %v", err)
		}

		idx.CreateKey(ctx, newKey("revoked", base))
		idx.DeactivateKey(ctx, "revoked")
		if err := idx.CreateFile(ctx, newFile("revoked", "f1", "blob", 1)); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("expected ErrKeyNotFound for inactive owner, got %v", err)
		}

		stats, _ := idx.GetStats(ctx)
		if stats.TotalFiles != 0 {
			t.Errorf("expected no file records, got %d", stats.TotalFiles)
		}
	})

	t.Run("maximum-length original name round-trips", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("owner", base))

		f := newFile("owner", "long", "blob", 1)
		f.OriginalName = strings.Repeat("é", 125) + ".text"
		if err := idx.CreateFile(ctx, f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := idx.GetActiveFile(ctx, "long")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.OriginalName != f.OriginalName {
			t.Errorf("original name changed: %q", got.OriginalName)
		}
	})

	t.Run("active file key is unique", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("a", base))
		idx.CreateKey(ctx, newKey("b", base))

		idx.CreateFile(ctx, newFile("a", "same", "blob-a", 1))
		if err := idx.CreateFile(ctx, newFile("b", "same", "blob-b", 1)); !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}

		idx.DeactivateFile(ctx, "a", "same")
		if err := idx.CreateFile(ctx, newFile("b", "same", "blob-b", 1)); err != nil {
			t.Fatalf("file key should be reusable once inactive, got %v", err)
		}
	})

	t.Run("deactivate file scoped by owner", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("owner", base))
		idx.CreateFile(ctx, newFile("owner", "mine", "blob", 1))

		if err := idx.DeactivateFile(ctx, "intruder", "mine"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound for wrong owner, got %v", err)
		}
		if _, err := idx.GetActiveFile(ctx, "mine"); err != nil {
			t.Fatalf("file must remain active, got %v", err)
		}
	})

	t.Run("deactivate files by owner", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("owner", base))
		idx.CreateKey(ctx, newKey("other", base))
		idx.CreateFile(ctx, newFile("owner", "f1", "b1", 1))
		idx.CreateFile(ctx, newFile("owner", "f2", "b2", 1))
		idx.CreateFile(ctx, newFile("other", "f3", "b3", 1))

		n, err := idx.DeactivateFilesByOwner(ctx, "owner")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 deactivated, got %d", n)
		}

		n, err = idx.DeactivateFilesByOwner(ctx, "owner")
		if err != nil {
			t.Fatalf("unexpected error on repeat: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 on repeat, got %d", n)
		}

		if _, err := idx.GetActiveFile(ctx, "f3"); err != nil {
			t.Errorf("other owner's file must stay active, got %v", err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		idx := newIndex(t)
		idx.CreateKey(ctx, newKey("s1", base))
		idx.CreateKey(ctx, newKey("s2", base))
		idx.DeactivateKey(ctx, "s2")
		idx.CreateFile(ctx, newFile("s1", "f1", "b1", 100))
		idx.CreateFile(ctx, newFile("s1", "f2", "b2", 50))
		idx.DeactivateFile(ctx, "s1", "f2")

		stats, err := idx.GetStats(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Stats{TotalKeys: 2, ActiveKeys: 1, TotalFiles: 2, ActiveFiles: 1, ActiveBytes: 100}
		if *stats != want {
			t.Errorf("expected %+v, got %+v", want, *stats)
		}
	})

	t.Run("health check", func(t *testing.T) {
		if err := newIndex(t).HealthCheck(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestMemoryRepository(t *testing.T) {
	testIndex(t, func(t *testing.T) index {
		return NewMemoryRepository()
	})
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	repo.CreateKey(ctx, newKey("owner", time.Now()))
	repo.CreateFile(ctx, newFile("owner", "f1", "blob", 1))

	f, _ := repo.GetActiveFile(ctx, "f1")
	f.Active = false
	f.BlobID = "tampered"

	again, err := repo.GetActiveFile(ctx, "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.BlobID != "blob" {
		t.Errorf("stored record was mutated through a returned copy: %+v", again)
	}
}

// setupTestDB starts a PostgreSQL container and applies migrations.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filegate_test"),
		postgres.WithUsername("filegate"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	// Running twice must be a no-op.
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
	return db
}

func TestRepository_Postgres(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	testIndex(t, func(t *testing.T) index {
		if _, err := db.Pool.Exec(ctx, "TRUNCATE access_keys, files"); err != nil {
			t.Fatalf("failed to truncate tables: %v", err)
		}
		return postgresIndex{NewRepository(db)}
	})
}
