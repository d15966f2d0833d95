package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileSystemSink stores blobs on the local filesystem. The blob id is the
// file name under basePath.
type FileSystemSink struct {
	basePath string
}

// NewFileSystemSink creates a new filesystem sink.
func NewFileSystemSink(basePath string) *FileSystemSink {
	return &FileSystemSink{basePath: basePath}
}

func (fs *FileSystemSink) Kind() string { return "filesystem" }

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemSink) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Store writes data to {uuid}{ext} and returns that name as the blob id.
func (fs *FileSystemSink) Store(ctx context.Context, name string, data io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	blobID := uuid.NewString() + extension(SanitizeFilename(name))
	filePath := filepath.Join(fs.basePath, blobID)

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", filePath, err)
	}

	if _, err := io.Copy(file, data); err != nil {
		file.Close()
		// Clean up partial file on error
		os.Remove(filePath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return blobID, nil
}
