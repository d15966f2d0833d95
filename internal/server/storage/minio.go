package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioSink stores blobs in any S3-compatible bucket. The blob id is the
// object key.
type MinioSink struct {
	client *minio.Client
	bucket string
}

// NewMinioSink creates a MinIO client and ensures the bucket exists.
// A fixed region skips the bucket-location lookup before each request.
func NewMinioSink(ctx context.Context, endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*MinioSink, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		slog.Info("created bucket", "bucket", bucket)
	}

	return &MinioSink{client: client, bucket: bucket}, nil
}

func (s *MinioSink) Kind() string { return "minio" }

// Store uploads data under a fresh object key. size may be -1 when unknown.
func (s *MinioSink) Store(ctx context.Context, name string, data io.Reader, size int64) (string, error) {
	filename := SanitizeFilename(name)
	key := objectKey(uuid.NewString(), filename)

	_, err := s.client.PutObject(ctx, s.bucket, key, data, size, minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: map[string]string{"original-name": filename},
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return key, nil
}

func objectKey(id, filename string) string {
	return path.Join(id, filename)
}
