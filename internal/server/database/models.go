package database

import "time"

// AccessKey is an issued bearer key. Active only ever moves from true to false.
type AccessKey struct {
	Key           string
	CreatedAt     time.Time
	SourceAddress string
	Active        bool
}

// FileRecord binds an uploaded blob to the access key that uploaded it.
type FileRecord struct {
	OwnerKey     string
	FileKey      string
	BlobID       string
	OriginalName string
	SizeBytes    int64
	UploadedAt   time.Time
	Active       bool
}

// Stats holds aggregate index statistics.
type Stats struct {
	TotalKeys   int64
	ActiveKeys  int64
	TotalFiles  int64
	ActiveFiles int64
	ActiveBytes int64
}
