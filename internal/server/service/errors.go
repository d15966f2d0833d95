package service

import "errors"

// Sentinel errors for the service layer.
var (
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey means the access key is unknown or inactive.
	ErrInvalidKey   = errors.New("invalid access key")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrStoreUnavailable wraps any failure of the metadata index.
	ErrStoreUnavailable = errors.New("metadata store unavailable")
	// ErrSinkUnavailable wraps any failure of the blob sink.
	ErrSinkUnavailable = errors.New("blob sink unavailable")
)
