package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSinkRejected is returned when the sink answered but refused the blob.
var ErrSinkRejected = errors.New("blob sink rejected upload")

const (
	// MaxFilenameBytes also bounds files.original_name in the index.
	MaxFilenameBytes = 255
	// Longer extensions are treated as part of the name.
	maxExtensionBytes = 32
)

// Sink stores file bytes in an external system and returns an opaque
// identifier for them. The gateway never reads blob content back.
type Sink interface {
	Store(ctx context.Context, name string, data io.Reader, size int64) (blobID string, err error)
	Kind() string
}

// SanitizeFilename strips directory components, control characters and
// invalid UTF-8, and limits the result to MaxFilenameBytes without
// splitting a character. It is idempotent.
func SanitizeFilename(name string) string {
	name = strings.ToValidUTF8(name, "")
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Normalize Windows-style backslashes before filepath.Base,
	// which is platform-specific.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	if len(name) > MaxFilenameBytes {
		ext := extension(name)
		name = truncateUTF8(strings.TrimSuffix(name, ext), MaxFilenameBytes-len(ext)) + ext
	}
	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}
	return name
}

// extension returns the extension of name, or "" when it is implausibly long.
func extension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > maxExtensionBytes {
		return ""
	}
	return ext
}

// truncateUTF8 cuts s to at most n bytes on a rune boundary.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
