// Package types defines the artifact storage contract and its errors.
package types

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"
)

// Common storage errors
var (
	// ErrObjectNotFound is returned when an object is not found in storage
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidKey is returned for empty keys or keys escaping the store root
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectMetadata describes a stored object.
type ObjectMetadata struct {
	ContentType   string
	ContentLength int64
	LastModified  time.Time
	UserMetadata  map[string]string
}

// ObjectInfo is one entry of a listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage stores artifacts produced by background jobs.
// Keys are slash separated relative paths such as "audio/<job>.mp3".
type ObjectStorage interface {
	// Put streams r into key and returns the number of bytes stored.
	Put(ctx context.Context, key string, r io.Reader, metadata ObjectMetadata) (int64, error)
	// Get opens key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectMetadata, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ValidateKey rejects empty, absolute and parent-relative keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".vtt":  "text/vtt",
	".srt":  "application/x-subrip",
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
