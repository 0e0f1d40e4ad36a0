// Package fs stores artifacts on the local filesystem under a base directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"streamrelay/config"
	"streamrelay/observability"
	"streamrelay/storage/types"
)

// Storage implements types.ObjectStorage on a directory tree.
// Content types are derived from the key's extension on read.
type Storage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// New creates the base directory if needed and returns the store.
func New(cfg *config.StorageConfig, logger observability.Logger, metrics observability.Metrics) (*Storage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("fs storage requires a base path")
	}

	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	return &Storage{
		basePath: base,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Put writes r to a temporary file next to the target and renames it into
// place, so readers never observe a partial artifact.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, metadata types.ObjectMetadata) (int64, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("fs_put", time.Since(start).Seconds())
	}()

	target, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.metrics.RecordError("fs_put", "write_failed")
		s.logger.Error(ctx, "failed to write object", err, observability.Fields{
			"key":     key,
			"written": n,
		})
		return n, fmt.Errorf("failed to write object: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return n, fmt.Errorf("failed to commit object: %w", err)
	}

	s.metrics.RecordSuccess("fs_put")
	s.metrics.RecordBytes("artifact", n)
	s.logger.Debug(ctx, "object stored successfully", observability.Fields{
		"key":          key,
		"size":         n,
		"content_type": metadata.ContentType,
	})

	return n, nil
}

// Get opens key for reading.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, *types.ObjectMetadata, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil, types.ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, types.ErrObjectNotFound
	}

	return f, &types.ObjectMetadata{
		ContentType:   types.ContentTypeFor(key),
		ContentLength: info.Size(),
		LastModified:  info.ModTime().UTC(),
	}, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether key holds a regular file.
func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	target, err := s.resolve(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns every object whose key starts with prefix, in lexical order.
func (s *Storage) List(ctx context.Context, prefix string) ([]types.ObjectInfo, error) {
	var objects []types.ObjectInfo

	err := filepath.WalkDir(s.basePath, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, types.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return objects, nil
}

func (s *Storage) resolve(key string) (string, error) {
	if err := types.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
