package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsmart/docsmart-backend/internal/config"
)

// Store is the artifact store: opaque blobs addressed by (bucket, key).
// Objects are immutable once written at a deterministic path; deletes are
// idempotent. The backend is either the local filesystem (development,
// tests) or S3.
type Store struct {
	config config.StorageConfig

	// S3 backend (optional)
	s3 *S3Backend
}

// New creates a Store for the configured backend.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	s := &Store{config: cfg}

	switch cfg.Type {
	case "local", "":
		if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating local storage path: %w", err)
		}
	case "s3":
		backend, err := NewS3Backend(ctx, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, fmt.Errorf("initializing S3 backend: %w", err)
		}
		s.s3 = backend
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	return s, nil
}

// Upload stores data under (bucket, key) and returns the public URL.
func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if s.s3 != nil {
		if err := s.s3.Put(ctx, bucket, key, data, contentType); err != nil {
			return "", err
		}
		return s.PublicURL(bucket, key), nil
	}

	path := s.localPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact %s/%s: %w", bucket, key, err)
	}
	return s.PublicURL(bucket, key), nil
}

// Download reads the full object under (bucket, key).
func (s *Store) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := s.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Open returns a reader over the object under (bucket, key). The caller
// closes it.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if s.s3 != nil {
		return s.s3.Get(ctx, bucket, key)
	}

	f, err := os.Open(s.localPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening artifact %s/%s: %w", bucket, key, err)
	}
	return f, nil
}

// Delete removes the object under (bucket, key). Deleting an absent object
// is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if s.s3 != nil {
		return s.s3.Delete(ctx, bucket, key)
	}

	err := os.Remove(s.localPath(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting artifact %s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeletePrefix removes every object under (bucket, prefix). Used to reclaim
// a job's artifacts without knowing each file name.
func (s *Store) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	if s.s3 != nil {
		return s.s3.DeletePrefix(ctx, bucket, prefix)
	}

	dir := s.localPath(bucket, prefix)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting artifacts under %s/%s: %w", bucket, prefix, err)
	}
	return nil
}

// PublicURL returns the externally visible URL of the object.
func (s *Store) PublicURL(bucket, key string) string {
	if base := s.config.PublicBaseURL; base != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, key)
	}
	if s.s3 != nil {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.config.AWSRegion, key)
	}
	return fmt.Sprintf("file://%s", s.localPath(bucket, key))
}

func (s *Store) localPath(bucket, key string) string {
	return filepath.Join(s.config.LocalPath, bucket, filepath.FromSlash(key))
}
