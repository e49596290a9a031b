// Package storage_manager abstracts where archived transcripts live.
// The archiver writes through a FileProvider so local filesystem and
// S3 deployments share one code path.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileProvider is the storage surface the transcript archiver needs.
type FileProvider interface {
	// Read returns the entire content of a stored object.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, creating intermediate structure as needed.
	Write(ctx context.Context, path string, data []byte) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalFileProvider stores objects under a base directory.
type LocalFileProvider struct {
	baseDir string
}

// NewLocalFileProvider creates a filesystem-backed provider rooted at baseDir.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{baseDir: baseDir}
}

// Read reads an archived object from disk.
func (p *LocalFileProvider) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.baseDir, path)) //nolint:gosec // G304: Path is constructed from trusted baseDir
}

// Write writes an object to disk, creating parent directories first.
func (p *LocalFileProvider) Write(_ context.Context, path string, data []byte) error {
	fullPath := filepath.Join(p.baseDir, path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(fullPath, data, 0o600)
}

// Exists reports whether the object is present on disk.
func (p *LocalFileProvider) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(p.baseDir, path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// List walks the base directory and returns relative paths under prefix.
func (p *LocalFileProvider) List(_ context.Context, prefix string) ([]string, error) {
	searchPath := filepath.Join(p.baseDir, prefix)

	var result []string
	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, relErr := filepath.Rel(p.baseDir, path)
			if relErr == nil {
				result = append(result, rel)
			}
		}
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return []string{}, nil
	}
	return result, err
}

// S3FileProvider stores objects in an S3 bucket under an optional key
// prefix.
type S3FileProvider struct {
	bucket   string
	prefix   string
	s3Client S3Client
}

// NewS3FileProvider creates an S3-backed provider.
func NewS3FileProvider(bucket, prefix string, s3Client S3Client) *S3FileProvider {
	return &S3FileProvider{
		bucket:   bucket,
		prefix:   prefix,
		s3Client: s3Client,
	}
}

// Read fetches an archived object from S3.
func (p *S3FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.s3Client.GetObject(ctx, p.bucket, p.key(path))
}

// Write uploads an object to S3.
func (p *S3FileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.s3Client.PutObject(ctx, p.bucket, p.key(path), data)
}

// Exists heads the object. Only "not found" maps to (false, nil);
// network and permission errors propagate.
func (p *S3FileProvider) Exists(ctx context.Context, path string) (bool, error) {
	err := p.s3Client.HeadObject(ctx, p.bucket, p.key(path))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns object paths under prefix, relative to the provider's
// key prefix.
func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.s3Client.ListObjects(ctx, p.bucket, p.key(prefix))
	if err != nil {
		return nil, err
	}

	var result []string
	base := len(p.key(""))
	for _, key := range keys {
		if len(key) > base {
			result = append(result, key[base:])
		}
	}
	return result, nil
}

func (p *S3FileProvider) key(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
