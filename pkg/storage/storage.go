// Package storage persists rendered artifacts and uploads as opaque blobs
// addressed by slash-separated relative paths.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// ErrInvalidPath is returned for absolute paths or paths escaping the store root.
var ErrInvalidPath = errors.New("invalid blob path")

// BlobStore is the artifact storage boundary.
type BlobStore interface {
	Put(ctx context.Context, blobPath string, data []byte) error
	// Get returns apperrors.ErrNotFound when nothing is stored at blobPath.
	Get(ctx context.Context, blobPath string) ([]byte, error)
	Exists(ctx context.Context, blobPath string) (bool, error)
}

// LocalStore keeps blobs on the local filesystem under a root directory.
type LocalStore struct {
	root   string
	logger *zap.Logger
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: abs, logger: logger.Named("storage")}, nil
}

// resolve maps a blob path onto the filesystem, rejecting traversal.
func (s *LocalStore) resolve(blobPath string) (string, error) {
	if blobPath == "" || strings.HasPrefix(blobPath, "/") || strings.Contains(blobPath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, blobPath)
	}
	clean := path.Clean(blobPath)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, blobPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes data atomically: a temp file in the target directory is renamed into place.
func (s *LocalStore) Put(ctx context.Context, blobPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(blobPath)
	if err != nil {
		return apperrors.StorageError("put "+blobPath, err)
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.StorageError("put "+blobPath, err)
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return apperrors.StorageError("put "+blobPath, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return apperrors.StorageError("put "+blobPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.StorageError("put "+blobPath, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.StorageError("put "+blobPath, err)
	}

	s.logger.Debug("Stored blob", zap.String("path", blobPath), zap.Int("bytes", len(data)))
	return nil
}

func (s *LocalStore) Get(ctx context.Context, blobPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(blobPath)
	if err != nil {
		return nil, apperrors.StorageError("get "+blobPath, err)
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.StorageError("get "+blobPath, err)
	}
	return data, nil
}

func (s *LocalStore) Exists(ctx context.Context, blobPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := s.resolve(blobPath)
	if err != nil {
		return false, apperrors.StorageError("stat "+blobPath, err)
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.StorageError("stat "+blobPath, err)
	}
	return !info.IsDir(), nil
}
