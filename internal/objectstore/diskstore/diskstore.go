package diskstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/rohmanhakim/crawlcore/pkg/failure"
	"github.com/rohmanhakim/crawlcore/pkg/fileutil"
)

/*
DiskStore implements objectstore.Store against the local filesystem,
rooted at a base directory with the key as a relative path. It is the
generalization of the teacher's internal/storage.LocalSink: the same
EnsureDir-then-WriteFile shape and the same disk-full/permission error
classification, adapted from "write one Markdown file per normalized
document" to "write one object per content-addressable key" so a single
operator can run the pipeline against a local directory instead of S3
without touching worker code.
*/

type DiskStore struct {
	baseDir string
}

func New(baseDir string) DiskStore {
	return DiskStore{baseDir: baseDir}
}

func (d DiskStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	fullPath := filepath.Join(d.baseDir, filepath.FromSlash(key))
	if err := fileutil.EnsureDir(filepath.Dir(fullPath)); err != nil {
		return classifyWriteError(fullPath, err)
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return classifyWriteError(fullPath, &fileutil.FileError{
			Message:   err.Error(),
			Retryable: errors.Is(err, syscall.ENOSPC),
			Cause:     fileutil.ErrCausePathError,
		})
	}
	return nil
}

func (d DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath := filepath.Join(d.baseDir, filepath.FromSlash(key))
	return os.ReadFile(fullPath)
}

func (d DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath := filepath.Join(d.baseDir, filepath.FromSlash(key))
	_, err := os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func classifyWriteError(path string, err failure.ClassifiedError) error {
	return fmt.Errorf("diskstore: write %s: %w", path, err)
}
