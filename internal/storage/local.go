package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalFileStorage implements the Storage interface for the local filesystem
type LocalFileStorage struct {
	logger *slog.Logger
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(logger *slog.Logger) *LocalFileStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalFileStorage{logger: logger.With("component", "storage")}
}

// ListSlotFiles lists the slot files for base in dir
func (s *LocalFileStorage) ListSlotFiles(dir, base string) ([]SlotFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var results []SlotFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		f, ok := ParseSlotFile(base, entry.Name())
		if !ok {
			continue
		}
		f.Path = filepath.Join(dir, entry.Name())
		results = append(results, f)
	}
	return results, nil
}

// LinkOrCopy hard-links src to dst, copying when linking is not possible.
// The new file is staged next to dst and renamed over it, so a failure
// leaves any existing dst untouched.
func (s *LocalFileStorage) LinkOrCopy(src, dst string) error {
	if src == "" {
		return ErrInvalidSource
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}

	same, err := sameFile(src, dst)
	if err == nil && same {
		return nil
	}

	tmp := stagingPath(dst)
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", tmp, err)
	}

	if linkErr := os.Link(src, tmp); linkErr != nil {
		s.logger.Debug("Hard link failed, copying", "src", src, "dst", dst, "error", linkErr)
		if err := copyFile(src, tmp); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	return nil
}

// stagingPath is a hidden sibling of dst that slot file listings skip.
func stagingPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp")
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// CreateDir creates a directory and its parents
func (s *LocalFileStorage) CreateDir(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// Remove deletes a single file; a missing file is not an error
func (s *LocalFileStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WriteFile writes data to path, creating parent directories
func (s *LocalFileStorage) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads the whole file
func (s *LocalFileStorage) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// GetReader returns a reader for the specified file
func (s *LocalFileStorage) GetReader(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// FileExists checks if a file exists
func (s *LocalFileStorage) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
