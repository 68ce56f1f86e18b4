package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalFileStorage implements the Storage interface for a library directory
// on the local filesystem
type LocalFileStorage struct {
	outputDir string
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(outputDir string) (*LocalFileStorage, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", abs, err)
	}
	return &LocalFileStorage{outputDir: abs}, nil
}

func (s *LocalFileStorage) Path(name string) string {
	return filepath.Join(s.outputDir, name)
}

// Exists checks if a file exists
func (s *LocalFileStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Place renames src into the library, copying when a rename is not possible
// (e.g. staging and library live on different filesystems).
func (s *LocalFileStorage) Place(_ context.Context, src, name string) (string, error) {
	dst := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return dst, nil
	}
	slog.Debug("Rename failed, copying instead", "src", src, "dst", dst, "error", err)

	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return dst, nil
}

func (s *LocalFileStorage) Close() error {
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
