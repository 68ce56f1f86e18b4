package downloader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaki95/slsk-fetcher/internal/domain"
)

// errStop ends a WalkDir early once the file is found.
var errStop = errors.New("stop walking")

// resolveStaged finds the finished download on disk. slskd stores a file under
// the last directory of its remote path, so that location is tried first and
// the whole staging tree is searched otherwise. Outside the expected location a
// file only counts when its size matches too, as another transfer may have
// left a file with the same name.
func resolveStaged(stagingDir string, c domain.SearchCandidate) (string, error) {
	root, err := filepath.Abs(stagingDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve staging directory: %w", err)
	}

	base := c.BaseName()
	expected := filepath.Join(root, c.Directory(), base)
	if info, err := os.Stat(expected); err == nil && !info.IsDir() {
		return expected, nil
	}

	var found string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || entry.Name() != base {
			return nil
		}
		if c.Size > 0 {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if info.Size() != c.Size {
				slog.Debug("Skipping staged file with the wrong size", "path", path, "size", info.Size(), "want", c.Size)
				return nil
			}
		}
		found = path
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", fmt.Errorf("failed to search staging directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("downloaded file %q not found in %s", base, root)
	}

	slog.Debug("Staged file found outside expected directory", "expected", expected, "found", found)
	return found, nil
}

// removeStagingDir deletes the directory the staged file was in once it is
// empty. The staging root itself is kept.
func removeStagingDir(stagingDir, staged string) error {
	root, err := filepath.Abs(stagingDir)
	if err != nil {
		return err
	}
	dir := filepath.Dir(staged)
	if dir == root {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read staging directory: %w", err)
	}
	if len(entries) > 0 {
		// another transfer from the same remote folder is still staged here
		slog.Debug("Staging directory not empty, keeping it", "dir", dir, "entries", len(entries))
		return nil
	}

	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove staging directory: %w", err)
	}
	return nil
}
