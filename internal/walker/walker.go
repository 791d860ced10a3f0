package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"photovault/internal/classify"
	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// File is one media file found under a user's tree.
type File struct {
	// Path is the absolute location on disk.
	Path string
	// Device is the top-level directory the file was synced from.
	Device string
	// Rel is the path relative to the device's files directory.
	Rel string
}

// Walk traverses a user's media tree, calling fn for every media file.
// The tree is laid out as <root>/<device>/files/**; anything outside a
// files directory is ignored, as are the thumbnails directory, hidden
// entries and symlinks. A non-nil error from fn aborts the walk.
func Walk(root string, fn func(File) error) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		device := entry.Name()
		if device == "thumbnails" || strings.HasPrefix(device, ".") {
			continue
		}

		filesDir := filepath.Join(root, device, "files")
		info, err := os.Stat(filesDir)
		if err != nil || !info.IsDir() {
			logging.Debug("device %s has no files directory, skipping", device)
			continue
		}

		err = filepath.WalkDir(filesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logging.Warn("walk error at %s: %v", path, err)
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if !classify.IsMedia(path) {
				return nil
			}

			rel, err := filepath.Rel(filesDir, path)
			if err != nil {
				return err
			}
			metrics.FilesWalked.Inc()
			return fn(File{Path: path, Device: device, Rel: rel})
		})
		if err != nil {
			return fmt.Errorf("failed to walk device %s: %w", device, err)
		}
	}
	return nil
}

// Users lists the user directories under the data root.
func Users(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dataDir, err)
	}

	var users []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		users = append(users, entry.Name())
	}
	return users, nil
}
