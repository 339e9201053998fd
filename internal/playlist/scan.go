// Package playlist builds the ordered list of videos to play from a
// storage root, and optionally watches that folder for changes.
package playlist

import (
	"os"
	"path/filepath"
	"sort"

	"usbloop/internal/media"
	"usbloop/internal/storage"

	"github.com/charmbracelet/log"
)

// FolderNames are the subfolders tried, in order, before falling back
// to the volume root.
var FolderNames = []string{"video", "Video", "VIDEO", "Videos", "VIDEOS"}

// ResolveFolder returns the first readable video subfolder of root, or
// root itself when none exists.
func ResolveFolder(root string) string {
	for _, name := range FolderNames {
		dir := filepath.Join(root, name)
		if storage.IsReadableDir(dir) {
			return dir
		}
	}
	return root
}

// Scan resolves the video folder under root and lists it.
func Scan(root string, logger *log.Logger) []string {
	return List(ResolveFolder(root), logger)
}

// List returns the playable files directly inside dir: priority
// containers sorted by name, then the other containers sorted by name.
// Empty files and unknown extensions are left out.
func List(dir string, logger *log.Logger) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("scan failed", "dir", dir, "err", err)
		return nil
	}

	var priority, other []string
	for _, entry := range entries {
		class := media.Classify(entry.Name())
		if class == media.Unsupported {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			logger.Debug("skip unreadable entry", "file", path, "err", err)
			continue
		}
		if !info.Mode().IsRegular() || info.Size() == 0 {
			continue
		}

		if class == media.Priority {
			priority = append(priority, path)
		} else {
			other = append(other, path)
		}
	}

	sortByName(priority)
	sortByName(other)

	files := append(priority, other...)
	logger.Info("scanned", "dir", dir, "priority", len(priority), "other", len(other))
	return files
}

func sortByName(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}
