// Package storage finds the directory the player should read videos
// from: the first readable removable volume, or a fixed fallback
// directory when no removable volume is mounted.
package storage

import (
	"os"

	"github.com/charmbracelet/log"
)

// Volume is one mounted storage volume as reported by the platform.
type Volume struct {
	Description string
	Removable   bool
	Dir         string // empty when the volume has no backing directory
}

// VolumeSource enumerates mounted volumes in platform order.
type VolumeSource interface {
	Volumes() ([]Volume, error)
}

// Locator picks the playback root directory.
type Locator struct {
	source   VolumeSource
	fallback string
	log      *log.Logger
}

// NewLocator creates a Locator. fallback may be empty to disable the
// internal-directory fallback.
func NewLocator(source VolumeSource, fallback string, logger *log.Logger) *Locator {
	return &Locator{
		source:   source,
		fallback: fallback,
		log:      logger.WithPrefix("locator"),
	}
}

// Locate returns the first removable volume whose directory exists and
// is readable, in enumeration order. Enumeration errors are logged and
// count as "no removable volume"; the fallback directory is used if it
// exists.
func (l *Locator) Locate() (string, bool) {
	l.log.Info("searching for removable storage")

	volumes, err := l.source.Volumes()
	if err != nil {
		l.log.Error("volume enumeration failed", "err", err)
		volumes = nil
	}

	for _, v := range volumes {
		l.log.Info("volume", "description", v.Description, "removable", v.Removable, "dir", v.Dir)

		if !v.Removable || v.Dir == "" {
			continue
		}
		if IsReadableDir(v.Dir) {
			l.log.Info("using removable volume", "dir", v.Dir)
			return v.Dir, true
		}
		l.log.Warn("removable volume not readable", "dir", v.Dir)
	}

	if l.fallback != "" {
		if _, err := os.Stat(l.fallback); err == nil {
			l.log.Info("no removable volume, using fallback", "dir", l.fallback)
			return l.fallback, true
		}
	}

	l.log.Warn("no usable storage found")
	return "", false
}

// IsReadableDir reports whether path exists, is a directory and can be
// listed by this process.
func IsReadableDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	return readable(path)
}
