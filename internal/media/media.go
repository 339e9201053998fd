// Package media provides centralized video type detection for the
// player, splitting playable containers into a priority class and a
// lower-confidence class.
package media

import (
	"path/filepath"
	"strings"
)

// Class represents how a file ranks in the playlist.
type Class int

const (
	Unsupported Class = iota
	Priority
	Other
)

func (c Class) String() string {
	switch c {
	case Priority:
		return "priority"
	case Other:
		return "other"
	default:
		return "unsupported"
	}
}

// Containers with predictable hardware-decoded playback.
var priorityExts = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".m4v":  true,
	".webm": true,
}

// Containers that usually play but are tested less.
var otherExts = map[string]bool{
	".avi": true,
	".mov": true,
	".wmv": true,
	".flv": true,
	".3gp": true,
}

// Classify returns the playlist class for a given file path based on
// its lowercased extension.
func Classify(path string) Class {
	ext := strings.ToLower(filepath.Ext(path))
	if priorityExts[ext] {
		return Priority
	}
	if otherExts[ext] {
		return Other
	}
	return Unsupported
}
