// Package vlc provides the video players behind the playback loop.
// Each backend renders one file at a time, fullscreen and without
// controls, and reports end of stream or failure as playback events.
//
// The cvlc backend runs VLC as a subprocess per file and needs no CGO.
// The libvlc backend links libVLC in-process and is compiled in with
// the "libvlc" build tag.
package vlc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"usbloop/internal/config"
	"usbloop/internal/playback"
	"usbloop/internal/rotation"

	"github.com/charmbracelet/log"
)

// Backend is a player that can also rotate its output.
type Backend interface {
	playback.Player
	rotation.Output
	Release()
}

// New creates the backend selected by name (config.BackendCVLC or
// config.BackendLibVLC).
func New(name string, logger *log.Logger) (Backend, error) {
	switch name {
	case config.BackendCVLC:
		p, err := NewSubprocess(logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BackendLibVLC:
		return newLibVLC(logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// pluginDirs are where distributions install VLC's video filter modules.
var pluginDirs = []string{
	"/usr/lib/*/vlc/plugins/video_filter",
	"/usr/lib/vlc/plugins/video_filter",
	"/usr/lib64/vlc/plugins/video_filter",
	"/Applications/VLC.app/Contents/MacOS/plugins",
}

// filterAvailable reports whether VLC's video filter module is
// installed. When no plugin directory can be found at all the answer is
// optimistic, since VLC may be bundled somewhere unusual.
func filterAvailable(name string) bool {
	foundDir := false
	for _, pattern := range pluginDirs {
		dirs, _ := filepath.Glob(pattern)
		for _, dir := range dirs {
			foundDir = true
			matches, _ := filepath.Glob(filepath.Join(dir, "lib"+name+"_plugin.*"))
			if len(matches) > 0 {
				return true
			}
		}
	}
	return !foundDir
}

// transformFilter returns the VLC options for the lossless 90° step
// transform, or an error when the module is missing.
func transformFilter(degrees int) ([]string, error) {
	if degrees == 0 {
		return nil, nil
	}
	if degrees%90 != 0 {
		return nil, fmt.Errorf("transform only supports multiples of 90, got %d", degrees)
	}
	if !filterAvailable("transform") {
		return nil, fmt.Errorf("vlc transform filter not installed")
	}
	return []string{"video-filter=transform", fmt.Sprintf("transform-type=%d", degrees%360)}, nil
}

// rotateFilter returns the VLC options for the generic rotate filter.
func rotateFilter(degrees int) ([]string, error) {
	if degrees == 0 {
		return nil, nil
	}
	if !filterAvailable("rotate") {
		return nil, fmt.Errorf("vlc rotate filter not installed")
	}
	return []string{"video-filter=rotate", fmt.Sprintf("rotate-angle=%d", degrees)}, nil
}

// findVLC locates the VLC executable on the system.
func findVLC() (string, error) {
	// On Linux, prefer cvlc: no Qt interface, just the video surface.
	if runtime.GOOS == "linux" {
		if path, err := exec.LookPath("cvlc"); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("vlc"); err == nil {
		return path, nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "windows":
		candidates = []string{
			`C:\Program Files\VideoLAN\VLC\vlc.exe`,
			`C:\Program Files (x86)\VideoLAN\VLC\vlc.exe`,
		}
	case "darwin":
		candidates = []string{
			"/Applications/VLC.app/Contents/MacOS/VLC",
		}
	default:
		candidates = []string{
			"/usr/bin/cvlc",
			"/usr/bin/vlc",
			"/snap/bin/vlc",
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("VLC not found, install with: sudo apt install vlc")
}
