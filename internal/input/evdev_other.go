//go:build !linux

package input

import (
	"context"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
)

// EvdevSource is only available on Linux.
type EvdevSource struct {
	path string
}

// NewEvdevSource returns a source that fails on this platform.
func NewEvdevSource(path string, _ *log.Logger) *EvdevSource {
	return &EvdevSource{path: path}
}

// Keys always fails outside Linux.
func (s *EvdevSource) Keys(context.Context) (<-chan Key, error) {
	return nil, fmt.Errorf("input device %s: evdev not supported on %s", s.path, runtime.GOOS)
}
