//go:build !libvlc

package vlc

import (
	"errors"

	"github.com/charmbracelet/log"
)

func newLibVLC(*log.Logger) (Backend, error) {
	return nil, errors.New("libvlc backend not compiled in (rebuild with -tags libvlc)")
}
