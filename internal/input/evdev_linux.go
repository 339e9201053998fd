//go:build linux

package input

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/holoplot/go-evdev"
)

const keyDown = 1

// EvdevSource reads key events from a Linux input device such as
// /dev/input/event0 or a /dev/input/by-id link for an IR receiver.
type EvdevSource struct {
	path string
	log  *log.Logger
}

// NewEvdevSource returns a source for the device at path.
func NewEvdevSource(path string, logger *log.Logger) *EvdevSource {
	return &EvdevSource{path: path, log: logger.WithPrefix("input")}
}

// Keys opens the device and starts forwarding key-down events.
func (s *EvdevSource) Keys(ctx context.Context) (<-chan Key, error) {
	dev, err := evdev.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", s.path, err)
	}

	name, _ := dev.Name()
	s.log.Info("listening for remote keys", "device", s.path, "name", name)

	keys := make(chan Key)

	go func() {
		<-ctx.Done()
		dev.Close()
	}()

	go func() {
		defer close(keys)
		for {
			ev, err := dev.ReadOne()
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error("input device read failed", "err", err)
				}
				return
			}
			if ev.Type != evdev.EV_KEY || ev.Value != keyDown {
				continue
			}

			k := mapCode(ev.Code)
			s.log.Debug("key", "code", uint16(ev.Code), "key", k.String())
			select {
			case keys <- k:
			case <-ctx.Done():
				return
			}
		}
	}()

	return keys, nil
}

func mapCode(code evdev.EvCode) Key {
	switch code {
	case evdev.KEY_MENU:
		return KeyMenu
	case evdev.KEY_RED:
		return KeyRed
	case evdev.KEY_SELECT, evdev.KEY_OK, evdev.KEY_ENTER:
		return KeyCenter
	default:
		return KeyOther
	}
}
