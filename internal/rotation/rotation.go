// Package rotation keeps the persisted output rotation and applies it to
// the video output when a remote key asks for the other side.
package rotation

import (
	"github.com/charmbracelet/log"

	"usbloop/internal/input"
)

// Preference location, shared with the `rotate` command.
const (
	Namespace = "player_settings"
	Key       = "rotation_state"
)

// Angles is the rotation table the stored index points into.
var Angles = [...]int{0, 90}

// Store persists integer preferences.
type Store interface {
	Int(namespace, key string, def int) (int, error)
	SetInt(namespace, key string, value int) error
}

// Output rotates the rendered video. SetTransform is the accelerated
// path; SetViewRotation is the plain fallback.
type Output interface {
	SetTransform(degrees int) error
	SetViewRotation(degrees int) error
}

// Toggle owns the rotation index. Like the playback loop it is driven
// from a single goroutine.
type Toggle struct {
	store Store
	out   Output
	index int
	log   *log.Logger
}

// New returns a Toggle at index 0. Call Restore to load the saved state.
func New(store Store, out Output, logger *log.Logger) *Toggle {
	return &Toggle{
		store: store,
		out:   out,
		log:   logger.WithPrefix("rotation"),
	}
}

// Restore loads the saved index. Unreadable or out-of-range values
// reset to 0.
func (t *Toggle) Restore() {
	idx, err := t.store.Int(Namespace, Key, 0)
	if err != nil {
		t.log.Error("could not read rotation", "err", err)
		idx = 0
	}
	if idx < 0 || idx >= len(Angles) {
		t.log.Warn("stored rotation out of range, resetting", "index", idx)
		idx = 0
	}
	t.index = idx
	t.log.Info("restored", "angle", t.Angle())
}

// Toggle moves to the next angle, wrapping.
func (t *Toggle) Toggle() {
	t.index = (t.index + 1) % len(Angles)
}

// Angle returns the current rotation in degrees.
func (t *Toggle) Angle() int {
	return Angles[t.index]
}

// Index returns the current table index.
func (t *Toggle) Index() int {
	return t.index
}

// Apply pushes the current angle to the output, falling back to the
// plain rotation when the accelerated transform is refused.
func (t *Toggle) Apply() error {
	angle := t.Angle()
	err := t.out.SetTransform(angle)
	if err == nil {
		t.log.Info("transform rotation applied", "angle", angle)
		return nil
	}

	t.log.Error("transform rotation failed, falling back to view rotation", "angle", angle, "err", err)
	if err := t.out.SetViewRotation(angle); err != nil {
		t.log.Error("view rotation failed", "angle", angle, "err", err)
		return err
	}
	t.log.Info("view rotation applied", "angle", angle)
	return nil
}

// Persist saves the current index.
func (t *Toggle) Persist() error {
	if err := t.store.SetInt(Namespace, Key, t.index); err != nil {
		t.log.Error("could not save rotation", "err", err)
		return err
	}
	return nil
}

// HandleKey runs toggle, apply and persist for the rotation keys and
// reports whether the key was consumed.
func (t *Toggle) HandleKey(k input.Key) bool {
	switch k {
	case input.KeyMenu, input.KeyRed, input.KeyCenter:
		t.Toggle()
		t.Apply()
		t.Persist()
		return true
	default:
		return false
	}
}
