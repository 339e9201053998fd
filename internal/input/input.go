// Package input turns remote-control key presses into player keys.
package input

import "context"

// Key is a remote-control key the player knows about.
type Key int

const (
	KeyOther Key = iota
	KeyMenu
	KeyRed
	KeyCenter
)

func (k Key) String() string {
	switch k {
	case KeyMenu:
		return "menu"
	case KeyRed:
		return "red"
	case KeyCenter:
		return "center"
	default:
		return "other"
	}
}

// Source delivers key-down events until ctx is cancelled or the device
// goes away. The returned channel is closed when the source stops.
type Source interface {
	Keys(ctx context.Context) (<-chan Key, error)
}
