// Package playback runs the play-next loop over a fixed list of videos.
// The loop advances on natural end and on error alike, after a flat
// delay, wrapping forever.
package playback

import "fmt"

// EventKind is the closed set of things a player reports back.
type EventKind int

const (
	Ended EventKind = iota
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered by a Player when the current media stops on its own.
type Event struct {
	Kind EventKind
	Err  error // set for Failed
}

// Player renders one media file at a time.
//
// Play must not block on decoding: it hands the file over and returns.
// An error from Play means the media could not be opened or handed
// over, and no event will follow for it.
type Player interface {
	Play(path string) error
	Stop()
	Events() <-chan Event
}
