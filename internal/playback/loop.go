package playback

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultRetryDelay is the pause between one attempt ending and the next
// one starting.
const DefaultRetryDelay = 1000 * time.Millisecond

// State is the loop's position in its state machine.
type State int

const (
	Idle State = iota
	Playing
	AwaitingRetry
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case AwaitingRetry:
		return "awaiting-retry"
	default:
		return "idle"
	}
}

// Snapshot is a read-only view of the loop for logs and status reports.
type Snapshot struct {
	State State
	Index int
	File  string
	Total int
}

// Loop plays a list of files in order, forever. It is not safe for
// concurrent use: every method, including the callbacks it hands to the
// Scheduler, must run on the goroutine that owns it.
type Loop struct {
	player Player
	sched  Scheduler
	delay  time.Duration
	files  []string
	index  int
	state  State
	log    *log.Logger
}

// NewLoop creates an idle loop. delay <= 0 selects DefaultRetryDelay.
func NewLoop(player Player, sched Scheduler, delay time.Duration, logger *log.Logger) *Loop {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Loop{
		player: player,
		sched:  sched,
		delay:  delay,
		log:    logger.WithPrefix("loop"),
	}
}

// Load replaces the playlist wholesale and starts from the first file.
// An empty list leaves the loop idle without touching the player beyond
// stopping whatever was playing before.
func (l *Loop) Load(files []string) {
	wasIdle := l.state == Idle
	l.sched.CancelAll()
	if !wasIdle {
		l.player.Stop()
	}

	l.files = slices.Clone(files)
	l.index = 0

	if len(l.files) == 0 {
		l.setState(Idle)
		l.log.Warn("no videos found, staying idle")
		return
	}

	l.log.Info("playlist loaded", "files", len(l.files))
	l.playCurrent()
}

// HandleEvent feeds a player event into the loop. End of stream and
// errors are treated the same: move on to the next file. Events that
// arrive while nothing is playing are stale and dropped.
func (l *Loop) HandleEvent(ev Event) {
	if l.state != Playing {
		l.log.Debug("dropping stale event", "event", ev.Kind.String(), "state", l.state.String())
		return
	}

	switch ev.Kind {
	case Failed:
		l.log.Error("playback error", "file", l.currentName(), "err", ev.Err)
	default:
		l.log.Info("finished", "file", l.currentName())
	}
	l.advance()
}

// Stop cancels any pending retry and stops the player. The loop ends
// idle and keeps its playlist.
func (l *Loop) Stop() {
	l.sched.CancelAll()
	if l.state != Idle {
		l.player.Stop()
	}
	l.setState(Idle)
}

// Snapshot returns the current state, cursor and file.
func (l *Loop) Snapshot() Snapshot {
	s := Snapshot{State: l.state, Index: l.index, Total: len(l.files)}
	if l.state != Idle && l.index < len(l.files) {
		s.File = l.files[l.index]
	}
	return s
}

func (l *Loop) playCurrent() {
	if l.index >= len(l.files) {
		l.index = 0
	}
	path := l.files[l.index]

	l.setState(Playing)
	l.log.Info("play", "index", l.index, "file", filepath.Base(path))

	if err := l.player.Play(path); err != nil {
		l.log.Error("could not start video", "file", filepath.Base(path), "err", err)
		l.advance()
	}
}

func (l *Loop) advance() {
	l.index++
	if l.index >= len(l.files) {
		l.index = 0
	}
	l.setState(AwaitingRetry)
	l.sched.Schedule(l.delay, l.playCurrent)
}

func (l *Loop) setState(s State) {
	if l.state == s {
		return
	}
	l.log.Info("state", "from", l.state.String(), "to", s.String(), "index", l.index)
	l.state = s
}

func (l *Loop) currentName() string {
	if l.index < len(l.files) {
		return filepath.Base(l.files[l.index])
	}
	return ""
}
