package vlc

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	"usbloop/internal/playback"

	"github.com/charmbracelet/log"
)

var _ Backend = (*Subprocess)(nil)

// Subprocess plays each file in its own VLC process started with
// --play-and-exit. A clean exit is end of stream; any other exit is a
// playback failure.
type Subprocess struct {
	mu      sync.Mutex
	vlcPath string
	cmd     *exec.Cmd
	current string
	gen     uint64
	filter  []string
	events  chan playback.Event
	done    chan struct{}
	once    sync.Once
	log     *log.Logger
}

// NewSubprocess finds VLC and returns an idle player.
func NewSubprocess(logger *log.Logger) (*Subprocess, error) {
	path, err := findVLC()
	if err != nil {
		return nil, err
	}
	return newSubprocess(path, logger), nil
}

func newSubprocess(vlcPath string, logger *log.Logger) *Subprocess {
	p := &Subprocess{
		vlcPath: vlcPath,
		events:  make(chan playback.Event, 1),
		done:    make(chan struct{}),
		log:     logger.WithPrefix("vlc"),
	}
	p.log.Info("using subprocess backend", "vlc", vlcPath)
	return p
}

// Events delivers end-of-stream and failure notifications.
func (p *Subprocess) Events() <-chan playback.Event {
	return p.events
}

// Play starts a VLC process for file, replacing any running one.
func (p *Subprocess) Play(file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(file)
}

// Stop kills the running process without reporting an event for it.
func (p *Subprocess) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killLocked()
	p.current = ""
}

// SetTransform selects the transform filter for rotated output.
func (p *Subprocess) SetTransform(degrees int) error {
	filter, err := transformFilter(degrees)
	if err != nil {
		return err
	}
	return p.setFilter(filter)
}

// SetViewRotation selects the generic rotate filter.
func (p *Subprocess) SetViewRotation(degrees int) error {
	filter, err := rotateFilter(degrees)
	if err != nil {
		return err
	}
	return p.setFilter(filter)
}

// Release stops playback and unblocks any pending event delivery.
func (p *Subprocess) Release() {
	p.Stop()
	p.once.Do(func() { close(p.done) })
	p.log.Info("released")
}

// setFilter stores the filter and, when a file is on screen, restarts
// it so the new rotation shows immediately. A failed restart leaves
// nothing running, so it is reported as a playback failure as well as
// returned.
func (p *Subprocess) setFilter(filter []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.filter = filter
	if p.cmd == nil || p.current == "" {
		return nil
	}

	p.log.Info("restarting current video with new rotation", "file", filepath.Base(p.current))
	if err := p.startLocked(p.current); err != nil {
		p.log.Error("restart failed", "err", err)
		p.current = ""
		p.failLocked(err)
		return err
	}
	return nil
}

// failLocked queues a Failed event without blocking; the caller may be
// the goroutine that drains Events.
func (p *Subprocess) failLocked(err error) {
	select {
	case p.events <- playback.Event{Kind: playback.Failed, Err: err}:
	case <-p.done:
	default:
		p.log.Warn("event queue full, dropping failure", "err", err)
	}
}

func (p *Subprocess) startLocked(file string) error {
	p.killLocked()

	cmd := exec.Command(p.vlcPath, p.buildArgs(file)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		cmd.Env = append(os.Environ(), "DISPLAY=:0")
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("vlc start failed: %w", err)
	}

	p.gen++
	gen := p.gen
	p.cmd = cmd
	p.current = file

	go func() {
		err := cmd.Wait()
		p.exited(gen, err)
	}()
	return nil
}

func (p *Subprocess) exited(gen uint64, err error) {
	p.mu.Lock()
	if gen != p.gen {
		// Killed by Stop or replaced by a newer Play.
		p.mu.Unlock()
		return
	}
	p.cmd = nil
	p.mu.Unlock()

	ev := playback.Event{Kind: playback.Ended}
	if err != nil {
		ev = playback.Event{Kind: playback.Failed, Err: fmt.Errorf("vlc exited: %w", err)}
	}

	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Subprocess) killLocked() {
	p.gen++
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd = nil
}

func (p *Subprocess) buildArgs(file string) []string {
	args := []string{
		"--fullscreen",
		"--no-video-title-show", // No filename overlay
		"--no-osd",              // No on-screen display
		"--no-spu",              // No subtitles
		"--play-and-exit",       // One process per file; exit status is the result
		"--no-loop",
		"--no-repeat",

		"--avcodec-hw=any", // HW decode where available
		"--avcodec-threads=0",
		"--avcodec-skiploopfilter=0",

		"--file-caching=8000",
		"--clock-jitter=0",
		"--deinterlace=0",

		"--quiet",
	}

	for _, opt := range p.filter {
		args = append(args, "--"+opt)
	}

	return append(args, file)
}
