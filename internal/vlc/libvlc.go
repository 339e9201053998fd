//go:build libvlc

package vlc

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"usbloop/internal/playback"

	"github.com/charmbracelet/log"

	libvlc "github.com/adrg/libvlc-go/v3"
)

var _ Backend = (*LibVLC)(nil)

// LibVLC renders through an in-process libVLC media player. Hardware
// decoding and DRM/KMS output are chosen by libVLC's own module probing.
type LibVLC struct {
	mu       sync.Mutex
	player   *libvlc.Player
	manager  *libvlc.EventManager
	eventIDs []libvlc.EventID
	media    *libvlc.Media
	current  string
	active   atomic.Bool // cleared by end and error events
	options  []string
	events   chan playback.Event
	done     chan struct{}
	once     sync.Once
	log      *log.Logger
}

func newLibVLC(logger *log.Logger) (Backend, error) {
	p, err := NewLibVLC(logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewLibVLC initialises libVLC and creates a fullscreen player.
func NewLibVLC(logger *log.Logger) (*LibVLC, error) {
	flags := []string{
		"--no-osd",
		"--no-video-title-show",
		"--no-spu",
		"--avcodec-hw=any",
		"--file-caching=5000",
		"--no-drop-late-frames",
		"--no-skip-frames",
		"--quiet",
	}
	if err := libvlc.Init(flags...); err != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", err)
	}

	player, err := libvlc.NewPlayer()
	if err != nil {
		libvlc.Release()
		return nil, fmt.Errorf("player creation failed: %w", err)
	}

	p := &LibVLC{
		player: player,
		events: make(chan playback.Event, 4),
		done:   make(chan struct{}),
		log:    logger.WithPrefix("vlc"),
	}

	if err := player.SetFullScreen(true); err != nil {
		p.log.Warn("fullscreen request failed", "err", err)
	}

	manager, err := player.EventManager()
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("event manager: %w", err)
	}
	p.manager = manager

	for _, ev := range []libvlc.Event{libvlc.MediaPlayerEndReached, libvlc.MediaPlayerEncounteredError} {
		id, err := manager.Attach(ev, p.onEvent, nil)
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("attach event: %w", err)
		}
		p.eventIDs = append(p.eventIDs, id)
	}

	p.log.Info("libVLC player initialized")
	return p, nil
}

// Events delivers end-of-stream and failure notifications.
func (p *LibVLC) Events() <-chan playback.Event {
	return p.events
}

// Play loads file with the current rotation options and starts it.
func (p *LibVLC) Play(file string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked(file)
}

// Stop halts playback. libVLC reports a stop as MediaPlayerStopped,
// which is not forwarded.
func (p *LibVLC) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Stop()
	}
	p.active.Store(false)
	p.current = ""
}

// SetTransform selects the transform filter for rotated output.
func (p *LibVLC) SetTransform(degrees int) error {
	opts, err := transformFilter(degrees)
	if err != nil {
		return err
	}
	return p.setOptions(opts)
}

// SetViewRotation selects the generic rotate filter.
func (p *LibVLC) SetViewRotation(degrees int) error {
	opts, err := rotateFilter(degrees)
	if err != nil {
		return err
	}
	return p.setOptions(opts)
}

// Release detaches events and frees the player, the media and libVLC.
func (p *LibVLC) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.manager != nil && len(p.eventIDs) > 0 {
		p.manager.Detach(p.eventIDs...)
		p.eventIDs = nil
	}
	if p.player != nil {
		p.player.Stop()
		p.player.Release()
		p.player = nil
	}
	if p.media != nil {
		p.media.Release()
		p.media = nil
	}
	libvlc.Release()
	p.once.Do(func() { close(p.done) })
	p.log.Info("released")
}

// setOptions stores the per-media filter options and reloads the
// current file so the rotation takes effect now. A failed reload is
// reported as a playback failure as well as returned.
func (p *LibVLC) setOptions(opts []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.options = opts
	if p.current == "" || !p.active.Load() {
		return nil
	}

	p.log.Info("restarting current video with new rotation", "file", filepath.Base(p.current))
	p.player.Stop()
	if err := p.playLocked(p.current); err != nil {
		p.log.Error("restart failed", "err", err)
		p.active.Store(false)
		p.current = ""
		p.send(playback.Event{Kind: playback.Failed, Err: err})
		return err
	}
	return nil
}

func (p *LibVLC) playLocked(file string) error {
	if p.player == nil {
		return errors.New("player released")
	}
	p.active.Store(false)

	media, err := libvlc.NewMediaFromPath(file)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	if len(p.options) > 0 {
		opts := make([]string, len(p.options))
		for i, o := range p.options {
			opts[i] = ":" + o
		}
		if err := media.AddOptions(opts...); err != nil {
			media.Release()
			return fmt.Errorf("media options: %w", err)
		}
	}

	if err := p.player.SetMedia(media); err != nil {
		media.Release()
		return fmt.Errorf("set media: %w", err)
	}
	if p.media != nil {
		p.media.Release()
	}
	p.media = media
	p.current = file

	if err := p.player.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	p.active.Store(true)
	return nil
}

// onEvent runs on a libVLC thread. It must not call back into the
// player or take p.mu, so it only flips active and forwards.
func (p *LibVLC) onEvent(event libvlc.Event, _ interface{}) {
	var ev playback.Event
	switch event {
	case libvlc.MediaPlayerEndReached:
		ev = playback.Event{Kind: playback.Ended}
	case libvlc.MediaPlayerEncounteredError:
		ev = playback.Event{Kind: playback.Failed, Err: errors.New("libvlc reported a playback error")}
	default:
		return
	}

	p.active.Store(false)
	p.send(ev)
}

func (p *LibVLC) send(ev playback.Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	default:
		p.log.Warn("event queue full, dropping", "event", ev.Kind.String())
	}
}
