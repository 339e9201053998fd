// Package app wires storage discovery, scanning, the playback loop and
// the rotation toggle into one event loop. A single goroutine owns all
// player state; everything else talks to it over channels.
package app

import (
	"context"
	"sync"
	"time"

	"usbloop/internal/input"
	"usbloop/internal/logging"
	"usbloop/internal/playback"
	"usbloop/internal/playlist"
	"usbloop/internal/rotation"
	"usbloop/internal/storage"

	"github.com/charmbracelet/log"
)

// Player is what the app needs from a video backend.
type Player interface {
	playback.Player
	rotation.Output
}

// Options tune the app.
type Options struct {
	RetryDelay time.Duration
	Rescan     bool          // watch the video folder and reload on change
	Settle     time.Duration // quiet period before a rescan
}

// Status is a copy of the app state, safe to read from any goroutine.
type Status struct {
	Root     string
	Folder   string
	State    string
	Index    int
	File     string
	Total    int
	Rotation int
}

// App is the kiosk player.
type App struct {
	locator *storage.Locator
	player  Player
	sched   *playback.TimerScheduler
	loop    *playback.Loop
	toggle  *rotation.Toggle
	keys    input.Source
	opts    Options
	log     *log.Logger
	scanLog *log.Logger

	mu     sync.RWMutex
	status Status
}

// New creates an App. keys may be nil when no remote is attached.
func New(locator *storage.Locator, player Player, store rotation.Store, keys input.Source, opts Options, logger *log.Logger) *App {
	sched := playback.NewTimerScheduler()
	return &App{
		locator: locator,
		player:  player,
		sched:   sched,
		loop:    playback.NewLoop(player, sched, opts.RetryDelay, logger),
		toggle:  rotation.New(store, player, logger),
		keys:    keys,
		opts:    opts,
		log:     logger.WithPrefix("app"),
		scanLog: logger.WithPrefix("scanner"),
	}
}

// Status returns the latest published state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Run discovers media and plays it until ctx is cancelled. On return
// every pending retry has been cancelled and the player stopped; the
// caller still owns releasing the player.
func (a *App) Run(ctx context.Context) error {
	defer a.sched.Close()

	a.toggle.Restore()
	a.toggle.Apply()

	rescans := make(chan []string, 1)
	a.start(ctx, rescans)

	var keys <-chan input.Key
	if a.keys != nil {
		k, err := a.keys.Keys(ctx)
		if err != nil {
			a.log.Error("remote control unavailable", "err", err)
		} else {
			keys = k
		}
	}

	for {
		a.publish()

		select {
		case <-ctx.Done():
			a.loop.Stop()
			a.publish()
			a.log.Info("playback stopped")
			return nil

		case ev := <-a.player.Events():
			a.loop.HandleEvent(ev)

		case fn := <-a.sched.C():
			fn()

		case k, ok := <-keys:
			if !ok {
				a.log.Warn("remote control closed")
				keys = nil
				continue
			}
			if !a.toggle.HandleKey(k) {
				a.log.Debug("key ignored", "key", k.String())
			}

		case files := <-rescans:
			a.log.Info("reloading playlist", "files", len(files))
			a.loop.Load(files)
		}
	}
}

// start locates storage, resolves the video folder and loads the first
// playlist. With rescan enabled it also starts the folder watcher,
// which is stopped when ctx ends.
func (a *App) start(ctx context.Context, rescans chan<- []string) {
	begin := time.Now()

	root, ok := a.locator.Locate()
	if !ok {
		a.log.Warn("no storage found, staying idle")
		return
	}

	folder := playlist.ResolveFolder(root)
	a.mu.Lock()
	a.status.Root = root
	a.status.Folder = folder
	a.mu.Unlock()
	a.log.Info("video folder", "dir", folder)

	if !a.opts.Rescan {
		files := playlist.List(folder, a.scanLog)
		a.log.Info("discovery done", "took", logging.Since(begin))
		a.loop.Load(files)
		return
	}

	w, err := playlist.NewWatcher(folder, a.opts.Settle, func(files []string) {
		select {
		case rescans <- files:
		case <-ctx.Done():
		}
	}, a.scanLog)
	if err != nil {
		a.log.Error("folder watch unavailable", "err", err)
		a.loop.Load(playlist.List(folder, a.scanLog))
		return
	}

	go func() {
		if err := w.Start(); err != nil {
			a.log.Error("folder watch failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	a.log.Info("discovery done", "took", logging.Since(begin))
	a.loop.Load(w.Files())
}

func (a *App) publish() {
	snap := a.loop.Snapshot()
	a.mu.Lock()
	a.status.State = snap.State.String()
	a.status.Index = snap.Index
	a.status.File = snap.File
	a.status.Total = snap.Total
	a.status.Rotation = a.toggle.Angle()
	a.mu.Unlock()
}
