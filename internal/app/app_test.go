package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"usbloop/internal/input"
	"usbloop/internal/logging"
	"usbloop/internal/playback"
	"usbloop/internal/prefs"
	"usbloop/internal/rotation"
	"usbloop/internal/storage"
)

const testDelay = 10 * time.Millisecond

type recordingPlayer struct {
	mu         sync.Mutex
	played     chan string
	stops      int
	transforms []int
	events     chan playback.Event
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{
		played: make(chan string, 64),
		events: make(chan playback.Event, 1),
	}
}

func (p *recordingPlayer) Play(path string) error {
	p.played <- filepath.Base(path)
	return nil
}

func (p *recordingPlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

func (p *recordingPlayer) Events() <-chan playback.Event { return p.events }

func (p *recordingPlayer) SetTransform(deg int) error {
	p.mu.Lock()
	p.transforms = append(p.transforms, deg)
	p.mu.Unlock()
	return nil
}

func (p *recordingPlayer) SetViewRotation(int) error { return nil }

func (p *recordingPlayer) expectPlay(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-p.played:
		if got != want {
			t.Fatalf("expected %s to play, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

type volumes []storage.Volume

func (v volumes) Volumes() ([]storage.Volume, error) { return v, nil }

type keySource chan input.Key

func (k keySource) Keys(context.Context) (<-chan input.Key, error) { return k, nil }

func usbWith(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

type harness struct {
	app    *App
	player *recordingPlayer
	store  *prefs.FileStore
	cancel context.CancelFunc
	done   chan error
}

func startApp(t *testing.T, root string, keys input.Source) *harness {
	t.Helper()
	logger := logging.Discard()
	locator := storage.NewLocator(volumes{{Description: "stick", Removable: true, Dir: root}}, "", logger)
	player := newRecordingPlayer()
	store := prefs.NewFileStore(filepath.Join(t.TempDir(), "prefs"))

	a := New(locator, player, store, keys, Options{RetryDelay: testDelay}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{app: a, player: player, store: store, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- a.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) stop(t *testing.T) {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunPlaysInOrderAndWraps(t *testing.T) {
	root := usbWith(t, "video/b.mp4", "video/a.avi", "video/c.mkv", "root.mp4")
	h := startApp(t, root, nil)

	h.player.expectPlay(t, "b.mp4")
	h.player.events <- playback.Event{Kind: playback.Ended}
	h.player.expectPlay(t, "c.mkv")
	h.player.events <- playback.Event{Kind: playback.Failed}
	h.player.expectPlay(t, "a.avi")
	h.player.events <- playback.Event{Kind: playback.Ended}
	h.player.expectPlay(t, "b.mp4")

	st := h.app.Status()
	if st.Folder != filepath.Join(root, "video") || st.Total != 3 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestRunEmptyStorageStaysIdle(t *testing.T) {
	root := usbWith(t, "readme.txt", "notes/clip.mp3")
	h := startApp(t, root, nil)

	select {
	case f := <-h.player.played:
		t.Fatalf("nothing should play, got %s", f)
	case <-time.After(100 * time.Millisecond):
	}

	h.stop(t)
	if st := h.app.Status(); st.State != "idle" || st.Total != 0 {
		t.Fatalf("expected idle, got %+v", st)
	}
	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	if h.player.stops != 0 {
		t.Fatalf("idle app should not touch the player, got %d stops", h.player.stops)
	}
}

func TestRunStopsPlayerOnCancel(t *testing.T) {
	h := startApp(t, usbWith(t, "a.mp4"), nil)
	h.player.expectPlay(t, "a.mp4")

	h.stop(t)

	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	if h.player.stops != 1 {
		t.Fatalf("expected one stop, got %d", h.player.stops)
	}
}

func TestRunRotationKey(t *testing.T) {
	keys := make(keySource)
	h := startApp(t, usbWith(t, "a.mp4"), keys)
	h.player.expectPlay(t, "a.mp4")

	keys <- input.KeyOther
	keys <- input.KeyRed

	deadline := time.Now().Add(2 * time.Second)
	for h.app.Status().Rotation != 90 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.app.Status().Rotation != 90 {
		t.Fatalf("expected rotation 90, got %d", h.app.Status().Rotation)
	}

	v, err := h.store.Int(rotation.Namespace, rotation.Key, -1)
	if err != nil || v != 1 {
		t.Fatalf("expected persisted index 1, got %d (%v)", v, err)
	}

	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	// One apply at startup (0°) and one for the key press (90°).
	if len(h.player.transforms) != 2 || h.player.transforms[1] != 90 {
		t.Fatalf("unexpected transforms %v", h.player.transforms)
	}
}
