//go:build unix

package vlc

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"usbloop/internal/logging"
	"usbloop/internal/playback"
)

// fakeVLC appends its arguments to <script>.log, exits non-zero for
// files containing "bad", sleeps for files containing "slow" and exits
// cleanly otherwise.
const fakeVLC = `#!/bin/sh
echo "$@" >> "$0.log"
for last; do :; done
case "$last" in
  *bad*) exit 3 ;;
  *slow*) sleep 5 ;;
esac
exit 0
`

func newTestSubprocess(t *testing.T) *Subprocess {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cvlc")
	if err := os.WriteFile(path, []byte(fakeVLC), 0755); err != nil {
		t.Fatal(err)
	}
	p := newSubprocess(path, logging.Discard())
	t.Cleanup(p.Release)
	return p
}

func nextEvent(t *testing.T, p *Subprocess) playback.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for player event")
		return playback.Event{}
	}
}

func TestSubprocessCleanExitIsEnded(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/a.mp4"); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, p); ev.Kind != playback.Ended {
		t.Fatalf("expected ended, got %s (%v)", ev.Kind, ev.Err)
	}
}

func TestSubprocessNonZeroExitIsFailed(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/bad.mkv"); err != nil {
		t.Fatal(err)
	}
	ev := nextEvent(t, p)
	if ev.Kind != playback.Failed || ev.Err == nil {
		t.Fatalf("expected failed with error, got %s (%v)", ev.Kind, ev.Err)
	}
}

func TestSubprocessStopSuppressesEvent(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/slow.mp4"); err != nil {
		t.Fatal(err)
	}
	p.Stop()

	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event after stop: %s", ev.Kind)
	case <-time.After(300 * time.Millisecond):
	}
}

// launches waits until the fake VLC has been started n times and
// returns the argument line of each start.
func launches(t *testing.T, p *Subprocess, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		data, _ := os.ReadFile(p.vlcPath + ".log")
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(data) > 0 && len(lines) >= n {
			return lines
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d vlc launches, log has %q", n, data)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSubprocessRotationRestartsCurrentFile(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/slow.mp4"); err != nil {
		t.Fatal(err)
	}
	launches(t, p, 1)

	if err := p.setFilter([]string{"video-filter=transform", "transform-type=90"}); err != nil {
		t.Fatalf("setFilter: %v", err)
	}

	lines := launches(t, p, 2)
	restart := lines[1]
	if !strings.HasSuffix(restart, "/usb/video/slow.mp4") {
		t.Fatalf("restart should replay the current file: %q", restart)
	}
	if !strings.Contains(restart, "--video-filter=transform") || !strings.Contains(restart, "--transform-type=90") {
		t.Fatalf("restart missing rotation filter: %q", restart)
	}

	// The replaced process must not report an end.
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event after restart: %s", ev.Kind)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSubprocessRotationRestartFailureIsReported(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/slow.mp4"); err != nil {
		t.Fatal(err)
	}
	launches(t, p, 1)

	p.mu.Lock()
	p.vlcPath = filepath.Join(t.TempDir(), "missing-vlc")
	p.mu.Unlock()

	if err := p.SetTransform(0); err == nil {
		t.Fatal("expected restart error to be returned")
	}

	ev := nextEvent(t, p)
	if ev.Kind != playback.Failed || ev.Err == nil {
		t.Fatalf("expected failed event, got %s (%v)", ev.Kind, ev.Err)
	}

	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current != "" {
		t.Fatalf("failed restart should clear the current file, got %q", current)
	}

	// Nothing is on screen, so the fallback rotation only stores its filter.
	if err := p.SetViewRotation(0); err != nil {
		t.Fatalf("SetViewRotation after failure: %v", err)
	}
}

func TestSubprocessRotationAfterEndDoesNotReplay(t *testing.T) {
	p := newTestSubprocess(t)
	if err := p.Play("/usb/video/a.mp4"); err != nil {
		t.Fatal(err)
	}
	if ev := nextEvent(t, p); ev.Kind != playback.Ended {
		t.Fatalf("expected ended, got %s", ev.Kind)
	}

	if err := p.setFilter([]string{"video-filter=transform", "transform-type=90"}); err != nil {
		t.Fatalf("setFilter: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if lines := launches(t, p, 1); len(lines) != 1 {
		t.Fatalf("finished file must not be replayed, launches: %q", lines)
	}
}

func TestSubprocessStartError(t *testing.T) {
	p := newSubprocess(filepath.Join(t.TempDir(), "missing-vlc"), logging.Discard())
	defer p.Release()

	if err := p.Play("/usb/a.mp4"); err == nil {
		t.Fatal("expected start error")
	}
}

func TestBuildArgsCarriesFilter(t *testing.T) {
	p := newSubprocess("/usr/bin/cvlc", logging.Discard())
	defer p.Release()

	args := p.buildArgs("/usb/a.mp4")
	if args[len(args)-1] != "/usb/a.mp4" {
		t.Fatalf("file must be the last argument: %v", args)
	}
	if !slices.Contains(args, "--play-and-exit") || !slices.Contains(args, "--fullscreen") {
		t.Fatalf("missing kiosk flags: %v", args)
	}

	p.filter = []string{"video-filter=transform", "transform-type=90"}
	args = p.buildArgs("/usb/a.mp4")
	if !slices.Contains(args, "--video-filter=transform") || !slices.Contains(args, "--transform-type=90") {
		t.Fatalf("rotation filter missing: %v", args)
	}
}

func TestTransformFilter(t *testing.T) {
	if opts, err := transformFilter(0); err != nil || opts != nil {
		t.Fatalf("0°: expected no options, got %v (%v)", opts, err)
	}
	if _, err := transformFilter(45); err == nil {
		t.Fatal("45°: expected error")
	}
	if opts, err := rotateFilter(0); err != nil || opts != nil {
		t.Fatalf("rotate 0°: expected no options, got %v (%v)", opts, err)
	}
}
