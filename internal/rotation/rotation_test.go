package rotation

import (
	"errors"
	"path/filepath"
	"testing"

	"usbloop/internal/input"
	"usbloop/internal/logging"
	"usbloop/internal/prefs"
)

type memStore struct {
	values  map[string]int
	readErr error
	writes  int
}

func newMemStore() *memStore { return &memStore{values: map[string]int{}} }

func (m *memStore) Int(ns, key string, def int) (int, error) {
	if m.readErr != nil {
		return def, m.readErr
	}
	v, ok := m.values[ns+"/"+key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (m *memStore) SetInt(ns, key string, v int) error {
	m.writes++
	m.values[ns+"/"+key] = v
	return nil
}

type fakeOutput struct {
	transformErr error
	transforms   []int
	views        []int
}

func (o *fakeOutput) SetTransform(deg int) error {
	o.transforms = append(o.transforms, deg)
	return o.transformErr
}

func (o *fakeOutput) SetViewRotation(deg int) error {
	o.views = append(o.views, deg)
	return nil
}

func TestToggleTwiceReturnsToStart(t *testing.T) {
	tg := New(newMemStore(), &fakeOutput{}, logging.Discard())
	start := tg.Angle()

	tg.Toggle()
	if tg.Angle() != 90 {
		t.Fatalf("expected 90 after one toggle, got %d", tg.Angle())
	}
	tg.Toggle()
	if tg.Angle() != start {
		t.Fatalf("expected %d after two toggles, got %d", start, tg.Angle())
	}
}

func TestPersistRestoreAcrossSessions(t *testing.T) {
	store := prefs.NewFileStore(filepath.Join(t.TempDir(), "prefs"))

	first := New(store, &fakeOutput{}, logging.Discard())
	first.Restore()
	first.Toggle()
	if err := first.Persist(); err != nil {
		t.Fatal(err)
	}

	second := New(store, &fakeOutput{}, logging.Discard())
	second.Restore()
	if second.Angle() != first.Angle() || second.Angle() != 90 {
		t.Fatalf("expected restored 90, got %d", second.Angle())
	}
}

func TestRestoreClampsOutOfRange(t *testing.T) {
	for _, stored := range []int{2, 5, -1} {
		store := newMemStore()
		store.values[Namespace+"/"+Key] = stored

		tg := New(store, &fakeOutput{}, logging.Discard())
		tg.Toggle() // start away from 0 to prove Restore resets it
		tg.Restore()
		if tg.Index() != 0 || tg.Angle() != 0 {
			t.Errorf("stored %d: expected index 0, got %d", stored, tg.Index())
		}
	}
}

func TestRestoreReadErrorDefaultsToZero(t *testing.T) {
	store := newMemStore()
	store.readErr = errors.New("decode prefs: bad yaml")

	tg := New(store, &fakeOutput{}, logging.Discard())
	tg.Restore()
	if tg.Index() != 0 {
		t.Fatalf("expected 0, got %d", tg.Index())
	}
}

func TestApplyPrefersTransform(t *testing.T) {
	out := &fakeOutput{}
	tg := New(newMemStore(), out, logging.Discard())
	tg.Toggle()

	if err := tg.Apply(); err != nil {
		t.Fatal(err)
	}
	if len(out.transforms) != 1 || out.transforms[0] != 90 {
		t.Fatalf("expected transform 90, got %v", out.transforms)
	}
	if len(out.views) != 0 {
		t.Fatalf("fallback used unexpectedly: %v", out.views)
	}
}

func TestApplyFallsBackToViewRotation(t *testing.T) {
	out := &fakeOutput{transformErr: errors.New("filter unavailable")}
	tg := New(newMemStore(), out, logging.Discard())
	tg.Toggle()

	if err := tg.Apply(); err != nil {
		t.Fatal(err)
	}
	if len(out.views) != 1 || out.views[0] != 90 {
		t.Fatalf("expected view rotation 90, got %v", out.views)
	}
}

func TestHandleKey(t *testing.T) {
	store := newMemStore()
	out := &fakeOutput{}
	tg := New(store, out, logging.Discard())

	if tg.HandleKey(input.KeyOther) {
		t.Fatal("unrelated key was consumed")
	}
	if store.writes != 0 || len(out.transforms) != 0 {
		t.Fatal("unrelated key had side effects")
	}

	want := []int{90, 0, 90}
	for i, k := range []input.Key{input.KeyMenu, input.KeyRed, input.KeyCenter} {
		if !tg.HandleKey(k) {
			t.Fatalf("%s not consumed", k)
		}
		if tg.Angle() != want[i] {
			t.Fatalf("after %s: expected %d, got %d", k, want[i], tg.Angle())
		}
		if got := store.values[Namespace+"/"+Key]; got != tg.Index() {
			t.Fatalf("after %s: persisted %d, want %d", k, got, tg.Index())
		}
	}
	if len(out.transforms) != 3 {
		t.Fatalf("expected 3 applies, got %d", len(out.transforms))
	}
}
