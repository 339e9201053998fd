package playlist

import (
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long the folder must stay quiet after an event
// before it is rescanned.
const DefaultSettle = 2 * time.Second

// OnChangeFunc is a callback invoked when the playlist changes.
// It receives the complete new ordered list.
type OnChangeFunc func(files []string)

// Watcher monitors a video folder and rescans it when its contents change.
type Watcher struct {
	mu       sync.RWMutex
	dir      string
	files    []string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	onChange OnChangeFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	log      *log.Logger
}

// NewWatcher creates a Watcher for dir and performs the initial scan.
// settle <= 0 selects DefaultSettle.
func NewWatcher(dir string, settle time.Duration, onChange OnChangeFunc, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	w := &Watcher{
		dir:      dir,
		settle:   settle,
		watcher:  fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		log:      logger.WithPrefix("watcher"),
	}

	w.files = List(dir, logger)
	return w, nil
}

// Files returns the most recent scan result.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.files)
}

// Start begins watching the folder. It blocks until Stop() is called
// or the watcher fails.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	w.log.Info("monitoring", "dir", w.dir)

	settle := time.NewTimer(w.settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-w.stopCh:
			w.log.Info("stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if isRelevantEvent(event) {
				w.log.Debug("event", "op", event.Op.String(), "file", event.Name)
				settle.Reset(w.settle)
			}

		case <-settle.C:
			w.rescan()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch error", "err", err)
		}
	}
}

// Stop halts the watcher loop and releases the fsnotify resources.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
	})
}

func (w *Watcher) rescan() {
	files := List(w.dir, w.log)

	w.mu.Lock()
	changed := !slices.Equal(files, w.files)
	w.files = files
	w.mu.Unlock()

	if !changed {
		w.log.Debug("rescan found no changes")
		return
	}

	w.log.Info("playlist changed", "files", len(files))
	if w.onChange != nil {
		w.onChange(slices.Clone(files))
	}
}

// isRelevantEvent filters for events that can change the playlist.
// A file created empty only becomes playable after its writes land.
func isRelevantEvent(e fsnotify.Event) bool {
	return e.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0
}
