package playback

import (
	"sync"
	"time"
)

// Scheduler runs single-shot callbacks after a delay.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
	CancelAll()
}

// TimerScheduler is the wall-clock Scheduler. Fired callbacks are not
// run on the timer goroutine: they are queued on C and the owner runs
// them, so loop state is only ever touched by one goroutine. A callback
// cancelled by CancelAll never runs, even if its timer already fired.
type TimerScheduler struct {
	mu     sync.Mutex
	gen    uint64
	nextID uint64
	timers map[uint64]*time.Timer
	fired  chan func()
	done   chan struct{}
	once   sync.Once
}

// NewTimerScheduler creates a scheduler with an empty queue.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[uint64]*time.Timer),
		fired:  make(chan func(), 1),
		done:   make(chan struct{}),
	}
}

// C delivers fired callbacks. The receiver must call them.
func (s *TimerScheduler) C() <-chan func() {
	return s.fired
}

// Schedule arranges for fn to be queued on C after delay.
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.gen
	id := s.nextID
	s.nextID++

	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		wrapped := func() {
			if s.current(gen) {
				fn()
			}
		}
		select {
		case s.fired <- wrapped:
		case <-s.done:
		}
	})
}

// CancelAll stops every pending timer and invalidates callbacks that
// already fired but have not run yet.
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.gen++
}

// Pending reports how many timers have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels everything and releases timer goroutines blocked on C.
func (s *TimerScheduler) Close() {
	s.CancelAll()
	s.once.Do(func() { close(s.done) })
}

func (s *TimerScheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
