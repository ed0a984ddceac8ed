package service

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs delayed callbacks keyed by an opaque string. Scheduling a key
// that is already pending replaces the earlier task.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	// Cancel drops the pending task for key and reports whether one existed.
	Cancel(key string) bool
	// CancelAll drops every pending task and returns how many were dropped.
	CancelAll() int
}

// TimerScheduler is the wall-clock Scheduler built on time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]timerEntry
	seq    uint64
}

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]timerEntry)}
}

func (s *TimerScheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.seq++
	gen := s.seq
	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		cur, ok := s.timers[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		// Removed before fn runs so fn may schedule the same key again.
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = timerEntry{timer: timer, gen: gen}
}

func (s *TimerScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[key]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(s.timers, key)
	return true
}

func (s *TimerScheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.timers)
	for key, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, key)
	}
	return n
}

// Pending returns the number of tasks that have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler is a Scheduler driven by a virtual clock. Nothing fires
// until Advance is called.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks map[string]manualTask
}

type manualTask struct {
	due time.Duration
	seq uint64
	fn  func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[string]manualTask)}
}

func (m *ManualScheduler) Schedule(key string, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks[key] = manualTask{due: m.now + delay, seq: m.seq, fn: fn}
}

func (m *ManualScheduler) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[key]; !ok {
		return false
	}
	delete(m.tasks, key)
	return true
}

func (m *ManualScheduler) CancelAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.tasks)
	clear(m.tasks)
	return n
}

// Advance moves the virtual clock forward by d, firing due tasks in order of
// due time then scheduling order. Tasks scheduled by a firing task run in the
// same call if they fall due within d. It returns the number of tasks fired.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		key, task, ok := m.nextDueLocked(target)
		if !ok {
			m.now = target
			m.mu.Unlock()
			return fired
		}
		delete(m.tasks, key)
		m.now = task.due
		m.mu.Unlock()

		task.fn()
		fired++
	}
}

// Flush fires every pending task, including ones scheduled while flushing.
func (m *ManualScheduler) Flush() int {
	fired := 0
	for {
		m.mu.Lock()
		var latest time.Duration
		for _, t := range m.tasks {
			latest = max(latest, t.due)
		}
		pending := len(m.tasks)
		m.mu.Unlock()
		if pending == 0 {
			return fired
		}
		fired += m.Advance(max(latest-m.Elapsed(), 0))
	}
}

// Elapsed returns the virtual time since the scheduler was created.
func (m *ManualScheduler) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the keys of unfired tasks in firing order.
func (m *ManualScheduler) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.tasks))
	for k := range m.tasks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.before(m.tasks[keys[i]], m.tasks[keys[j]])
	})
	return keys
}

func (m *ManualScheduler) nextDueLocked(target time.Duration) (string, manualTask, bool) {
	var (
		bestKey string
		best    manualTask
		found   bool
	)
	for k, t := range m.tasks {
		if t.due > target {
			continue
		}
		if !found || m.before(t, best) {
			bestKey, best, found = k, t, true
		}
	}
	return bestKey, best, found
}

func (m *ManualScheduler) before(a, b manualTask) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	return a.seq < b.seq
}
