package host

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Host driven by a virtual clock. Time moves only through
// Advance and frames run only through Frame, which makes scheduling fully
// deterministic in tests.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	nextID FrameHandle
	frames map[FrameHandle]func(time.Time)
	queue  []FrameHandle
	timers []*manualTimer
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		frames: make(map[FrameHandle]func(time.Time)),
	}
}

// Now implements Host.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// RequestFrame implements Host.
func (m *Manual) RequestFrame(fn func(time.Time)) FrameHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.frames[m.nextID] = fn
	m.queue = append(m.queue, m.nextID)
	return m.nextID
}

// CancelFrame implements Host.
func (m *Manual) CancelFrame(h FrameHandle) {
	m.mu.Lock()
	delete(m.frames, h)
	m.mu.Unlock()
}

// PendingFrames returns the number of frame callbacks waiting for Frame.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// PendingTimers returns the number of timers that have not fired or been
// stopped.
func (m *Manual) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Frame runs the callbacks requested before the call, at the current
// virtual time, and returns how many ran. Callbacks requested from inside a
// frame wait for the next Frame.
func (m *Manual) Frame() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	now := m.now
	m.mu.Unlock()

	ran := 0
	for _, id := range batch {
		m.mu.Lock()
		fn, ok := m.frames[id]
		delete(m.frames, id)
		m.mu.Unlock()
		if ok {
			fn(now)
			ran++
		}
	}
	return ran
}

// Advance moves the clock forward by d, firing due timers in deadline
// order. Each timer observes Now equal to its deadline.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		t := m.nextDue(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = t.due
		if t.period > 0 {
			t.due = t.due.Add(t.period)
		} else {
			m.removeLocked(t)
		}
		m.mu.Unlock()
		t.fn()
	}
}

// nextDue returns the earliest timer due at or before target. Timers with
// equal deadlines fire in creation order.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		a, b := m.timers[i], m.timers[j]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
	if t := m.timers[0]; !t.due.After(target) {
		return t
	}
	return nil
}

func (m *Manual) removeLocked(t *manualTimer) bool {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

// AfterFunc implements Host.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	return m.addTimer(d, 0, fn)
}

// Every implements Host. A non-positive period is treated as one
// nanosecond.
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Nanosecond
	}
	return m.addTimer(d, d, fn)
}

func (m *Manual) addTimer(d, period time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now.Add(max(d, 0)), period: period, fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

type manualTimer struct {
	m      *Manual
	due    time.Time
	period time.Duration
	fn     func()
	seq    uint64
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.removeLocked(t)
}
