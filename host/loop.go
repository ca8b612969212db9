package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFrameRate is the frame rate of a Loop created without options.
const DefaultFrameRate = 60

// LoopOption configures a Loop.
type LoopOption func(*loopOptions)

type loopOptions struct {
	frameRate int
	queueSize int
}

func defaultLoopOptions() loopOptions {
	return loopOptions{
		frameRate: DefaultFrameRate,
		queueSize: 64,
	}
}

// WithFrameRate sets the frame rate in frames per second.
// Values below 1 are ignored.
func WithFrameRate(fps int) LoopOption {
	return func(o *loopOptions) {
		if fps > 0 {
			o.frameRate = fps
		}
	}
}

// Loop is a Host backed by a single event goroutine. Frame callbacks and
// timer callbacks all run inside Run, one at a time.
//
// Methods may be called from any goroutine.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	done     chan struct{}
	started  atomic.Bool

	mu     sync.Mutex
	nextID FrameHandle
	frames map[FrameHandle]func(time.Time)
	queue  []FrameHandle
}

// NewLoop creates a Loop. Nothing runs until Run is called.
func NewLoop(opts ...LoopOption) *Loop {
	o := defaultLoopOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Loop{
		interval: time.Second / time.Duration(o.frameRate),
		tasks:    make(chan func(), o.queueSize),
		done:     make(chan struct{}),
		frames:   make(map[FrameHandle]func(time.Time)),
	}
}

// Run dispatches frames and timer callbacks until ctx is done. It returns
// ctx.Err(). Run may be called only once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		panic("host: Loop.Run called twice")
	}
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case now := <-ticker.C:
			l.runFrames(now)
		}
	}
}

// Post queues fn to run on the event goroutine. It reports false if the
// loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Now implements Host.
func (l *Loop) Now() time.Time { return time.Now() }

// RequestFrame implements Host.
func (l *Loop) RequestFrame(fn func(time.Time)) FrameHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.frames[id] = fn
	l.queue = append(l.queue, id)
	return id
}

// CancelFrame implements Host.
func (l *Loop) CancelFrame(h FrameHandle) {
	l.mu.Lock()
	delete(l.frames, h)
	l.mu.Unlock()
}

func (l *Loop) runFrames(now time.Time) {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, id := range batch {
		l.mu.Lock()
		fn, ok := l.frames[id]
		delete(l.frames, id)
		l.mu.Unlock()
		if ok {
			fn(now)
		}
	}
}

// AfterFunc implements Host.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Every implements Host.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{quit: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-l.done:
				return
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()
	return t
}

type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	quit    chan struct{}
	once    sync.Once
}

func (t *loopTimer) Stop() bool {
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.quit != nil {
		t.once.Do(func() { close(t.quit) })
	}
	return !t.stopped.Swap(true)
}
