package phase

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/params"
)

// Scheduler defaults.
const (
	DefaultCycle      = 45 * time.Minute
	DefaultTransition = 2 * time.Minute
	DefaultTick       = 5 * time.Second
	DefaultStartDelay = 2 * time.Second
)

// Output limits applied before publication.
const (
	MaxIntensity = 5
	MinScale     = 0.05
	MaxScale     = 3
	MinSpeed     = 0.01
	MaxSpeed     = 10
	MaxVolume    = 500
	MaxAmbient   = 3
)

// Tarnish blending range and the steady-state fluctuation constants.
const (
	tarnishLow      = 0.3
	tarnishHigh     = 0.7
	fluctuation     = 0.08
	fluctuationMs   = 300000
	wobblePeriodMs  = 60000
	triggerMinimum  = 0.05
	tarnishSwayGain = 0.2
)

// Phase is a closed enum of environment phases with a fixed profile each.
type Phase interface {
	comparable
	fmt.Stringer
	Profile() Profile
}

// Variant describes one family of phases.
type Variant[P Phase] struct {
	Name string

	// Initial is the phase a fresh Start begins in.
	Initial P

	// DriftStart is the initial drift. Drift is clamped to
	// [DriftMin, DriftMax] on every commit and the published angle is
	// clamped to the same range.
	DriftStart float32
	DriftMin   float32
	DriftMax   float32

	// Next draws the successor of current. r is uniform in [0,1).
	Next func(current P, hour int, r float64) P

	// Tarnish enables brass tarnish output.
	Tarnish bool
}

// State is a snapshot of the scheduler.
type State[P Phase] struct {
	Current            P
	Next               P
	PhaseStart         time.Time
	Progress           float32
	TransitionProgress float32
	Drift              float32
	TimeOfDay          TimeOfDay
	Transitioning      bool
	Running            bool
}

// Publisher receives the computed vector. *params.Store implements it.
type Publisher interface {
	Dynamic() bool
	TriggerEnabled() bool
	Publish(v params.Vector) error
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	cycle      time.Duration
	transition time.Duration
	tick       time.Duration
	startDelay time.Duration
	rand       func() float64
	loc        *time.Location
}

func defaultOptions() options {
	return options{
		cycle:      DefaultCycle,
		transition: DefaultTransition,
		tick:       DefaultTick,
		startDelay: DefaultStartDelay,
		rand:       rand.Float64,
		loc:        time.Local,
	}
}

// WithCycle sets the phase duration.
func WithCycle(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cycle = d
		}
	}
}

// WithTransition sets the blending window after a phase commit.
func WithTransition(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.transition = d
		}
	}
}

// WithTick sets the tick interval.
func WithTick(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithStartDelay sets the delay between Start and the first tick.
func WithStartDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.startDelay = d
		}
	}
}

// WithRand sets the random source used for phase draws and drift.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r.Float64
		}
	}
}

// WithLocation sets the time zone used to derive the hour of day.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// Scheduler cycles through the phases of a Variant and publishes the
// blended parameter vector on every tick.
//
// A Scheduler is an owned value: several may run side by side, each with
// its own host timers. State may be called from any goroutine.
type Scheduler[P Phase] struct {
	host    host.Host
	pub     Publisher
	variant Variant[P]
	opts    options
	tween   *gween.Tween

	mu         sync.Mutex
	state      State[P]
	gen        uint64
	startTimer host.Timer
	ticker     host.Timer
	clearTimer host.Timer
}

// New creates a stopped Scheduler.
func New[P Phase](h host.Host, pub Publisher, v Variant[P], opts ...Option) *Scheduler[P] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Scheduler[P]{
		host:    h,
		pub:     pub,
		variant: v,
		opts:    o,
		tween:   gween.New(0, 1, float32(o.transition.Seconds()), ease.Linear),
		state:   State[P]{Current: v.Initial, Next: v.Initial, Drift: v.DriftStart},
	}
}

// Start begins a fresh run: the initial phase, the initial drift and no
// transition. The first tick happens after the start delay. Calling Start
// on a running scheduler restarts it.
func (s *Scheduler[P]) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen

	now := s.host.Now()
	hour := now.In(s.opts.loc).Hour()
	s.state = State[P]{
		Current:    s.variant.Initial,
		Next:       s.variant.Next(s.variant.Initial, hour, s.opts.rand()),
		PhaseStart: now,
		Drift:      s.variant.DriftStart,
		TimeOfDay:  TimeOfDayAt(hour),
		Running:    true,
	}

	applog.Logger().Info("phase: scheduler started",
		"variant", s.variant.Name, "phase", s.state.Current.String(), "next", s.state.Next.String())

	s.startTimer = s.host.AfterFunc(s.opts.startDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || !s.state.Running {
			return
		}
		s.startTimer = nil
		s.ticker = s.host.Every(s.opts.tick, func() { s.tick(gen) })
	})
}

// Stop cancels the tick interval and any pending transition timer. A
// stopped scheduler stays stopped until the next Start.
func (s *Scheduler[P]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Running {
		applog.Logger().Info("phase: scheduler stopped", "variant", s.variant.Name)
	}
	s.stopLocked()
}

func (s *Scheduler[P]) stopLocked() {
	for _, t := range []*host.Timer{&s.startTimer, &s.ticker, &s.clearTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
	s.state.Running = false
	s.state.Transitioning = false
}

// State returns a snapshot of the scheduler state.
func (s *Scheduler[P]) State() State[P] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// tick advances the state machine once. A panic or a publish failure stops
// the scheduler.
func (s *Scheduler[P]) tick(gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			applog.Logger().Error("phase: tick panicked, stopping", "variant", s.variant.Name, "panic", r)
			s.stopGen(gen)
		}
	}()

	if !s.pub.Dynamic() {
		return
	}

	v, ok := s.advance(gen)
	if !ok {
		return
	}
	if err := s.pub.Publish(v); err != nil {
		applog.Logger().Error("phase: publish failed, stopping", "variant", s.variant.Name, "err", err)
		s.stopGen(gen)
	}
}

func (s *Scheduler[P]) advance(gen uint64) (params.Vector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.state.Running {
		return params.Vector{}, false
	}
	return s.advanceLocked(s.host.Now(), gen), true
}

func (s *Scheduler[P]) stopGen(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.stopLocked()
	}
}

// advanceLocked updates progress, commits a phase when the cycle is over
// and returns the vector to publish.
func (s *Scheduler[P]) advanceLocked(now time.Time, gen uint64) params.Vector {
	st := &s.state
	hour := now.In(s.opts.loc).Hour()

	elapsed := now.Sub(st.PhaseStart)
	st.Progress = float32(min(elapsed.Seconds()/s.opts.cycle.Seconds(), 1))
	st.TimeOfDay = TimeOfDayAt(hour)

	if st.Progress >= 1 && !st.Transitioning {
		st.Current = st.Next
		st.Next = s.variant.Next(st.Current, hour, s.opts.rand())
		st.PhaseStart = now
		st.Progress = 0
		elapsed = 0

		maxShift := float64(st.Next.Profile().Variation)
		st.Drift += float32(s.opts.rand()*maxShift*2 - maxShift)
		st.Drift = clamp(st.Drift, s.variant.DriftMin, s.variant.DriftMax)

		st.Transitioning = true
		if s.clearTimer != nil {
			s.clearTimer.Stop()
		}
		s.clearTimer = s.host.AfterFunc(s.opts.transition, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.gen == gen {
				s.state.Transitioning = false
				s.clearTimer = nil
			}
		})

		applog.Logger().Info("phase: committed",
			"variant", s.variant.Name, "phase", st.Current.String(),
			"next", st.Next.String(), "drift", st.Drift)
	}

	tp, _ := s.tween.Set(float32(elapsed.Seconds()))
	st.TransitionProgress = tp

	nowMs := float64(now.UnixMilli())
	wobble := float32(math.Sin(nowMs / wobblePeriodMs))
	sway := float32(math.Sin(nowMs/fluctuationMs) * fluctuation)

	cur, next := st.Current.Profile(), st.Next.Profile()
	var v params.Vector
	if st.Transitioning && tp < 1 {
		v = blend(cur, next, st.Drift, wobble, tp)
	} else {
		v = steady(cur, st.Drift, wobble, sway)
	}

	mods := st.TimeOfDay.Mods()
	v.Intensity *= mods.Light
	v.Ambient *= mods.Ambient

	v = s.clampVector(v)
	v.Trigger = next.Trigger > triggerMinimum && s.pub.TriggerEnabled()
	if !s.variant.Tarnish {
		v.Tarnish = 0
	}
	return v
}

// blend interpolates between two profiles at transition progress tp.
func blend(cur, next Profile, drift, wobble, tp float32) params.Vector {
	p := Lerp(cur, next, tp)
	return params.Vector{
		Intensity: p.Intensity,
		Scale:     p.Scale,
		Speed:     p.Speed,
		Volume:    p.Volume,
		Ambient:   p.Ambient,
		Angle:     lerp(drift+wobble*cur.Variation, drift+wobble*next.Variation, tp),
		Tarnish:   lerp(tarnishLow, tarnishHigh, tp),
	}
}

// steady returns a profile with a slow sinusoidal sway applied.
func steady(p Profile, drift, wobble, sway float32) params.Vector {
	return params.Vector{
		Intensity: p.Intensity + sway*p.Intensity*0.3,
		Scale:     p.Scale + sway*0.05,
		Speed:     p.Speed + sway*0.1,
		Volume:    p.Volume,
		Ambient:   p.Ambient,
		Angle:     drift + wobble*p.Variation,
		Tarnish:   tarnishLow + sway*tarnishSwayGain,
	}
}

func (s *Scheduler[P]) clampVector(v params.Vector) params.Vector {
	v.Intensity = clamp(v.Intensity, 0, MaxIntensity)
	v.Scale = clamp(v.Scale, MinScale, MaxScale)
	v.Speed = clamp(v.Speed, MinSpeed, MaxSpeed)
	v.Volume = clamp(v.Volume, 0, MaxVolume)
	v.Ambient = clamp(v.Ambient, 0, MaxAmbient)
	v.Angle = clamp(v.Angle, s.variant.DriftMin, s.variant.DriftMax)
	v.Tarnish = clamp(v.Tarnish, 0, 1)
	return v
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}
