package effect

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/render"
)

// SteamUniformSize is the byte size of the steam uniform block.
const SteamUniformSize = 80

// Burst scheduling.
const (
	MaxBursts        = 3
	BurstDuration    = 3 * time.Second
	MinBurstInterval = 8 * time.Second
	MaxBurstInterval = 25 * time.Second
)

// Side is the screen edge a burst rises from.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// SteamSettings shapes the plumes.
type SteamSettings struct {
	Speed       float32 `yaml:"speed"`
	Density     float32 `yaml:"density"`
	Turbulence  float32 `yaml:"turbulence"`
	Height      float32 `yaml:"height"`
	Dissipation float32 `yaml:"dissipation"`
}

// DefaultSteamSettings is the neutral plume shape.
var DefaultSteamSettings = SteamSettings{Speed: 1, Density: 1, Turbulence: 1, Height: 1, Dissipation: 1}

// Burst is a snapshot of one active burst.
type Burst struct {
	Side      Side
	Intensity float32

	// Progress is the eased completion in [0,1].
	Progress float32
}

type burst struct {
	side      Side
	intensity float32
	start     time.Time
	tween     *gween.Tween
}

// SteamOption configures a Steam effect.
type SteamOption func(*Steam)

// WithSteamSettings sets the plume shape.
func WithSteamSettings(s SteamSettings) SteamOption {
	return func(st *Steam) {
		st.settings = s
	}
}

// WithSteamRand sets the random source for burst timing, side and
// intensity.
func WithSteamRand(r *rand.Rand) SteamOption {
	return func(st *Steam) {
		if r != nil {
			st.rng = r
		}
	}
}

// Steam renders up to MaxBursts steam plumes. While started, a burst fires
// every MinBurstInterval to MaxBurstInterval from a random side with an
// intensity in [0.8, 1.2], and rises for BurstDuration.
//
// Params mapping: Ambient scales plume density when positive.
type Steam struct {
	host     host.Host
	settings SteamSettings

	mu      sync.Mutex
	rng     *rand.Rand
	bursts  []burst
	timer   host.Timer
	running bool
}

// NewSteam creates a stopped steam effect on h.
func NewSteam(h host.Host, opts ...SteamOption) *Steam {
	s := &Steam{
		host:     h,
		settings: DefaultSteamSettings,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Program implements render.Effect.
func (*Steam) Program() render.Program {
	return render.Program{
		Label:       "steam",
		Source:      steamSource,
		UniformSize: SteamUniformSize,
	}
}

// Start begins scheduling random bursts. Starting a running effect is a
// no-op.
func (s *Steam) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.scheduleLocked()
}

// Stop cancels the burst schedule. Bursts already rising finish.
func (s *Steam) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Steam) scheduleLocked() {
	span := MaxBurstInterval - MinBurstInterval
	delay := MinBurstInterval + time.Duration(s.rng.Int64N(int64(span)+1))
	s.timer = s.host.AfterFunc(delay, s.fire)
}

func (s *Steam) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.triggerLocked()
	s.scheduleLocked()
}

// Trigger starts a burst now. It reports false when MaxBursts are already
// rising.
func (s *Steam) Trigger() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggerLocked()
}

func (s *Steam) triggerLocked() bool {
	s.pruneLocked(s.host.Now())
	if len(s.bursts) >= MaxBursts {
		return false
	}
	side := Left
	if s.rng.Float64() > 0.5 {
		side = Right
	}
	b := burst{
		side:      side,
		intensity: 0.8 + s.rng.Float32()*0.4,
		start:     s.host.Now(),
		tween:     gween.New(0, 1, float32(BurstDuration.Seconds()), ease.OutQuad),
	}
	s.bursts = append(s.bursts, b)
	applog.Logger().Debug("effect: steam burst", "side", side, "intensity", b.intensity)
	return true
}

// pruneLocked drops bursts that have run for BurstDuration.
func (s *Steam) pruneLocked(now time.Time) {
	kept := s.bursts[:0]
	for _, b := range s.bursts {
		if now.Sub(b.start) < BurstDuration {
			kept = append(kept, b)
		}
	}
	clear(s.bursts[len(kept):])
	s.bursts = kept
}

// Bursts returns the bursts rising at the host's current time.
func (s *Steam) Bursts() []Burst {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.host.Now()
	s.pruneLocked(now)
	out := make([]Burst, len(s.bursts))
	for i := range s.bursts {
		out[i] = s.snapshot(&s.bursts[i], now)
	}
	return out
}

func (s *Steam) snapshot(b *burst, now time.Time) Burst {
	progress, _ := b.tween.Set(float32(now.Sub(b.start).Seconds()))
	return Burst{Side: b.side, Intensity: b.intensity, Progress: progress}
}

// PackUniforms implements render.Effect.
func (s *Steam) PackUniforms(dst []byte, in render.FrameInput) {
	clear(dst)
	density := s.settings.Density
	if a := in.Params.Ambient; a > 0 {
		density *= a
	}
	put(dst, 0, in.Resolution[0])
	put(dst, 4, in.Resolution[1])
	put(dst, 8, in.Time)
	put(dst, 12, s.settings.Speed)
	put(dst, 16, density)
	put(dst, 20, s.settings.Turbulence)
	put(dst, 24, s.settings.Height)
	put(dst, 28, s.settings.Dissipation)

	for i, b := range s.Bursts() {
		off := 32 + i*16
		put(dst, off, 1)
		put(dst, off+4, float32(b.Side))
		put(dst, off+8, b.Progress)
		put(dst, off+12, b.Intensity)
	}
}
