package effect

import (
	"math"
	"math/rand/v2"

	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/render"
)

// RainUniformSize is the byte size of the rain uniform block.
const RainUniformSize = 48

// Lightning timing. Each window of LightningWindow seconds holds at most
// one flash, with probability LightningChance.
const (
	LightningWindow = 4.0
	LightningChance = 0.1
)

// Rain draws slanted rain streaks and mist over a lit background texture.
//
// Params mapping: Intensity is drop density, Scale is drop size, Speed is
// fall speed, Angle is the wind slant in degrees and Ambient is mist. When
// Trigger is set, lightning flashes are added.
type Rain struct{}

// NewRain returns the rain effect.
func NewRain() *Rain { return &Rain{} }

// Program implements render.Effect. Texture slot 0 is the background.
func (*Rain) Program() render.Program {
	return render.Program{
		Label:        "rain",
		Source:       rainSource,
		UniformSize:  RainUniformSize,
		TextureSlots: 1,
		Lights:       light.MaxLights,
	}
}

// PackUniforms implements render.Effect.
func (*Rain) PackUniforms(dst []byte, in render.FrameInput) {
	clear(dst)
	p := in.Params
	put(dst, 0, in.Resolution[0])
	put(dst, 4, in.Resolution[1])
	put(dst, 8, in.Time)
	put(dst, 12, p.Intensity)
	put(dst, 16, p.Scale)
	put(dst, 20, p.Speed)
	put(dst, 24, p.Angle)
	put(dst, 28, p.Ambient)
	if p.Trigger {
		put(dst, 32, Flash(in.Time))
	}
}

// Flash returns the lightning level at t seconds, in [0,1]. It is a pure
// function of t: every window draws its flash from a generator seeded with
// the window index.
func Flash(t float32) float32 {
	if t < 0 {
		return 0
	}
	n := math.Floor(float64(t) / LightningWindow)
	r := rand.New(rand.NewPCG(uint64(n), 0x9e3779b97f4a7c15))
	if r.Float64() >= LightningChance {
		return 0
	}
	duration := 0.1 + r.Float64()*0.2
	start := n*LightningWindow + r.Float64()*(LightningWindow-duration)
	level := 0.2 + r.Float64()*0.8

	at := float64(t)
	if at < start || at >= start+duration {
		return 0
	}
	return float32(level)
}
