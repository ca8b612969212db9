package effect

import (
	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/render"
)

// SteampunkUniformSize is the byte size of the steampunk uniform block.
const SteampunkUniformSize = 48

// BrassColor is the untarnished brass tint of the gears.
var BrassColor = [3]float32{0.7, 0.5, 0.2}

// Steampunk texture slots.
const (
	SlotBackground = iota
	SlotGearMap
	SlotLightMap
	SlotSteamMap
)

// Steampunk draws turning brass gears and rising steam over a lit
// background, masked by the gear and steam maps.
//
// Params mapping: Intensity is gear density, Scale is gear scale, Speed is
// piston speed, Tarnish is brass tarnish and Ambient is steam.
type Steampunk struct {
	brass [3]float32
}

// NewSteampunk returns the steampunk effect with the default brass color.
func NewSteampunk() *Steampunk { return &Steampunk{brass: BrassColor} }

// Program implements render.Effect.
func (*Steampunk) Program() render.Program {
	return render.Program{
		Label:        "steampunk",
		Source:       steampunkSource,
		UniformSize:  SteampunkUniformSize,
		TextureSlots: 4,
		Lights:       light.MaxLights,
	}
}

// PackUniforms implements render.Effect.
func (s *Steampunk) PackUniforms(dst []byte, in render.FrameInput) {
	clear(dst)
	p := in.Params
	put(dst, 0, in.Resolution[0])
	put(dst, 4, in.Resolution[1])
	put(dst, 8, in.Time)
	put(dst, 12, p.Intensity)
	put(dst, 16, p.Scale)
	put(dst, 20, p.Speed)
	put(dst, 24, p.Tarnish)
	put(dst, 28, p.Ambient)
	put(dst, 32, s.brass[0])
	put(dst, 36, s.brass[1])
	put(dst, 40, s.brass[2])
}
