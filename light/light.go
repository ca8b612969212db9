// Package light provides the bounded point-light registry used by the
// lighting-enabled effects, its GPU upload layout, and the reference
// attenuation math the fragment programs reproduce.
//
// Lights live in canvas pixel space with colors normalized to 0..1:
//
//	reg := light.NewRegistry()
//	reg.Add(light.Light{Position: [2]float32{320, 240}, Color: light.WarmWhite, Radius: light.SizeMedium})
//	block := light.NewBlock(reg.Cap())
//	reg.Upload(block)
//	queue.WriteBuffer(buf, 0, block.Bytes())
package light

// MaxLights is the default registry capacity and the array length the
// effect programs are compiled with.
const MaxLights = 200

// Light describes one point light.
type Light struct {
	// Position in canvas pixels, origin top-left.
	Position [2]float32

	// Color is linear RGB in 0..1.
	Color [3]float32

	// Radius is the distance at which the light's contribution reaches zero.
	Radius float32
}

// Preset light colors.
var (
	WarmWhite = [3]float32{1.0, 0.9, 0.7}
	CoolWhite = [3]float32{0.8, 0.9, 1.0}
	Orange    = [3]float32{1.0, 0.6, 0.2}
	Yellow    = [3]float32{1.0, 1.0, 0.3}
	Red       = [3]float32{1.0, 0.3, 0.3}
	Green     = [3]float32{0.3, 1.0, 0.3}
	Blue      = [3]float32{0.3, 0.3, 1.0}
	Purple    = [3]float32{0.8, 0.3, 1.0}
	Cyan      = [3]float32{0.3, 1.0, 1.0}
	Pink      = [3]float32{1.0, 0.5, 0.8}
)

// Preset light radii in pixels.
const (
	SizeSmall  float32 = 150
	SizeMedium float32 = 300
	SizeLarge  float32 = 500
	SizeHuge   float32 = 800
)

// CenterLight returns the single fallback light placed in the middle of a
// width x height canvas. The engine uses it when a lightmap yields nothing.
func CenterLight(width, height int) Light {
	return Light{
		Position: [2]float32{float32(width) / 2, float32(height) / 2},
		Color:    [3]float32{1.0, 0.8, 0.6},
		Radius:   SizeMedium,
	}
}
