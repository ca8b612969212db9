// Package lightmap extracts point lights from lightmap images.
//
// A lightmap is a raster whose bright regions mark where lights sit in a
// scene. Scan groups bright pixels into 4-connected components and turns
// each component into a light.Light:
//
//	img, err := lightmap.NewLoader().Decode(ctx, "assets/lightmap.png")
//	if err != nil {
//	    // fall back to light.CenterLight
//	}
//	lights := lightmap.ScanImage(img, lightmap.DefaultConfig, image.Pt(1920, 1080))
//
// Scanning never fails: an unreadable or empty lightmap yields no lights.
package lightmap

// Detection constants.
const (
	// ScanStride is the sampling interval of the seed grid, in pixels.
	ScanStride = 3

	// AlphaCutoff is the minimum alpha for a pixel to count as lit.
	AlphaCutoff = 128

	// MinComponentPixels is the smallest component that becomes a light.
	MinComponentPixels = 4

	// EdgeMargin discards lights whose center lies this close to an image edge.
	EdgeMargin = 10

	// WarmBiasRange is the channel spread below which a color is treated
	// as near-achromatic and replaced by the warm bias.
	WarmBiasRange = 0.3

	// maxChannel caps the brightest channel of a detected color.
	maxChannel = 0.9
)

// Config controls light detection. It carries no state and is passed by value.
type Config struct {
	// Threshold is the minimum max(r,g,b) for a pixel to count as lit.
	Threshold uint8 `yaml:"threshold"`

	// MinRadius and MaxRadius clamp the derived light radius.
	MinRadius float64 `yaml:"min_radius"`
	MaxRadius float64 `yaml:"max_radius"`

	// RadiusScale multiplies the area-derived radius.
	RadiusScale float64 `yaml:"radius_scale"`

	// MinDistance is the minimum spacing between two kept lights.
	MinDistance float64 `yaml:"min_distance"`
}

// DefaultConfig is the general-purpose detection configuration.
var DefaultConfig = Config{
	Threshold:   30,
	MinRadius:   100,
	MaxRadius:   600,
	RadiusScale: 2.0,
	MinDistance: 50,
}

// EffectConfig is tuned for the lighting-enabled effects, which prefer
// more and smaller lights.
var EffectConfig = Config{
	Threshold:   25,
	MinRadius:   80,
	MaxRadius:   400,
	RadiusScale: 1.8,
	MinDistance: 40,
}
