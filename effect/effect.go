// Package effect provides the procedural effect programs: rain over a lit
// background, steampunk machinery, and steam bursts.
//
// Each effect is a render.Effect: an embedded WGSL program plus a packer
// that turns the frame's params.Vector into the program's uniform block.
// Uniform layouts follow WGSL uniform address space rules; the byte offset
// of each field is noted beside its put call.
package effect

import (
	_ "embed"
	"encoding/binary"
	"math"
)

//go:embed shaders/rain.wgsl
var rainSource string

//go:embed shaders/steampunk.wgsl
var steampunkSource string

//go:embed shaders/steam.wgsl
var steamSource string

// RainSource returns the WGSL source of the rain program.
func RainSource() string { return rainSource }

// SteampunkSource returns the WGSL source of the steampunk program.
func SteampunkSource() string { return steampunkSource }

// SteamSource returns the WGSL source of the steam program.
func SteamSource() string { return steamSource }

func put(dst []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
}
