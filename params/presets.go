package params

// Rain presets.
var (
	RainNormal   = Vector{Intensity: 0.6, Scale: 0.8, Speed: 0.9, Volume: 40, Ambient: 0.5, Angle: -3}
	RainSlow     = Vector{Intensity: 0.3, Scale: 0.6, Speed: 0.5, Volume: 20, Ambient: 0.4, Angle: -2}
	RainHeavy    = Vector{Intensity: 1.2, Scale: 1.1, Speed: 1.3, Volume: 70, Ambient: 0.7, Angle: -8}
	RainDownpour = Vector{Intensity: 2.0, Scale: 1.4, Speed: 1.8, Volume: 90, Ambient: 0.9, Angle: -12, Trigger: true}
)

// Mechanical presets. Intensity is gear density, Speed is piston speed
// and Ambient is steam.
var (
	MechanicalGentle     = Vector{Intensity: 0.2, Scale: 1.6, Speed: 0.2, Volume: 25, Ambient: 0.2, Angle: 3, Tarnish: 0.3}
	MechanicalModerate   = Vector{Intensity: 0.5, Scale: 1.3, Speed: 0.6, Volume: 45, Ambient: 0.4, Angle: 5, Tarnish: 0.3}
	MechanicalIndustrial = Vector{Intensity: 0.9, Scale: 1.0, Speed: 1.2, Volume: 70, Ambient: 0.8, Angle: 8, Tarnish: 0.5}
	MechanicalOverdrive  = Vector{Intensity: 1.5, Scale: 0.8, Speed: 2.0, Volume: 90, Ambient: 1.2, Angle: 12, Tarnish: 0.7, Trigger: true}
)

var presets = map[string]Vector{
	"rain/normal":           RainNormal,
	"rain/slow":             RainSlow,
	"rain/heavy":            RainHeavy,
	"rain/downpour":         RainDownpour,
	"mechanical/gentle":     MechanicalGentle,
	"mechanical/moderate":   MechanicalModerate,
	"mechanical/industrial": MechanicalIndustrial,
	"mechanical/overdrive":  MechanicalOverdrive,
}

// Preset looks up a preset by "variant/name", for example "rain/heavy".
func Preset(name string) (Vector, bool) {
	v, ok := presets[name]
	return v, ok
}
