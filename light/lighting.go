package light

import "math"

// Ease is the smoothstep falloff t²(3-2t) applied to the linear distance
// ratio. Ease(0) == 0 and Ease(1) == 1 exactly.
func Ease(t float32) float32 {
	return t * t * (3 - 2*t)
}

// Attenuation returns the eased contribution factor of l at point p, in 0..1.
// Lights with a non-positive radius contribute nothing.
func Attenuation(p [2]float32, l Light) float32 {
	if l.Radius <= 0 {
		return 0
	}
	dx := float64(p[0] - l.Position[0])
	dy := float64(p[1] - l.Position[1])
	t := 1 - float32(math.Hypot(dx, dy))/l.Radius
	if t <= 0 {
		return 0
	}
	return Ease(t)
}

// LightUp returns the summed illumination of lights at p. It is the CPU
// reference for the fragment programs' lighting loop.
func LightUp(p [2]float32, lights []Light) [3]float32 {
	var out [3]float32
	for _, l := range lights {
		a := Attenuation(p, l)
		if a == 0 {
			continue
		}
		out[0] += a * l.Color[0]
		out[1] += a * l.Color[1]
		out[2] += a * l.Color[2]
	}
	return out
}
