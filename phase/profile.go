// Package phase drives a continuous-time environment simulation as a
// discrete phase state machine.
//
// A Scheduler cycles through the phases of one Variant (weather or
// mechanical). Each phase maps to a fixed Profile. Phase changes are drawn
// from a weighted policy biased by the hour of day, and the published
// params.Vector is blended between profiles across a transition window and
// modulated by time of day.
package phase

import (
	"fmt"

	"github.com/tanema/gween/ease"
)

// Profile is the fixed parameter set of one phase.
type Profile struct {
	Intensity float32
	Scale     float32
	Speed     float32
	Volume    float32

	// Ambient is mist for weather and steam for the mechanical variant.
	Ambient float32

	// Variation bounds the drift perturbation on commit and scales the
	// diurnal wobble.
	Variation float32

	// Trigger is the threshold-event likelihood: thunder for weather,
	// mechanical effects otherwise. Events are enabled above 0.05.
	Trigger float32
}

// Lerp blends from a to b. t is not clamped.
func Lerp(a, b Profile, t float32) Profile {
	return Profile{
		Intensity: lerp(a.Intensity, b.Intensity, t),
		Scale:     lerp(a.Scale, b.Scale, t),
		Speed:     lerp(a.Speed, b.Speed, t),
		Volume:    lerp(a.Volume, b.Volume, t),
		Ambient:   lerp(a.Ambient, b.Ambient, t),
		Variation: lerp(a.Variation, b.Variation, t),
		Trigger:   lerp(a.Trigger, b.Trigger, t),
	}
}

func lerp(a, b, t float32) float32 {
	return ease.Linear(t, a, b-a, 1)
}

// TimeOfDay is a coarse band of the wall-clock hour.
type TimeOfDay int

const (
	Dawn TimeOfDay = iota
	Morning
	Afternoon
	Dusk
	Night
	numTimesOfDay
)

var timeOfDayNames = [numTimesOfDay]string{"DAWN", "MORNING", "AFTERNOON", "DUSK", "NIGHT"}

func (t TimeOfDay) String() string {
	if t < 0 || t >= numTimesOfDay {
		return fmt.Sprintf("TimeOfDay(%d)", int(t))
	}
	return timeOfDayNames[t]
}

// TimeOfDayAt returns the band containing hour (0-23).
func TimeOfDayAt(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 8:
		return Dawn
	case hour >= 8 && hour < 12:
		return Morning
	case hour >= 12 && hour < 17:
		return Afternoon
	case hour >= 17 && hour < 21:
		return Dusk
	default:
		return Night
	}
}

// TimeMods are the multipliers applied to published intensity and ambient
// strength.
type TimeMods struct {
	Light   float32
	Ambient float32
}

var timeMods = [numTimesOfDay]TimeMods{
	Dawn:      {Light: 0.6, Ambient: 1.2},
	Morning:   {Light: 0.8, Ambient: 0.9},
	Afternoon: {Light: 1.0, Ambient: 0.7},
	Dusk:      {Light: 0.7, Ambient: 1.1},
	Night:     {Light: 0.4, Ambient: 1.5},
}

// Mods returns the modifiers of t. An out-of-range value gets neutral
// modifiers.
func (t TimeOfDay) Mods() TimeMods {
	if t < 0 || t >= numTimesOfDay {
		return TimeMods{Light: 1, Ambient: 1}
	}
	return timeMods[t]
}
