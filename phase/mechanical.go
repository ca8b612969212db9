package phase

import "fmt"

// Mechanical is a phase of the steampunk workshop variant.
type Mechanical int

const (
	Calm Mechanical = iota
	Activating
	FullOperation
	Overdrive
	CoolingDown
	numMechanical
)

var mechanicalNames = [numMechanical]string{
	"CALM", "ACTIVATING", "FULL_OPERATION", "OVERDRIVE", "COOLING_DOWN",
}

// Intensity is gear density, Scale gear scale, Speed piston speed and
// Ambient steam.
var mechanicalProfiles = [numMechanical]Profile{
	Calm:          {Intensity: 0.2, Scale: 1.6, Speed: 0.2, Volume: 25, Ambient: 0.2, Variation: 2, Trigger: 0.01},
	Activating:    {Intensity: 0.5, Scale: 1.3, Speed: 0.6, Volume: 45, Ambient: 0.4, Variation: 5, Trigger: 0.03},
	FullOperation: {Intensity: 0.9, Scale: 1.0, Speed: 1.2, Volume: 70, Ambient: 0.8, Variation: 8, Trigger: 0.08},
	Overdrive:     {Intensity: 1.5, Scale: 0.8, Speed: 2.0, Volume: 90, Ambient: 1.2, Variation: 12, Trigger: 0.15},
	CoolingDown:   {Intensity: 0.3, Scale: 1.7, Speed: 0.3, Volume: 20, Ambient: 0.3, Variation: 3, Trigger: 0.005},
}

func (m Mechanical) String() string {
	if m < 0 || m >= numMechanical {
		return fmt.Sprintf("Mechanical(%d)", int(m))
	}
	return mechanicalNames[m]
}

// Profile implements Phase.
func (m Mechanical) Profile() Profile {
	if m < 0 || m >= numMechanical {
		return mechanicalProfiles[Activating]
	}
	return mechanicalProfiles[m]
}

// NextMechanical draws the phase that follows current. r is a uniform draw
// in [0,1). Overdrive is likelier in the afternoon and cooling at night.
func NextMechanical(current Mechanical, hour int, r float64) Mechanical {
	overdrive := 0.15
	if hour >= 14 && hour <= 18 {
		overdrive = 0.25
	}
	cooling := 0.2
	if hour >= 22 || hour <= 6 {
		cooling = 0.35
	}

	switch current {
	case Calm:
		switch {
		case r < 0.4:
			return Activating
		case r < 0.7:
			return CoolingDown
		}
		return Calm
	case Activating:
		switch {
		case r < 0.25:
			return Calm
		case r < 0.45:
			return FullOperation
		case r < 0.45+overdrive:
			return Overdrive
		case r < 0.7+overdrive:
			return CoolingDown
		}
		return Activating
	case FullOperation:
		switch {
		case r < 0.2:
			return Activating
		case r < 0.4+overdrive:
			return Overdrive
		case r < 0.6+overdrive:
			return CoolingDown
		}
		return FullOperation
	case Overdrive:
		switch {
		case r < 0.5:
			return FullOperation
		case r < 0.7:
			return Overdrive
		}
		return CoolingDown
	case CoolingDown:
		switch {
		case r < cooling:
			return Calm
		case r < cooling+0.3:
			return Activating
		}
		return CoolingDown
	}
	return Activating
}

// MechanicalVariant is the workshop variant: starts Activating with a gear
// variation of 5, drift clamped to [2,20]. It also publishes brass
// tarnish.
var MechanicalVariant = Variant[Mechanical]{
	Name:       "mechanical",
	Initial:    Activating,
	DriftStart: 5,
	DriftMin:   2,
	DriftMax:   20,
	Next:       NextMechanical,
	Tarnish:    true,
}
