package phase

import "fmt"

// Weather is a phase of the rain variant.
type Weather int

const (
	Drizzle Weather = iota
	LightRain
	HeavyRain
	Downpour
	Thunderstorm
	Clearing
	numWeather
)

var weatherNames = [numWeather]string{
	"DRIZZLE", "LIGHT_RAIN", "HEAVY_RAIN", "DOWNPOUR", "THUNDERSTORM", "CLEARING",
}

var weatherProfiles = [numWeather]Profile{
	Drizzle:      {Intensity: 0.3, Scale: 0.6, Speed: 0.6, Volume: 20, Ambient: 0.4, Variation: 5, Trigger: 0},
	LightRain:    {Intensity: 0.6, Scale: 0.8, Speed: 0.9, Volume: 40, Ambient: 0.5, Variation: 8, Trigger: 0.01},
	HeavyRain:    {Intensity: 1.2, Scale: 1.1, Speed: 1.3, Volume: 70, Ambient: 0.7, Variation: 12, Trigger: 0.04},
	Downpour:     {Intensity: 2.0, Scale: 1.4, Speed: 1.8, Volume: 90, Ambient: 0.9, Variation: 15, Trigger: 0.06},
	Thunderstorm: {Intensity: 1.6, Scale: 1.2, Speed: 1.6, Volume: 85, Ambient: 0.8, Variation: 15, Trigger: 0.2},
	Clearing:     {Intensity: 0.15, Scale: 0.5, Speed: 0.5, Volume: 10, Ambient: 0.3, Variation: 3, Trigger: 0},
}

func (w Weather) String() string {
	if w < 0 || w >= numWeather {
		return fmt.Sprintf("Weather(%d)", int(w))
	}
	return weatherNames[w]
}

// Profile implements Phase.
func (w Weather) Profile() Profile {
	if w < 0 || w >= numWeather {
		return weatherProfiles[LightRain]
	}
	return weatherProfiles[w]
}

// NextWeather draws the phase that follows current. r is a uniform draw in
// [0,1). Storms are likelier in the afternoon and clearing at night.
func NextWeather(current Weather, hour int, r float64) Weather {
	storm := 0.15
	if hour >= 12 && hour <= 18 {
		storm = 0.3
	}
	clearing := 0.15
	if hour >= 21 || hour <= 6 {
		clearing = 0.4
	}

	switch current {
	case Drizzle:
		switch {
		case r < 0.4:
			return LightRain
		case r < 0.7:
			return Clearing
		}
		return Drizzle
	case LightRain:
		switch {
		case r < 0.25:
			return Drizzle
		case r < 0.45:
			return HeavyRain
		case r < 0.45+storm:
			return Thunderstorm
		case r < 0.7+storm:
			return Clearing
		}
		return LightRain
	case HeavyRain:
		switch {
		case r < 0.2:
			return LightRain
		case r < 0.4:
			return Downpour
		case r < 0.4+storm:
			return Thunderstorm
		case r < 0.6+storm:
			return Clearing
		}
		return HeavyRain
	case Downpour:
		switch {
		case r < 0.25:
			return HeavyRain
		case r < 0.25+storm:
			return Thunderstorm
		case r < 0.5+storm:
			return Clearing
		}
		return Downpour
	case Thunderstorm:
		switch {
		case r < 0.5:
			return HeavyRain
		case r < 0.7:
			return Downpour
		}
		return Clearing
	case Clearing:
		switch {
		case r < clearing:
			return Drizzle
		case r < clearing+0.3:
			return LightRain
		}
		return Clearing
	}
	return LightRain
}

// WeatherVariant is the rain variant: starts in LightRain with a wind
// angle of -3 degrees, drift clamped to [-45,45].
var WeatherVariant = Variant[Weather]{
	Name:       "weather",
	Initial:    LightRain,
	DriftStart: -3,
	DriftMin:   -45,
	DriftMax:   45,
	Next:       NextWeather,
}
