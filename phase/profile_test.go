package phase

import (
	"math/rand/v2"
	"testing"
)

func TestTimeOfDayAt(t *testing.T) {
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{0, Night}, {4, Night}, {5, Dawn}, {7, Dawn}, {8, Morning}, {11, Morning},
		{12, Afternoon}, {16, Afternoon}, {17, Dusk}, {20, Dusk}, {21, Night}, {23, Night},
	}
	for _, tt := range tests {
		if got := TimeOfDayAt(tt.hour); got != tt.want {
			t.Errorf("TimeOfDayAt(%d) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestTimeOfDayMods(t *testing.T) {
	if m := Night.Mods(); m.Light != 0.4 || m.Ambient != 1.5 {
		t.Errorf("Night.Mods() = %+v", m)
	}
	if m := TimeOfDay(42).Mods(); m.Light != 1 || m.Ambient != 1 {
		t.Errorf("invalid TimeOfDay mods = %+v, want neutral", m)
	}
	if s := TimeOfDay(42).String(); s != "TimeOfDay(42)" {
		t.Errorf("String() = %q", s)
	}
}

func TestEveryPhaseHasProfile(t *testing.T) {
	for w := Weather(0); w < numWeather; w++ {
		p := w.Profile()
		if p.Scale <= 0 || p.Speed <= 0 || p.Variation <= 0 {
			t.Errorf("%v profile incomplete: %+v", w, p)
		}
		if w.String() == "" {
			t.Errorf("Weather(%d) has no name", w)
		}
	}
	for m := Mechanical(0); m < numMechanical; m++ {
		p := m.Profile()
		if p.Scale <= 0 || p.Speed <= 0 || p.Variation <= 0 || p.Trigger <= 0 {
			t.Errorf("%v profile incomplete: %+v", m, p)
		}
	}
}

func TestNextWeather(t *testing.T) {
	tests := []struct {
		name    string
		current Weather
		hour    int
		r       float64
		want    Weather
	}{
		{"drizzle builds", Drizzle, 10, 0.1, LightRain},
		{"drizzle clears", Drizzle, 10, 0.5, Clearing},
		{"drizzle stays", Drizzle, 10, 0.9, Drizzle},
		{"afternoon storm", LightRain, 14, 0.65, Thunderstorm},
		{"morning clears instead", LightRain, 9, 0.65, Clearing},
		{"light rain stays", LightRain, 9, 0.95, LightRain},
		{"heavy to downpour", HeavyRain, 3, 0.3, Downpour},
		{"downpour storm", Downpour, 13, 0.5, Thunderstorm},
		{"storm always moves", Thunderstorm, 13, 0.99, Clearing},
		{"night drizzle", Clearing, 23, 0.35, Drizzle},
		{"day light rain", Clearing, 12, 0.35, LightRain},
		{"clearing stays", Clearing, 12, 0.9, Clearing},
		{"unknown", Weather(99), 12, 0.5, LightRain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextWeather(tt.current, tt.hour, tt.r); got != tt.want {
				t.Errorf("NextWeather(%v, %d, %v) = %v, want %v", tt.current, tt.hour, tt.r, got, tt.want)
			}
		})
	}
}

func TestNextMechanical(t *testing.T) {
	tests := []struct {
		name    string
		current Mechanical
		hour    int
		r       float64
		want    Mechanical
	}{
		{"calm activates", Calm, 10, 0.2, Activating},
		{"calm cools", Calm, 10, 0.6, CoolingDown},
		{"afternoon overdrive", FullOperation, 15, 0.6, Overdrive},
		{"morning cooling", FullOperation, 10, 0.6, CoolingDown},
		{"activating overdrive", Activating, 16, 0.5, Overdrive},
		{"overdrive holds", Overdrive, 16, 0.6, Overdrive},
		{"night calm", CoolingDown, 23, 0.3, Calm},
		{"day reactivates", CoolingDown, 12, 0.3, Activating},
		{"unknown", Mechanical(-1), 12, 0.5, Activating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextMechanical(tt.current, tt.hour, tt.r); got != tt.want {
				t.Errorf("NextMechanical(%v, %d, %v) = %v, want %v", tt.current, tt.hour, tt.r, got, tt.want)
			}
		})
	}
}

func TestStormBiasByHour(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	count := func(hour int) int {
		n := 0
		for i := 0; i < 20000; i++ {
			if NextWeather(LightRain, hour, r.Float64()) == Thunderstorm {
				n++
			}
		}
		return n
	}
	if day, night := count(15), count(2); day <= night {
		t.Errorf("thunderstorms at 15h = %d, at 2h = %d; want more in the afternoon", day, night)
	}
}

func TestLerp(t *testing.T) {
	a := Profile{Intensity: 0, Scale: 1, Volume: 10}
	b := Profile{Intensity: 2, Scale: 3, Volume: 30}
	got := Lerp(a, b, 0.25)
	if got.Intensity != 0.5 || got.Scale != 1.5 || got.Volume != 15 {
		t.Errorf("Lerp(0.25) = %+v", got)
	}
}
