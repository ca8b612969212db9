package effect

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/params"
	"github.com/gogpu/envfx/render"
)

var epoch = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newTestSteam(opts ...SteamOption) (*Steam, *host.Manual) {
	m := host.NewManual(epoch)
	opts = append([]SteamOption{WithSteamRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	return NewSteam(m, opts...), m
}

func TestSteamTriggerLimit(t *testing.T) {
	s, _ := newTestSteam()
	for i := 0; i < MaxBursts; i++ {
		if !s.Trigger() {
			t.Fatalf("Trigger() #%d = false, want true", i+1)
		}
	}
	if s.Trigger() {
		t.Error("Trigger() beyond MaxBursts = true, want false")
	}
	if n := len(s.Bursts()); n != MaxBursts {
		t.Errorf("len(Bursts()) = %d, want %d", n, MaxBursts)
	}
}

func TestSteamBurstLifetime(t *testing.T) {
	s, m := newTestSteam()
	s.Trigger()

	b := s.Bursts()
	if len(b) != 1 {
		t.Fatalf("len(Bursts()) = %d, want 1", len(b))
	}
	if b[0].Progress != 0 {
		t.Errorf("initial progress = %v, want 0", b[0].Progress)
	}
	if b[0].Intensity < 0.8 || b[0].Intensity > 1.2 {
		t.Errorf("intensity = %v, want [0.8, 1.2]", b[0].Intensity)
	}

	m.Advance(1500 * time.Millisecond)
	mid := s.Bursts()[0].Progress
	// OutQuad is ahead of linear at the midpoint.
	if mid <= 0.5 || mid >= 1 {
		t.Errorf("progress at half time = %v, want (0.5, 1)", mid)
	}

	m.Advance(1499 * time.Millisecond)
	if n := len(s.Bursts()); n != 1 {
		t.Errorf("burst expired early: %d active", n)
	}
	m.Advance(time.Millisecond)
	if n := len(s.Bursts()); n != 0 {
		t.Errorf("len(Bursts()) after %v = %d, want 0", BurstDuration, n)
	}
	if !s.Trigger() {
		t.Error("Trigger() after expiry = false, want true")
	}
}

func TestSteamSchedule(t *testing.T) {
	s, m := newTestSteam()
	s.Start()
	s.Start()
	if n := m.PendingTimers(); n != 1 {
		t.Fatalf("PendingTimers() = %d, want 1", n)
	}

	m.Advance(MinBurstInterval - time.Millisecond)
	if n := len(s.Bursts()); n != 0 {
		t.Fatalf("burst before %v", MinBurstInterval)
	}

	fired := 0
	for step := MinBurstInterval; step <= MaxBurstInterval; step += 100 * time.Millisecond {
		m.Advance(100 * time.Millisecond)
		if len(s.Bursts()) > 0 {
			fired++
			break
		}
	}
	if fired == 0 {
		t.Fatalf("no burst within %v", MaxBurstInterval)
	}
	if n := m.PendingTimers(); n != 1 {
		t.Errorf("PendingTimers() after burst = %d, want 1", n)
	}

	s.Stop()
	if n := m.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers() after Stop = %d, want 0", n)
	}
	m.Advance(time.Minute)
	if n := len(s.Bursts()); n != 0 {
		t.Errorf("len(Bursts()) after Stop = %d, want 0", n)
	}
}

func TestSteamPackUniforms(t *testing.T) {
	settings := SteamSettings{Speed: 1.5, Density: 0.5, Turbulence: 2, Height: 0.8, Dissipation: 1.2}
	s, m := newTestSteam(WithSteamSettings(settings))
	s.Trigger()
	s.Trigger()
	m.Advance(time.Second)

	dst := make([]byte, SteamUniformSize)
	in := render.FrameInput{
		Time:       3,
		Resolution: [2]float32{320, 240},
		Params:     params.Vector{Ambient: 2},
	}
	s.PackUniforms(dst, in)

	want := map[int]float32{
		0: 320, 4: 240, 8: 3,
		12: 1.5, 16: 1, 20: 2, 24: 0.8, 28: 1.2,
	}
	for off, v := range want {
		if got := get(dst, off); got != v {
			t.Errorf("offset %d = %v, want %v", off, got, v)
		}
	}

	bursts := s.Bursts()
	for i := 0; i < MaxBursts; i++ {
		off := 32 + i*16
		if i >= len(bursts) {
			if get(dst, off) != 0 {
				t.Errorf("slot %d active, want inactive", i)
			}
			continue
		}
		if get(dst, off) != 1 {
			t.Errorf("slot %d inactive, want active", i)
		}
		if got := get(dst, off+4); got != float32(bursts[i].Side) {
			t.Errorf("slot %d side = %v, want %v", i, got, bursts[i].Side)
		}
		if got := get(dst, off+8); got != bursts[i].Progress {
			t.Errorf("slot %d progress = %v, want %v", i, got, bursts[i].Progress)
		}
	}

	// Without ambient the configured density is used as is.
	s.PackUniforms(dst, render.FrameInput{})
	if got := get(dst, 16); got != 0.5 {
		t.Errorf("density without ambient = %v, want 0.5", got)
	}
}

func TestSideString(t *testing.T) {
	if Left.String() != "left" || Right.String() != "right" {
		t.Errorf("Side strings = %q, %q", Left, Right)
	}
}
