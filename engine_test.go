package envfx

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/envfx/config"
	"github.com/gogpu/envfx/effect"
	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/internal/halgpu"
	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/phase"
	"github.com/gogpu/envfx/render"
)

var epoch = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

// mapDecoder serves images by name. Unknown names fail.
type mapDecoder map[string]*image.NRGBA

func (d mapDecoder) Decode(_ context.Context, src string) (*image.NRGBA, error) {
	img, ok := d[src]
	if !ok {
		return nil, errors.New("not found: " + src)
	}
	return img, nil
}

func lightmapImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	for y := 100; y < 120; y++ {
		for x := 100; x < 120; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

type testEngine struct {
	*Engine
	host     *host.Manual
	provider *halgpu.Provider
}

func newTestEngine(t *testing.T, cfg *config.Config, dec mapDecoder) *testEngine {
	t.Helper()
	m := host.NewManual(epoch)
	p := halgpu.NewProvider(halgpu.WithBackend(noop.API{}), halgpu.WithNotify(func(fn func()) { fn() }))
	t.Cleanup(p.Close)
	e, err := New(cfg, WithHost(m), WithProvider(p), WithDecoder(dec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return &testEngine{Engine: e, host: m, provider: p}
}

func testConfig(variant string) *config.Config {
	c := config.Default()
	c.Variant = variant
	c.Preset = "normal"
	if variant == config.VariantMechanical {
		c.Preset = "moderate"
	}
	c.Surface = config.SurfaceConfig{Width: 1024, Height: 512}
	return c
}

// skipCompile skips when naga cannot yet compile a shader feature.
func skipCompile(t *testing.T, err error) {
	t.Helper()
	var ce *render.ShaderCompileError
	if !errors.As(err, &ce) {
		return
	}
	msg := ce.Diagnostics
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "lowering error") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"variant", func(c *config.Config) { c.Variant = "snow" }},
		{"preset", func(c *config.Config) { c.Preset = "overdrive" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.modify(c)
			e, err := New(c, WithHost(host.NewManual(epoch)))
			if err == nil {
				e.Close()
				t.Fatal("New() succeeded")
			}
			if e != nil {
				t.Error("New() returned an engine with an error")
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	e, err := New(nil, WithHost(host.NewManual(epoch)))
	if err != nil {
		t.Fatalf("New(nil) error = %v", err)
	}
	defer e.Close()
	if e.Config().Variant != config.VariantRain {
		t.Errorf("variant = %q, want rain", e.Config().Variant)
	}
	if e.Steam() != nil {
		t.Error("rain engine has a steam effect")
	}
	if !e.Store().Dynamic() {
		t.Error("store is not dynamic without manual mode")
	}
	if e.Phase() == "" {
		t.Error("Phase() is empty")
	}
}

func TestEngineRain(t *testing.T) {
	c := testConfig(config.VariantRain)
	c.Assets.Lightmap = "lights"
	c.Assets.Background = "missing"
	e := newTestEngine(t, c, mapDecoder{"lights": lightmapImage()})

	err := e.Start(context.Background())

	if n := e.Registry().Len(); n != 1 {
		t.Fatalf("Registry().Len() = %d, want 1", n)
	}
	l, _ := e.Registry().Get(0)
	if l.Position != [2]float32{220, 110} {
		t.Errorf("light position = %v, want [220 110]", l.Position)
	}
	if err != nil {
		skipCompile(t, err)
		t.Fatalf("Start() error = %v", err)
	}

	pls := e.Pipelines()
	if len(pls) != 1 || pls[0].Label() != "rain" {
		t.Fatalf("pipelines = %d, want the rain pipeline", len(pls))
	}
	for range 3 {
		e.host.Advance(16 * time.Millisecond)
		e.host.Frame()
	}
	if got := pls[0].Frames(); got != 3 {
		t.Errorf("Frames() = %d, want 3", got)
	}

	if err := e.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start() error = %v, want ErrStarted", err)
	}

	e.Close()
	if got := pls[0].State(); got != render.Abandoned {
		t.Errorf("State() after Close = %v, want Abandoned", got)
	}
	if n := e.Registry().Len(); n != 0 {
		t.Errorf("Registry().Len() after Close = %d, want 0", n)
	}
	if n := e.provider.Contexts(); n != 0 {
		t.Errorf("Contexts() after Close = %d, want 0", n)
	}
	if n := e.host.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers() after Close = %d, want 0", n)
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
}

func TestEngineCenterLightFallback(t *testing.T) {
	for _, lightmap := range []string{"", "missing"} {
		c := testConfig(config.VariantRain)
		c.Assets.Lightmap = lightmap
		e := newTestEngine(t, c, mapDecoder{})

		e.installLights(e.detectLights(context.Background()))
		l, ok := e.Registry().Get(0)
		if !ok || e.Registry().Len() != 1 {
			t.Fatalf("lightmap %q: Len() = %d, want 1", lightmap, e.Registry().Len())
		}
		if want := light.CenterLight(1024, 512); l != want {
			t.Errorf("lightmap %q: light = %+v, want %+v", lightmap, l, want)
		}
	}
}

func TestEngineMechanical(t *testing.T) {
	c := testConfig(config.VariantMechanical)
	c.Manual = true
	c.Assets.GearMap = "gears"
	gears := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	e := newTestEngine(t, c, mapDecoder{"gears": gears})

	if e.Steam() == nil {
		t.Fatal("mechanical engine has no steam effect")
	}
	if e.Store().Dynamic() {
		t.Error("store is dynamic in manual mode")
	}

	if err := e.Start(context.Background()); err != nil {
		skipCompile(t, err)
		t.Fatalf("Start() error = %v", err)
	}
	pls := e.Pipelines()
	if len(pls) != 2 || pls[0].Label() != "steampunk" || pls[1].Label() != "steam" {
		t.Fatalf("unexpected pipelines: %d", len(pls))
	}
	if n := e.provider.Contexts(); n != 2 {
		t.Errorf("Contexts() = %d, want 2", n)
	}
	// Manual mode leaves only the steam burst timer pending.
	if n := e.host.PendingTimers(); n != 1 {
		t.Errorf("PendingTimers() = %d, want 1", n)
	}

	if err := e.Resize(640, 360); err != nil {
		t.Errorf("Resize() error = %v", err)
	}
	e.host.Advance(16 * time.Millisecond)
	e.host.Frame()
	for _, p := range pls {
		if p.Frames() != 1 {
			t.Errorf("%s: Frames() = %d, want 1", p.Label(), p.Frames())
		}
	}
}

func TestEngineTriggerConfig(t *testing.T) {
	// A scheduler that never leaves the thunderstorm.
	storm := phase.WeatherVariant
	storm.Initial = phase.Thunderstorm
	storm.Next = func(phase.Weather, int, float64) phase.Weather { return phase.Thunderstorm }

	for _, enabled := range []bool{true, false} {
		c := testConfig(config.VariantRain)
		c.Trigger = &enabled
		e := newTestEngine(t, c, mapDecoder{})
		if got := e.Store().TriggerEnabled(); got != enabled {
			t.Errorf("trigger %v: Store().TriggerEnabled() = %v", enabled, got)
		}

		s := phase.New(e.host, e.Store(), storm,
			phase.WithStartDelay(time.Second), phase.WithTick(time.Second), phase.WithLocation(time.UTC))
		s.Start()
		e.host.Advance(3 * time.Second)
		s.Stop()

		if got := e.Store().Get().Trigger; got != enabled {
			t.Errorf("trigger %v: published Trigger = %v during a thunderstorm", enabled, got)
		}
	}
}

// blockingDecoder holds every Decode until release is closed.
type blockingDecoder struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (d *blockingDecoder) Decode(ctx context.Context, src string) (*image.NRGBA, error) {
	d.once.Do(func() { close(d.started) })
	select {
	case <-d.release:
		return lightmapImage(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestEngineCloseDuringLightDetection(t *testing.T) {
	c := testConfig(config.VariantMechanical)
	c.Assets.Lightmap = "lights"
	dec := &blockingDecoder{started: make(chan struct{}), release: make(chan struct{})}
	m := host.NewManual(epoch)
	p := halgpu.NewProvider(halgpu.WithBackend(noop.API{}), halgpu.WithNotify(func(fn func()) { fn() }))
	t.Cleanup(p.Close)
	e, err := New(c, WithHost(m), WithProvider(p), WithDecoder(dec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background()) }()
	<-dec.started
	e.Close()
	close(dec.release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("Start() error = %v, want ErrClosed", err)
	}
	if n := m.PendingTimers(); n != 0 {
		t.Errorf("PendingTimers() = %d after Close, want 0", n)
	}
	if n := e.Registry().Len(); n != 0 {
		t.Errorf("Registry().Len() = %d after Close, want 0", n)
	}
	if n := len(e.Pipelines()); n != 0 {
		t.Errorf("Pipelines() = %d after Close, want 0", n)
	}
	if n := p.Contexts(); n != 0 {
		t.Errorf("Contexts() = %d after Close, want 0", n)
	}
}

func TestEngineMotionBackground(t *testing.T) {
	c := testConfig(config.VariantRain)
	c.Surface = config.SurfaceConfig{Width: 64, Height: 32}
	c.Assets.Background = "assets/rain.webm?v=2"
	e := newTestEngine(t, c, mapDecoder{})

	if _, ok := e.MotionSource(c.Assets.Background); ok {
		t.Error("MotionSource() exists before Start")
	}
	if err := e.Start(context.Background()); err != nil {
		skipCompile(t, err)
		t.Fatalf("Start() error = %v", err)
	}
	m, ok := e.MotionSource(c.Assets.Background)
	if !ok {
		t.Fatal("no MotionSource for a webm background")
	}
	if got := m.Size(); got != image.Pt(64, 32) {
		t.Errorf("Size() = %v, want 64x32", got)
	}
	if err := m.PushFrame(make([]byte, 64*32*4)); err != nil {
		t.Fatalf("PushFrame() error = %v", err)
	}
	e.host.Advance(16 * time.Millisecond)
	e.host.Frame()
	if got := e.Pipelines()[0].Frames(); got != 1 {
		t.Errorf("Frames() = %d, want 1", got)
	}
}

func TestEngineMotionMaskSize(t *testing.T) {
	c := testConfig(config.VariantMechanical)
	c.Assets.SteamMap = "steam.mp4"
	e := newTestEngine(t, c, mapDecoder{})

	src := e.source(context.Background(), c.Assets.SteamMap, effect.FallbackSteamMap, effect.MaskSize)
	if !src.Motion() {
		t.Fatal("mp4 steam map is not a motion source")
	}
	if got := src.Size(); got != image.Pt(effect.MaskSize, effect.MaskSize) {
		t.Errorf("Size() = %v, want %dx%d", got, effect.MaskSize, effect.MaskSize)
	}
	if _, ok := e.MotionSource("steam.mp4"); !ok {
		t.Error("MotionSource() does not return the steam map sink")
	}
}

func TestFitDecoder(t *testing.T) {
	dec := fitDecoder{dec: mapDecoder{"a": image.NewNRGBA(image.Rect(0, 0, 10, 20))}, size: 32}
	img, err := dec.Decode(context.Background(), "a")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("bounds = %v, want 32x32", b)
	}
	if _, err := dec.Decode(context.Background(), "b"); err == nil {
		t.Error("Decode() of a missing image succeeded")
	}
}
