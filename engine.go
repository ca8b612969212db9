package envfx

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/envfx/config"
	"github.com/gogpu/envfx/effect"
	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/internal/halgpu"
	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/lightmap"
	"github.com/gogpu/envfx/params"
	"github.com/gogpu/envfx/phase"
	"github.com/gogpu/envfx/render"
)

var (
	// ErrStarted is returned by Start on an engine that was already
	// started.
	ErrStarted = errors.New("envfx: engine already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("envfx: engine closed")
)

type scheduler interface {
	Start()
	Stop()
}

// Engine wires the lightmap, the light registry, the phase scheduler and
// one render pipeline per effect of the configured variant.
type Engine struct {
	cfg      *config.Config
	host     host.Host
	loop     *host.Loop
	provider render.Provider
	owned    *halgpu.Provider
	decoder  lightmap.Decoder
	store    *params.Store
	registry *light.Registry
	sched    scheduler
	phase    func() string
	steam    *effect.Steam

	mu        sync.Mutex
	started   bool
	closed    bool
	pipelines []*render.Pipeline
	motion    map[string]*render.MotionSource
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
}

// New creates a stopped engine for cfg. A nil cfg means config.Default.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("envfx: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:      cfg,
		host:     o.host,
		provider: o.provider,
		decoder:  o.decoder,
		registry: light.NewRegistry(),
	}
	if e.host == nil {
		e.loop = host.NewLoop()
		e.host = e.loop
	}
	if e.provider == nil {
		var popts []halgpu.Option
		if e.loop != nil {
			loop := e.loop
			popts = append(popts, halgpu.WithNotify(func(fn func()) {
				if !loop.Post(fn) {
					applog.Logger().Debug("envfx: loop stopped, notification dropped")
				}
			}))
		}
		e.owned = halgpu.NewProvider(popts...)
		e.provider = e.owned
	}
	if e.decoder == nil {
		e.decoder = lightmap.NewLoader(lightmap.WithCacheSize(cfg.Assets.CacheSize))
	}

	initial, ok := cfg.InitialParams()
	if !ok {
		return nil, fmt.Errorf("envfx: unknown %s preset %q", cfg.Variant, cfg.Preset)
	}
	e.store = params.NewStore(initial)
	e.store.SetDynamic(!cfg.Manual)
	e.store.SetTriggerEnabled(cfg.TriggerEnabled())

	popts := append(cfg.SchedulerOptions(), o.phaseOpts...)
	switch cfg.Variant {
	case config.VariantMechanical:
		s := phase.New(e.host, e.store, phase.MechanicalVariant, popts...)
		e.sched, e.phase = s, func() string { return s.State().Current.String() }
		sopts := append([]effect.SteamOption{effect.WithSteamSettings(cfg.Steam)}, o.steamOpts...)
		e.steam = effect.NewSteam(e.host, sopts...)
	default:
		s := phase.New(e.host, e.store, phase.WeatherVariant, popts...)
		e.sched, e.phase = s, func() string { return s.State().Current.String() }
	}
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the live parameter store.
func (e *Engine) Store() *params.Store { return e.store }

// Registry returns the light registry shared by the lit effects.
func (e *Engine) Registry() *light.Registry { return e.registry }

// Steam returns the steam burst effect, or nil for the rain variant.
func (e *Engine) Steam() *effect.Steam { return e.steam }

// Phase returns the name of the current phase.
func (e *Engine) Phase() string { return e.phase() }

// Pipelines returns the pipelines created by Start.
func (e *Engine) Pipelines() []*render.Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*render.Pipeline(nil), e.pipelines...)
}

// Start extracts the lights, starts the scheduler and sets up every
// pipeline. A pipeline that fails to set up does not stop the others;
// their errors are joined. Start blocks until every texture source is
// decoded or ctx is done.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.started:
		e.mu.Unlock()
		return ErrStarted
	}
	e.started = true
	if e.loop != nil {
		lctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		e.stopLoop, e.loopDone = cancel, done
		go func() {
			defer close(done)
			_ = e.loop.Run(lctx)
		}()
	}
	e.mu.Unlock()

	lights := e.detectLights(ctx)

	// Close may have run during detection; it must not be undone.
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.installLights(lights)
	if !e.cfg.Manual {
		e.sched.Start()
	}
	if e.steam != nil {
		e.steam.Start()
	}
	e.mu.Unlock()

	pipelines := e.buildPipelines(ctx)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		for _, p := range pipelines {
			p.Teardown()
		}
		return ErrClosed
	}
	e.pipelines = pipelines
	e.mu.Unlock()

	errs := make([]error, len(pipelines))
	var wg sync.WaitGroup
	for i, p := range pipelines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Setup(ctx); err != nil {
				errs[i] = fmt.Errorf("envfx: %s: %w", p.Label(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (e *Engine) size() image.Point {
	return image.Pt(e.cfg.Surface.Width, e.cfg.Surface.Height)
}

// detectLights scans the lightmap. No lightmap or no detected light
// yields a single centered light.
func (e *Engine) detectLights(ctx context.Context) []light.Light {
	size := e.size()
	var lights []light.Light
	if src := e.cfg.Assets.Lightmap; src != "" {
		lights = lightmap.Extract(ctx, e.decoder, src, e.cfg.Detection, size)
	}
	if len(lights) == 0 {
		applog.Logger().Warn("envfx: no lights detected, using center light")
		lights = []light.Light{light.CenterLight(size.X, size.Y)}
	}
	return lights
}

func (e *Engine) installLights(lights []light.Light) {
	if dropped := e.registry.Replace(lights); dropped > 0 {
		applog.Logger().Warn("envfx: lights dropped", "dropped", dropped, "max", e.registry.Cap())
	}
}

func (e *Engine) buildPipelines(ctx context.Context) []*render.Pipeline {
	surface := render.Offscreen{Width: e.cfg.Surface.Width, Height: e.cfg.Surface.Height}
	common := []render.Option{
		render.WithParams(e.store),
		render.WithMaxRetries(e.cfg.Retry.Attempts()),
	}
	a := e.cfg.Assets

	if e.cfg.Variant != config.VariantMechanical {
		rain := render.New(e.provider, e.host, effect.NewRain(), surface, append(common,
			render.WithLights(e.registry),
			render.WithSources(e.source(ctx, a.Background, effect.Placeholder, 0)),
		)...)
		return []*render.Pipeline{rain}
	}

	scene := render.New(e.provider, e.host, effect.NewSteampunk(), surface, append(common,
		render.WithLights(e.registry),
		render.WithSources(
			e.source(ctx, a.Background, effect.Placeholder, 0),
			e.source(ctx, a.GearMap, effect.FallbackGearMap, effect.MaskSize),
			e.source(ctx, a.Lightmap, effect.FallbackLightMap, effect.MaskSize),
			e.source(ctx, a.SteamMap, effect.FallbackSteamMap, effect.MaskSize),
		),
	)...)
	steam := render.New(e.provider, e.host, e.steam, surface, common...)
	return []*render.Pipeline{scene, steam}
}

// source loads url for a texture slot. An empty url or a failed decode
// uses fallback. A positive fit scales the image to a fit x fit mask.
// Motion assets get a MotionSource whose frames the caller pushes; see
// MotionSource.
func (e *Engine) source(ctx context.Context, url string, fallback func() *image.NRGBA, fit int) render.Source {
	if url == "" {
		return render.NewStillSource(fallback())
	}
	if render.KindOf(url) == render.KindMotion {
		size := e.size()
		if fit > 0 {
			size = image.Pt(fit, fit)
		}
		m := render.NewMotionSource(size.X, size.Y)
		e.mu.Lock()
		if e.motion == nil {
			e.motion = make(map[string]*render.MotionSource)
		}
		e.motion[url] = m
		e.mu.Unlock()
		applog.Logger().Info("envfx: motion asset, waiting for pushed frames",
			"url", url, "width", size.X, "height", size.Y)
		return m
	}
	var dec lightmap.Decoder = e.decoder
	if fit > 0 {
		dec = fitDecoder{dec: dec, size: fit}
	}
	return render.LoadStillSourceFallback(ctx, dec, url, fallback)
}

// fitDecoder scales every decoded image to a square mask.
type fitDecoder struct {
	dec  lightmap.Decoder
	size int
}

func (f fitDecoder) Decode(ctx context.Context, src string) (*image.NRGBA, error) {
	img, err := f.dec.Decode(ctx, src)
	if err != nil || img == nil {
		return img, err
	}
	return effect.Fit(img, f.size), nil
}

// MotionSource returns the frame sink created by Start for the motion
// asset url, such as a video background. The engine decodes no video:
// the caller pushes RGBA frames of the source's size, and the texture
// stays cleared until the first frame arrives.
func (e *Engine) MotionSource(url string) (*render.MotionSource, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.motion[url]
	return m, ok
}

// Resize changes the drawable size of every pipeline.
func (e *Engine) Resize(width, height int) error {
	var errs []error
	for _, p := range e.Pipelines() {
		if err := p.Resize(width, height); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close tears down every pipeline and stops the scheduler, the steam
// bursts and the engine's own event loop. It is idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pipelines := e.pipelines
	e.pipelines = nil
	stopLoop, loopDone := e.stopLoop, e.loopDone
	e.mu.Unlock()

	for _, p := range pipelines {
		p.Teardown()
	}
	e.sched.Stop()
	if e.steam != nil {
		e.steam.Stop()
	}
	e.registry.Clear()
	if stopLoop != nil {
		stopLoop()
		<-loopDone
	}
	if e.owned != nil {
		e.owned.Close()
	}
	applog.Logger().Info("envfx: engine closed")
}
