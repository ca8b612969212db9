package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/params"
)

// ErrSetupInProgress is returned when Setup is called while another Setup
// is still waiting for its sources.
var ErrSetupInProgress = errors.New("render: setup already in progress")

// Effect is a visual effect: a GPU program plus the packing of its
// per-frame uniforms.
type Effect interface {
	// Program describes the effect's program. It must return the same
	// value on every call.
	Program() Program

	// PackUniforms writes the uniform block for one frame into dst, which
	// has length Program().UniformSize.
	PackUniforms(dst []byte, in FrameInput)
}

// FrameInput is the per-frame state handed to an Effect.
type FrameInput struct {
	// Time is the number of seconds since the pipeline first became ready.
	Time float32

	// Delta is the number of seconds since the previous frame.
	Delta float32

	// Resolution is the drawable size in pixels.
	Resolution [2]float32

	// Params is the current parameter vector.
	Params params.Vector

	// Lights is the number of active lights uploaded this frame.
	Lights int
}

// ParamsReader supplies the current parameter vector. *params.Store
// implements it.
type ParamsReader interface {
	Get() params.Vector
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	sources    []Source
	lights     *light.Registry
	params     ParamsReader
	maxRetries int
}

func defaultOptions() options {
	return options{maxRetries: MaxRetries}
}

// WithSources sets the texture sources, one per texture slot in order.
func WithSources(srcs ...Source) Option {
	return func(o *options) {
		o.sources = append([]Source(nil), srcs...)
	}
}

// WithLights sets the registry uploaded every frame to lit programs.
func WithLights(r *light.Registry) Option {
	return func(o *options) {
		o.lights = r
	}
}

// WithParams sets where the per-frame parameter vector is read from.
func WithParams(r ParamsReader) Option {
	return func(o *options) {
		o.params = r
	}
}

// WithMaxRetries sets how many consecutive rebuilds are attempted after
// context loss.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// Pipeline renders one effect instance and owns all of its GPU resources.
type Pipeline struct {
	provider Provider
	host     host.Host
	effect   Effect
	program  Program
	surface  Surface
	opts     options

	mu          sync.Mutex
	state       State
	size        image.Point
	ctx         Context
	textures    []Texture
	uploaded    []uint64
	block       *light.Block
	uniforms    []byte
	nextID      uint64
	liveID      uint64
	retries     int
	start       time.Time
	last        time.Time
	frame       host.FrameHandle
	retryTimer  host.Timer
	setupCancel context.CancelFunc
	drawn       uint64
}

// New creates an Uninitialized pipeline. Nothing is acquired until Setup.
func New(p Provider, h host.Host, e Effect, s Surface, opts ...Option) *Pipeline {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	prog := e.Program()
	pl := &Pipeline{
		provider: p,
		host:     h,
		effect:   e,
		program:  prog,
		surface:  s,
		opts:     o,
		size:     s.Size(),
		uniforms: make([]byte, prog.UniformSize),
	}
	if prog.Lights > 0 {
		pl.block = light.NewBlock(prog.Lights)
	}
	return pl
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsReady reports whether the pipeline is Ready or Rendering.
func (p *Pipeline) IsReady() bool {
	s := p.State()
	return s == Ready || s == Rendering
}

// Retries returns the number of rebuilds attempted since the last
// successful restore notification.
func (p *Pipeline) Retries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retries
}

// Frames returns the number of frames drawn.
func (p *Pipeline) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawn
}

// Setup waits for every texture source to be decoded, builds the GPU
// resources and starts the frame loop.
//
// Setup is a no-op when the pipeline is already set up or recovering from
// context loss. It returns ErrAbandoned after Teardown. The wait is
// cancelled by ctx and by Teardown. On failure nothing stays acquired and
// the state is unchanged.
func (p *Pipeline) Setup(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Ready, Rendering, ContextLost:
		p.mu.Unlock()
		return nil
	case Abandoned:
		p.mu.Unlock()
		return ErrAbandoned
	}
	if p.setupCancel != nil {
		p.mu.Unlock()
		return ErrSetupInProgress
	}
	wctx, cancel := context.WithCancel(ctx)
	p.setupCancel = cancel
	p.mu.Unlock()
	defer cancel()

	waitErr := p.waitSources(wctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.setupCancel = nil
	if p.state == Abandoned {
		return ErrAbandoned
	}
	if waitErr != nil {
		applog.Logger().Error("render: setup aborted", "effect", p.program.Label, "err", waitErr)
		return waitErr
	}
	p.start = p.host.Now()
	p.last = p.start
	if err := p.buildLocked(); err != nil {
		applog.Logger().Error("render: setup failed", "effect", p.program.Label, "err", err)
		return err
	}
	p.enterReadyLocked()
	return nil
}

func (p *Pipeline) waitSources(ctx context.Context) error {
	for i, src := range p.opts.sources {
		select {
		case <-src.Ready():
			if err := src.Err(); err != nil {
				return fmt.Errorf("render: %s: texture slot %d: %w", p.program.Label, i, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// buildLocked acquires a context and creates every resource. On error
// everything it created is released.
func (p *Pipeline) buildLocked() error {
	p.nextID++
	id := p.nextID

	c, err := p.provider.Acquire(sizedSurface{p.surface, p.size}, lossRelay{p: p, id: id})
	if err != nil {
		return &ContextAcquisitionError{Effect: p.program.Label, Err: err}
	}
	if c == nil {
		return &ContextAcquisitionError{Effect: p.program.Label, Err: ErrUnsupported}
	}

	if err := c.Build(p.program); err != nil {
		c.Release()
		return err
	}

	textures := make([]Texture, 0, len(p.opts.sources))
	uploaded := make([]uint64, len(p.opts.sources))
	fail := func(err error) error {
		for _, t := range textures {
			t.Destroy()
		}
		c.Release()
		return err
	}
	for i, src := range p.opts.sources {
		t, seq, err := createTexture(c, src)
		if err != nil {
			return fail(fmt.Errorf("render: %s: texture slot %d: %w", p.program.Label, i, err))
		}
		textures = append(textures, t)
		uploaded[i] = seq
		if err := c.BindTexture(i, t); err != nil {
			return fail(err)
		}
	}

	p.ctx, p.textures, p.uploaded, p.liveID = c, textures, uploaded, id
	if err := p.writeFrameLocked(p.host.Now()); err != nil {
		p.ctx, p.textures, p.uploaded = nil, nil, nil
		return fail(err)
	}
	return nil
}

// createTexture allocates a texture for src. A still image is uploaded
// here and never again. A motion source without a decoded frame gets a
// cleared texture.
func createTexture(c Context, src Source) (Texture, uint64, error) {
	size := src.Size()
	w, h := max(size.X, 1), max(size.Y, 1)

	pix, seq := src.Frame()
	if seq == 0 || len(pix) != w*h*4 {
		pix, seq = make([]byte, w*h*4), 0
	}
	gt, err := c.NewTextureFromRGBA(w, h, pix)
	if err != nil {
		return nil, 0, err
	}
	t, ok := gt.(Texture)
	if !ok {
		return nil, 0, fmt.Errorf("render: context returned %T, which cannot be updated", gt)
	}
	return t, seq, nil
}

func (p *Pipeline) enterReadyLocked() {
	p.state = Ready
	applog.Logger().Info("render: pipeline ready",
		"effect", p.program.Label, "width", p.size.X, "height", p.size.Y)
	p.state = Rendering
	p.frame = p.host.RequestFrame(p.onFrame)
}

func (p *Pipeline) onFrame(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Rendering {
		return
	}
	p.frame = 0

	err := p.writeFrameLocked(now)
	if err == nil {
		err = p.ctx.Draw()
	}
	if err != nil {
		if IsContextLost(err) {
			p.lostLocked(err)
			return
		}
		applog.Logger().Warn("render: frame failed", "effect", p.program.Label, "err", err)
	} else {
		p.drawn++
	}
	p.frame = p.host.RequestFrame(p.onFrame)
}

// writeFrameLocked refreshes motion textures, uniforms and lights.
func (p *Pipeline) writeFrameLocked(now time.Time) error {
	for i, src := range p.opts.sources {
		if !src.Motion() {
			continue
		}
		pix, seq := src.Frame()
		if seq == 0 || seq == p.uploaded[i] {
			continue
		}
		if err := p.textures[i].UpdateData(pix); err != nil {
			return err
		}
		p.uploaded[i] = seq
	}

	in := FrameInput{
		Time:       float32(now.Sub(p.start).Seconds()),
		Delta:      float32(now.Sub(p.last).Seconds()),
		Resolution: [2]float32{float32(p.size.X), float32(p.size.Y)},
	}
	p.last = now
	if p.opts.params != nil {
		in.Params = p.opts.params.Get()
	}

	if p.block != nil {
		if p.opts.lights != nil {
			p.opts.lights.Upload(p.block)
		}
		in.Lights = p.block.Count()
		if err := p.ctx.WriteLights(p.block.Bytes()); err != nil {
			return err
		}
	}

	p.effect.PackUniforms(p.uniforms, in)
	return p.ctx.WriteUniforms(p.uniforms)
}

// lostLocked stops rendering after context loss. Handles are dropped
// without being released: they are already invalid.
func (p *Pipeline) lostLocked(err error) {
	if p.state != Ready && p.state != Rendering {
		return
	}
	if p.frame != 0 {
		p.host.CancelFrame(p.frame)
		p.frame = 0
	}
	p.ctx, p.textures, p.uploaded = nil, nil, nil
	p.state = ContextLost
	applog.Logger().Warn("render: context lost", "effect", p.program.Label, "retries", p.retries, "err", err)
	p.scheduleRetryLocked()
}

func (p *Pipeline) scheduleRetryLocked() {
	if p.retries >= p.opts.maxRetries {
		p.state = Abandoned
		applog.Logger().Error("render: retry budget spent, abandoning",
			"effect", p.program.Label, "retries", p.retries)
		return
	}
	delay := Backoff(p.retries)
	p.retries++
	p.retryTimer = p.host.AfterFunc(delay, p.retry)
}

func (p *Pipeline) retry() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != ContextLost {
		return
	}
	p.retryTimer = nil
	p.rebuildLocked()
}

func (p *Pipeline) rebuildLocked() {
	if err := p.buildLocked(); err != nil {
		applog.Logger().Warn("render: rebuild failed", "effect", p.program.Label, "retries", p.retries, "err", err)
		p.scheduleRetryLocked()
		return
	}
	p.enterReadyLocked()
}

func (p *Pipeline) contextLost(id uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != p.liveID {
		return
	}
	if err == nil {
		err = &ContextLostError{}
	}
	p.lostLocked(err)
}

func (p *Pipeline) contextRestored(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != p.liveID {
		return
	}
	p.retries = 0
	if p.state != ContextLost {
		return
	}
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	applog.Logger().Info("render: context restored", "effect", p.program.Label)
	p.rebuildLocked()
}

// Teardown stops the frame loop, cancels pending retries and source waits,
// and releases every resource. The pipeline ends Abandoned. Teardown of an
// Uninitialized or Abandoned pipeline is a no-op.
func (p *Pipeline) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.setupCancel != nil {
		p.setupCancel()
		p.setupCancel = nil
	} else if p.state == Uninitialized || p.state == Abandoned {
		return
	}

	if p.frame != 0 {
		p.host.CancelFrame(p.frame)
		p.frame = 0
	}
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	for _, t := range p.textures {
		t.Destroy()
	}
	if p.ctx != nil {
		p.ctx.Release()
	}
	p.ctx, p.textures, p.uploaded = nil, nil, nil
	p.liveID = 0
	p.state = Abandoned
	applog.Logger().Info("render: pipeline torn down", "effect", p.program.Label)
}

// Resize changes the drawable size. A live context is resized at once; a
// rebuild after loss uses the new size.
func (p *Pipeline) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid size %dx%d", width, height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = image.Pt(width, height)
	if p.ctx == nil {
		return nil
	}
	if err := p.ctx.Resize(width, height); err != nil {
		if IsContextLost(err) {
			p.lostLocked(err)
			return nil
		}
		return err
	}
	return nil
}

// PixelReader is implemented by contexts that can read back the last
// drawn frame.
type PixelReader interface {
	ReadPixels() (*image.RGBA, error)
}

// ReadPixels returns the last drawn frame. It fails when the pipeline has
// no live context or the context cannot be read back.
func (p *Pipeline) ReadPixels() (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx == nil {
		return nil, fmt.Errorf("render: %s: no live context in state %v", p.program.Label, p.state)
	}
	r, ok := p.ctx.(PixelReader)
	if !ok {
		return nil, fmt.Errorf("render: %s: %w: context cannot read pixels", p.program.Label, ErrUnsupported)
	}
	img, err := r.ReadPixels()
	if err != nil && IsContextLost(err) {
		p.lostLocked(err)
	}
	return img, err
}

// Label returns the effect's program label.
func (p *Pipeline) Label() string { return p.program.Label }

// sizedSurface reports the pipeline's current size for the wrapped
// surface.
type sizedSurface struct {
	Surface
	size image.Point
}

func (s sizedSurface) Size() image.Point { return s.size }

// lossRelay forwards notifications of one acquired context. Notifications
// from contexts that are no longer current are ignored.
type lossRelay struct {
	p  *Pipeline
	id uint64
}

func (r lossRelay) ContextLost(err error) { r.p.contextLost(r.id, err) }

func (r lossRelay) ContextRestored() { r.p.contextRestored(r.id) }
