// Package halgpu implements render.Provider on the wgpu HAL.
//
// A Provider owns one device, opened lazily from a HAL backend or borrowed
// from a host that already has one. Contexts render offscreen into an
// RGBA8 target and can read it back.
package halgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/render"
)

var errNoAdapter = errors.New("halgpu: no GPU adapter")

// Option configures a Provider.
type Option func(*Provider)

// WithBackend opens the device from b instead of the registered Vulkan
// backend.
func WithBackend(b hal.Backend) Option {
	return func(p *Provider) {
		p.backend = b
	}
}

// WithNotify sets how loss and restore notifications are delivered. The
// default runs each notification on a new goroutine. Notifications must
// never run synchronously inside a Provider or Context call.
func WithNotify(post func(fn func())) Option {
	return func(p *Provider) {
		if post != nil {
			p.post = post
		}
	}
}

// Provider hands out contexts that share one HAL device.
type Provider struct {
	backend hal.Backend
	post    func(fn func())

	mu       sync.Mutex
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	shared   bool
	lost     bool
	closed   bool
	contexts map[*Context]render.LossHandler

	// waiting holds the handlers of contexts invalidated by Lose since the
	// last Restore.
	waiting []render.LossHandler
}

// NewProvider returns a provider that opens its own device on first
// Acquire.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		post:     func(fn func()) { go fn() },
		contexts: make(map[*Context]render.LossHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSharedProvider returns a provider that renders on a host's device.
// dp must also expose HalDevice() and HalQueue() returning hal.Device and
// hal.Queue. The device is never destroyed by the provider.
func NewSharedProvider(dp gpucontext.DeviceProvider, opts ...Option) (*Provider, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := dp.(halProvider)
	if !ok {
		return nil, fmt.Errorf("halgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("halgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("halgpu: provider HalQueue is not hal.Queue")
	}
	p := NewProvider(opts...)
	p.device, p.queue, p.shared = device, queue, true
	return p, nil
}

// Acquire implements render.Provider. It returns a nil context and a nil
// error when no backend or adapter is available.
func (p *Provider) Acquire(s render.Surface, h render.LossHandler) (render.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return nil, ErrClosed
	case p.lost:
		return nil, ErrDeviceLost
	}
	if p.device == nil {
		if err := p.openLocked(); err != nil {
			if errors.Is(err, errNoAdapter) {
				applog.Logger().Info("halgpu: no usable GPU", "err", err)
				return nil, nil
			}
			return nil, err
		}
	}

	size := s.Size()
	c := &Context{p: p, device: p.device, queue: p.queue}
	if err := c.createTarget(size.X, size.Y); err != nil {
		return nil, err
	}
	if err := c.createQuad(); err != nil {
		c.destroyTarget()
		return nil, err
	}
	p.contexts[c] = h
	return c, nil
}

func (p *Provider) openLocked() error {
	backend := p.backend
	if backend == nil {
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return fmt.Errorf("%w: vulkan backend not available", errNoAdapter)
		}
		backend = b
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("%w: create instance: %v", errNoAdapter, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return errNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("halgpu: open device: %w", err)
	}
	p.instance = instance
	p.device = openDev.Device
	p.queue = openDev.Queue
	applog.Logger().Info("halgpu: device opened", "adapter", selected.Info.Name)
	return nil
}

// Lose invalidates every live context and notifies their handlers. Acquire
// fails with ErrDeviceLost until Restore.
func (p *Provider) Lose(err error) {
	if err == nil {
		err = ErrDeviceLost
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.lost {
		return
	}
	p.lost = true
	p.invalidateLocked(err, true)
}

// Restore ends a loss started by Lose and notifies the handlers of every
// context lost since.
func (p *Provider) Restore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.lost {
		return
	}
	p.lost = false
	waiting := p.waiting
	p.waiting = nil
	for _, h := range waiting {
		p.post(h.ContextRestored)
	}
}

// deviceLost handles a loss detected while using the device. The device is
// dropped so the next Acquire opens a new one. No restore notification
// follows: the handlers rebuild on their own retry schedule.
func (p *Provider) deviceLost(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.invalidateLocked(err, false)
	if !p.shared {
		p.destroyDeviceLocked()
	}
}

// invalidateLocked marks every live context lost. With wait set, their
// handlers are kept for the next Restore.
func (p *Provider) invalidateLocked(err error, wait bool) {
	lost := &render.ContextLostError{Err: err}
	for c, h := range p.contexts {
		c.lost.Store(true)
		delete(p.contexts, c)
		if h == nil {
			continue
		}
		if wait {
			p.waiting = append(p.waiting, h)
		}
		p.post(func() { h.ContextLost(lost) })
	}
	applog.Logger().Warn("halgpu: device lost", "err", err)
}

// forget removes a released context.
func (p *Provider) forget(c *Context) {
	p.mu.Lock()
	delete(p.contexts, c)
	p.mu.Unlock()
}

// Contexts returns the number of live contexts.
func (p *Provider) Contexts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.contexts)
}

// Close releases the device. Live contexts must be released first.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if len(p.contexts) > 0 {
		applog.Logger().Warn("halgpu: closing with live contexts", "count", len(p.contexts))
	}
	if p.shared {
		p.device, p.queue = nil, nil
		return
	}
	p.destroyDeviceLocked()
}

func (p *Provider) destroyDeviceLocked() {
	if p.device != nil {
		p.device.Destroy()
	}
	if p.instance != nil {
		p.instance.Destroy()
	}
	p.instance, p.device, p.queue = nil, nil, nil
}
