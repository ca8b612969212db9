package envfx

import (
	"github.com/gogpu/envfx/effect"
	"github.com/gogpu/envfx/host"
	"github.com/gogpu/envfx/lightmap"
	"github.com/gogpu/envfx/phase"
	"github.com/gogpu/envfx/render"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	host      host.Host
	provider  render.Provider
	decoder   lightmap.Decoder
	phaseOpts []phase.Option
	steamOpts []effect.SteamOption
}

// WithHost runs the engine on h instead of its own event loop. The caller
// drives h; Start and Close do not run or stop it.
func WithHost(h host.Host) Option {
	return func(o *options) {
		o.host = h
	}
}

// WithProvider sets the source of rendering contexts. The engine does not
// close a provider passed here.
func WithProvider(p render.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithDecoder sets the image decoder used for the lightmap and every
// texture.
func WithDecoder(d lightmap.Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithPhaseOptions appends scheduler options after those derived from the
// configuration.
func WithPhaseOptions(opts ...phase.Option) Option {
	return func(o *options) {
		o.phaseOpts = append(o.phaseOpts, opts...)
	}
}

// WithSteamOptions appends options for the steam burst effect of the
// mechanical variant.
func WithSteamOptions(opts ...effect.SteamOption) Option {
	return func(o *options) {
		o.steamOpts = append(o.steamOpts, opts...)
	}
}
