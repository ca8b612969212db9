package render

import (
	"image"

	"github.com/gogpu/gpucontext"
)

// Surface is where a pipeline draws.
type Surface interface {
	// Size returns the drawable size in pixels.
	Size() image.Point
}

// Offscreen is a Surface with a fixed size and no window behind it.
type Offscreen struct {
	Width, Height int
}

// Size implements Surface.
func (o Offscreen) Size() image.Point { return image.Pt(o.Width, o.Height) }

// LossHandler receives asynchronous context notifications.
type LossHandler interface {
	// ContextLost reports that every handle of the context is invalid.
	ContextLost(err error)

	// ContextRestored reports that the graphics subsystem can build a
	// new context.
	ContextRestored()
}

// Provider acquires rendering contexts.
type Provider interface {
	// Acquire creates a context for s. Loss and restore notifications for
	// the context are delivered to h. A nil context with a nil error means
	// the hardware or driver is unsupported. h must not be called before
	// Acquire returns.
	Acquire(s Surface, h LossHandler) (Context, error)
}

// Program describes an effect's GPU program and its resource layout.
//
// Bindings in group 0:
//
//	0        uniform block (UniformSize bytes)
//	1        filtering sampler, when TextureSlots > 0
//	2        light block, when Lights > 0
//	3 + i    texture slot i
type Program struct {
	Label string

	// Source is WGSL with a vs_main vertex entry point and an fs_main
	// fragment entry point.
	Source string

	// UniformSize is the byte size of the uniform block at binding 0.
	UniformSize int

	// TextureSlots is the number of sampled 2D textures.
	TextureSlots int

	// Lights is the capacity of the light block, or 0 for an unlit
	// program.
	Lights int
}

// Texture is a GPU texture that can be refreshed in place.
type Texture interface {
	gpucontext.Texture
	gpucontext.TextureUpdater

	// Destroy releases the texture. It is idempotent.
	Destroy()
}

// Context is one live rendering context. After loss every method may
// return a *ContextLostError.
type Context interface {
	// NewTextureFromRGBA creates a texture. Textures returned by a Context
	// also implement Texture.
	gpucontext.TextureCreator

	// Build compiles and links p. It returns *ShaderCompileError or
	// *ShaderLinkError on failure.
	Build(p Program) error

	// BindTexture attaches t to a texture slot of the built program.
	BindTexture(slot int, t Texture) error

	// WriteUniforms replaces the uniform block.
	WriteUniforms(data []byte) error

	// WriteLights replaces the light block.
	WriteLights(data []byte) error

	// Draw issues one fullscreen draw and presents it.
	Draw() error

	// Resize changes the drawable size.
	Resize(width, height int) error

	// Release frees every resource. It is idempotent.
	Release()
}
