package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/envfx/render"
)

// Texture is an RGBA8 sampled texture owned by a Context.
type Texture struct {
	ctx           *Context
	width, height int
	tex           hal.Texture
	view          hal.TextureView
}

var _ render.Texture = (*Texture)(nil)

func newTexture(c *Context, width, height int, data []byte) (*Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("halgpu: invalid texture size %dx%d", width, height)
	}
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "envfx_texture",
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "envfx_texture_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create texture view: %w", err)
	}
	t := &Texture{ctx: c, width: width, height: height, tex: tex, view: view}
	if data != nil {
		if err := t.UpdateData(data); err != nil {
			t.Destroy()
			return nil, err
		}
	}
	return t, nil
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// UpdateData replaces the texture contents with RGBA8 pixels.
func (t *Texture) UpdateData(data []byte) error {
	if t.tex == nil {
		return fmt.Errorf("halgpu: texture destroyed")
	}
	if err := t.ctx.check(); err != nil {
		return err
	}
	if want := t.width * t.height * 4; len(data) != want {
		return fmt.Errorf("halgpu: texture data is %d bytes, want %d", len(data), want)
	}
	t.ctx.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(t.width * 4), RowsPerImage: uint32(t.height)},
		&hal.Extent3D{Width: uint32(t.width), Height: uint32(t.height), DepthOrArrayLayers: 1},
	)
	return nil
}

// Destroy releases the texture and unbinds it from its slot. It is
// idempotent.
func (t *Texture) Destroy() {
	if t.tex == nil {
		return
	}
	c := t.ctx
	if !c.lost.Load() {
		for i, s := range c.slots {
			if s == t {
				c.slots[i] = nil
				c.dropBindGroup()
			}
		}
		c.device.DestroyTextureView(t.view)
		c.device.DestroyTexture(t.tex)
	}
	t.tex, t.view = nil, nil
}
