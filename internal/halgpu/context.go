package halgpu

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/envfx/light"
	"github.com/gogpu/envfx/render"
)

// TargetFormat is the pixel format of the offscreen render target.
const TargetFormat = gputypes.TextureFormatRGBA8Unorm

// quadStride is the byte stride of one vertex: position vec2<f32>.
const quadStride = 8

// fullscreen quad as two triangles in clip space.
var quadVertices = [12]float32{
	-1, -1, 1, -1, -1, 1,
	-1, 1, 1, -1, 1, 1,
}

// Context is a render.Context drawing into an offscreen target.
// Methods must not be called concurrently.
type Context struct {
	p      *Provider
	device hal.Device
	queue  hal.Queue

	lost     atomic.Bool
	released bool
	frames   uint64

	width, height uint32
	target        hal.Texture
	targetView    hal.TextureView

	quad hal.Buffer

	program    render.Program
	shader     hal.ShaderModule
	bgLayout   hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
	uniforms   hal.Buffer
	lights     hal.Buffer
	slots      []*Texture
	bindGroup  hal.BindGroup
}

var _ render.Context = (*Context)(nil)

func (c *Context) check() error {
	if c.released {
		return ErrReleased
	}
	if c.lost.Load() {
		return &render.ContextLostError{Err: ErrDeviceLost}
	}
	return nil
}

// gpuFailed reports a failed submission as device loss.
func (c *Context) gpuFailed(err error) error {
	c.lost.Store(true)
	c.p.deviceLost(err)
	return &render.ContextLostError{Err: err}
}

func (c *Context) createTarget(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("halgpu: invalid target size %dx%d", w, h)
	}
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "envfx_target",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "envfx_target_view",
		Format:        TargetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return fmt.Errorf("create target view: %w", err)
	}
	c.target, c.targetView = tex, view
	c.width, c.height = uint32(w), uint32(h)
	return nil
}

func (c *Context) destroyTarget() {
	if c.targetView != nil {
		c.device.DestroyTextureView(c.targetView)
		c.targetView = nil
	}
	if c.target != nil {
		c.device.DestroyTexture(c.target)
		c.target = nil
	}
}

func (c *Context) createQuad() error {
	data := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "envfx_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create quad buffer: %w", err)
	}
	c.queue.WriteBuffer(buf, 0, data)
	c.quad = buf
	return nil
}

// Size returns the target size in pixels.
func (c *Context) Size() image.Point { return image.Pt(int(c.width), int(c.height)) }

// Frames returns the number of frames drawn.
func (c *Context) Frames() uint64 { return c.frames }

// NewTextureFromRGBA implements gpucontext.TextureCreator. The returned
// value is a *Texture.
func (c *Context) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return newTexture(c, width, height, data)
}

// Build implements render.Context.
func (c *Context) Build(p render.Program) error {
	if err := c.check(); err != nil {
		return err
	}
	c.destroyProgram()

	code, err := compileWGSL(p.Source)
	if err != nil {
		return &render.ShaderCompileError{Label: p.Label, Diagnostics: err.Error(), Err: err}
	}
	shader, err := createShaderModule(c.device, p.Label+"_shader", code)
	if err != nil {
		return &render.ShaderCompileError{Label: p.Label, Diagnostics: err.Error(), Err: err}
	}
	c.shader = shader
	c.program = p

	if err := c.createLayout(p); err != nil {
		c.destroyProgram()
		return err
	}

	blend := gputypes.BlendStatePremultiplied()
	pipeline, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  p.Label + "_pipeline",
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     c.shader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: quadStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     c.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    TargetFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		c.destroyProgram()
		return &render.ShaderLinkError{Label: p.Label, Diagnostics: err.Error(), Err: err}
	}
	c.pipeline = pipeline

	if err := c.createBuffers(p); err != nil {
		c.destroyProgram()
		return err
	}
	c.slots = make([]*Texture, p.TextureSlots)
	return nil
}

// createLayout creates the group 0 layout described by render.Program.
func (c *Context) createLayout(p render.Program) error {
	const stages = gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: stages,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}}
	if p.TextureSlots > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    1,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		})
	}
	if p.Lights > 0 {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    2,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	for i := 0; i < p.TextureSlots; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(3 + i),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}

	layout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.Label + "_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create %s bind group layout: %w", p.Label, err)
	}
	c.bgLayout = layout

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{layout},
	})
	if err != nil {
		return fmt.Errorf("create %s pipeline layout: %w", p.Label, err)
	}
	c.pipeLayout = pipeLayout

	if p.TextureSlots > 0 {
		sampler, err := c.device.CreateSampler(&hal.SamplerDescriptor{
			Label:        p.Label + "_sampler",
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeLinear,
		})
		if err != nil {
			return fmt.Errorf("create %s sampler: %w", p.Label, err)
		}
		c.sampler = sampler
	}
	return nil
}

func (c *Context) createBuffers(p render.Program) error {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.Label + "_uniforms",
		Size:  uint64(p.UniformSize),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s uniform buffer: %w", p.Label, err)
	}
	c.uniforms = buf
	if p.Lights == 0 {
		return nil
	}
	buf, err = c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.Label + "_lights",
		Size:  uint64(light.BlockSize(p.Lights)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s light buffer: %w", p.Label, err)
	}
	c.lights = buf
	return nil
}

// BindTexture implements render.Context.
func (c *Context) BindTexture(slot int, t render.Texture) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.pipeline == nil {
		return ErrNoProgram
	}
	if slot < 0 || slot >= len(c.slots) {
		return fmt.Errorf("halgpu: texture slot %d out of range [0,%d)", slot, len(c.slots))
	}
	tex, ok := t.(*Texture)
	if !ok || tex.ctx != c {
		return fmt.Errorf("halgpu: texture for slot %d was not created by this context", slot)
	}
	c.slots[slot] = tex
	c.dropBindGroup()
	return nil
}

// WriteUniforms implements render.Context.
func (c *Context) WriteUniforms(data []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.uniforms == nil {
		return ErrNoProgram
	}
	if len(data) != c.program.UniformSize {
		return fmt.Errorf("halgpu: uniform block is %d bytes, want %d", len(data), c.program.UniformSize)
	}
	c.queue.WriteBuffer(c.uniforms, 0, data)
	return nil
}

// WriteLights implements render.Context.
func (c *Context) WriteLights(data []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.lights == nil {
		return fmt.Errorf("halgpu: program %q has no light block", c.program.Label)
	}
	if want := light.BlockSize(c.program.Lights); len(data) != want {
		return fmt.Errorf("halgpu: light block is %d bytes, want %d", len(data), want)
	}
	c.queue.WriteBuffer(c.lights, 0, data)
	return nil
}

func (c *Context) ensureBindGroup() error {
	if c.bindGroup != nil {
		return nil
	}
	p := c.program
	entries := []gputypes.BindGroupEntry{{
		Binding: 0,
		Resource: gputypes.BufferBinding{
			Buffer: c.uniforms.NativeHandle(), Offset: 0, Size: uint64(p.UniformSize),
		},
	}}
	if p.TextureSlots > 0 {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  1,
			Resource: gputypes.SamplerBinding{Sampler: gputypes.SamplerHandle(c.sampler.NativeHandle())},
		})
	}
	if p.Lights > 0 {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding: 2,
			Resource: gputypes.BufferBinding{
				Buffer: c.lights.NativeHandle(), Offset: 0, Size: uint64(light.BlockSize(p.Lights)),
			},
		})
	}
	for i, t := range c.slots {
		if t == nil || t.view == nil {
			return fmt.Errorf("%w: slot %d", ErrSlotUnbound, i)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(3 + i),
			Resource: gputypes.TextureViewBinding{TextureView: gputypes.TextureViewHandle(t.view.NativeHandle())},
		})
	}
	bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.Label + "_bind",
		Layout:  c.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create %s bind group: %w", p.Label, err)
	}
	c.bindGroup = bg
	return nil
}

func (c *Context) dropBindGroup() {
	if c.bindGroup != nil {
		c.device.DestroyBindGroup(c.bindGroup)
		c.bindGroup = nil
	}
}

// Draw implements render.Context. It renders one frame into the target and
// waits for the GPU to finish.
func (c *Context) Draw() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.pipeline == nil {
		return ErrNoProgram
	}
	if err := c.ensureBindGroup(); err != nil {
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: c.program.Label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(c.program.Label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: c.program.Label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       c.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(c.pipeline)
	rp.SetBindGroup(0, c.bindGroup, nil)
	rp.SetVertexBuffer(0, c.quad, 0)
	rp.Draw(uint32(len(quadVertices)/2), 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submit(cmdBuf); err != nil {
		return err
	}
	c.frames++
	return nil
}

func (c *Context) submit(cmdBuf hal.CommandBuffer) error {
	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return c.gpuFailed(fmt.Errorf("submit: %w", err))
	}
	ok, err := c.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return c.gpuFailed(fmt.Errorf("wait for GPU: ok=%v err=%v", ok, err))
	}
	return nil
}

// ReadPixels copies the target back to host memory. The pixels are
// premultiplied.
func (c *Context) ReadPixels() (*image.RGBA, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	w, h := c.width, c.height
	size := uint64(w) * uint64(h) * 4
	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "envfx_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "envfx_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("envfx_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(c.target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submit(cmdBuf); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if err := c.queue.ReadBuffer(staging, 0, img.Pix); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return img, nil
}

// Resize implements render.Context. The target is recreated; the program
// and textures are kept.
func (c *Context) Resize(width, height int) error {
	if err := c.check(); err != nil {
		return err
	}
	if uint32(width) == c.width && uint32(height) == c.height {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("halgpu: invalid target size %dx%d", width, height)
	}
	c.destroyTarget()
	return c.createTarget(width, height)
}

func (c *Context) destroyProgram() {
	c.dropBindGroup()
	c.slots = nil
	if c.pipeline != nil {
		c.device.DestroyRenderPipeline(c.pipeline)
		c.pipeline = nil
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bgLayout != nil {
		c.device.DestroyBindGroupLayout(c.bgLayout)
		c.bgLayout = nil
	}
	if c.sampler != nil {
		c.device.DestroySampler(c.sampler)
		c.sampler = nil
	}
	if c.uniforms != nil {
		c.device.DestroyBuffer(c.uniforms)
		c.uniforms = nil
	}
	if c.lights != nil {
		c.device.DestroyBuffer(c.lights)
		c.lights = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
	c.program = render.Program{}
}

// Release implements render.Context. Textures created by the context must
// be destroyed by their owner. After loss the handles are only dropped.
func (c *Context) Release() {
	if c.released {
		return
	}
	c.released = true
	c.p.forget(c)
	if c.lost.Load() {
		return
	}
	c.destroyProgram()
	c.destroyTarget()
	if c.quad != nil {
		c.device.DestroyBuffer(c.quad)
		c.quad = nil
	}
}
