package render

import (
	"errors"
	"image"

	"github.com/gogpu/gpucontext"
)

// fakeProvider records every acquisition. Tests run on one goroutine
// driven by host.Manual, so it needs no locking.
type fakeProvider struct {
	acquireErr  error
	unsupported bool
	buildErr    error
	textureErr  error

	contexts []*fakeContext
	handlers []LossHandler
	sizes    []image.Point
}

func (p *fakeProvider) Acquire(s Surface, h LossHandler) (Context, error) {
	p.sizes = append(p.sizes, s.Size())
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	if p.unsupported {
		return nil, nil
	}
	c := &fakeContext{buildErr: p.buildErr, textureErr: p.textureErr, size: s.Size()}
	p.contexts = append(p.contexts, c)
	p.handlers = append(p.handlers, h)
	return c, nil
}

func (p *fakeProvider) last() *fakeContext {
	if len(p.contexts) == 0 {
		return nil
	}
	return p.contexts[len(p.contexts)-1]
}

func (p *fakeProvider) loseLast() {
	c := p.last()
	c.lost = true
	p.handlers[len(p.handlers)-1].ContextLost(errors.New("device reset"))
}

type fakeContext struct {
	buildErr   error
	textureErr error
	drawErr    error

	lost     bool
	built    *Program
	released int
	size     image.Point
	textures []*fakeTexture
	bound    map[int]Texture
	uniforms [][]byte
	lights   [][]byte
	draws    int
}

func (c *fakeContext) check() error {
	if c.lost {
		return &ContextLostError{}
	}
	return nil
}

func (c *fakeContext) NewTextureFromRGBA(w, h int, data []byte) (gpucontext.Texture, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.textureErr != nil {
		return nil, c.textureErr
	}
	t := &fakeTexture{w: w, h: h, data: append([]byte(nil), data...)}
	c.textures = append(c.textures, t)
	return t, nil
}

func (c *fakeContext) Build(p Program) error {
	if err := c.check(); err != nil {
		return err
	}
	if c.buildErr != nil {
		return c.buildErr
	}
	c.built = &p
	return nil
}

func (c *fakeContext) BindTexture(slot int, t Texture) error {
	if c.bound == nil {
		c.bound = make(map[int]Texture)
	}
	c.bound[slot] = t
	return c.check()
}

func (c *fakeContext) WriteUniforms(data []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	c.uniforms = append(c.uniforms, append([]byte(nil), data...))
	return nil
}

func (c *fakeContext) WriteLights(data []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	c.lights = append(c.lights, append([]byte(nil), data...))
	return nil
}

func (c *fakeContext) Draw() error {
	if err := c.check(); err != nil {
		return err
	}
	if c.drawErr != nil {
		return c.drawErr
	}
	c.draws++
	return nil
}

func (c *fakeContext) Resize(w, h int) error {
	if err := c.check(); err != nil {
		return err
	}
	c.size = image.Pt(w, h)
	return nil
}

func (c *fakeContext) Release() { c.released++ }

type fakeTexture struct {
	w, h      int
	data      []byte
	updates   int
	destroyed int
}

func (t *fakeTexture) Width() int  { return t.w }
func (t *fakeTexture) Height() int { return t.h }

func (t *fakeTexture) UpdateData(data []byte) error {
	t.updates++
	t.data = append(t.data[:0], data...)
	return nil
}

func (t *fakeTexture) Destroy() { t.destroyed++ }

// testEffect packs the frame time and light count into an 8-byte block.
type testEffect struct {
	lights int
	slots  int
	inputs []FrameInput
}

func (e *testEffect) Program() Program {
	return Program{
		Label:        "test",
		Source:       "// wgsl",
		UniformSize:  8,
		TextureSlots: e.slots,
		Lights:       e.lights,
	}
}

func (e *testEffect) PackUniforms(dst []byte, in FrameInput) {
	e.inputs = append(e.inputs, in)
	dst[0] = byte(in.Lights)
	dst[1] = byte(int(in.Time))
}
