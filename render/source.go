package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/lightmap"
)

// Kind classifies a texture source.
type Kind int

const (
	KindUnknown Kind = iota
	KindStill
	KindMotion
)

func (k Kind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindMotion:
		return "motion"
	}
	return "unknown"
}

var extKinds = map[string]Kind{
	".mp4": KindMotion, ".webm": KindMotion, ".mov": KindMotion, ".ogg": KindMotion,
	".jpg": KindStill, ".jpeg": KindStill, ".png": KindStill, ".gif": KindStill,
	".bmp": KindStill, ".webp": KindStill,
}

// KindOf classifies a URL or path by its extension. Query strings and
// fragments are ignored.
func KindOf(url string) Kind {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return extKinds[strings.ToLower(path.Ext(url))]
}

// Source supplies the pixels of one texture slot.
type Source interface {
	// Ready is closed once the source has dimensions and, for a still
	// image, its pixels.
	Ready() <-chan struct{}

	// Err reports a decode failure after Ready is closed.
	Err() error

	// Size returns the pixel size. It is valid after Ready.
	Size() image.Point

	// Frame returns the current RGBA pixels and a sequence number that
	// grows with every decoded frame. A zero sequence means no frame has
	// been decoded yet.
	Frame() (pix []byte, seq uint64)

	// Motion reports whether the pixels change over time.
	Motion() bool
}

// StillSource is a single decoded image. Pipelines upload it once.
type StillSource struct {
	ready chan struct{}
	img   *image.NRGBA
	err   error
}

// NewStillSource wraps an already decoded image.
func NewStillSource(img *image.NRGBA) *StillSource {
	s := &StillSource{ready: make(chan struct{}), img: tight(img)}
	if img == nil {
		s.err = fmt.Errorf("%w: nil image", ErrSourceFailed)
	}
	close(s.ready)
	return s
}

// LoadStillSource decodes url in the background. Ready is closed when
// decoding finishes, successfully or not.
func LoadStillSource(ctx context.Context, dec lightmap.Decoder, url string) *StillSource {
	return LoadStillSourceFallback(ctx, dec, url, nil)
}

// LoadStillSourceFallback is like LoadStillSource, but a failed decode is
// replaced by the image fallback returns. The source only fails if
// fallback is nil or returns nil.
func LoadStillSourceFallback(ctx context.Context, dec lightmap.Decoder, url string, fallback func() *image.NRGBA) *StillSource {
	s := &StillSource{ready: make(chan struct{})}
	go func() {
		defer close(s.ready)
		img, err := dec.Decode(ctx, url)
		if err != nil && fallback != nil {
			applog.Logger().Warn("render: texture load failed, using fallback", "url", url, "err", err)
			img = fallback()
		}
		if img == nil {
			if err == nil {
				err = errors.New("decoder returned no image")
			}
			s.err = fmt.Errorf("%w: %w", ErrSourceFailed, err)
			return
		}
		s.img = tight(img)
	}()
	return s
}

// tight returns img with origin (0,0) and no row padding.
func tight(img *image.NRGBA) *image.NRGBA {
	if img == nil || (img.Rect.Min == image.Point{} && img.Stride == 4*img.Rect.Dx()) {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Ready implements Source.
func (s *StillSource) Ready() <-chan struct{} { return s.ready }

// Err implements Source.
func (s *StillSource) Err() error {
	select {
	case <-s.ready:
		return s.err
	default:
		return nil
	}
}

// Size implements Source.
func (s *StillSource) Size() image.Point {
	if img := s.Image(); img != nil {
		return img.Rect.Size()
	}
	return image.Point{}
}

// Image returns the decoded image, or nil before Ready or after a failure.
func (s *StillSource) Image() *image.NRGBA {
	select {
	case <-s.ready:
		return s.img
	default:
		return nil
	}
}

// Frame implements Source. A still image has exactly one frame.
func (s *StillSource) Frame() ([]byte, uint64) {
	img := s.Image()
	if img == nil {
		return nil, 0
	}
	return img.Pix, 1
}

// Motion implements Source.
func (s *StillSource) Motion() bool { return false }

// MotionSource is a stream of frames, such as a decoded video. A decoder
// goroutine pushes frames; pipelines upload the newest frame on every
// animation frame once at least one frame exists.
type MotionSource struct {
	ready chan struct{}
	size  image.Point

	mu  sync.Mutex
	pix []byte
	seq uint64
}

// NewMotionSource creates a source for frames of the given size. It is
// ready immediately; frames arrive later through PushFrame.
func NewMotionSource(width, height int) *MotionSource {
	m := &MotionSource{
		ready: make(chan struct{}),
		size:  image.Pt(width, height),
	}
	close(m.ready)
	return m
}

// PushFrame stores a copy of an RGBA frame. Frames of the wrong length
// are rejected.
func (m *MotionSource) PushFrame(pix []byte) error {
	if want := m.size.X * m.size.Y * 4; len(pix) != want {
		return fmt.Errorf("render: motion frame is %d bytes, want %d", len(pix), want)
	}
	frame := bytes.Clone(pix)
	m.mu.Lock()
	m.pix = frame
	m.seq++
	m.mu.Unlock()
	return nil
}

// Ready implements Source.
func (m *MotionSource) Ready() <-chan struct{} { return m.ready }

// Err implements Source.
func (m *MotionSource) Err() error { return nil }

// Size implements Source.
func (m *MotionSource) Size() image.Point { return m.size }

// Frame implements Source. The returned slice is never modified.
func (m *MotionSource) Frame() ([]byte, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pix, m.seq
}

// Motion implements Source.
func (m *MotionSource) Motion() bool { return true }
