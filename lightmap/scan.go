package lightmap

import (
	"image"
	"math"

	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/light"
	"golang.org/x/image/draw"
)

// candidate is a detected component before filtering and scaling.
type candidate struct {
	x, y       float64
	color      [3]float64
	radius     float64
	brightness uint8
}

// Scan detects lights in a non-premultiplied RGBA buffer of width x height
// pixels (4 bytes per pixel, row-major, no padding).
//
// When target is non-zero on an axis, positions on that axis are scaled by
// target/source and the radius by the smaller of the two axis ratios.
//
// Scan returns nil for an empty or malformed buffer.
func Scan(pix []byte, width, height int, cfg Config, target image.Point) []light.Light {
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		applog.Logger().Debug("lightmap: skipping malformed buffer",
			"width", width, "height", height, "bytes", len(pix))
		return nil
	}

	found := detect(pix, width, height, cfg)
	kept := dedupe(dropEdges(found, width, height), cfg.MinDistance)

	sx, sy := 1.0, 1.0
	if target.X > 0 {
		sx = float64(target.X) / float64(width)
	}
	if target.Y > 0 {
		sy = float64(target.Y) / float64(height)
	}
	sr := math.Min(sx, sy)

	lights := make([]light.Light, 0, len(kept))
	for _, c := range kept {
		lights = append(lights, light.Light{
			Position: [2]float32{float32(c.x * sx), float32(c.y * sy)},
			Color:    [3]float32{float32(c.color[0]), float32(c.color[1]), float32(c.color[2])},
			Radius:   float32(c.radius * sr),
		})
	}

	applog.Logger().Debug("lightmap: scan complete",
		"components", len(found), "lights", len(lights))
	return lights
}

// ScanImage converts img to non-premultiplied RGBA and scans it.
func ScanImage(img image.Image, cfg Config, target image.Point) []light.Light {
	if img == nil {
		return nil
	}
	n := toNRGBA(img)
	return Scan(n.Pix, n.Rect.Dx(), n.Rect.Dy(), cfg, target)
}

// toNRGBA returns img as a tightly packed *image.NRGBA with origin (0,0).
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// detect runs the seeded flood fill over the stride grid.
func detect(pix []byte, width, height int, cfg Config) []candidate {
	visited := make([]bool, width*height)
	lit := func(i int) (uint8, bool) {
		p := pix[i*4 : i*4+4]
		if p[3] < AlphaCutoff {
			return 0, false
		}
		b := max(p[0], p[1], p[2])
		return b, b >= cfg.Threshold
	}

	var out []candidate
	var queue []int
	for y := 0; y < height; y += ScanStride {
		for x := 0; x < width; x += ScanStride {
			seed := y*width + x
			if visited[seed] {
				continue
			}
			if _, ok := lit(seed); !ok {
				continue
			}

			queue = append(queue[:0], seed)
			visited[seed] = true
			var (
				count            int
				sumR, sumG, sumB float64
				sumX, sumY, sumW float64
				peak             uint8
			)
			for head := 0; head < len(queue); head++ {
				i := queue[head]
				px, py := i%width, i/width
				b, _ := lit(i)
				p := pix[i*4:]

				count++
				sumR += float64(p[0])
				sumG += float64(p[1])
				sumB += float64(p[2])
				w := float64(b)
				sumX += float64(px) * w
				sumY += float64(py) * w
				sumW += w
				peak = max(peak, b)

				for _, n := range [4][2]int{{px + 1, py}, {px - 1, py}, {px, py + 1}, {px, py - 1}} {
					nx, ny := n[0], n[1]
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					j := ny*width + nx
					if visited[j] {
						continue
					}
					if _, ok := lit(j); !ok {
						continue
					}
					visited[j] = true
					queue = append(queue, j)
				}
			}

			if count < MinComponentPixels || sumW == 0 {
				continue
			}
			n := float64(count)
			out = append(out, candidate{
				x:          math.Round(sumX / sumW),
				y:          math.Round(sumY / sumW),
				color:      correctColor(sumR/n/255, sumG/n/255, sumB/n/255),
				radius:     componentRadius(count, peak, cfg),
				brightness: peak,
			})
		}
	}
	return out
}

// correctColor caps the brightest channel at 0.9, then pulls
// near-achromatic colors toward a fixed warm white.
func correctColor(r, g, b float64) [3]float64 {
	if m := max(r, g, b); m > 0 {
		s := math.Min(1, maxChannel/m)
		r, g, b = r*s, g*s, b*s
	}
	if max(r, g, b)-min(r, g, b) < WarmBiasRange {
		avg := (r + g + b) / 3
		return [3]float64{avg * 1.1, avg, avg * 0.8}
	}
	return [3]float64{r, g, b}
}

func componentRadius(area int, peak uint8, cfg Config) float64 {
	base := math.Sqrt(float64(area) / math.Pi)
	r := base * cfg.RadiusScale * float64(peak) / 255
	return math.Max(cfg.MinRadius, math.Min(cfg.MaxRadius, r))
}

func dropEdges(in []candidate, width, height int) []candidate {
	out := in[:0:0]
	w, h := float64(width), float64(height)
	for _, c := range in {
		if c.x < EdgeMargin || c.y < EdgeMargin || c.x > w-EdgeMargin || c.y > h-EdgeMargin {
			continue
		}
		out = append(out, c)
	}
	return out
}

// dedupe keeps lights at least minDistance apart. A candidate close to an
// already kept light replaces it only when strictly brighter.
func dedupe(in []candidate, minDistance float64) []candidate {
	var kept []candidate
	for _, c := range in {
		near := -1
		for i, k := range kept {
			if math.Hypot(c.x-k.x, c.y-k.y) < minDistance {
				near = i
				break
			}
		}
		switch {
		case near < 0:
			kept = append(kept, c)
		case c.brightness > kept[near].brightness:
			kept[near] = c
		}
	}
	return kept
}
