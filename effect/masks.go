package effect

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// MaskSize is the edge length of the generated fallback masks.
const MaskSize = 512

type ellipse struct {
	cx, cy, rx, ry int
}

var (
	gearEllipses = []ellipse{
		{128, 400, 80, 60},
		{256, 256, 100, 80},
		{400, 150, 70, 50},
	}
	steamEllipses = []ellipse{
		{150, 450, 30, 20},
		{350, 470, 25, 15},
		{400, 430, 20, 10},
	}
)

// FallbackGearMap returns the gear mask used when no gear map loads: three
// white ellipses on black.
func FallbackGearMap() *image.NRGBA { return ellipseMask(gearEllipses) }

// FallbackSteamMap returns the steam mask used when no steam map loads.
func FallbackSteamMap() *image.NRGBA { return ellipseMask(steamEllipses) }

// FallbackLightMap returns an all-black light map.
func FallbackLightMap() *image.NRGBA { return ellipseMask(nil) }

// Placeholder returns the 1x1 magenta image shown for a background that
// failed to load.
func Placeholder() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, B: 255, A: 255})
	return img
}

func ellipseMask(shapes []ellipse) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, MaskSize, MaskSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{A: 255}), image.Point{}, draw.Src)
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	for _, e := range shapes {
		rx2 := e.rx * e.rx
		ry2 := e.ry * e.ry
		for y := e.cy - e.ry; y <= e.cy+e.ry; y++ {
			for x := e.cx - e.rx; x <= e.cx+e.rx; x++ {
				dx, dy := x-e.cx, y-e.cy
				if dx*dx*ry2+dy*dy*rx2 <= rx2*ry2 {
					img.SetNRGBA(x, y, white)
				}
			}
		}
	}
	return img
}

// Fit scales img to size x size with bilinear filtering. An image already
// at that size is returned unchanged.
func Fit(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && b.Dx() == size && b.Dy() == size {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
