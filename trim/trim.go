// Package trim crops an unmixed image down to the bounding box of its
// non-fully-transparent pixels.
package trim

import (
	"image"
	"image/draw"
)

// Image crops src to the bounding box of pixels with alpha != 0. If no
// such pixel exists, it returns a 1x1 fully-transparent image.
func Image(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.NRGBAAt(x, y).A != 0 {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if maxX < minX || maxY < minY {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}

	rect := image.Rect(0, 0, maxX-minX+1, maxY-minY+1)
	out := image.NewNRGBA(rect)
	draw.Draw(out, rect, src, image.Point{X: minX, Y: minY}, draw.Src)
	return out
}
