// Package detect selects the dominant border color of an image, used as
// the background color when the caller does not supply one.
package detect

import (
	"errors"
	"image"
	"image/color"

	"github.com/nullpixel/bgone/colour"
)

// ErrEmptyImage is returned when the image has zero width or height.
var ErrEmptyImage = errors.New("bgone: empty image")

// Background samples every pixel on the image's four borders and returns
// the most frequent exact RGB triple, breaking ties by first-encountered
// in top-row, bottom-row, left-column, right-column scan order.
//
// This is a deliberately plain frequency count rather than a statistical
// dominant-color extraction (see DESIGN.md): the spec calls for the exact
// mode of border pixels, not a clustered approximation.
func Background(img image.Image) (colour.RGB, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return colour.RGB{}, ErrEmptyImage
	}

	counts := make(map[colour.RGB]int)
	order := make([]colour.RGB, 0, 4)

	sample := func(x, y int) {
		c := rgbAt(img, x, y)
		if _, seen := counts[c]; !seen {
			order = append(order, c)
		}
		counts[c]++
	}

	for x := b.Min.X; x < b.Max.X; x++ {
		sample(x, b.Min.Y)
	}
	if h > 1 {
		for x := b.Min.X; x < b.Max.X; x++ {
			sample(x, b.Max.Y-1)
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		sample(b.Min.X, y)
	}
	if w > 1 {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			sample(b.Max.X-1, y)
		}
	}

	best := order[0]
	bestCount := counts[best]
	for _, c := range order[1:] {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best, nil
}

// rgbAt reads a pixel as straight (non-premultiplied) 8-bit RGB. image.
// Image.At's color.Color.RGBA() always returns alpha-premultiplied
// values; converting through color.NRGBAModel first undoes that, per
// spec.md §3's "alpha is straight" invariant for the decoded buffer.
func rgbAt(img image.Image, x, y int) colour.RGB {
	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return colour.RGB{R: c.R, G: c.G, B: c.B}
}
