// Package colour holds the color primitives shared by every bgone
// component: 8-bit RGB/RGBA, the normalized form used inside the unmix
// kernel, hex parsing, and the straight-alpha composite helper.
package colour

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned by ParseColor when the input is not a valid
// 3- or 6-digit hex color.
var ErrInvalidColor = errors.New("bgone: invalid color")

// RGB is an 8-bit, straight (non-premultiplied), gamma-naive color.
type RGB struct {
	R, G, B uint8
}

// RGBA is an 8-bit straight-alpha color.
type RGBA struct {
	R, G, B, A uint8
}

// NRGB is the normalized 0..1 color used by the unmix kernel. It is an
// alias for go-colorful's Color so the kernel and the deducer can reach
// for Lab()/DistanceLab()/Clamped() without a conversion step.
type NRGB = colorful.Color

// ParseColor parses a hex color, case-insensitively, with or without a
// leading '#', in either 3- or 6-digit shorthand ("f00" -> "ff0000").
func ParseColor(hex string) (RGB, error) {
	h := strings.TrimPrefix(hex, "#")

	var digits [3]string
	switch len(h) {
	case 3:
		digits = [3]string{h[0:1], h[1:2], h[2:3]}
	case 6:
		digits = [3]string{h[0:2], h[2:4], h[4:6]}
	default:
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	var channels [3]uint8
	for i, d := range digits {
		v, err := strconv.ParseUint(d, 16, 8)
		if err != nil {
			return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
		}
		if len(h) == 3 {
			v *= hexShorthandMultiplier
		}
		channels[i] = uint8(v)
	}
	return RGB{R: channels[0], G: channels[1], B: channels[2]}, nil
}

// hexShorthandMultiplier expands a single hex digit to a byte: f -> ff.
const hexShorthandMultiplier = 17

// ToNormalized converts an 8-bit RGB color to the kernel's normalized form.
func ToNormalized(c RGB) NRGB {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// FromNormalized converts a normalized color back to 8-bit RGB, clamping
// and rounding to nearest. Round-tripping ToNormalized/FromNormalized is
// exact for every one of the 256^3 8-bit inputs.
func FromNormalized(c NRGB) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// CompositeOverBackground alpha-composites a straight-alpha pixel over an
// opaque background color: out = a*fg + (1-a)*bg, per channel, rounded to
// nearest and clamped to [0,255].
func CompositeOverBackground(pixel RGBA, bg RGB) RGB {
	a := float64(pixel.A) / 255.0
	return RGB{
		R: compositeChannel(pixel.R, bg.R, a),
		G: compositeChannel(pixel.G, bg.G, a),
		B: compositeChannel(pixel.B, bg.B, a),
	}
}

func compositeChannel(fg, bg uint8, a float64) uint8 {
	v := a*float64(fg) + (1-a)*float64(bg)
	return uint8(clamp(math.Round(v), 0, 255))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
