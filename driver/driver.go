// Package driver turns a decoded image and a resolved background/basis
// into the unmixed output buffer: it decides, pixel by pixel, which of the
// kernel's three solve modes applies, and fans the work out across a
// worker pool a row-slab at a time.
package driver

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nullpixel/bgone/colour"
	"github.com/nullpixel/bgone/internal/parallel"
	"github.com/nullpixel/bgone/unmix"
)

// minSlabRows is the smallest number of rows handed to a single worker,
// chosen per spec.md §4.5 to amortize per-slab dispatch overhead.
const minSlabRows = 16

// Options controls how Run resolves each pixel. Background and Basis must
// already be concrete colors; AUTO resolution happens upstream in deduce.
type Options struct {
	Background colour.NRGB
	Basis      []colour.NRGB
	Strict     bool
	Threshold  float64
}

// Run unmixes src against opts and returns a freshly allocated NRGBA
// image of the same bounds. Work is split into row slabs and distributed
// over pool; if pool is nil, Run processes the image on the calling
// goroutine.
func Run(src image.Image, opts Options, pool *parallel.Pool) *image.NRGBA {
	bounds := src.Bounds()
	out := image.NewNRGBA(bounds)

	nrgba := toNRGBACopy(src, bounds)
	bg := colour.FromNormalized(opts.Background)

	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return out
	}

	process := func(rowStart, rowEnd int) {
		for y := rowStart; y < rowEnd; y++ {
			for x := 0; x < width; x++ {
				px := nrgba.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
				observed := observedColor(px, bg)
				result := resolvePixel(observed, bg, opts)
				out.SetNRGBA(bounds.Min.X+x, bounds.Min.Y+y, color.NRGBA{R: result.R, G: result.G, B: result.B, A: result.A})
			}
		}
	}

	if pool == nil {
		process(0, height)
		return out
	}

	pool.RunSlabs(height, minSlabRows, process)
	return out
}

// resolvePixel implements spec.md §4.5's per-pixel policy table.
func resolvePixel(observed colour.RGB, bg colour.RGB, opts Options) colour.RGBA {
	if observed == bg {
		return colour.RGBA{}
	}

	bgNorm := colour.ToNormalized(bg)
	observedNorm := colour.ToNormalized(observed)

	if len(opts.Basis) == 0 {
		return freeSolveResult(observedNorm, bgNorm)
	}

	d := nearestBasisDistance(observedNorm, opts.Basis)
	if opts.Strict || d <= opts.Threshold {
		if res, ok := unmix.Unmix(observedNorm, bgNorm, opts.Basis); ok {
			return unmix.ComputeResultColor(res.Weights, res.Alpha, opts.Basis)
		}
		if opts.Strict {
			return strictFallback(observedNorm, bgNorm, opts.Basis)
		}
	}

	return freeSolveResult(observedNorm, bgNorm)
}

func freeSolveResult(observed, bg colour.NRGB) colour.RGBA {
	effective, alpha := unmix.FreeSolve(observed, bg)
	return unmix.ComputeResultColor([]float32{1}, alpha, []colour.NRGB{effective})
}

// strictFallback implements spec.md §4.5's strict-mode fallback: pick the
// single basis color minimizing post-clamp reconstruction error and emit
// its single-basis result even if that result is itself imperfect.
func strictFallback(observed, bg colour.NRGB, basis []colour.NRGB) colour.RGBA {
	best := 0
	bestErr := math.Inf(1)
	var bestResult unmix.Result

	for i, f := range basis {
		res, _ := unmix.Unmix(observed, bg, []colour.NRGB{f})
		out := unmix.ComputeResultColor(res.Weights, res.Alpha, []colour.NRGB{f})
		if e := reconstructionError(out, observed, bg); e < bestErr {
			bestErr = e
			best = i
			bestResult = res
		}
	}
	return unmix.ComputeResultColor(bestResult.Weights, bestResult.Alpha, []colour.NRGB{basis[best]})
}

func reconstructionError(result colour.RGBA, observed, bg colour.NRGB) float64 {
	recon := colour.CompositeOverBackground(result, colour.FromNormalized(bg))
	dr := float64(recon.R)/255 - observed.R
	dg := float64(recon.G)/255 - observed.G
	db := float64(recon.B)/255 - observed.B
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func nearestBasisDistance(observed colour.NRGB, basis []colour.NRGB) float64 {
	best := math.Inf(1)
	for _, f := range basis {
		dr, dg, db := observed.R-f.R, observed.G-f.G, observed.B-f.B
		if d := math.Sqrt(dr*dr + dg*dg + db*db); d < best {
			best = d
		}
	}
	return best
}

// toNRGBACopy normalizes src to straight (non-premultiplied) alpha, per
// spec.md §3's Image/RGBA invariant. image.RGBA stores alpha-premultiplied
// channels, which would silently corrupt observed colors for any pixel
// with alpha < 255; image.NRGBA keeps R/G/B straight regardless of A.
func toNRGBACopy(src image.Image, bounds image.Rectangle) *image.NRGBA {
	if nrgba, ok := src.(*image.NRGBA); ok && nrgba.Bounds() == bounds {
		return nrgba
	}
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, src, bounds.Min, draw.Src)
	return out
}

// observedColor implements original_source/src/process.rs's
// composite_pixel_over_background: a pixel that already carries partial
// alpha is pre-composited over the declared background using its own
// alpha, producing the opaque-equivalent color the kernel treats as
// "observed." Fully opaque pixels pass through unchanged.
func observedColor(px color.NRGBA, bg colour.RGB) colour.RGB {
	if px.A >= 255 {
		return colour.RGB{R: px.R, G: px.G, B: px.B}
	}
	return colour.CompositeOverBackground(colour.RGBA{R: px.R, G: px.G, B: px.B, A: px.A}, bg)
}
