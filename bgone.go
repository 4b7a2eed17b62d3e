// Package bgone removes a solid background color from a raster image,
// reconstructing a transparent foreground: for every pixel it recovers an
// alpha value and a foreground color such that the original pixel equals
// the alpha-composite of that foreground over the declared background.
//
// The package exposes both a synchronous Process and an async
// ProcessAsync that offloads work to a process-wide worker pool.
package bgone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nullpixel/bgone/colour"
	"github.com/nullpixel/bgone/deduce"
	"github.com/nullpixel/bgone/detect"
	"github.com/nullpixel/bgone/driver"
	"github.com/nullpixel/bgone/internal/parallel"
	"github.com/nullpixel/bgone/trim"
	"github.com/nullpixel/bgone/unmix"
)

// Re-exported sentinel errors from sub-packages, plus the two façade-level
// kinds that only make sense once bytes are being decoded or encoded.
var (
	ErrInvalidColor       = colour.ErrInvalidColor
	ErrEmptyImage         = detect.ErrEmptyImage
	ErrInsufficientColors = unmix.ErrInsufficientColors
	ErrDecodeFailed       = errors.New("bgone: image decode failed")
	ErrEncodeFailed       = errors.New("bgone: image encode failed")
)

// DefaultThreshold is the Euclidean distance in normalized 0..1 RGB to the
// nearest basis color at or under which a non-strict pixel is still routed
// through the constrained basis solve rather than the free solve. (The
// deducer scales the same value by sqrt(3), so that 1.0 there is the full
// cube diagonal.)
const DefaultThreshold = 0.05

// GetDefaultThreshold returns DefaultThreshold; exposed as a function to
// mirror the library surface's getDefaultThreshold operation.
func GetDefaultThreshold() float64 { return DefaultThreshold }

// BasisSlot is one entry of Options.Foreground: either a concrete color or
// the AUTO sentinel, resolved by the deducer before the driver runs.
type BasisSlot struct {
	Color colour.RGB
	Auto  bool
}

// Concrete builds a BasisSlot carrying a known foreground color.
func Concrete(c colour.RGB) BasisSlot { return BasisSlot{Color: c} }

// Auto is the sentinel BasisSlot filled in by automatic deduction.
var Auto = BasisSlot{Auto: true}

// Options configures a single Process/ProcessAsync call.
type Options struct {
	Input      []byte
	Background *colour.RGB
	Foreground []BasisSlot
	Strict     bool
	Threshold  float64
	Trim       bool
}

func (o Options) threshold() float64 {
	if o.Threshold <= 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// SetLogger configures the package-wide logger. bgone produces no output
// by default; pass nil to restore that silent behavior.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger currently in use.
func Logger() *slog.Logger { return loggerPtr.Load() }

var (
	workerPoolOnce sync.Once
	workerPool     *parallel.Pool
)

// pool lazily creates the single, process-wide worker pool, reused across
// every Process/ProcessAsync call, per the "one owned worker pool per
// process" resource model.
func pool() *parallel.Pool {
	workerPoolOnce.Do(func() {
		workerPool = parallel.New(0)
	})
	return workerPool
}

// Process runs the full decode -> detect -> deduce -> drive -> trim ->
// encode pipeline synchronously and returns the resulting PNG bytes.
func Process(opts Options) ([]byte, error) {
	return process(opts, pool())
}

// Future is the result of ProcessAsync: the work is already running on
// the package's worker pool by the time Future is returned.
type Future struct {
	done   chan struct{}
	result []byte
	err    error
}

// Wait blocks until the pipeline finishes or ctx is done, whichever comes
// first. Once started, the pipeline always runs to completion on the
// worker pool even if the caller abandons this Future.
func (f *Future) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync submits opts to the package's worker pool and returns
// immediately; the caller observes completion through the returned
// Future. It never blocks the calling goroutine during decode, unmix, or
// encode.
func ProcessAsync(opts Options) *Future {
	f := &Future{done: make(chan struct{})}
	pool().Submit(func() {
		f.result, f.err = process(opts, pool())
		close(f.done)
	})
	return f
}

func process(opts Options, p *parallel.Pool) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(opts.Input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	bg, err := resolveBackground(img, opts.Background)
	if err != nil {
		return nil, err
	}

	basis, err := resolveForeground(img, bg, opts)
	if err != nil {
		return nil, err
	}

	driverOpts := driver.Options{
		Background: colour.ToNormalized(bg),
		Basis:      basis,
		Strict:     opts.Strict,
		Threshold:  opts.threshold(),
	}
	out := driver.Run(img, driverOpts, p)

	if opts.Trim {
		out = trim.Image(out)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

func resolveBackground(img image.Image, declared *colour.RGB) (colour.RGB, error) {
	if declared != nil {
		return *declared, nil
	}
	return detect.Background(img)
}

func resolveForeground(img image.Image, bg colour.RGB, opts Options) ([]colour.NRGB, error) {
	if len(opts.Foreground) == 0 {
		return nil, nil
	}

	basis := make([]colour.NRGB, len(opts.Foreground))
	autoCount := 0
	for _, slot := range opts.Foreground {
		if slot.Auto {
			autoCount++
		}
	}

	var deduced []colour.RGB
	if autoCount > 0 {
		var err error
		deduced, err = deduce.Colors(img, colour.ToNormalized(bg), opts.threshold(), autoCount)
		if errors.Is(err, deduce.ErrInsufficientColors) {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientColors, err)
		}
		if err != nil {
			return nil, err
		}
	}

	next := 0
	for i, slot := range opts.Foreground {
		if slot.Auto {
			basis[i] = colour.ToNormalized(deduced[next])
			next++
			continue
		}
		basis[i] = colour.ToNormalized(slot.Color)
	}
	return basis, nil
}

// DetectBackground decodes img and returns its detected border color.
func DetectBackground(encoded []byte) (colour.RGB, error) {
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return colour.RGB{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return detect.Background(img)
}

// TrimImage decodes img, crops it to the bounding box of its
// non-transparent pixels, and re-encodes the result as PNG.
func TrimImage(encoded []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	nrgba := image.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			nrgba.Set(x, y, img.At(x, y))
		}
	}

	out := trim.Image(nrgba)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}

// ParseColor parses a hex color string; see colour.ParseColor.
func ParseColor(hex string) (colour.RGB, error) { return colour.ParseColor(hex) }

// UnmixColor decomposes an observed color against a basis and background;
// see unmix.UnmixColor.
func UnmixColor(observed colour.RGB, basis []colour.RGB, bg colour.RGB) (unmix.Result, error) {
	normalized := make([]colour.NRGB, len(basis))
	for i, c := range basis {
		normalized[i] = colour.ToNormalized(c)
	}
	return unmix.UnmixColor(observed, normalized, colour.ToNormalized(bg))
}

// ComputeUnmixResultColor composes an RGBA from kernel weights/alpha/basis;
// see unmix.ComputeResultColor.
func ComputeUnmixResultColor(weights []float32, alpha float32, basis []colour.RGB) colour.RGBA {
	normalized := make([]colour.NRGB, len(basis))
	for i, c := range basis {
		normalized[i] = colour.ToNormalized(c)
	}
	return unmix.ComputeResultColor(weights, alpha, normalized)
}

// CompositeOverBackground alpha-composites a straight-alpha pixel over bg;
// see colour.CompositeOverBackground.
func CompositeOverBackground(pixel colour.RGBA, bg colour.RGB) colour.RGB {
	return colour.CompositeOverBackground(pixel, bg)
}
