package bgone

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"
	"time"

	"github.com/nullpixel/bgone/colour"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// S1. 2x2 image, all pixels #ffffff, no options. Output: 2x2, all alpha=0.
func TestProcessScenarioS1(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	out, err := Process(Options{Input: encodePNG(t, img)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %+v, want 2x2", b)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			_, _, _, a := decoded.At(x, y).RGBA()
			if a != 0 {
				t.Errorf("pixel (%d,%d) alpha = %d, want 0", x, y, a)
			}
		}
	}
}

// S2. 2x2 image, [#ff0000,#ffffff;#ffffff,#ffffff], bg=#ffffff.
// Output: (0,0) = (255,0,0,255); all others alpha=0.
func TestProcessScenarioS2(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(0, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	bg := colour.RGB{R: 255, G: 255, B: 255}
	out, err := Process(Options{Input: encodePNG(t, img), Background: &bg})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	r, g, b, a := decoded.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 || a>>8 != 255 {
		t.Errorf("pixel (0,0) = (%d,%d,%d,%d), want (255,0,0,255)", r>>8, g>>8, b>>8, a>>8)
	}
	for _, p := range [][2]int{{1, 0}, {0, 1}, {1, 1}} {
		_, _, _, a := decoded.At(p[0], p[1]).RGBA()
		if a != 0 {
			t.Errorf("pixel %v alpha = %d, want 0", p, a)
		}
	}
}

// S6. parseColor("invalid") fails with InvalidColor.
func TestParseColorScenarioS6(t *testing.T) {
	if _, err := ParseColor("invalid"); err == nil {
		t.Fatal("expected error for invalid hex string")
	}
}

func TestGetDefaultThreshold(t *testing.T) {
	if GetDefaultThreshold() != 0.05 {
		t.Errorf("GetDefaultThreshold() = %v, want 0.05", GetDefaultThreshold())
	}
}

func TestProcessAsyncMatchesSync(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 10, A: 255})
		}
	}
	opts := Options{Input: encodePNG(t, img)}

	sync, err := Process(opts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	async, err := ProcessAsync(opts).Wait(ctx)
	if err != nil {
		t.Fatalf("ProcessAsync: %v", err)
	}

	if !bytes.Equal(sync, async) {
		t.Error("sync and async outputs differ")
	}
}

func TestProcessDecodeFailure(t *testing.T) {
	if _, err := Process(Options{Input: []byte("not an image")}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSetLoggerAndLoggerRoundTrip(t *testing.T) {
	l := slog.Default()
	SetLogger(l)
	if Logger() != l {
		t.Fatal("Logger() did not return the logger passed to SetLogger")
	}

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil after SetLogger(nil)")
	}
}

func TestDetectBackgroundWrapper(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 9, G: 8, B: 7, A: 255})
		}
	}
	got, err := DetectBackground(encodePNG(t, img))
	if err != nil {
		t.Fatalf("DetectBackground: %v", err)
	}
	if want := (colour.RGB{R: 9, G: 8, B: 7}); got != want {
		t.Errorf("DetectBackground() = %+v, want %+v", got, want)
	}
}

func TestTrimImageWrapper(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 6, 6))
	img.SetRGBA(2, 3, color.RGBA{R: 255, A: 255})

	out, err := TrimImage(encodePNG(t, img))
	if err != nil {
		t.Fatalf("TrimImage: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode trimmed: %v", err)
	}
	if decoded.Bounds().Dx() != 1 || decoded.Bounds().Dy() != 1 {
		t.Errorf("bounds = %+v, want 1x1", decoded.Bounds())
	}
}

func TestUnmixColorAndComputeResultColorWrappers(t *testing.T) {
	basis := []colour.RGB{{R: 255, G: 0, B: 0}}
	res, err := UnmixColor(colour.RGB{R: 128, G: 0, B: 0}, basis, colour.RGB{})
	if err != nil {
		t.Fatalf("UnmixColor: %v", err)
	}
	out := ComputeUnmixResultColor(res.Weights, res.Alpha, basis)
	if out.R < 250 || out.G != 0 || out.B != 0 {
		t.Errorf("ComputeUnmixResultColor() = %+v, want ~(255,0,0,_)", out)
	}
}
