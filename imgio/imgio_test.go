package imgio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func TestRoundTripReadDecodeEncodeWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")

	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 80), G: uint8(y * 80), B: 5, A: 255})
		}
	}
	encoded, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if err := WriteFile(path, encoded); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	read, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	decoded, err := Decode(read)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %+v, want %+v", decoded.Bounds(), img.Bounds())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			r, g, b, a := decoded.At(x, y).RGBA()
			wr, wg, wb, wa := img.At(x, y).RGBA()
			if r != wr || g != wg || b != wb || a != wa {
				t.Errorf("pixel (%d,%d) = (%d,%d,%d,%d), want (%d,%d,%d,%d)", x, y, r, g, b, a, wr, wg, wb, wa)
			}
		}
	}
}

func TestDecodeInvalidBytes(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile("/nonexistent/path/to/file.png"); err == nil {
		t.Fatal("expected read error")
	}
}
