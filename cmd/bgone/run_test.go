package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestDefaultOutputPathAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "photo.png")
	writeTestPNG(t, input)

	first := defaultOutputPath(input)
	if filepath.Base(first) != "photo-bgone.png" {
		t.Fatalf("first = %q, want photo-bgone.png", first)
	}

	writeTestPNG(t, first)
	second := defaultOutputPath(input)
	if filepath.Base(second) != "photo-bgone-1.png" {
		t.Fatalf("second = %q, want photo-bgone-1.png", second)
	}

	writeTestPNG(t, second)
	third := defaultOutputPath(input)
	if filepath.Base(third) != "photo-bgone-2.png" {
		t.Fatalf("third = %q, want photo-bgone-2.png", third)
	}
}

func TestRunProducesOutputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	writeTestPNG(t, input)
	output := filepath.Join(dir, "out.png")

	cmd := *rootCmd
	if err := run(&cmd, []string{input, output}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}

func TestRunDetectFlagPrintsAndSkipsOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	writeTestPNG(t, input)

	detectFlag = true
	defer func() { detectFlag = false }()

	cmd := *rootCmd
	if err := run(&cmd, []string{input}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := os.Stat(defaultOutputPath(input)); err == nil {
		t.Fatal("--detect should not write an output file")
	}
}

func TestRunRejectsBadBackgroundHex(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	writeTestPNG(t, input)

	bgFlag = "not-a-color"
	defer func() { bgFlag = "" }()

	cmd := *rootCmd
	if err := run(&cmd, []string{input}); err == nil {
		t.Fatal("expected error for invalid --bg hex")
	}
}
