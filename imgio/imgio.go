// Package imgio holds the small file-I/O helpers that sit outside the
// core pipeline: reading an image from disk and writing one back out.
// The core (bgone.Process) only ever sees already-decoded bytes; this
// package is what a caller such as cmd/bgone uses to get those bytes off
// disk in the first place.
package imgio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
)

// ReadFile reads path and returns its raw bytes, suitable for passing
// straight into bgone.Options.Input.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// Decode decodes encoded image bytes (PNG or JPEG) into an image.Image.
func Decode(encoded []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes data to path, creating or truncating it, with the
// permissions a generated image output is conventionally given.
func WriteFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
