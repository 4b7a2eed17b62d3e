package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nullpixel/bgone"
	"github.com/nullpixel/bgone/colour"
	"github.com/nullpixel/bgone/imgio"
	"github.com/spf13/cobra"
)

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	input, err := imgio.ReadFile(inputPath)
	if err != nil {
		return err
	}

	if detectFlag {
		bg, err := bgone.DetectBackground(input)
		if err != nil {
			return err
		}
		fmt.Printf("#%02x%02x%02x\n", bg.R, bg.G, bg.B)
		return nil
	}

	opts := bgone.Options{
		Input:     input,
		Strict:    strictFlag,
		Threshold: thresholdFlag,
		Trim:      trimFlag,
	}

	if bgFlag != "" {
		bg, err := colour.ParseColor(bgFlag)
		if err != nil {
			return err
		}
		opts.Background = &bg
	}

	if len(fgFlags) > 0 {
		opts.Foreground = make([]bgone.BasisSlot, len(fgFlags))
		for i, f := range fgFlags {
			if strings.EqualFold(f, "auto") {
				opts.Foreground[i] = bgone.Auto
				continue
			}
			c, err := colour.ParseColor(f)
			if err != nil {
				return err
			}
			opts.Foreground[i] = bgone.Concrete(c)
		}
	}

	result, err := bgone.Process(opts)
	if err != nil {
		return err
	}

	outputPath := ""
	if len(args) == 2 {
		outputPath = args[1]
	} else {
		outputPath = defaultOutputPath(inputPath)
	}

	return imgio.WriteFile(outputPath, result)
}

// defaultOutputPath computes "<stem>-bgone.png" next to the input,
// appending "-1", "-2", ... until it finds a name that doesn't already
// exist.
func defaultOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	candidate := filepath.Join(dir, stem+"-bgone.png")
	if !exists(candidate) {
		return candidate
	}
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-bgone-%d.png", stem, i))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
