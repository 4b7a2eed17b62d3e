package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bgone <input> [output]",
	Short: "Remove a solid background color, reconstructing a transparent foreground",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  run,
}

var (
	bgFlag        string
	fgFlags       []string
	strictFlag    bool
	thresholdFlag float64
	trimFlag      bool
	detectFlag    bool
)

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.Flags().StringVarP(&bgFlag, "bg", "b", "", "background color, hex (defaults to border detection)")
	rootCmd.Flags().StringArrayVarP(&fgFlags, "fg", "f", nil, "foreground color, hex or \"auto\" (repeatable)")
	rootCmd.Flags().BoolVarP(&strictFlag, "strict", "s", false, "express every pixel using only the declared/deduced basis")
	rootCmd.Flags().Float64VarP(&thresholdFlag, "threshold", "t", 0, "basis-proximity threshold (default 0.05)")
	rootCmd.Flags().BoolVar(&trimFlag, "trim", false, "crop the output to its non-transparent bounding box")
	rootCmd.Flags().BoolVar(&detectFlag, "detect", false, "print the detected background color and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
