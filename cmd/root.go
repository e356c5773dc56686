package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docpipe/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "docpipe - document image preprocessing and OCR pipeline",
	Long: `docpipe turns photographed or scanned documents into ordered text.

It deskews the image, binarizes it with illumination-robust adaptive
thresholding, segments the layout into lines, blocks and table cells,
recognizes each region through a pluggable OCR engine, and reassembles
the results into a single document in reading order.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docpipe executed")

		fmt.Println("docpipe - document image preprocessing and OCR pipeline")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
