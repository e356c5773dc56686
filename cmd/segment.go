package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docpipe/internal/binarize"
	"docpipe/internal/config"
	"docpipe/internal/logger"
	"docpipe/internal/normalize"
	"docpipe/internal/segment"
)

var segmentCmd = &cobra.Command{
	Use:   "segment [image-file]",
	Short: "Segment a document image without running recognition",
	Long: `Run only the preprocessing stages (deskew, adaptive binarization,
layout segmentation) and print the detected regions as JSON. Useful for
tuning DOCPIPE_WINDOW_SIZE and DOCPIPE_K against a sample document
without paying for recognition calls.`,
	Example: `  # Dump detected regions
  docpipe segment scan.png

  # Write the region list to a file
  docpipe segment scan.png -o regions.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

// segmentOutput is the JSON shape of the segmentation dump.
type segmentOutput struct {
	File          string           `json:"file"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	SkewAngle     float64          `json:"skew_angle"`
	LowSkewSignal bool             `json:"low_skew_signal,omitempty"`
	OtsuFallback  bool             `json:"otsu_fallback,omitempty"`
	Regions       []segment.Region `json:"regions"`
}

func runSegment(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("segment")

	outputPath, _ := cmd.Flags().GetString("output")
	imagePath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	img, err := decodeImage(imagePath, false)
	if err != nil {
		return err
	}

	norm, err := (&normalize.Normalizer{}).Normalize(img)
	if err != nil {
		return err
	}

	bin, err := binarize.Binarize(norm.Image, binarize.Options{
		WindowSize: cfg.WindowSize,
		K:          cfg.K,
		Invert:     cfg.Invert,
	})
	if err != nil {
		return err
	}

	mask := bin.Mask
	if cfg.Denoise {
		mask = binarize.Denoise(mask)
	}

	regions := segment.Segment(mask, segment.DefaultOptions())
	log.Info().
		Str("file", imagePath).
		Float64("angle", norm.Angle).
		Int("regions", len(regions)).
		Msg("Segmentation completed")

	out := segmentOutput{
		File:          imagePath,
		Width:         img.Width,
		Height:        img.Height,
		SkewAngle:     norm.Angle,
		LowSkewSignal: norm.LowConfidence,
		OtsuFallback:  bin.OtsuFallback,
		Regions:       regions,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}

	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
