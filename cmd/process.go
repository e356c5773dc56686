package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docpipe/internal/assemble"
	"docpipe/internal/config"
	"docpipe/internal/engine"
	"docpipe/internal/logger"
	"docpipe/internal/pipeline"
	"docpipe/internal/raster"
)

var processCmd = &cobra.Command{
	Use:   "process [image-file]",
	Short: "Run the full pipeline over a document image",
	Long: `Process a document image (PNG, JPEG, BMP, TIFF) through the full
pipeline: deskew, adaptive binarization, layout segmentation, per-region
recognition and reading-order assembly.

The recognition engine is selected with DOCPIPE_ENGINE or --engine:
tesseract (default, local), vision (Google Cloud Vision) or documentai
(Google Document AI). The Google engines need credentials in
GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.`,
	Example: `  # Extract text from a scanned page to stdout
  docpipe process scan.png

  # Full document with regions and diagnostics as JSON
  docpipe process scan.png --json -o result.json

  # Per-region CSV table, recognized with Google Cloud Vision
  docpipe process photo.jpg --engine vision --csv -o regions.csv

  # Give the engine a language hint
  docpipe process brief.png --lang deu`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	processCmd.Flags().Bool("json", false, "Output the full document as JSON")
	processCmd.Flags().Bool("csv", false, "Output a per-region CSV table")
	processCmd.Flags().String("engine", "", "Recognition engine: tesseract, vision, documentai (default from env)")
	processCmd.Flags().String("lang", "", "Language hint forwarded to the engine")
	processCmd.Flags().Bool("rgb", false, "Decode the input as RGB instead of grayscale")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	csvOutput, _ := cmd.Flags().GetBool("csv")
	engineName, _ := cmd.Flags().GetString("engine")
	lang, _ := cmd.Flags().GetString("lang")
	rgb, _ := cmd.Flags().GetBool("rgb")

	if jsonOutput && csvOutput {
		return fmt.Errorf("--json and --csv are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if engineName != "" {
		cfg.Engine = engineName
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	imagePath := args[0]
	log.Info().
		Str("file", imagePath).
		Str("engine", cfg.Engine).
		Str("lang", lang).
		Msg("Starting document processing")

	ctx, cancel := signalContext(log)
	defer cancel()

	img, err := decodeImage(imagePath, rgb)
	if err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg.Engine)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, eng)
	if err != nil {
		return err
	}
	p.LanguageHint = lang

	doc, err := p.Run(ctx, img)
	if err != nil {
		return handlePipelineError(err, log)
	}

	log.Info().
		Int("regions", len(doc.Entries)).
		Float64("confidence", doc.Confidence).
		Msg("Processing completed")

	return writeDocument(doc, outputPath, jsonOutput, csvOutput, log)
}

// decodeImage reads and decodes the input file into an owned raster buffer.
func decodeImage(path string, rgb bool) (*raster.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	space := raster.Gray
	if rgb {
		space = raster.RGB
	}
	img, err := raster.Decode(f, space)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, cancelling pipeline")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handlePipelineError maps pipeline failures onto user-facing messages.
func handlePipelineError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Pipeline failed")

	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		var cErr *pipeline.CancelledError
		if errors.As(err, &cErr) {
			return fmt.Errorf("processing cancelled at stage %q; no document was produced", cErr.Point)
		}
		return fmt.Errorf("processing cancelled; no document was produced")
	case errors.Is(err, pipeline.ErrInvalidInput):
		return fmt.Errorf("input image is invalid or empty: %w", err)
	case errors.Is(err, engine.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS "+
			"to a service account JSON path, or GOOGLE_CREDENTIALS to inline JSON: %w", err)
	default:
		return fmt.Errorf("processing failed: %w", err)
	}
}

// writeDocument serializes the document in the selected format.
func writeDocument(doc *assemble.Document, outputPath string, jsonOutput, csvOutput bool, log zerolog.Logger) error {
	var data []byte
	var err error

	switch {
	case jsonOutput:
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	case csvOutput:
		data, err = documentCSV(doc)
		if err != nil {
			return fmt.Errorf("failed to create CSV output: %w", err)
		}
	default:
		data = []byte(doc.Text)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Document written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput && !csvOutput {
		fmt.Println()
	}
	return nil
}

// documentCSV renders one row per region: order, kind, box, text,
// confidence and any diagnostic.
func documentCSV(doc *assemble.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"order", "kind", "x", "y", "w", "h", "text", "confidence", "diagnostic"}); err != nil {
		return nil, err
	}
	for _, e := range doc.Entries {
		row := []string{
			strconv.Itoa(e.Region.Order),
			string(e.Region.Kind),
			strconv.Itoa(e.Region.X),
			strconv.Itoa(e.Region.Y),
			strconv.Itoa(e.Region.W),
			strconv.Itoa(e.Region.H),
			e.Result.Text,
			strconv.FormatFloat(e.Result.Confidence, 'f', 3, 64),
			e.Result.Diagnostic,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
