// Package engine defines the boundary to the external character
// recognition service and its backends.
//
// The pipeline treats recognition as a black box: a cropped raster region
// and an optional language hint go in, text and a confidence come out
// within a bounded time. Three backends implement the contract:
//
//   - tesseract: local Tesseract via gosseract (default)
//   - vision: Google Cloud Vision document text detection
//   - documentai: Google Document AI processor
//
// The Google backends require credentials in the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: path to a service account JSON, OR
//   - GOOGLE_CREDENTIALS: inline JSON credentials string
package engine

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"docpipe/internal/raster"
)

// Request carries a single cropped region image for recognition.
type Request struct {
	// Image is the cropped region, owned by the dispatcher for the
	// duration of the call.
	Image *raster.Image

	// LanguageHint is an optional BCP-47 / ISO 639 language code the
	// backend may use to select trained data.
	LanguageHint string
}

// Response is the recognizer output for one region.
type Response struct {
	// Text is the extracted text, possibly empty.
	Text string

	// Confidence is the engine-reported confidence in [0, 1].
	Confidence float64

	// Language is the dominant detected language, if reported.
	Language string
}

// Engine is the recognition service contract: one region in, one
// response out, within the lifetime of the context.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, req Request) (*Response, error)
}

// New returns the engine selected by name: tesseract, vision or
// documentai.
func New(ctx context.Context, name string) (Engine, error) {
	switch name {
	case "tesseract":
		return NewTesseractEngine(), nil
	case "vision":
		return NewVisionEngine(ctx)
	case "documentai":
		return NewDocumentAIEngine(ctx)
	default:
		return nil, fmt.Errorf("engine: unknown engine %q", name)
	}
}

// encodePNG serializes a raster region for backends that consume encoded
// image payloads.
func encodePNG(img *raster.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.ToImage()); err != nil {
		return nil, fmt.Errorf("engine: encode region: %w", err)
	}
	return buf.Bytes(), nil
}

// clamp01 bounds a backend-reported confidence into [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
