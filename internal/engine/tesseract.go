package engine

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine using a local Tesseract installation
// through gosseract. It is the default backend: free, offline and good
// enough for clean binarized input.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the Tesseract-backed engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (t *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs Tesseract over the region image. Confidence is the mean
// word confidence reported by Tesseract, scaled into [0, 1].
func (t *TesseractEngine) Recognize(ctx context.Context, req Request) (*Response, error) {
	const op = "Recognize"

	if req.Image == nil || len(req.Image.Pix) == 0 {
		return nil, WrapEngineError(op, ErrEmptyRegion, "")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := encodePNG(req.Image)
	if err != nil {
		return nil, WrapEngineError(op, err, "failed to encode region")
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(payload); err != nil {
		return nil, WrapEngineError(op, err, "failed to set image")
	}
	if req.LanguageHint != "" {
		if err := client.SetLanguage(req.LanguageHint); err != nil {
			return nil, WrapEngineError(op, err, "failed to set language "+req.LanguageHint)
		}
	}

	text, err := client.Text()
	if err != nil {
		return nil, WrapEngineError(op, ErrRecognitionFailed, err.Error())
	}

	return &Response{
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(client),
		Language:   req.LanguageHint,
	}, nil
}

// meanWordConfidence averages the per-word confidences from Tesseract's
// word bounding boxes. Zero words means zero confidence.
func meanWordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return clamp01(sum / float64(len(boxes)))
}
