package engine

import (
	"bytes"
	"context"
	"os"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine implements Engine using Google Cloud Vision document text
// detection.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionEngine creates a Vision-backed engine with credentials from the
// environment.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapEngineError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapEngineError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapEngineError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{client: client}
}

func (v *VisionEngine) Name() string { return "vision" }

// Recognize submits the region image for document text detection and
// returns the full text with the page-level confidence.
func (v *VisionEngine) Recognize(ctx context.Context, req Request) (*Response, error) {
	const op = "Recognize"

	if req.Image == nil || len(req.Image.Pix) == 0 {
		return nil, WrapEngineError(op, ErrEmptyRegion, "")
	}

	payload, err := encodePNG(req.Image)
	if err != nil {
		return nil, WrapEngineError(op, err, "failed to encode region")
	}

	img, err := vision.NewImageFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, WrapEngineError(op, err, "failed to build request image")
	}

	var ictx *visionpb.ImageContext
	if req.LanguageHint != "" {
		ictx = &visionpb.ImageContext{LanguageHints: []string{req.LanguageHint}}
	}

	annotation, err := v.client.DetectDocumentText(ctx, img, ictx)
	if err != nil {
		return nil, WrapEngineError(op, ErrRecognitionFailed, err.Error())
	}
	if annotation == nil {
		// No text in the region is a valid result, not a failure.
		return &Response{}, nil
	}

	// Confidence and language come from the page annotations; average the
	// block confidences when more than one page is reported.
	var confSum float64
	var confCount int
	language := ""
	for _, page := range annotation.Pages {
		if page.Confidence > 0 {
			confSum += float64(page.Confidence)
			confCount++
		}
		if language == "" && page.Property != nil {
			for _, lang := range page.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					language = lang.LanguageCode
					break
				}
			}
		}
	}

	confidence := 0.0
	if confCount > 0 {
		confidence = clamp01(confSum / float64(confCount))
	}

	return &Response{
		Text:       annotation.Text,
		Confidence: confidence,
		Language:   language,
	}, nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
