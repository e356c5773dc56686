package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docpipe/internal/logger"
)

// DocumentAIConfig holds the processor addressing for Document AI.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIEngine implements Engine using a Google Document AI OCR
// processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIEngine creates a Document AI engine with configuration from
// the environment.
// Requires: GOOGLE_PROJECT_ID (or GOOGLE_CLOUD_PROJECT), GOOGLE_PROCESSOR_ID
// Optional: GOOGLE_LOCATION (e.g., "us" or "eu", default "us")
func NewDocumentAIEngine(ctx context.Context) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	config := DocumentAIConfig{
		ProjectID:   getEnvVar("GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		Location:    getEnvVar("GOOGLE_LOCATION", "GOOGLE_CLOUD_LOCATION"),
		ProcessorID: getEnvVar("GOOGLE_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"),
		Timeout:     60 * time.Second,
	}

	if config.ProjectID == "" {
		return nil, WrapEngineError(op, ErrMissingCredentials, "GOOGLE_PROJECT_ID or GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapEngineError(op, ErrMissingCredentials, "GOOGLE_PROCESSOR_ID or DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption

	// Set regional endpoint if not us-central1
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapEngineError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapEngineError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// NewDocumentAIEngineWithConfig creates an engine with explicit config and client (for testing).
func NewDocumentAIEngineWithConfig(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIEngine {
	return &DocumentAIEngine{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

func (d *DocumentAIEngine) Name() string { return "documentai" }

// Recognize submits the region image as a raw document and returns the
// extracted text with the average page layout confidence.
func (d *DocumentAIEngine) Recognize(ctx context.Context, req Request) (*Response, error) {
	const op = "Recognize"

	if req.Image == nil || len(req.Image.Pix) == 0 {
		return nil, WrapEngineError(op, ErrEmptyRegion, "")
	}

	payload, err := encodePNG(req.Image)
	if err != nil {
		return nil, WrapEngineError(op, err, "failed to encode region")
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	request := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  payload,
				MimeType: "image/png",
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, request)
	if err != nil {
		return nil, WrapEngineError(op, ErrRecognitionFailed, err.Error())
	}

	doc := resp.GetDocument()
	if doc == nil {
		return &Response{}, nil
	}

	var confSum float64
	var confCount int
	for _, page := range doc.Pages {
		if layout := page.GetLayout(); layout != nil && layout.Confidence > 0 {
			confSum += float64(layout.Confidence)
			confCount++
		}
	}
	confidence := 0.0
	if confCount > 0 {
		confidence = clamp01(confSum / float64(confCount))
	}

	language := ""
	for _, page := range doc.Pages {
		for _, lang := range page.GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				language = lang.GetLanguageCode()
				break
			}
		}
		if language != "" {
			break
		}
	}

	return &Response{
		Text:       doc.GetText(),
		Confidence: confidence,
		Language:   language,
	}, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// processorName builds the full processor resource name.
func (d *DocumentAIEngine) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// getEnvVar returns the first non-empty value among the given keys.
func getEnvVar(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
