// Package pipeline orchestrates the document processing stages in strict
// sequence: normalize, binarize, segment, dispatch, assemble.
//
// The stages before dispatch are sequential passes over a single owned
// buffer; dispatch is the only concurrent stage. Cancellation is checked
// between stages and honored mid-dispatch. A run either produces a full
// Document (possibly with diagnostics) or reports exactly why it did not.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docpipe/internal/assemble"
	"docpipe/internal/binarize"
	"docpipe/internal/config"
	"docpipe/internal/dispatch"
	"docpipe/internal/engine"
	"docpipe/internal/logger"
	"docpipe/internal/normalize"
	"docpipe/internal/raster"
	"docpipe/internal/segment"
)

// Diagnostic codes recorded on the Document.
const (
	CodeLowSkewSignal  = "low-confidence-normalization"
	CodeOtsuFallback   = "binarization-fallback"
	CodeNoRegions      = "no-regions"
	CodeRegionDegraded = "region-degraded"
	CodeLowConfidence  = "low-confidence"
)

// Pipeline runs the full preprocessing and reconstruction sequence for
// one document at a time. The recognition engine is the only resource
// shared across concurrent documents.
type Pipeline struct {
	// LanguageHint is forwarded to the recognition engine.
	LanguageHint string

	cfg    *config.Config
	engine engine.Engine
	log    zerolog.Logger
}

// New validates the configuration and builds a pipeline. Invalid options
// fail here, never mid-run.
func New(cfg *config.Config, eng engine.Engine) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, fmt.Errorf("pipeline: recognition engine is required")
	}
	return &Pipeline{
		cfg:    cfg,
		engine: eng,
		log:    logger.WithComponent("pipeline"),
	}, nil
}

// Run processes one decoded image into a Document. Returns ErrInvalidInput
// for malformed input, a CancelledError when the context is cancelled, and
// otherwise always a full Document with diagnostics for anything that
// degraded along the way.
func (p *Pipeline) Run(ctx context.Context, img *raster.Image) (*assemble.Document, error) {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Logger()

	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var diags []assemble.Diagnostic

	// Normalize
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Point: "normalize", Cause: err}
	}
	norm, err := (&normalize.Normalizer{}).Normalize(img.Grayscale())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if norm.LowConfidence {
		diags = append(diags, assemble.Diagnostic{
			Stage:    "normalize",
			Code:     CodeLowSkewSignal,
			Message:  fmt.Sprintf("skew signal %.3f below threshold, image passed through", norm.SignalStrength),
			RegionID: -1,
		})
	}
	log.Debug().Float64("angle", norm.Angle).Float64("signal", norm.SignalStrength).Msg("normalization complete")

	// Binarize
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Point: "binarize", Cause: err}
	}
	bin, err := binarize.Binarize(norm.Image, binarize.Options{
		WindowSize: p.cfg.WindowSize,
		K:          p.cfg.K,
		Invert:     p.cfg.Invert,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if bin.OtsuFallback {
		diags = append(diags, assemble.Diagnostic{
			Stage:    "binarize",
			Code:     CodeOtsuFallback,
			Message:  fmt.Sprintf("adaptive mask degenerate, fell back to global threshold %d", bin.Threshold),
			RegionID: -1,
		})
		log.Warn().Uint8("threshold", bin.Threshold).Msg("binarization fell back to Otsu")
	}

	mask := bin.Mask
	if p.cfg.Denoise {
		mask = binarize.Denoise(mask)
	}

	// Segment
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Point: "segment", Cause: err}
	}
	regions := segment.Segment(mask, segment.DefaultOptions())
	if len(regions) == 0 {
		diags = append(diags, assemble.Diagnostic{
			Stage:    "segment",
			Code:     CodeNoRegions,
			Message:  "no foreground regions found",
			RegionID: -1,
		})
	}
	log.Debug().Int("regions", len(regions)).Msg("segmentation complete")

	// Dispatch
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Point: "dispatch", Cause: err}
	}
	dispatcher := &dispatch.Dispatcher{
		Engine:         p.engine,
		MaxConcurrency: p.cfg.MaxConcurrency,
		Timeout:        p.cfg.DispatchTimeout,
		GracePeriod:    p.cfg.CancelGracePeriod,
		LanguageHint:   p.LanguageHint,
	}
	results, err := dispatcher.Dispatch(ctx, norm.Image, regions)
	if err != nil {
		return nil, &CancelledError{Point: "dispatch", Cause: err}
	}

	// Assemble
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Point: "assemble", Cause: err}
	}
	doc, err := assemble.Assemble(regions, results)
	if err != nil {
		return nil, err
	}
	doc.RunID = runID
	doc.Diagnostics = append(diags, regionDiagnostics(doc.Entries, p.cfg.MinConfidence)...)

	log.Info().
		Int("regions", len(doc.Entries)).
		Float64("confidence", doc.Confidence).
		Int("diagnostics", len(doc.Diagnostics)).
		Msg("document assembled")
	return doc, nil
}

// regionDiagnostics surfaces per-region degradations: dispatch failures
// and results below the configured confidence floor. Low-confidence
// regions are reported, never dropped.
func regionDiagnostics(entries []assemble.Entry, minConfidence float64) []assemble.Diagnostic {
	var diags []assemble.Diagnostic
	for _, e := range entries {
		if e.Result.Failed() {
			diags = append(diags, assemble.Diagnostic{
				Stage:    "dispatch",
				Code:     CodeRegionDegraded,
				Message:  e.Result.Diagnostic,
				RegionID: e.Region.ID,
			})
			continue
		}
		if e.Result.Confidence < minConfidence {
			diags = append(diags, assemble.Diagnostic{
				Stage:    "assemble",
				Code:     CodeLowConfidence,
				Message:  fmt.Sprintf("confidence %.2f below floor %.2f", e.Result.Confidence, minConfidence),
				RegionID: e.Region.ID,
			})
		}
	}
	return diags
}
