// Package dispatch fans region recognition out to the external engine.
//
// Regions are independent, so they are dispatched concurrently up to a
// bounded worker count. Results are keyed by region id, never by arrival
// order, so completion order has no effect on assembly. A per-region
// failure degrades to an empty zero-confidence result with a diagnostic;
// only document-level cancellation aborts the dispatch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"docpipe/internal/engine"
	"docpipe/internal/raster"
	"docpipe/internal/segment"
)

// ErrCancelled is returned when the document-level context is cancelled
// while regions are still being dispatched.
var ErrCancelled = errors.New("dispatch cancelled")

// Diagnostic codes attached to degraded region results.
const (
	DiagTimedOut = "timed-out"
	DiagFailed   = "engine-failure"
	DiagCropped  = "crop-failure"
)

// Result is the recognition outcome for one region. Exactly one Result
// exists per dispatched region, even on failure.
type Result struct {
	// RegionID references the segmented TextRegion.
	RegionID int `json:"region_id"`

	// Text is the extracted text, possibly empty.
	Text string `json:"text"`

	// Confidence is in [0, 1]; 0 for failed or timed-out regions.
	Confidence float64 `json:"confidence"`

	// Language is the engine-reported language hint, if any.
	Language string `json:"language,omitempty"`

	// Diagnostic is non-empty when the region degraded (timed out,
	// engine failure, crop failure).
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Failed reports whether the region produced a degraded result.
func (r Result) Failed() bool { return r.Diagnostic != "" }

// Dispatcher submits segmented regions to the recognition engine.
type Dispatcher struct {
	// Engine is the recognition backend. Required.
	Engine engine.Engine

	// MaxConcurrency bounds the number of in-flight engine calls.
	MaxConcurrency int

	// Timeout bounds the total dispatch wall time. Regions still pending
	// when it elapses are marked timed-out rather than blocking.
	Timeout time.Duration

	// GracePeriod is how long in-flight calls may drain after the
	// document context is cancelled before they are abandoned.
	GracePeriod time.Duration

	// LanguageHint is forwarded to the engine with every region.
	LanguageHint string
}

// Dispatch crops every leaf region out of the working image and recognizes
// them concurrently. It returns one Result per leaf region keyed by region
// id. The only error condition is document-level cancellation; engine
// failures and timeouts degrade into per-region diagnostics instead.
func (d *Dispatcher) Dispatch(ctx context.Context, img *raster.Image, regions []segment.Region) (map[int]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	var leaves []segment.Region
	for _, r := range regions {
		if r.IsLeaf() {
			leaves = append(leaves, r)
		}
	}
	if len(leaves) == 0 {
		return map[int]Result{}, nil
	}

	// Pre-fill every slot as timed-out; workers overwrite on completion.
	// Regions the global timeout strands keep the default, so the keyed
	// join downstream always finds exactly one result per region.
	results := make([]Result, len(leaves))
	for i, r := range leaves {
		results[i] = Result{RegionID: r.ID, Confidence: 0, Diagnostic: DiagTimedOut}
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(d.MaxConcurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range leaves {
			if dispatchCtx.Err() != nil {
				break
			}
			i := i
			g.Go(func() error {
				results[i] = d.recognizeOne(dispatchCtx, img, leaves[i])
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		// The dispatch timeout also lands here once workers observe it;
		// stranded regions keep their timed-out default.
	case <-ctx.Done():
		// Document cancelled: let in-flight calls drain for the grace
		// period, then abandon them.
		if d.GracePeriod > 0 {
			timer := time.NewTimer(d.GracePeriod)
			select {
			case <-done:
			case <-timer.C:
			}
			timer.Stop()
		}
		return nil, fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	out := make(map[int]Result, len(results))
	for _, r := range results {
		out[r.RegionID] = r
	}
	return out, nil
}

// recognizeOne crops and recognizes a single region, mapping every failure
// mode into a degraded Result rather than an error.
func (d *Dispatcher) recognizeOne(ctx context.Context, img *raster.Image, region segment.Region) Result {
	crop, err := img.Crop(region.X, region.Y, region.W, region.H)
	if err != nil {
		return Result{RegionID: region.ID, Diagnostic: DiagCropped + ": " + err.Error()}
	}

	resp, err := d.Engine.Recognize(ctx, engine.Request{Image: crop, LanguageHint: d.LanguageHint})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Result{RegionID: region.ID, Diagnostic: DiagTimedOut}
		}
		return Result{RegionID: region.ID, Diagnostic: DiagFailed + ": " + err.Error()}
	}

	return Result{
		RegionID:   region.ID,
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Language:   resp.Language,
	}
}
