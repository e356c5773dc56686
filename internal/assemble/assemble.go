// Package assemble joins segmented regions with their recognition results
// into the final Document.
//
// The stage performs no recognition or geometry work. It is a pure,
// deterministic data-shaping pass: keyed join by region id, sort by
// reading order, kind-aware separators, area-weighted confidence. Running
// it twice over the same input yields byte-identical output.
package assemble

import (
	"fmt"
	"sort"
	"strings"

	"docpipe/internal/dispatch"
	"docpipe/internal/segment"
)

// Diagnostic records a recoverable quality issue observed during a run.
type Diagnostic struct {
	// Stage names the pipeline stage that raised the diagnostic.
	Stage string `json:"stage"`

	// Code is a stable machine-readable identifier.
	Code string `json:"code"`

	// Message is the human-readable detail.
	Message string `json:"message"`

	// RegionID references the affected region, or -1 for document-level
	// diagnostics.
	RegionID int `json:"region_id"`
}

// Entry pairs a text region with its recognition result.
type Entry struct {
	Region segment.Region  `json:"region"`
	Result dispatch.Result `json:"result"`
}

// Document is the assembled output: entries sorted by reading order, the
// concatenated text, and the area-weighted aggregate confidence.
type Document struct {
	// RunID identifies the pipeline run that produced the document.
	RunID string `json:"run_id"`

	// Entries holds one (region, result) pair per leaf region, sorted by
	// reading-order index.
	Entries []Entry `json:"entries"`

	// Text is the reading-order concatenation with kind-aware
	// separators.
	Text string `json:"text"`

	// Confidence is the area-weighted mean of region confidences,
	// 0.0 for a document with no regions.
	Confidence float64 `json:"confidence"`

	// Diagnostics lists recoverable quality issues from all stages.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Assemble joins regions and results into a Document. Every leaf region
// must have exactly one result; the dispatcher guarantees this even for
// failed regions, so a missing result is a programming error here.
func Assemble(regions []segment.Region, results map[int]dispatch.Result) (*Document, error) {
	leaves := make([]segment.Region, 0, len(regions))
	for _, r := range regions {
		if r.IsLeaf() {
			leaves = append(leaves, r)
		}
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].Order < leaves[j].Order })

	entries := make([]Entry, 0, len(leaves))
	for _, r := range leaves {
		res, ok := results[r.ID]
		if !ok {
			return nil, fmt.Errorf("assemble: region %d has no recognition result", r.ID)
		}
		entries = append(entries, Entry{Region: r, Result: res})
	}

	return &Document{
		Entries:    entries,
		Text:       concatenate(entries),
		Confidence: aggregateConfidence(entries),
	}, nil
}

// concatenate builds the document text with kind-aware separators:
// newline between lines, double newline between blocks, tab between table
// cells in the same row.
func concatenate(entries []Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString(separator(entries[i-1].Region, e.Region))
		}
		b.WriteString(e.Result.Text)
	}
	return b.String()
}

func separator(prev, cur segment.Region) string {
	if prev.Parent != cur.Parent {
		return "\n\n"
	}
	if prev.Kind == segment.KindTableCell && cur.Kind == segment.KindTableCell && prev.Row == cur.Row {
		return "\t"
	}
	return "\n"
}

// aggregateConfidence computes the area-weighted mean confidence.
// Zero regions (or zero total area) yields 0.0, never NaN.
func aggregateConfidence(entries []Entry) float64 {
	var weighted, area float64
	for _, e := range entries {
		a := float64(e.Region.Area())
		weighted += e.Result.Confidence * a
		area += a
	}
	if area == 0 {
		return 0.0
	}
	return weighted / area
}
