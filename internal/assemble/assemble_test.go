package assemble

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/dispatch"
	"docpipe/internal/segment"
)

func line(id, parent, row, order, w, h int) segment.Region {
	return segment.Region{ID: id, Kind: segment.KindLine, W: w, H: h, Order: order, Parent: parent, Row: row}
}

func cell(id, parent, row, order, w, h int) segment.Region {
	return segment.Region{ID: id, Kind: segment.KindTableCell, W: w, H: h, Order: order, Parent: parent, Row: row}
}

func block(id, order int) segment.Region {
	return segment.Region{ID: id, Kind: segment.KindBlock, W: 100, H: 100, Order: order, Parent: segment.NoParent}
}

func result(id int, text string, conf float64) dispatch.Result {
	return dispatch.Result{RegionID: id, Text: text, Confidence: conf}
}

func TestAssembleSeparators(t *testing.T) {
	// Two blocks: the first holds two lines, the second a 2x2 table.
	regions := []segment.Region{
		block(0, 0),
		line(1, 0, 0, 1, 50, 10),
		line(2, 0, 1, 2, 50, 10),
		block(3, 3),
		cell(4, 3, 0, 4, 20, 10),
		cell(5, 3, 0, 5, 20, 10),
		cell(6, 3, 1, 6, 20, 10),
		cell(7, 3, 1, 7, 20, 10),
	}
	results := map[int]dispatch.Result{
		1: result(1, "first line", 0.9),
		2: result(2, "second line", 0.9),
		4: result(4, "a", 0.8),
		5: result(5, "b", 0.8),
		6: result(6, "c", 0.8),
		7: result(7, "d", 0.8),
	}

	doc, err := Assemble(regions, results)
	require.NoError(t, err)

	assert.Equal(t, "first line\nsecond line\n\na\tb\nc\td", doc.Text)
	assert.Len(t, doc.Entries, 6, "blocks contribute no entries of their own")
}

func TestAssembleOrdersByReadingOrder(t *testing.T) {
	// Input order scrambled; output must follow the order index.
	regions := []segment.Region{
		line(2, 0, 1, 2, 10, 10),
		block(0, 0),
		line(1, 0, 0, 1, 10, 10),
	}
	results := map[int]dispatch.Result{
		1: result(1, "one", 1),
		2: result(2, "two", 1),
	}

	doc, err := Assemble(regions, results)
	require.NoError(t, err)

	assert.Equal(t, "one\ntwo", doc.Text)
	assert.Equal(t, 1, doc.Entries[0].Region.ID)
	assert.Equal(t, 2, doc.Entries[1].Region.ID)
}

func TestAssembleIsDeterministic(t *testing.T) {
	regions := []segment.Region{
		block(0, 0),
		line(1, 0, 0, 1, 40, 8),
		line(2, 0, 1, 2, 40, 8),
	}
	results := map[int]dispatch.Result{
		1: result(1, "alpha", 0.7),
		2: result(2, "beta", 0.6),
	}

	first, err := Assemble(regions, results)
	require.NoError(t, err)
	second, err := Assemble(regions, results)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "assembly over identical input must be byte-identical")
}

func TestAssembleMissingResult(t *testing.T) {
	regions := []segment.Region{
		block(0, 0),
		line(1, 0, 0, 1, 40, 8),
	}

	_, err := Assemble(regions, map[int]dispatch.Result{})
	assert.Error(t, err)
}

func TestAssembleEmptyDocument(t *testing.T) {
	doc, err := Assemble([]segment.Region{}, map[int]dispatch.Result{})
	require.NoError(t, err)

	assert.Empty(t, doc.Entries)
	assert.Empty(t, doc.Text)
	assert.Equal(t, 0.0, doc.Confidence, "no regions yields 0.0, never NaN")
}

func TestAssembleAreaWeightedConfidence(t *testing.T) {
	// A region with three times the area pulls the mean three times as hard.
	regions := []segment.Region{
		block(0, 0),
		line(1, 0, 0, 1, 30, 10), // area 300
		line(2, 0, 1, 2, 10, 10), // area 100
	}
	results := map[int]dispatch.Result{
		1: result(1, "big", 1.0),
		2: result(2, "small", 0.0),
	}

	doc, err := Assemble(regions, results)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, doc.Confidence, 1e-9)
}

func TestAssembleDegradedRegionKeepsEntry(t *testing.T) {
	regions := []segment.Region{
		block(0, 0),
		line(1, 0, 0, 1, 40, 8),
		line(2, 0, 1, 2, 40, 8),
	}
	results := map[int]dispatch.Result{
		1: result(1, "ok", 0.9),
		2: {RegionID: 2, Diagnostic: dispatch.DiagTimedOut},
	}

	doc, err := Assemble(regions, results)
	require.NoError(t, err)

	require.Len(t, doc.Entries, 2)
	assert.Equal(t, "ok\n", doc.Text, "a degraded region contributes empty text but keeps its slot")
	assert.True(t, doc.Entries[1].Result.Failed())
}
