package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/config"
	"docpipe/internal/engine"
	"docpipe/internal/raster"
)

// fakeEngine routes recognition through a test-provided function.
type fakeEngine struct {
	fn func(ctx context.Context, req engine.Request) (*engine.Response, error)
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, req engine.Request) (*engine.Response, error) {
	return f.fn(ctx, req)
}

func constantEngine(text string, conf float64) *fakeEngine {
	return &fakeEngine{fn: func(context.Context, engine.Request) (*engine.Response, error) {
		return &engine.Response{Text: text, Confidence: conf}, nil
	}}
}

// twoParagraphPage draws two separated text-like blocks on a white page.
func twoParagraphPage(t *testing.T) *raster.Image {
	t.Helper()
	img, err := raster.New(200, 120, raster.Gray)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	fill := func(x0, y0, x1, y1 int) {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				img.Pix[y*img.Width+x] = 10
			}
		}
	}
	fill(10, 10, 150, 16)
	fill(10, 22, 150, 28)
	fill(10, 80, 180, 86)
	return img
}

func blankPage(t *testing.T) *raster.Image {
	t.Helper()
	img, err := raster.New(80, 80, raster.Gray)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestRunProducesDocument(t *testing.T) {
	p, err := New(config.Default(), constantEngine("hello", 0.92))
	require.NoError(t, err)

	doc, err := p.Run(context.Background(), twoParagraphPage(t))
	require.NoError(t, err)

	assert.NotEmpty(t, doc.RunID)
	require.Len(t, doc.Entries, 3)
	assert.Equal(t, "hello\nhello\n\nhello", doc.Text)
	assert.InDelta(t, 0.92, doc.Confidence, 1e-9)

	for _, d := range doc.Diagnostics {
		assert.NotEqual(t, CodeRegionDegraded, d.Code)
	}
}

func TestRunBlankPage(t *testing.T) {
	p, err := New(config.Default(), constantEngine("x", 1))
	require.NoError(t, err)

	doc, err := p.Run(context.Background(), blankPage(t))
	require.NoError(t, err, "a blank page is a valid document, not an error")

	assert.Empty(t, doc.Entries)
	assert.Empty(t, doc.Text)
	assert.Equal(t, 0.0, doc.Confidence)

	found := false
	for _, d := range doc.Diagnostics {
		if d.Code == CodeNoRegions {
			found = true
		}
	}
	assert.True(t, found, "blank pages carry a no-regions diagnostic")
}

func TestRunInvalidInput(t *testing.T) {
	p, err := New(config.Default(), constantEngine("x", 1))
	require.NoError(t, err)

	bad := &raster.Image{Width: 10, Height: 10, Space: raster.Gray, Pix: make([]uint8, 5)}
	_, err = p.Run(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	p, err := New(config.Default(), constantEngine("x", 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc, err := p.Run(ctx, twoParagraphPage(t))
	assert.Nil(t, doc, "cancellation must not produce a partial document")
	assert.ErrorIs(t, err, ErrCancelled)

	var cErr *CancelledError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "normalize", cErr.Point)
}

func TestRunCancelledMidDispatch(t *testing.T) {
	started := make(chan struct{}, 8)
	eng := &fakeEngine{fn: func(ctx context.Context, req engine.Request) (*engine.Response, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	cfg := config.Default()
	cfg.CancelGracePeriod = 50 * time.Millisecond
	p, err := New(cfg, eng)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	doc, err := p.Run(ctx, twoParagraphPage(t))
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrCancelled)

	var cErr *CancelledError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "dispatch", cErr.Point)
}

func TestRunDegradedRegionDiagnostics(t *testing.T) {
	calls := 0
	eng := &fakeEngine{fn: func(_ context.Context, req engine.Request) (*engine.Response, error) {
		calls++
		if req.Image.Width > 160 {
			return nil, errors.New("backend unavailable")
		}
		return &engine.Response{Text: "ok", Confidence: 0.9}, nil
	}}

	cfg := config.Default()
	cfg.MaxConcurrency = 1
	p, err := New(cfg, eng)
	require.NoError(t, err)

	doc, err := p.Run(context.Background(), twoParagraphPage(t))
	require.NoError(t, err, "one failing region must not abort the run")

	require.Len(t, doc.Entries, 3)
	degraded := 0
	for _, d := range doc.Diagnostics {
		if d.Code == CodeRegionDegraded {
			degraded++
			assert.GreaterOrEqual(t, d.RegionID, 0)
		}
	}
	assert.Equal(t, 1, degraded, "exactly the wide third line degrades")
}

func TestRunLowConfidenceDiagnostics(t *testing.T) {
	cfg := config.Default()
	cfg.MinConfidence = 0.8
	p, err := New(cfg, constantEngine("meh", 0.3))
	require.NoError(t, err)

	doc, err := p.Run(context.Background(), twoParagraphPage(t))
	require.NoError(t, err)

	low := 0
	for _, d := range doc.Diagnostics {
		if d.Code == CodeLowConfidence {
			low++
		}
	}
	assert.Equal(t, len(doc.Entries), low, "every entry sits below the floor")
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.WindowSize = 30

	_, err := New(cfg, constantEngine("x", 1))
	assert.Error(t, err)
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(config.Default(), nil)
	assert.Error(t, err)
}

func TestNewNilConfigUsesDefaults(t *testing.T) {
	p, err := New(nil, constantEngine("x", 1))
	require.NoError(t, err)
	assert.NotNil(t, p)
}
