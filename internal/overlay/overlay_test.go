package overlay

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

var red = color.RGBA{R: 0xE5, G: 0x39, B: 0x35, A: 0xff}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func sampleDetections() []detect.Detection {
	return []detect.Detection{
		{Label: "PET (bottle)", Confidence: 0.9, BoundingBox: detect.Box{0.1, 0.2, 0.3, 0.5}},
		{Label: "PET (cap)", Confidence: 0.7, BoundingBox: detect.Box{0.4, 0.3, 0.5, 0.4}},
		{Label: "HDPE (jug)", Confidence: 0.8, BoundingBox: detect.Box{0.6, 0.6, 0.9, 0.95}},
		{Label: "glass?", Confidence: 0.6, BoundingBox: detect.Box{0.05, 0.7, 0.2, 0.9}},
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeDetailed, false},
		{"detailed", ModeDetailed, false},
		{" Summary ", ModeSummary, false},
		{"fancy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#f5f5f5")
	require.NoError(t, err)
	assert.Equal(t, DefaultLetterbox, c)

	c, err = ParseColor("FF000080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0x80}, c)

	for _, bad := range []string{"", "#12345", "#GGGGGG", "#FF0000ZZ"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestPlan_EmptyShowsBanner(t *testing.T) {
	for _, nonPlastic := range []bool{false, true} {
		opts := DefaultOptions()
		opts.NonPlasticDetected = nonPlastic

		l := Plan(image.Pt(800, 600), nil, opts)

		require.NotNil(t, l.Banner)
		assert.Equal(t, "No plastic detected in image", l.Banner.Title)
		assert.Empty(t, l.Regions)
		if nonPlastic {
			assert.NotEmpty(t, l.Banner.Subtitle)
		} else {
			assert.Empty(t, l.Banner.Subtitle)
		}
	}
}

func TestPlan_AllFilteredHasNoBanner(t *testing.T) {
	l := Plan(image.Pt(800, 600), []detect.Detection{{Label: "PET", Confidence: 0.1}}, DefaultOptions())
	assert.Nil(t, l.Banner)
	assert.Empty(t, l.Regions)
	assert.Equal(t, 1, l.Total)
	assert.Equal(t, 0, l.Visible)
}

func TestPlan_Detailed(t *testing.T) {
	l := Plan(image.Pt(800, 600), sampleDetections(), DefaultOptions())

	require.Len(t, l.Regions, 4)
	assert.Equal(t, 0.5, l.Threshold)
	for i, r := range l.Regions {
		require.NotNil(t, r.Marker)
		assert.Equal(t, []int{i}, r.Members)
		assert.False(t, r.Dashed)
		assert.Equal(t, 2, r.LineWidth)
	}
	assert.Equal(t, "1", l.Regions[0].Marker.Text)
	assert.Equal(t, "4", l.Regions[3].Marker.Text)
	assert.Equal(t, "90%", l.Regions[0].Caption.Text)
	assert.Equal(t, "#E53935", l.Regions[0].Color)
	assert.Equal(t, "#43A047", l.Regions[2].Color)
	assert.Equal(t, detect.Unknown, l.Regions[3].Material)
	assert.Equal(t, "#607D8B", l.Regions[3].Color)

	first := l.Regions[0]
	assert.InDelta(t, 80, first.Rect.X, 1e-9)
	assert.InDelta(t, 120, first.Rect.Y, 1e-9)
	assert.InDelta(t, 160, first.Rect.W, 1e-9)
	assert.InDelta(t, 180, first.Rect.H, 1e-9)
	assert.InDelta(t, 94, first.Marker.CX, 1e-9)
	assert.InDelta(t, 134, first.Marker.CY, 1e-9)
	assert.InDelta(t, first.Rect.Right()-4, first.Caption.Box.Right(), 1e-9)
}

func TestPlan_Summary(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = ModeSummary

	l := Plan(image.Pt(800, 600), sampleDetections(), opts)

	require.Len(t, l.Regions, 3)
	pet := l.Regions[0]
	assert.Equal(t, detect.PET, pet.Material)
	assert.True(t, pet.Dashed)
	assert.Equal(t, 4, pet.LineWidth)
	assert.Nil(t, pet.Marker)
	assert.Equal(t, "PET (2 items)", pet.Caption.Text)
	assert.True(t, pet.Caption.Plate)
	assert.Equal(t, []int{0, 1}, pet.Members)
	// union of [0.1,0.2,0.3,0.5] and [0.4,0.3,0.5,0.4]
	assert.InDelta(t, 80, pet.Rect.X, 1e-9)
	assert.InDelta(t, 120, pet.Rect.Y, 1e-9)
	assert.InDelta(t, 320, pet.Rect.W, 1e-9)
	assert.InDelta(t, 180, pet.Rect.H, 1e-9)
	assert.InDelta(t, 96, pet.Caption.Box.Y, 1e-9)
	assert.False(t, pet.Caption.Below)

	assert.Equal(t, "HDPE (1 items)", l.Regions[1].Caption.Text)
	assert.Equal(t, "glass? (1 items)", l.Regions[2].Caption.Text)
}

func TestPlan_SummaryNeverMoreRegionsThanDetailed(t *testing.T) {
	inputs := [][]detect.Detection{
		sampleDetections(),
		{{Label: "PP", Confidence: 0.9, BoundingBox: detect.Box{0, 0, 1, 1}}},
		{
			{Label: "PS (a)", Confidence: 0.9}, {Label: "PS (b)", Confidence: 0.9},
			{Label: "PS (c)", Confidence: 0.9}, {Label: "LDPE", Confidence: 0.9},
		},
	}

	for _, dets := range inputs {
		detailed := Plan(image.Pt(640, 480), dets, DefaultOptions())
		opts := DefaultOptions()
		opts.Mode = ModeSummary
		summary := Plan(image.Pt(640, 480), dets, opts)
		assert.LessOrEqual(t, len(summary.Regions), len(detailed.Regions))
	}
}

func TestPlan_CaptionFallsBelowAtTopEdge(t *testing.T) {
	dets := []detect.Detection{{Label: "PET", Confidence: 0.9, BoundingBox: detect.Box{0.1, 0, 0.4, 0.3}}}

	opts := DefaultOptions()
	opts.Mode = ModeSummary
	summary := Plan(image.Pt(800, 600), dets, opts)
	require.Len(t, summary.Regions, 1)
	assert.True(t, summary.Regions[0].Caption.Below)
	assert.InDelta(t, summary.Regions[0].Rect.Bottom(), summary.Regions[0].Caption.Box.Y, 1e-9)

	dets[0].BoundingBox = detect.Box{0.1, -0.1, 0.4, 0.3}
	detailed := Plan(image.Pt(800, 600), dets, DefaultOptions())
	require.Len(t, detailed.Regions, 1)
	assert.True(t, detailed.Regions[0].Caption.Below)
}

func TestPlan_RegionsInsideCanvas(t *testing.T) {
	sizes := []image.Point{image.Pt(800, 600), image.Pt(1920, 300), image.Pt(200, 900)}
	for _, size := range sizes {
		l := Plan(size, sampleDetections(), DefaultOptions())
		for _, r := range l.Regions {
			assert.True(t, r.Rect.Within(l.Width, l.Height), "region %+v for source %v", r.Rect, size)
		}
	}
}

func TestPlan_DenseImageUsesStricterThreshold(t *testing.T) {
	dets := make([]detect.Detection, 0, 20)
	for i := 0; i < 20; i++ {
		c := 0.7
		if i < 5 {
			c = 0.9
		}
		dets = append(dets, detect.Detection{Label: "PP", Confidence: c, BoundingBox: detect.Box{0.1, 0.1, 0.2, 0.2}})
	}
	l := Plan(image.Pt(800, 600), dets, DefaultOptions())
	assert.Equal(t, 0.8, l.Threshold)
	assert.Len(t, l.Regions, 5)
}

func TestRender_Idempotent(t *testing.T) {
	src := solidImage(640, 360, color.RGBA{30, 120, 200, 255})
	for _, mode := range []Mode{ModeDetailed, ModeSummary} {
		opts := DefaultOptions()
		opts.Mode = mode
		opts.Grid = true

		a, _ := Render(src, sampleDetections(), opts)
		b, _ := Render(src, sampleDetections(), opts)

		assert.True(t, bytes.Equal(a.Pix, b.Pix), "mode %s", mode)
	}
}

func TestRender_EmptyBanner(t *testing.T) {
	src := solidImage(800, 600, color.White)

	img, l := Render(src, []detect.Detection{}, DefaultOptions())

	require.NotNil(t, l.Banner)
	assert.Equal(t, color.RGBA{102, 102, 102, 255}, img.RGBAAt(3, 3), "banner shades the top strip")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(3, 100))
}

func TestRender_DetailedStroke(t *testing.T) {
	src := solidImage(800, 600, color.White)
	dets := []detect.Detection{{Label: "PET", Confidence: 0.9, BoundingBox: detect.Box{0.25, 0.25, 0.75, 0.75}}}

	img, _ := Render(src, dets, DefaultOptions())

	assert.Equal(t, red, img.RGBAAt(300, 150), "top edge")
	assert.Equal(t, red, img.RGBAAt(200, 300), "left edge")
	assert.NotEqual(t, red, img.RGBAAt(400, 300), "interior is only tinted")
	assert.NotEqual(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(400, 300))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(100, 100), "outside the box")
}

func TestRender_SummaryDashes(t *testing.T) {
	src := solidImage(800, 600, color.White)
	dets := []detect.Detection{{Label: "PET", Confidence: 0.9, BoundingBox: detect.Box{0.25, 0.25, 0.75, 0.75}}}
	opts := DefaultOptions()
	opts.Mode = ModeSummary

	img, _ := Render(src, dets, opts)

	// the 4px top edge starts at x=198: dash at offset 121, gap at offset 131
	assert.Equal(t, red, img.RGBAAt(319, 150))
	assert.NotEqual(t, red, img.RGBAAt(329, 150))
}

func TestRender_Letterbox(t *testing.T) {
	src := solidImage(1600, 600, color.RGBA{0, 0, 255, 255})
	dets := []detect.Detection{{Label: "PP", Confidence: 0.9, BoundingBox: detect.Box{0.8, 0.8, 0.9, 0.9}}}

	img, l := Render(src, dets, DefaultOptions())

	assert.True(t, l.Letterboxed)
	assert.Equal(t, color.RGBA{0xf5, 0xf5, 0xf5, 0xff}, img.RGBAAt(10, 100))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(10, 300))
	assert.Equal(t, color.RGBA{0xf5, 0xf5, 0xf5, 0xff}, img.RGBAAt(10, 500))
}

func TestRender_GarbageGeometryDoesNotPanic(t *testing.T) {
	src := solidImage(100, 100, color.White)
	dets := []detect.Detection{
		{Label: "PET", Confidence: 0.9, BoundingBox: detect.Box{-3, -3, 5, 5}},
		{Label: "PS", Confidence: 0.9, BoundingBox: detect.Box{0.9, 0.9, 0.1, 0.1}},
		{Label: "", Confidence: 0.9, BoundingBox: detect.Box{2, 2, 3, 3}},
	}
	for _, mode := range []Mode{ModeDetailed, ModeSummary} {
		opts := DefaultOptions()
		opts.Mode = mode
		assert.NotPanics(t, func() { Render(src, dets, opts) })
	}
}

type stubLoader struct {
	images  map[string]image.Image
	started chan struct{}
	release chan struct{}
}

func (s *stubLoader) Load(_ context.Context, source string) (image.Image, error) {
	if source == "slow" {
		s.started <- struct{}{}
		<-s.release
	}
	img, ok := s.images[source]
	if !ok {
		return nil, errors.New("no such image")
	}
	return img, nil
}

func newStubLoader() *stubLoader {
	return &stubLoader{
		images: map[string]image.Image{
			"blue":  solidImage(80, 60, color.RGBA{0, 0, 255, 255}),
			"green": solidImage(80, 60, color.RGBA{0, 255, 0, 255}),
			"slow":  solidImage(80, 60, color.RGBA{255, 0, 0, 255}),
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Width, opts.Height = 80, 60
	return opts
}

func TestCanvas_DrawCommits(t *testing.T) {
	c := NewCanvas(newStubLoader(), 80, 60)

	ok := c.Draw(context.Background(), "blue", nil, smallOptions())

	require.True(t, ok)
	assert.Equal(t, "blue", c.Source())
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.Snapshot().RGBAAt(40, 55))
	l, ok := c.Layout()
	require.True(t, ok)
	assert.NotNil(t, l.Banner)
}

func TestCanvas_LoadFailureKeepsFrame(t *testing.T) {
	c := NewCanvas(newStubLoader(), 80, 60)
	require.True(t, c.Draw(context.Background(), "blue", nil, smallOptions()))
	before := c.Snapshot()

	ok := c.Draw(context.Background(), "missing", nil, smallOptions())

	assert.False(t, ok)
	assert.Equal(t, "blue", c.Source())
	assert.Equal(t, before.Pix, c.Snapshot().Pix)
}

func TestCanvas_StaleLoadDoesNotOverwrite(t *testing.T) {
	loader := newStubLoader()
	c := NewCanvas(loader, 80, 60)

	slow := make(chan bool)
	go func() {
		slow <- c.Draw(context.Background(), "slow", nil, smallOptions())
	}()
	<-loader.started

	require.True(t, c.Draw(context.Background(), "green", nil, smallOptions()))
	close(loader.release)

	assert.False(t, <-slow)
	assert.Equal(t, "green", c.Source())
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, c.Snapshot().RGBAAt(40, 55))
}

func TestCanvas_SnapshotIsCopy(t *testing.T) {
	c := NewCanvas(newStubLoader(), 80, 60)
	require.True(t, c.Draw(context.Background(), "blue", nil, smallOptions()))

	snap := c.Snapshot()
	snap.SetRGBA(40, 55, color.RGBA{1, 2, 3, 255})

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.Snapshot().RGBAAt(40, 55))
}

func TestNewRenderResult(t *testing.T) {
	img, l := Render(solidImage(40, 30, color.White), sampleDetections(), smallOptions())
	res, err := NewRenderResult(img, l)
	require.NoError(t, err)
	assert.Equal(t, 80, res.Width)
	assert.Equal(t, 60, res.Height)
	assert.Equal(t, "image/png", res.MimeType)
	assert.NotEmpty(t, res.ImageBase64)
}

func TestCanvas_Current(t *testing.T) {
	c := NewCanvas(newStubLoader(), 80, 60)

	_, _, _, ok := c.Current()
	assert.False(t, ok, "nothing committed yet")

	dets := []detect.Detection{{Label: "PP", Confidence: 0.9, BoundingBox: detect.Box{0.1, 0.1, 0.5, 0.5}}}
	require.True(t, c.Draw(context.Background(), "green", dets, smallOptions()))

	img, source, l, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "green", source)
	assert.Equal(t, 1, l.Visible)
	assert.Equal(t, image.Rect(0, 0, 80, 60), img.Bounds())
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{Width: 320, Grid: true}.WithDefaults()

	def := DefaultOptions()
	assert.Equal(t, 320, got.Width)
	assert.Equal(t, def.Height, got.Height)
	assert.Equal(t, def.Mode, got.Mode)
	assert.Equal(t, def.Letterbox, got.Letterbox)
	assert.Equal(t, def.Threshold, got.Threshold)
	assert.True(t, got.Grid)
}

func TestPlan_ZeroPolicyKeepsEverything(t *testing.T) {
	dets := []detect.Detection{{Label: "PET", Confidence: 0.3, BoundingBox: detect.Box{0.1, 0.1, 0.4, 0.4}}}
	opts := DefaultOptions().WithPolicy(detect.ThresholdPolicy{})

	l := Plan(image.Pt(800, 600), dets, opts)

	assert.Equal(t, 0.0, l.Threshold)
	assert.Equal(t, 1, l.Visible)
	assert.Len(t, l.Regions, 1)
}

func TestOptions_WithDefaultsKeepsExplicitPolicy(t *testing.T) {
	got := Options{}.WithPolicy(detect.ThresholdPolicy{}).WithDefaults()
	assert.Equal(t, detect.ThresholdPolicy{}, got.Policy())

	assert.Equal(t, detect.DefaultThresholdPolicy(), Options{}.WithDefaults().Policy())
	assert.Equal(t, detect.DefaultThresholdPolicy(), Options{}.Policy())
}
