package overlay

import (
	"image"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// Drawing constants shared by Plan and Paint.
const (
	bannerHeight     = 50
	bannerTitle      = "No plastic detected in image"
	bannerNonPlastic = "Non-plastic items present"

	detailLineWidth  = 2
	detailFillAlpha  = 0x20
	markerRadius     = 14
	confidenceInset  = 4
	confidenceOffset = 2

	summaryLineWidth  = 4
	summaryFillAlpha  = 0x15
	summaryPlateH     = 24
	summaryPlatePad   = 8
	summaryDashOn     = 10
	summaryDashOff    = 5
	captionFaceHeight = 13
)

// labelFace is the face used for every caption, marker and banner string.
var labelFace font.Face = basicfont.Face7x13

// Layout is the full geometry of one render pass. It is computed by Plan
// without touching pixels, so it can be inspected or serialized.
type Layout struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Mode   Mode         `json:"mode"`
	Frame  detect.Frame `json:"frame"`

	// Letterboxed reports whether the letterbox fill is painted.
	Letterboxed bool `json:"letterboxed"`

	// Threshold is the confidence cutoff that was applied.
	Threshold float64 `json:"threshold"`

	// Total and Visible count detections before and after filtering.
	Total   int `json:"total"`
	Visible int `json:"visible"`

	// Banner is set when there were no detections at all.
	Banner *Banner `json:"banner,omitempty"`

	Regions []Region `json:"regions"`
	Grid    bool     `json:"grid"`
}

// Banner is the strip drawn across the top of an empty result.
type Banner struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Height   int    `json:"height"`
}

// Region is one drawn rectangle with its decorations.
type Region struct {
	Rect      detect.Rect     `json:"rect"`
	Material  detect.Material `json:"material"`
	Color     string          `json:"color"`
	Dashed    bool            `json:"dashed"`
	LineWidth int             `json:"line_width"`
	FillAlpha uint8           `json:"fill_alpha"`

	// Marker is the numbered disc of detailed mode.
	Marker *Marker `json:"marker,omitempty"`

	Caption Caption `json:"caption"`

	// Members lists the indices (into the visible detections) drawn by
	// this region.
	Members []int `json:"members"`
}

// Marker is a filled disc with centered text.
type Marker struct {
	Text   string  `json:"text"`
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Radius float64 `json:"radius"`
}

// Caption is a text label. Plate captions sit on a filled rectangle in the
// region color; plain captions are drawn in the region color directly.
type Caption struct {
	Text  string      `json:"text"`
	Box   detect.Rect `json:"box"`
	Plate bool        `json:"plate"`
	Below bool        `json:"below"`
}

// Plan computes the layout for drawing dets over a source of the given size.
//
// Empty input yields a banner and no regions. Otherwise the detections are
// filtered by the options' threshold policy and laid out per Options.Mode,
// preserving input order. Plan never fails: bad geometry is laid out as-is
// and unknown labels take the Unknown color.
func Plan(src image.Point, dets []detect.Detection, opts Options) Layout {
	opts = opts.WithDefaults()

	frame := detect.Fit(src.X, src.Y, opts.Width, opts.Height)
	l := Layout{
		Width:       opts.Width,
		Height:      opts.Height,
		Mode:        opts.Mode,
		Frame:       frame,
		Letterboxed: frame.Letterboxed(),
		Total:       len(dets),
		Regions:     []Region{},
		Grid:        opts.Grid,
	}

	if len(dets) == 0 {
		l.Threshold = opts.Policy().Threshold(0)
		l.Banner = &Banner{Title: bannerTitle, Height: bannerHeight}
		if opts.NonPlasticDetected {
			l.Banner.Subtitle = bannerNonPlastic
		}
		return l
	}

	visible, threshold := opts.Policy().Apply(dets)
	l.Threshold = threshold
	l.Visible = len(visible)

	if opts.Mode == ModeSummary {
		l.Regions = planSummary(frame, visible)
	} else {
		l.Regions = planDetailed(frame, visible)
	}
	return l
}

func planDetailed(frame detect.Frame, visible []detect.Detection) []Region {
	regions := make([]Region, 0, len(visible))
	for i, d := range visible {
		rect := frame.Project(d.BoundingBox)
		m := d.Material()

		text := strconv.Itoa(d.ConfidencePercent()) + "%"
		tw := float64(font.MeasureString(labelFace, text).Ceil())
		caption := Caption{
			Text: text,
			Box: detect.Rect{
				X: rect.Right() - confidenceInset - tw,
				Y: rect.Y + confidenceOffset,
				W: tw,
				H: captionFaceHeight,
			},
		}
		if caption.Box.Y < 0 {
			caption.Box.Y = rect.Bottom() + confidenceOffset
			caption.Below = true
		}

		regions = append(regions, Region{
			Rect:      rect,
			Material:  m,
			Color:     detect.HexOf(m),
			LineWidth: detailLineWidth,
			FillAlpha: detailFillAlpha,
			Marker: &Marker{
				Text:   strconv.Itoa(i + 1),
				CX:     rect.X + markerRadius,
				CY:     rect.Y + markerRadius,
				Radius: markerRadius,
			},
			Caption: caption,
			Members: []int{i},
		})
	}
	return regions
}

func planSummary(frame detect.Frame, visible []detect.Detection) []Region {
	groups := detect.GroupByType(visible)
	regions := make([]Region, 0, len(groups))
	for _, g := range groups {
		rect := frame.Project(g.Bounds())
		m := g.Material()

		text := g.Caption()
		tw := float64(font.MeasureString(labelFace, text).Ceil())
		caption := Caption{
			Text:  text,
			Plate: true,
			Box: detect.Rect{
				X: rect.X,
				Y: rect.Y - summaryPlateH,
				W: tw + 2*summaryPlatePad,
				H: summaryPlateH,
			},
		}
		if caption.Box.Y < 0 {
			caption.Box.Y = rect.Bottom()
			caption.Below = true
		}

		regions = append(regions, Region{
			Rect:      rect,
			Material:  m,
			Color:     detect.HexOf(m),
			Dashed:    true,
			LineWidth: summaryLineWidth,
			FillAlpha: summaryFillAlpha,
			Caption:   caption,
			Members:   g.Indices,
		})
	}
	return regions
}
