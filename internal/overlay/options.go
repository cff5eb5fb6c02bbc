package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// Mode selects how detections are drawn.
type Mode string

const (
	// ModeDetailed draws one box per visible detection.
	ModeDetailed Mode = "detailed"

	// ModeSummary draws one merged, dashed region per material type.
	ModeSummary Mode = "summary"
)

// ParseMode parses a view mode name. The empty string means ModeDetailed.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDetailed:
		return ModeDetailed, nil
	case ModeSummary:
		return ModeSummary, nil
	}
	return "", fmt.Errorf("unknown view mode %q (want %q or %q)", s, ModeDetailed, ModeSummary)
}

// Options configures a render pass.
type Options struct {
	// Width and Height size the output canvas in pixels.
	Width  int
	Height int

	// Mode is the view mode. Zero value renders ModeDetailed.
	Mode Mode

	// Letterbox fills the canvas area not covered by the fitted image.
	Letterbox color.NRGBA

	// Threshold is the adaptive confidence cutoff applied before drawing.
	// Nil means detect.DefaultThresholdPolicy; a zero policy keeps everything.
	Threshold *detect.ThresholdPolicy

	// Grid overlays normalized coordinate lines on the image frame.
	Grid bool

	// NonPlasticDetected adds a note to the empty-result banner that the
	// image did contain non-plastic items. It never suppresses the banner.
	NonPlasticDetected bool
}

// DefaultLetterbox is the fill behind letterboxed images.
var DefaultLetterbox = color.NRGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff}

// DefaultOptions returns an 800x600 detailed canvas with the default
// threshold policy.
func DefaultOptions() Options {
	policy := detect.DefaultThresholdPolicy()
	return Options{
		Width:     800,
		Height:    600,
		Mode:      ModeDetailed,
		Letterbox: DefaultLetterbox,
		Threshold: &policy,
	}
}

// Policy returns the threshold policy in effect.
func (o Options) Policy() detect.ThresholdPolicy {
	if o.Threshold == nil {
		return detect.DefaultThresholdPolicy()
	}
	return *o.Threshold
}

// WithPolicy returns a copy of o using p as its threshold policy.
func (o Options) WithPolicy(p detect.ThresholdPolicy) Options {
	o.Threshold = &p
	return o
}

// WithDefaults fills zero-valued fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.Width <= 0 {
		o.Width = def.Width
	}
	if o.Height <= 0 {
		o.Height = def.Height
	}
	if o.Mode == "" {
		o.Mode = def.Mode
	}
	if o.Letterbox == (color.NRGBA{}) {
		o.Letterbox = def.Letterbox
	}
	if o.Threshold == nil {
		o.Threshold = def.Threshold
	}
	return o
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA" (the leading '#' is optional).
func ParseColor(hex string) (color.NRGBA, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")

	var alpha uint8 = 0xff
	switch len(hex) {
	case 6:
	case 8:
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in color %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:6]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length: %q", hex)
	}

	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}
