package detect

import (
	"fmt"
	"image"
	"math"
)

// Box is a normalized bounding box in [x1, y1, x2, y2] corner order.
type Box [4]float64

// X1 returns the left edge.
func (b Box) X1() float64 { return b[0] }

// Y1 returns the top edge.
func (b Box) Y1() float64 { return b[1] }

// X2 returns the right edge.
func (b Box) X2() float64 { return b[2] }

// Y2 returns the bottom edge.
func (b Box) Y2() float64 { return b[3] }

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return Box{
		math.Min(b[0], o[0]),
		math.Min(b[1], o[1]),
		math.Max(b[2], o[2]),
		math.Max(b[3], o[3]),
	}
}

// Pixels maps the box onto the pixel grid of an image with the given bounds.
//
// The result is canonicalized and intersected with bounds, so it can be used
// directly for cropping. An empty rectangle is returned when the box lies
// entirely outside the image.
func (b Box) Pixels(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	r := image.Rect(
		bounds.Min.X+int(math.Floor(b[0]*w)),
		bounds.Min.Y+int(math.Floor(b[1]*h)),
		bounds.Min.X+int(math.Ceil(b[2]*w)),
		bounds.Min.Y+int(math.Ceil(b[3]*h)),
	)
	return r.Intersect(bounds)
}

func (b Box) String() string {
	return fmt.Sprintf("[%.3f, %.3f, %.3f, %.3f]", b[0], b[1], b[2], b[3])
}

// Detection is one plastic item identified within an image.
type Detection struct {
	// Label is the classification tag, usually a material code optionally
	// followed by free text in parentheses, e.g. "PET (bottle)".
	Label string `json:"label"`

	// Confidence is the model's certainty in [0, 1]. It is only guaranteed
	// to be in range after Clamped.
	Confidence float64 `json:"confidence"`

	// BoundingBox locates the item, see Box.
	BoundingBox Box `json:"bounding_box"`

	// ItemDescription is an optional free-text elaboration ("clear water bottle").
	ItemDescription string `json:"item_description,omitempty"`
}

// Clamped returns a copy of d with Confidence forced into [0, 1].
// NaN confidences become 0.
func (d Detection) Clamped() Detection {
	switch {
	case math.IsNaN(d.Confidence) || d.Confidence < 0:
		d.Confidence = 0
	case d.Confidence > 1:
		d.Confidence = 1
	}
	return d
}

// TypeKey is the detection's group key, see TypeKey.
func (d Detection) TypeKey() string {
	return TypeKey(d.Label)
}

// Material resolves the detection's label to a material.
func (d Detection) Material() Material {
	return ParseMaterial(d.Label)
}

// ConfidencePercent is the confidence rounded to a whole percentage.
func (d Detection) ConfidencePercent() int {
	return Percent(d.Confidence)
}

func (d Detection) String() string {
	return fmt.Sprintf("%s (confidence %.2f): %s", d.Label, d.Confidence, d.BoundingBox)
}

// Percent converts a [0, 1] fraction to a rounded whole percentage.
func Percent(f float64) int {
	return int(math.Round(f * 100))
}
