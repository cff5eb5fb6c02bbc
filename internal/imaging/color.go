package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorFrequency represents a color and its occurrence frequency in an image.
type ColorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB" (quantized)
	Percentage float64  `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        RGBColor `json:"rgb"`        // RGB components (quantized)
	HSL        HSLColor `json:"hsl"`        // HSL representation
}

// DominantColorsResult contains the most frequently occurring colors in an image.
//
// Colors are sorted by frequency in descending order (most common first).
type DominantColorsResult struct {
	Colors []ColorFrequency `json:"colors"`
}

// DominantColors extracts the N most common colors from an image or region.
//
// Parameters:
//   - img: The source image to analyze.
//   - count: Maximum number of colors to return.
//   - region: Optional rectangle to analyze, clipped to the image. If nil,
//     the entire image is analyzed.
//
// # Color Quantization
//
// To group similar colors, each 8-bit component is rounded down to a
// multiple of 16:
//
//	quantized = (original / 16) * 16
//
// Ties in frequency are broken by hex value so results are deterministic.
func DominantColors(img image.Image, count int, region *image.Rectangle) (*DominantColorsResult, error) {
	bounds := img.Bounds()
	if region != nil {
		bounds = region.Intersect(bounds)
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("region %v does not overlap the image", region)
	}
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	counts := make(map[RGBColor]int)
	totalPixels := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			key := RGBColor{
				R: uint8((r >> 8) / 16 * 16),
				G: uint8((g >> 8) / 16 * 16),
				B: uint8((b >> 8) / 16 * 16),
			}
			counts[key]++
			totalPixels++
		}
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for rgb, cnt := range counts {
		c, _ := colorful.MakeColor(color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255})
		colors = append(colors, ColorFrequency{
			Hex:        fmt.Sprintf("#%02X%02X%02X", rgb.R, rgb.G, rgb.B),
			Percentage: float64(cnt) / float64(totalPixels) * 100,
			RGB:        rgb,
			HSL:        hslOf(c),
		})
	}

	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})

	if len(colors) > count {
		colors = colors[:count]
	}

	return &DominantColorsResult{Colors: colors}, nil
}

// hslOf converts a color to rounded HSL components.
func hslOf(c colorful.Color) HSLColor {
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return HSLColor{
		H: int(math.Round(h)) % 360,
		S: int(math.Round(s * 100)),
		L: int(math.Round(l * 100)),
	}
}

// DetectionColor holds the dominant colors inside one detection's box.
type DetectionColor struct {
	Index  int              `json:"index"`
	Label  string           `json:"label"`
	Region Region           `json:"region"`
	Colors []ColorFrequency `json:"colors"`
}

// DetectionColorsResult lists dominant colors per detection, in input order.
type DetectionColorsResult struct {
	Detections []DetectionColor `json:"detections"`
}

// DetectionColors computes the count dominant colors inside each
// detection's bounding box. Detections whose box does not overlap the image
// are reported with an empty color list.
func DetectionColors(img image.Image, dets []detect.Detection, count int) (*DetectionColorsResult, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}

	out := make([]DetectionColor, 0, len(dets))
	for i, d := range dets {
		rect := d.BoundingBox.Pixels(img.Bounds())
		dc := DetectionColor{
			Index:  i,
			Label:  d.Label,
			Region: regionOf(rect),
			Colors: []ColorFrequency{},
		}
		if !rect.Empty() {
			res, err := DominantColors(img, count, &rect)
			if err != nil {
				return nil, fmt.Errorf("detection %d: %w", i, err)
			}
			dc.Colors = res.Colors
		}
		out = append(out, dc)
	}
	return &DetectionColorsResult{Detections: out}, nil
}
