package overlay

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// gridDivisions splits the image frame into tenths, matching the
// normalized coordinates boxes are expressed in.
const gridDivisions = 10

var (
	gridLine    = color.NRGBA{R: 255, G: 0, B: 0, A: 96}
	gridLabelFg = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	gridLabelBg = color.NRGBA{R: 0, G: 0, B: 0, A: 180}
)

// paintGrid draws normalized coordinate lines over the image frame with
// small tick labels ("0.1" .. "0.9") along its top and left edges.
func paintGrid(dst *image.RGBA, f detect.Frame) {
	frame := f.Bounds().Pixels()
	bounds := dst.Bounds()

	for i := 1; i < gridDivisions; i++ {
		t := float64(i) / gridDivisions
		x := int(math.Round(f.OffsetX + t*f.Width))
		y := int(math.Round(f.OffsetY + t*f.Height))

		for py := frame.Min.Y; py < frame.Max.Y; py++ {
			if image.Pt(x, py).In(bounds) {
				blend(dst, x, py, gridLine)
			}
		}
		for px := frame.Min.X; px < frame.Max.X; px++ {
			if image.Pt(px, y).In(bounds) {
				blend(dst, px, y, gridLine)
			}
		}

		label := strconv.FormatFloat(t, 'f', 1, 64)
		drawTickLabel(dst, x+2, frame.Min.Y+2, label, gridLabelFg, gridLabelBg)
		drawTickLabel(dst, frame.Min.X+2, y+2, label, gridLabelFg, gridLabelBg)
	}
}

func blend(dst *image.RGBA, x, y int, c color.NRGBA) {
	fillRect(dst, image.Rect(x, y, x+1, y+1), c)
}

// tickGlyphs is a 3x5 pixel font covering the characters of grid labels.
var tickGlyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	'.': {"000", "000", "000", "000", "010"},
}

// drawTickLabel draws text in the 3x5 tick font on a background plate.
// Characters without a glyph advance the cursor but draw nothing.
func drawTickLabel(img *image.RGBA, x, y int, text string, fg, bg color.NRGBA) {
	const (
		charWidth   = 4
		labelHeight = 7
	)
	labelWidth := len(text) * charWidth

	fillRect(img, image.Rect(x-1, y-1, x+labelWidth, y+labelHeight), bg)

	bounds := img.Bounds()
	cx := x
	for _, ch := range text {
		glyph, ok := tickGlyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				px, py := cx+col, y+row
				if image.Pt(px, py).In(bounds) {
					img.Set(px, py, fg)
				}
			}
		}
		cx += charWidth
	}
}
