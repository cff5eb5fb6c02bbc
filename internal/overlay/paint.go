package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

var (
	white       = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	bannerShade = color.NRGBA{A: 0x99}
)

// Render draws dets over src onto a fresh canvas sized by opts.
//
// Every call starts from a blank canvas, so equal inputs always produce
// pixel-identical output.
func Render(src image.Image, dets []detect.Detection, opts Options) (*image.RGBA, Layout) {
	opts = opts.WithDefaults()
	l := Plan(src.Bounds().Size(), dets, opts)
	return Paint(src, l, opts), l
}

// Paint draws a planned layout. src may be nil, in which case only the
// letterbox and overlays are drawn.
func Paint(src image.Image, l Layout, opts Options) *image.RGBA {
	opts = opts.WithDefaults()
	dst := image.NewRGBA(image.Rect(0, 0, l.Width, l.Height))

	if l.Letterboxed {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Letterbox), image.Point{}, draw.Src)
	}
	if src != nil {
		paintBackground(dst, src, l.Frame)
	}
	if l.Grid {
		paintGrid(dst, l.Frame)
	}

	if l.Banner != nil {
		paintBanner(dst, l.Banner)
		return dst
	}

	for _, r := range l.Regions {
		paintRegion(dst, r)
	}
	return dst
}

func paintBackground(dst *image.RGBA, src image.Image, f detect.Frame) {
	area := detect.Rect{X: f.OffsetX, Y: f.OffsetY, W: f.Width, H: f.Height}.Pixels()
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return
	}
	scaled := imaging.Resize(src, area.Dx(), area.Dy(), imaging.Linear)
	draw.Draw(dst, area, scaled, image.Point{}, draw.Over)
}

func paintBanner(dst *image.RGBA, b *Banner) {
	w := dst.Bounds().Dx()
	fillRect(dst, image.Rect(0, 0, w, b.Height), bannerShade)

	if b.Subtitle == "" {
		drawTextCentered(dst, b.Title, w/2, 30, white)
		return
	}
	drawTextCentered(dst, b.Title, w/2, 22, white)
	drawTextCentered(dst, b.Subtitle, w/2, 40, white)
}

func paintRegion(dst *image.RGBA, r Region) {
	m := r.Material
	solid := detect.NRGBA(m, 0xff)
	box := r.Rect.Pixels()

	fillRect(dst, box, detect.NRGBA(m, r.FillAlpha))
	if r.Dashed {
		strokeRect(dst, box, r.LineWidth, solid, summaryDashOn, summaryDashOff)
	} else {
		strokeRect(dst, box, r.LineWidth, solid, 0, 0)
	}

	if r.Marker != nil {
		fillCircle(dst, r.Marker.CX, r.Marker.CY, r.Marker.Radius, solid)
		drawTextCentered(dst, r.Marker.Text, int(math.Round(r.Marker.CX)), int(math.Round(r.Marker.CY))+4, white)
	}

	c := r.Caption
	if c.Text == "" {
		return
	}
	plate := c.Box.Pixels()
	if c.Plate {
		fillRect(dst, plate, solid)
		drawText(dst, c.Text, plate.Min.X+summaryPlatePad, plate.Max.Y-7, white)
		return
	}
	drawText(dst, c.Text, plate.Min.X, plate.Max.Y-2, solid)
}

// fillRect composites c over r, clipped to dst.
func fillRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// strokeRect outlines r with a line of the given width centered on its
// edges. A positive dashOn draws dashOn pixels and skips dashOff pixels
// along each edge.
func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.Color, dashOn, dashOff int) {
	r = r.Canon()
	lo := width / 2
	hi := width - lo

	edge := func(x0, y0, x1, y1 int, horizontal bool) {
		length := x1 - x0
		if !horizontal {
			length = y1 - y0
		}
		if dashOn <= 0 {
			fillRect(dst, image.Rect(x0, y0, x1, y1), c)
			return
		}
		for pos := 0; pos < length; pos += dashOn + dashOff {
			end := pos + dashOn
			if end > length {
				end = length
			}
			if horizontal {
				fillRect(dst, image.Rect(x0+pos, y0, x0+end, y1), c)
			} else {
				fillRect(dst, image.Rect(x0, y0+pos, x1, y0+end), c)
			}
		}
	}

	edge(r.Min.X-lo, r.Min.Y-lo, r.Max.X+hi, r.Min.Y+hi, true)
	edge(r.Min.X-lo, r.Max.Y-lo, r.Max.X+hi, r.Max.Y+hi, true)
	edge(r.Min.X-lo, r.Min.Y+hi, r.Min.X+hi, r.Max.Y-lo, false)
	edge(r.Max.X-lo, r.Min.Y+hi, r.Max.X+hi, r.Max.Y-lo, false)
}

// fillCircle paints a solid disc, testing pixel centers against the radius.
func fillCircle(dst *image.RGBA, cx, cy, radius float64, c color.NRGBA) {
	b := dst.Bounds()
	r2 := radius * radius
	x0, x1 := int(math.Floor(cx-radius)), int(math.Ceil(cx+radius))
	y0, y1 := int(math.Floor(cy-radius)), int(math.Ceil(cy+radius))
	src := image.NewUniform(c)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy > r2 || !image.Pt(x, y).In(b) {
				continue
			}
			draw.Draw(dst, image.Rect(x, y, x+1, y+1), src, image.Point{}, draw.Over)
		}
	}
}

// drawText draws s with its baseline starting at (x, y).
func drawText(dst *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawTextCentered draws s horizontally centered on cx.
func drawTextCentered(dst *image.RGBA, s string, cx, y int, c color.Color) {
	w := font.MeasureString(labelFace, s).Ceil()
	drawText(dst, s, cx-w/2, y, c)
}
