package detect

import (
	"image"
	"math"
)

// Frame is where a source image lands when fitted onto a canvas: the drawn
// size and the letterbox offset of its top-left corner.
type Frame struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Fit scales a srcW x srcH image into a dstW x dstH canvas, preserving the
// aspect ratio and centering the result.
//
// The image first takes the full canvas width; if the resulting height
// overflows, it takes the full height instead. A source with a zero or
// negative dimension has no aspect ratio and degrades to the full canvas.
func Fit(srcW, srcH, dstW, dstH int) Frame {
	if srcW <= 0 || srcH <= 0 {
		return Frame{Width: float64(dstW), Height: float64(dstH)}
	}

	aspect := float64(srcW) / float64(srcH)
	drawW := float64(dstW)
	drawH := drawW / aspect
	if drawH > float64(dstH) {
		drawH = float64(dstH)
		drawW = drawH * aspect
	}

	return Frame{
		OffsetX: (float64(dstW) - drawW) / 2,
		OffsetY: (float64(dstH) - drawH) / 2,
		Width:   drawW,
		Height:  drawH,
	}
}

// Letterboxed reports whether the frame leaves any part of a dstW x dstH
// canvas uncovered.
func (f Frame) Letterboxed() bool {
	return f.OffsetX > 0 || f.OffsetY > 0
}

// Project converts a normalized corner-pair box into a pixel rectangle on
// the canvas. Inputs are used as-is: out-of-range values land outside the
// frame and inverted corners give a negative width or height.
func (f Frame) Project(b Box) Rect {
	return Rect{
		X: f.OffsetX + b[0]*f.Width,
		Y: f.OffsetY + b[1]*f.Height,
		W: (b[2] - b[0]) * f.Width,
		H: (b[3] - b[1]) * f.Height,
	}
}

// Bounds is the frame itself as a pixel rectangle.
func (f Frame) Bounds() Rect {
	return Rect{X: f.OffsetX, Y: f.OffsetY, W: f.Width, H: f.Height}
}

// Rect is a pixel rectangle in (x, y, width, height) form.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Right is the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom is the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Pixels rounds the rectangle onto the integer pixel grid. The result is
// canonicalized, so a negative extent still covers the spanned pixels.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}

// Within reports whether r lies inside a w x h canvas. A small epsilon
// absorbs floating point error at the edges.
func (r Rect) Within(w, h int) bool {
	const eps = 1e-9
	minX, maxX := math.Min(r.X, r.Right()), math.Max(r.X, r.Right())
	minY, maxY := math.Min(r.Y, r.Bottom()), math.Max(r.Y, r.Bottom())
	return minX >= -eps && minY >= -eps && maxX <= float64(w)+eps && maxY <= float64(h)+eps
}
