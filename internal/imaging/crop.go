package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`

	// Region is the cropped area in source pixel coordinates.
	Region Region `json:"region"`
}

// Region is a pixel rectangle; (X1, Y1) inclusive, (X2, Y2) exclusive.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func regionOf(r image.Rectangle) Region {
	return Region{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Crop extracts a rectangular region from an image
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()

	// Validate coordinates
	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	rect := image.Rect(x1, y1, x2, y2)
	cropped := ScaleCrop(img, rect, scale)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Region:      regionOf(rect),
	}, nil
}

// ScaleCrop crops rect out of img and resizes it by scale (Lanczos). A
// scale of 1 or less than or equal to 0 leaves the size unchanged.
func ScaleCrop(img image.Image, rect image.Rectangle, scale float64) *image.NRGBA {
	cropped := imaging.Crop(img, rect)
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth > 0 && newHeight > 0 {
			cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
		}
	}
	return cropped
}

// DetectionRect maps a normalized box to source pixels, growing it by
// padding (a fraction of the box size on each side) and clipping it to the
// image.
func DetectionRect(img image.Image, box detect.Box, padding float64) image.Rectangle {
	if padding > 0 {
		w := box.X2() - box.X1()
		h := box.Y2() - box.Y1()
		box = detect.Box{box.X1() - w*padding, box.Y1() - h*padding, box.X2() + w*padding, box.Y2() + h*padding}
	}
	return box.Pixels(img.Bounds())
}

// CropDetection crops a detection's bounding box out of the source image.
//
// Parameters:
//   - box: Normalized [x1, y1, x2, y2] box.
//   - padding: Extra margin as a fraction of the box size per side (0.1 = 10%).
//   - scale: Resize factor applied after cropping.
//
// Returns an error when the box does not overlap the image.
func CropDetection(img image.Image, box detect.Box, padding, scale float64) (*CropResult, error) {
	rect := DetectionRect(img, box, padding)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %s does not overlap the image", box)
	}
	return Crop(img, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, scale)
}
