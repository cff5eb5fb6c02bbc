package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// RenderResult is a rendered overlay encoded for transport.
type RenderResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Layout      Layout `json:"layout"`
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// NewRenderResult encodes img and pairs it with its layout.
func NewRenderResult(img image.Image, l Layout) (*RenderResult, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &RenderResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
		Layout:      l,
	}, nil
}
