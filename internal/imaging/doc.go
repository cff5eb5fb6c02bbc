// Package imaging loads source images and runs the pixel-level operations
// that follow a detection pass: cropping a detection out of the frame and
// measuring its dominant colors.
//
// # Sources
//
// An image source is one of:
//   - a local path or a file:// URL
//   - an http:// or https:// URL, fetched with the request context
//   - a data: URI carrying a base64 payload
//
// PNG, JPEG, GIF, BMP and WebP content is decoded; the reported format is
// whatever decoder accepted the bytes, not the file extension. Reads are
// capped at MaxSourceBytes.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. For
// regions, (x1,y1) is inclusive and (x2,y2) is exclusive. Detection boxes
// arrive normalized (see package detect) and are mapped to pixels by
// flooring the leading edge and ceiling the trailing edge, then clipping to
// the image.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless.
//
// # Color Representation
//
// Dominant colors are quantized to multiples of 16 per channel and reported
// as hex "#RRGGBB", 8-bit RGB and HSL (hue 0-360, saturation and lightness
// 0-100).
package imaging
