// Package overlay renders plastic detections over their source image.
//
// Rendering is split in two steps. Plan computes a Layout (image frame,
// banner, one Region per drawn rectangle) from the source size, the
// detections and the Options, without touching pixels. Paint turns a Layout
// into an *image.RGBA. Render does both.
//
// # View Modes
//
//   - detailed: one tinted box per visible detection in input order, a
//     numbered disc at its top-left corner and the confidence percentage at
//     its top-right corner.
//   - summary: one dashed region per material type covering all of that
//     type's visible detections, captioned "{type} ({n} items)".
//
// Captions that would leave the top of the canvas are moved below the box.
//
// # Failure Policy
//
// Nothing here returns an error. Out-of-range boxes are drawn where they
// land (clipped by the canvas), unknown labels use the Unknown color, and an
// empty detection list draws the "No plastic detected in image" banner.
// Canvas adds source loading; a failed or superseded load leaves the
// surface untouched.
package overlay
