// Package detect holds the plastic-waste detection model and the pure
// geometry and bookkeeping that every rendering surface depends on.
//
// # Bounding Box Convention
//
// A Box is always four normalized values in the order [x1, y1, x2, y2]:
// (x1, y1) is the top-left corner and (x2, y2) the bottom-right corner, both
// as fractions of the source image's width and height. Nothing in this
// package interprets a box as origin plus extent.
//
// Values outside [0, 1] and inverted corners are carried through unchanged.
// Projecting such a box yields a rectangle that lies partly or fully outside
// the drawn image frame (or has a negative extent); callers draw it as-is.
//
// # Components
//
//   - Fit / Frame.Project: map a normalized box onto a letterboxed canvas
//   - ThresholdPolicy: the adaptive confidence cutoff
//   - GroupByType / Summarize: first-occurrence grouping by material type key
//   - ParseMaterial / ColorOf / InfoFor: explicit material lookup with an
//     Unknown fallback variant
//
// None of the functions in this package return errors.
package detect
