// Package ocr reads resin identification codes from detected plastic items
// using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). A detection's
// box is cropped out of the source image, upsampled, converted to grayscale
// and contrast enhanced before recognition, since resin marks are small and
// usually embossed in the same color as the item. Recognition is restricted to
// the characters that appear in resin marks.
//
// # Prerequisites
//
// Tesseract and its English language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// Building this package requires cgo.
//
// # Interpreting Text
//
// MaterialFromText is independent of Tesseract and maps recognized text to a
// material family: an acronym such as "PETE" or "HDPE" wins over a code digit.
//
// # Error Handling
//
// ReadResinCode returns errors for boxes that miss the image and for Tesseract
// failures. Text that names no material is reported with Material Unknown.
package ocr
