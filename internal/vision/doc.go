// Package vision asks a hosted multimodal model (Gemini generateContent) to
// find plastic items in an image.
//
// The request carries the image inline as base64 together with a fixed
// prompt that asks for JSON detections with normalized [x1, y1, x2, y2]
// boxes. Model output is parsed leniently by ParseAnalysis, since the model
// may wrap the JSON in a code fence, add prose around it or use the older
// bare-array format.
//
// Client is safe for concurrent use.
package vision
