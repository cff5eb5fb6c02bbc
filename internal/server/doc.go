// Package server implements the MCP (Model Context Protocol) server for
// plastic detection.
//
// The server exposes a pipeline of tools: a hosted vision model finds plastic
// items in a photo, the resulting detections are filtered with an adaptive
// confidence threshold, summarized per material type and drawn over the
// image on a fixed-size canvas.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Image Sources:
//   - image_load: Load an image and get metadata
//   - image_dimensions: Get width and height
//
// Detection:
//   - plastic_detect: Run the vision model (needs GEMINI_API_KEY)
//   - detections_filter: Apply the adaptive confidence threshold
//   - detections_summary: Count items and types, mean confidence per group
//   - detections_render: Draw detections on the letterboxed canvas
//
// Per-detection Analysis:
//   - detection_crop: Cut one box out of the image
//   - detection_colors: Dominant colors inside each box
//   - detection_resin_code: OCR the resin identification code in a box
//
// Reference:
//   - plastic_info: Resin code, recyclability and handling tips
//
// Every image argument is a "source": an absolute path, a file:// or
// http(s):// URL, or a base64 data: URI. Detections use normalized
// [x1, y1, x2, y2] boxes.
//
// # Image Caching
//
// Decoded images are cached by source and reused across tool calls, so
// rendering, cropping and color analysis of one photo decode it once.
// data: URIs are never cached.
//
// # Canvas
//
// detections_render draws on a single persistent canvas. A render whose
// image load is overtaken by a newer render is dropped rather than
// committed, and reported to the caller as an error.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(server.Options{Render: cfg.Render, Vision: client})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
