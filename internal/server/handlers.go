package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
	"github.com/ironsheep/plastic-detect-mcp/internal/imaging"
	"github.com/ironsheep/plastic-detect-mcp/internal/ocr"
	"github.com/ironsheep/plastic-detect-mcp/internal/overlay"
)

// ErrVisionDisabled is returned by plastic_detect when no vision model is
// configured.
var ErrVisionDisabled = errors.New("plastic detection is not configured: set GEMINI_API_KEY")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "plastic_detect", "detections_render").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// detections_render additionally returns the PNG as an image content item.
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	if s.debug {
		log.Printf("tool call: %s", params.Name)
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	content := []map[string]interface{}{
		{
			"type": "text",
			"text": mustMarshalJSON(result),
		},
	}
	if rr, ok := result.(*overlay.RenderResult); ok {
		content = append(content, map[string]interface{}{
			"type":     "image",
			"data":     rr.ImageBase64,
			"mimeType": rr.MimeType,
		})
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": content,
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images from cache as needed
//  4. Calls the appropriate detect/overlay/imaging/ocr/vision function
//  5. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Image Sources
	case "image_load":
		return s.handleImageLoad(ctx, args)
	case "image_dimensions":
		return s.handleImageDimensions(ctx, args)

	// Detection
	case "plastic_detect":
		return s.handlePlasticDetect(ctx, args)
	case "detections_filter":
		return s.handleDetectionsFilter(args)
	case "detections_summary":
		return s.handleDetectionsSummary(args)
	case "detections_render":
		return s.handleDetectionsRender(ctx, args)

	// Per-detection Analysis
	case "detection_crop":
		return s.handleDetectionCrop(ctx, args)
	case "detection_colors":
		return s.handleDetectionColors(ctx, args)
	case "detection_resin_code":
		return s.handleDetectionResinCode(ctx, args)

	// Reference
	case "plastic_info":
		return s.handlePlasticInfo(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments, naming the tool in the error.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func requireSource(source string) error {
	if source == "" {
		return fmt.Errorf("source is required")
	}
	return nil
}

// === Image Source Handlers ===

type sourceArgs struct {
	Source string `json:"source"`
}

func (s *Server) handleImageLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sourceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(ctx, s.cache, a.Source)
}

func (s *Server) handleImageDimensions(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sourceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(ctx, s.cache, a.Source)
}

// === Detection Handlers ===

func (s *Server) handlePlasticDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if s.vision == nil {
		return nil, ErrVisionDisabled
	}
	var a sourceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}

	data, err := imaging.ReadSource(ctx, nil, a.Source)
	if err != nil {
		return nil, err
	}
	return s.vision.Analyze(ctx, data, "")
}

// thresholdArgs are optional overrides of the configured threshold policy.
type thresholdArgs struct {
	DenseCount      *int     `json:"dense_count"`
	DenseThreshold  *float64 `json:"dense_threshold"`
	SparseThreshold *float64 `json:"sparse_threshold"`
}

func (t thresholdArgs) apply(p detect.ThresholdPolicy) detect.ThresholdPolicy {
	if t.DenseCount != nil {
		p.DenseCount = *t.DenseCount
	}
	if t.DenseThreshold != nil {
		p.Dense = *t.DenseThreshold
	}
	if t.SparseThreshold != nil {
		p.Sparse = *t.SparseThreshold
	}
	return p
}

type detectionsFilterArgs struct {
	Detections []detect.Detection `json:"detections"`
	thresholdArgs
}

// FilterResult is the output of detections_filter.
type FilterResult struct {
	Threshold  float64            `json:"threshold"`
	Total      int                `json:"total"`
	Kept       int                `json:"kept"`
	Detections []detect.Detection `json:"detections"`
}

func (s *Server) handleDetectionsFilter(args json.RawMessage) (interface{}, error) {
	var a detectionsFilterArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	kept, threshold := a.apply(s.render.Policy()).Apply(a.Detections)
	return &FilterResult{
		Threshold:  threshold,
		Total:      len(a.Detections),
		Kept:       len(kept),
		Detections: kept,
	}, nil
}

type detectionsSummaryArgs struct {
	Detections []detect.Detection `json:"detections"`
	Filter     bool               `json:"filter"`
	thresholdArgs
}

func (s *Server) handleDetectionsSummary(args json.RawMessage) (interface{}, error) {
	var a detectionsSummaryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	dets := a.Detections
	if a.Filter {
		dets, _ = a.apply(s.render.Policy()).Apply(dets)
	}
	return detect.Summarize(dets), nil
}

type detectionsRenderArgs struct {
	Source             string             `json:"source"`
	Detections         []detect.Detection `json:"detections"`
	Mode               string             `json:"mode"`
	Width              int                `json:"width"`
	Height             int                `json:"height"`
	Letterbox          string             `json:"letterbox"`
	Grid               bool               `json:"grid"`
	NonPlasticDetected bool               `json:"non_plastic_detected"`
	thresholdArgs
}

// renderOptions merges per-call arguments over the server defaults.
func (s *Server) renderOptions(a detectionsRenderArgs) (overlay.Options, error) {
	opts := s.render
	if a.Mode != "" {
		mode, err := overlay.ParseMode(a.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if a.Width < 0 || a.Height < 0 {
		return opts, fmt.Errorf("canvas size must not be negative, got %dx%d", a.Width, a.Height)
	}
	if a.Width > 0 {
		opts.Width = a.Width
	}
	if a.Height > 0 {
		opts.Height = a.Height
	}
	if a.Letterbox != "" {
		c, err := overlay.ParseColor(a.Letterbox)
		if err != nil {
			return opts, err
		}
		opts.Letterbox = c
	}
	opts.Grid = opts.Grid || a.Grid
	opts.NonPlasticDetected = a.NonPlasticDetected
	opts = opts.WithPolicy(a.apply(opts.Policy()))
	return opts, nil
}

func (s *Server) handleDetectionsRender(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectionsRenderArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	opts, err := s.renderOptions(a)
	if err != nil {
		return nil, err
	}

	// The canvas only logs load failures; surface them to the caller here.
	// The image stays cached, so the canvas load below is a cache hit.
	if _, err := s.cache.Load(ctx, a.Source); err != nil {
		return nil, err
	}

	if !s.canvas.Draw(ctx, a.Source, a.Detections, opts) {
		return nil, fmt.Errorf("render of %s was superseded or failed to load", a.Source)
	}
	img, source, layout, ok := s.canvas.Current()
	if !ok || source != a.Source {
		return nil, fmt.Errorf("render of %s was superseded by a newer render", a.Source)
	}
	return overlay.NewRenderResult(img, layout)
}

// === Per-detection Handlers ===

type detectionCropArgs struct {
	Source  string     `json:"source"`
	Box     detect.Box `json:"box"`
	Padding float64    `json:"padding"`
	Scale   float64    `json:"scale"`
}

func (s *Server) handleDetectionCrop(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectionCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	if a.Padding < 0 {
		return nil, fmt.Errorf("padding must not be negative, got %g", a.Padding)
	}
	img, err := s.cache.Load(ctx, a.Source)
	if err != nil {
		return nil, err
	}
	return imaging.CropDetection(img, a.Box, a.Padding, a.Scale)
}

type detectionColorsArgs struct {
	Source     string             `json:"source"`
	Detections []detect.Detection `json:"detections"`
	Count      int                `json:"count"`
}

func (s *Server) handleDetectionColors(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectionColorsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	if a.Count == 0 {
		a.Count = 5
	}
	img, err := s.cache.Load(ctx, a.Source)
	if err != nil {
		return nil, err
	}
	return imaging.DetectionColors(img, a.Detections, a.Count)
}

type detectionResinArgs struct {
	Source string     `json:"source"`
	Box    detect.Box `json:"box"`
}

func (s *Server) handleDetectionResinCode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectionResinArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSource(a.Source); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(ctx, a.Source)
	if err != nil {
		return nil, err
	}
	return ocr.ReadResinCode(img, a.Box)
}

// === Reference Handlers ===

type plasticInfoArgs struct {
	Material string `json:"material"`
}

func (s *Server) handlePlasticInfo(args json.RawMessage) (interface{}, error) {
	var a plasticInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Material == "" {
		infos := make([]detect.MaterialInfo, 0, len(detect.Materials))
		for _, m := range detect.Materials {
			infos = append(infos, detect.InfoFor(m))
		}
		return infos, nil
	}
	return detect.InfoFor(detect.ParseMaterial(a.Material)), nil
}
