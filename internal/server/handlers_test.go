package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
	"github.com/ironsheep/plastic-detect-mcp/internal/imaging"
	"github.com/ironsheep/plastic-detect-mcp/internal/ocr"
	"github.com/ironsheep/plastic-detect-mcp/internal/overlay"
	"github.com/ironsheep/plastic-detect-mcp/internal/vision"
)

// createTestImageFile creates a test image file and returns its path
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// fakeAnalyzer returns a canned analysis and records what it was sent.
type fakeAnalyzer struct {
	analysis *vision.Analysis
	err      error
	calls    int
	gotBytes int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, img []byte, mimeType string) (*vision.Analysis, error) {
	f.calls++
	f.gotBytes = len(img)
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// execute runs a tool directly and fails the test on error.
func execute(t *testing.T, s *Server, name string, args interface{}) interface{} {
	t.Helper()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}
	result, err := s.executeTool(context.Background(), name, argsJSON)
	if err != nil {
		t.Fatalf("executeTool(%s) failed: %v", name, err)
	}
	return result
}

func detection(label string, conf float64, box detect.Box) map[string]interface{} {
	return map[string]interface{}{
		"label":        label,
		"confidence":   conf,
		"bounding_box": box,
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	result := execute(t, s, "image_load", map[string]interface{}{"source": imgPath})

	info, ok := result.(*imaging.ImageInfo)
	if !ok {
		t.Fatalf("result type: got %T, want *imaging.ImageInfo", result)
	}
	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("format: got %s, want png", info.Format)
	}
	if s.Cache().Len() != 1 {
		t.Errorf("cache entries: got %d, want 1", s.Cache().Len())
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	resp := callTool(t, s, "image_dimensions", map[string]interface{}{"source": imgPath})

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("content: got %v, want one text item", content)
	}

	var dims imaging.DimensionsResult
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &dims); err != nil {
		t.Fatalf("text is not JSON: %v", err)
	}
	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("size: got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := New(Options{})

	resp := callTool(t, s, "image_load", map[string]interface{}{"source": "/nonexistent/image.png"})

	if resp.Error == nil {
		t.Fatal("expected an error for a missing file")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_MissingSource(t *testing.T) {
	s := New(Options{})

	for _, name := range []string{"image_load", "image_dimensions", "detections_render", "detection_crop", "detection_colors", "detection_resin_code"} {
		t.Run(name, func(t *testing.T) {
			resp := callTool(t, s, name, map[string]interface{}{})
			if resp.Error == nil {
				t.Fatal("expected an error without source")
			}
			if !strings.Contains(resp.Error.Data.(string), "source is required") {
				t.Errorf("error data: got %v", resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := New(Options{})

	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})

	if resp.Error == nil {
		t.Fatal("Expected error for unknown tool")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(Options{})

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid`),
	})

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestHandleToolsCall_PlasticDetect(t *testing.T) {
	fake := &fakeAnalyzer{analysis: &vision.Analysis{
		Model: "fake",
		Detections: []detect.Detection{
			{Label: "PET (bottle)", Confidence: 0.9, BoundingBox: detect.Box{0.1, 0.1, 0.4, 0.6}},
		},
		NonPlasticDetected: true,
	}}
	s := New(Options{Vision: fake})
	imgPath := createTestImageFile(t, 50, 50, color.White)

	result := execute(t, s, "plastic_detect", map[string]interface{}{"source": imgPath})

	analysis, ok := result.(*vision.Analysis)
	if !ok {
		t.Fatalf("result type: got %T, want *vision.Analysis", result)
	}
	if len(analysis.Detections) != 1 || !analysis.NonPlasticDetected {
		t.Errorf("analysis: got %+v", analysis)
	}
	if fake.calls != 1 {
		t.Errorf("Analyze calls: got %d, want 1", fake.calls)
	}
	if fake.gotBytes == 0 {
		t.Error("Analyze should receive the encoded image")
	}
}

func TestHandleToolsCall_PlasticDetect_Errors(t *testing.T) {
	imgPath := createTestImageFile(t, 50, 50, color.White)
	args := json.RawMessage(`{"source":"` + imgPath + `"}`)

	t.Run("disabled", func(t *testing.T) {
		s := New(Options{})
		_, err := s.executeTool(context.Background(), "plastic_detect", args)
		if !errors.Is(err, ErrVisionDisabled) {
			t.Errorf("err: got %v, want ErrVisionDisabled", err)
		}
	})

	t.Run("upstream", func(t *testing.T) {
		upstream := errors.New("quota exceeded")
		s := New(Options{Vision: &fakeAnalyzer{err: upstream}})
		_, err := s.executeTool(context.Background(), "plastic_detect", args)
		if !errors.Is(err, upstream) {
			t.Errorf("err: got %v, want %v", err, upstream)
		}
	})
}

func TestHandleToolsCall_DetectionsFilter(t *testing.T) {
	s := New(Options{})

	// 20 items is a dense list, so the 0.8 cutoff applies.
	dets := make([]map[string]interface{}, 0, 20)
	for i := 0; i < 20; i++ {
		conf := 0.6
		if i%2 == 0 {
			conf = 0.9
		}
		dets = append(dets, detection("PET", conf, detect.Box{0.1, 0.1, 0.2, 0.2}))
	}

	result := execute(t, s, "detections_filter", map[string]interface{}{"detections": dets})

	fr := result.(*FilterResult)
	if fr.Threshold != 0.8 {
		t.Errorf("threshold: got %v, want 0.8", fr.Threshold)
	}
	if fr.Total != 20 || fr.Kept != 10 || len(fr.Detections) != 10 {
		t.Errorf("counts: got total=%d kept=%d len=%d, want 20/10/10", fr.Total, fr.Kept, len(fr.Detections))
	}
}

func TestHandleToolsCall_DetectionsFilter_Overrides(t *testing.T) {
	s := New(Options{})
	dets := []map[string]interface{}{
		detection("PET", 0.3, detect.Box{0.1, 0.1, 0.2, 0.2}),
		detection("PP", 0.45, detect.Box{0.3, 0.3, 0.4, 0.4}),
	}

	result := execute(t, s, "detections_filter", map[string]interface{}{
		"detections":       dets,
		"sparse_threshold": 0.4,
	})

	fr := result.(*FilterResult)
	if fr.Threshold != 0.4 {
		t.Errorf("threshold: got %v, want 0.4", fr.Threshold)
	}
	if fr.Kept != 1 || fr.Detections[0].Label != "PP" {
		t.Errorf("kept: got %+v, want only PP", fr.Detections)
	}
}

func TestHandleToolsCall_ZeroThresholdsAgree(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.White)
	dets := []map[string]interface{}{
		detection("PET", 0.3, detect.Box{0.1, 0.1, 0.4, 0.4}),
		detection("PP", 0.1, detect.Box{0.5, 0.5, 0.9, 0.9}),
	}
	zeros := map[string]interface{}{"dense_count": 0, "dense_threshold": 0, "sparse_threshold": 0}

	filterArgs := map[string]interface{}{"detections": dets}
	renderArgs := map[string]interface{}{"source": imgPath, "detections": dets}
	summaryArgs := map[string]interface{}{"detections": dets, "filter": true}
	for k, v := range zeros {
		filterArgs[k], renderArgs[k], summaryArgs[k] = v, v, v
	}

	fr := execute(t, s, "detections_filter", filterArgs).(*FilterResult)
	rr := execute(t, s, "detections_render", renderArgs).(*overlay.RenderResult)
	stats := execute(t, s, "detections_summary", summaryArgs).(detect.Stats)

	if fr.Kept != 2 {
		t.Errorf("filter kept: got %d, want 2", fr.Kept)
	}
	if rr.Layout.Visible != 2 || rr.Layout.Threshold != 0 {
		t.Errorf("render: got visible=%d threshold=%v, want 2 and 0", rr.Layout.Visible, rr.Layout.Threshold)
	}
	if stats.Items != 2 {
		t.Errorf("summary items: got %d, want 2", stats.Items)
	}
}

func TestHandleToolsCall_DetectionsSummary_Overrides(t *testing.T) {
	s := New(Options{})
	dets := []map[string]interface{}{
		detection("PET", 0.9, detect.Box{0.1, 0.1, 0.2, 0.2}),
		detection("PS", 0.45, detect.Box{0.3, 0.3, 0.4, 0.4}),
		detection("PP", 0.2, detect.Box{0.5, 0.5, 0.6, 0.6}),
	}

	stats := execute(t, s, "detections_summary", map[string]interface{}{
		"detections":       dets,
		"filter":           true,
		"sparse_threshold": 0.4,
	}).(detect.Stats)

	if stats.Items != 2 || stats.Types != 2 {
		t.Errorf("got items=%d types=%d, want 2/2", stats.Items, stats.Types)
	}
}

func TestHandleToolsCall_DetectionsFilter_Empty(t *testing.T) {
	s := New(Options{})

	result := execute(t, s, "detections_filter", map[string]interface{}{"detections": []interface{}{}})

	fr := result.(*FilterResult)
	if fr.Detections == nil {
		t.Error("Detections should be an empty list, not nil")
	}
	if fr.Total != 0 || fr.Kept != 0 {
		t.Errorf("counts: got %d/%d, want 0/0", fr.Total, fr.Kept)
	}
}

func TestHandleToolsCall_DetectionsSummary(t *testing.T) {
	s := New(Options{})
	dets := []map[string]interface{}{
		detection("PET (bottle)", 0.9, detect.Box{0.1, 0.1, 0.2, 0.2}),
		detection("HDPE", 0.7, detect.Box{0.3, 0.3, 0.4, 0.4}),
		detection("PET (cup)", 0.7, detect.Box{0.5, 0.5, 0.6, 0.6}),
		detection("PP", 0.2, detect.Box{0.7, 0.7, 0.8, 0.8}),
	}

	t.Run("unfiltered", func(t *testing.T) {
		stats := execute(t, s, "detections_summary", map[string]interface{}{"detections": dets}).(detect.Stats)
		if stats.Items != 4 || stats.Types != 3 {
			t.Errorf("got items=%d types=%d, want 4/3", stats.Items, stats.Types)
		}
		if stats.Groups[0].Type != "PET" || stats.Groups[0].Items != 2 {
			t.Errorf("first group: got %+v, want PET with 2 items", stats.Groups[0])
		}
	})

	t.Run("filtered", func(t *testing.T) {
		stats := execute(t, s, "detections_summary", map[string]interface{}{
			"detections": dets,
			"filter":     true,
		}).(detect.Stats)
		if stats.Items != 3 || stats.Types != 2 {
			t.Errorf("got items=%d types=%d, want 3/2", stats.Items, stats.Types)
		}
	})
}

func TestHandleToolsCall_DetectionsRender(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{0, 0, 255, 255})

	resp := callTool(t, s, "detections_render", map[string]interface{}{
		"source": imgPath,
		"detections": []map[string]interface{}{
			detection("PET (bottle)", 0.9, detect.Box{0.1, 0.1, 0.5, 0.5}),
			detection("PP", 0.8, detect.Box{0.5, 0.5, 0.9, 0.9}),
		},
		"width":  200,
		"height": 150,
	})

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 2 {
		t.Fatalf("content items: got %d, want 2", len(content))
	}
	if content[1]["type"] != "image" || content[1]["mimeType"] != "image/png" {
		t.Errorf("second content item: got type=%v mimeType=%v", content[1]["type"], content[1]["mimeType"])
	}
	if data, _ := content[1]["data"].(string); data == "" {
		t.Error("image content should carry base64 data")
	}

	var rr overlay.RenderResult
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &rr); err != nil {
		t.Fatalf("text is not a render result: %v", err)
	}
	if rr.Width != 200 || rr.Height != 150 {
		t.Errorf("canvas: got %dx%d, want 200x150", rr.Width, rr.Height)
	}
	if rr.Layout.Visible != 2 || len(rr.Layout.Regions) != 2 {
		t.Errorf("layout: got visible=%d regions=%d, want 2/2", rr.Layout.Visible, len(rr.Layout.Regions))
	}
	if src := s.canvas.Source(); src != imgPath {
		t.Errorf("canvas source: got %q, want %q", src, imgPath)
	}
}

func TestHandleToolsCall_DetectionsRender_Empty(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 80, color.White)

	result := execute(t, s, "detections_render", map[string]interface{}{
		"source":               imgPath,
		"detections":           []interface{}{},
		"non_plastic_detected": true,
	})

	rr := result.(*overlay.RenderResult)
	if rr.Layout.Banner == nil {
		t.Fatal("empty detections should produce a banner")
	}
	if rr.Layout.Banner.Subtitle == "" {
		t.Error("non_plastic_detected should add a subtitle")
	}
	if rr.Width != 800 || rr.Height != 600 {
		t.Errorf("canvas: got %dx%d, want server default 800x600", rr.Width, rr.Height)
	}
}

func TestHandleToolsCall_DetectionsRender_Summary(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 100, color.White)

	result := execute(t, s, "detections_render", map[string]interface{}{
		"source": imgPath,
		"mode":   "summary",
		"detections": []map[string]interface{}{
			detection("PET (bottle)", 0.9, detect.Box{0.1, 0.1, 0.3, 0.3}),
			detection("PET (cup)", 0.9, detect.Box{0.5, 0.5, 0.7, 0.7}),
			detection("PS", 0.9, detect.Box{0.8, 0.1, 0.9, 0.2}),
		},
	})

	rr := result.(*overlay.RenderResult)
	if rr.Layout.Mode != overlay.ModeSummary {
		t.Errorf("mode: got %s, want summary", rr.Layout.Mode)
	}
	if len(rr.Layout.Regions) != 2 {
		t.Errorf("regions: got %d, want one per type (2)", len(rr.Layout.Regions))
	}
}

func TestHandleToolsCall_DetectionsRender_InvalidOptions(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 10, 10, color.White)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"bad mode", map[string]interface{}{"mode": "fancy"}},
		{"negative width", map[string]interface{}{"width": -1}},
		{"bad letterbox", map[string]interface{}{"letterbox": "#12"}},
		{"missing image", map[string]interface{}{"source": "/nonexistent/image.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := map[string]interface{}{"source": imgPath, "detections": []interface{}{}}
			for k, v := range tt.args {
				args[k] = v
			}
			argsJSON, _ := json.Marshal(args)
			if _, err := s.executeTool(context.Background(), "detections_render", argsJSON); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestHandleToolsCall_DetectionCrop(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{0, 0, 255, 255})

	tests := []struct {
		name       string
		args       map[string]interface{}
		wantWidth  int
		wantHeight int
	}{
		{"plain", map[string]interface{}{"box": []float64{0.25, 0.25, 0.75, 0.5}}, 50, 25},
		{"scaled", map[string]interface{}{"box": []float64{0.25, 0.25, 0.75, 0.5}, "scale": 2.0}, 100, 50},
		{"padded", map[string]interface{}{"box": []float64{0.25, 0.25, 0.75, 0.75}, "padding": 0.5}, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["source"] = imgPath
			cr := execute(t, s, "detection_crop", tt.args).(*imaging.CropResult)
			if cr.Width != tt.wantWidth || cr.Height != tt.wantHeight {
				t.Errorf("size: got %dx%d, want %dx%d", cr.Width, cr.Height, tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestHandleToolsCall_DetectionCrop_NegativePadding(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 10, 10, color.White)

	args, _ := json.Marshal(map[string]interface{}{
		"source":  imgPath,
		"box":     []float64{0, 0, 1, 1},
		"padding": -0.1,
	})
	if _, err := s.executeTool(context.Background(), "detection_crop", args); err == nil {
		t.Error("expected an error for negative padding")
	}
}

func TestHandleToolsCall_DetectionColors(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 100, color.RGBA{255, 0, 0, 255})

	result := execute(t, s, "detection_colors", map[string]interface{}{
		"source": imgPath,
		"detections": []map[string]interface{}{
			detection("PET", 0.9, detect.Box{0, 0, 0.5, 0.5}),
			detection("PP", 0.9, detect.Box{0.5, 0.5, 1, 1}),
		},
		"count": 3,
	})

	dc := result.(*imaging.DetectionColorsResult)
	if len(dc.Detections) != 2 {
		t.Fatalf("detections: got %d, want 2", len(dc.Detections))
	}
	for i, d := range dc.Detections {
		if len(d.Colors) != 1 {
			t.Errorf("detection %d: got %d colors, want 1 for a solid image", i, len(d.Colors))
			continue
		}
		if d.Colors[0].Percentage != 100 {
			t.Errorf("detection %d: got %.1f%%, want 100%%", i, d.Colors[0].Percentage)
		}
	}
}

func TestHandleToolsCall_DetectionResinCode(t *testing.T) {
	s := New(Options{})
	imgPath := createTestImageFile(t, 100, 100, color.White)

	args, _ := json.Marshal(map[string]interface{}{
		"source": imgPath,
		"box":    []float64{0.1, 0.1, 0.9, 0.9},
	})
	result, err := s.executeTool(context.Background(), "detection_resin_code", args)
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}

	reading, ok := result.(*ocr.ResinReading)
	if !ok {
		t.Fatalf("result type: got %T, want *ocr.ResinReading", result)
	}
	if reading.Material != detect.Unknown {
		t.Errorf("blank label: got %s, want Unknown", reading.Material)
	}
}

func TestHandleToolsCall_PlasticInfo(t *testing.T) {
	s := New(Options{})

	t.Run("all", func(t *testing.T) {
		infos := execute(t, s, "plastic_info", map[string]interface{}{}).([]detect.MaterialInfo)
		if len(infos) != len(detect.Materials) {
			t.Errorf("entries: got %d, want %d", len(infos), len(detect.Materials))
		}
	})

	tests := []struct {
		material string
		want     detect.Material
		wantCode int
	}{
		{"HDPE (jug)", detect.HDPE, 2},
		{"5", detect.PP, 5},
		{"styrofoam", detect.Unknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.material, func(t *testing.T) {
			info := execute(t, s, "plastic_info", map[string]interface{}{"material": tt.material}).(detect.MaterialInfo)
			if info.Material != tt.want {
				t.Errorf("material: got %s, want %s", info.Material, tt.want)
			}
			if info.ResinCode != tt.wantCode {
				t.Errorf("resin code: got %d, want %d", info.ResinCode, tt.wantCode)
			}
		})
	}
}

func TestHandleToolsCall_NoArguments(t *testing.T) {
	s := New(Options{})

	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{"name":"plastic_info"}`),
	})

	if resp.Error != nil {
		t.Fatalf("plastic_info without arguments should succeed, got %v", resp.Error)
	}
}

func TestExecuteTool_UnknownTool(t *testing.T) {
	s := New(Options{})

	_, err := s.executeTool(context.Background(), "unknown_tool", json.RawMessage(`{}`))
	if err == nil {
		t.Error("executeTool should fail for unknown tool")
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := New(Options{})

	_, err := s.executeTool(context.Background(), "image_load", json.RawMessage(`{invalid`))
	if err == nil {
		t.Error("executeTool should fail for invalid JSON")
	}
}
