package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sourceProperty is the schema shared by every tool that takes an image.
var sourceProperty = map[string]interface{}{
	"type":        "string",
	"description": "Image source: absolute file path, file:// or http(s):// URL, or a base64 data: URI",
}

// boxProperty is a normalized detection box.
var boxProperty = map[string]interface{}{
	"type":        "array",
	"items":       map[string]interface{}{"type": "number"},
	"minItems":    4,
	"maxItems":    4,
	"description": "Normalized bounding box [x1, y1, x2, y2] (top-left, bottom-right), values 0-1",
}

// detectionsProperty is a list of detections as returned by plastic_detect.
var detectionsProperty = map[string]interface{}{
	"type":        "array",
	"description": "Plastic detections, e.g. the 'detections' field returned by plastic_detect",
	"items": map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Material label, optionally with a note in parentheses, e.g. \"PET (bottle)\"",
			},
			"confidence": map[string]interface{}{
				"type":        "number",
				"description": "Confidence 0-1",
			},
			"bounding_box":     boxProperty,
			"item_description": map[string]interface{}{"type": "string"},
		},
		"required": []string{"label", "confidence", "bounding_box"},
	},
}

// thresholdProperties override the adaptive confidence threshold.
var thresholdProperties = map[string]interface{}{
	"dense_count": map[string]interface{}{
		"type":        "integer",
		"description": "Lists longer than this use dense_threshold. Default from server config (15)",
	},
	"dense_threshold": map[string]interface{}{
		"type":        "number",
		"description": "Minimum confidence for dense lists. Default from server config (0.8)",
	},
	"sparse_threshold": map[string]interface{}{
		"type":        "number",
		"description": "Minimum confidence for short lists. Default from server config (0.5)",
	},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	renderProps := map[string]interface{}{
		"source":     sourceProperty,
		"detections": detectionsProperty,
		"mode": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"detailed", "summary"},
			"description": "detailed: one box per item. summary: one dashed box per material type. Default detailed",
		},
		"width": map[string]interface{}{
			"type":        "integer",
			"description": "Canvas width in pixels. Default from server config (800)",
		},
		"height": map[string]interface{}{
			"type":        "integer",
			"description": "Canvas height in pixels. Default from server config (600)",
		},
		"letterbox": map[string]interface{}{
			"type":        "string",
			"description": "Fill color for the area outside the image, #RRGGBB. Default #f5f5f5",
		},
		"grid": map[string]interface{}{
			"type":        "boolean",
			"description": "Overlay a normalized 0-1 coordinate grid. Default false",
		},
		"non_plastic_detected": map[string]interface{}{
			"type":        "boolean",
			"description": "Note non-plastic items on the empty-result banner",
		},
	}
	for k, v := range thresholdProperties {
		renderProps[k] = v
	}

	filterProps := map[string]interface{}{
		"detections": detectionsProperty,
	}
	for k, v := range thresholdProperties {
		filterProps[k] = v
	}

	summaryProps := map[string]interface{}{
		"detections": detectionsProperty,
		"filter": map[string]interface{}{
			"type":        "boolean",
			"description": "Apply the adaptive confidence threshold before summarizing. Default false",
		},
	}
	for k, v := range thresholdProperties {
		summaryProps[k] = v
	}

	return []Tool{
		// Image Sources
		{
			Name:        "image_load",
			Description: "Load an image and return its dimensions, format and size. The image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": sourceProperty,
				},
				"required": []string{"source"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": sourceProperty,
				},
				"required": []string{"source"},
			},
		},

		// Detection
		{
			Name:        "plastic_detect",
			Description: "Detect plastic items in an image with the configured vision model. Returns labeled, scored detections with normalized [x1, y1, x2, y2] boxes and whether non-plastic items were seen.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": sourceProperty,
				},
				"required": []string{"source"},
			},
		},
		{
			Name:        "detections_filter",
			Description: "Apply the adaptive confidence threshold: lists with more than dense_count items keep confidence >= dense_threshold, shorter lists keep confidence >= sparse_threshold. Order is preserved.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": filterProps,
				"required":   []string{"detections"},
			},
		},
		{
			Name:        "detections_summary",
			Description: "Summarize detections: item count, number of material types, mean confidence and per-type statistics in first-seen order.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": summaryProps,
				"required":   []string{"detections"},
			},
		},
		{
			Name:        "detections_render",
			Description: "Draw detections over the image, letterboxed into a fixed-size canvas, and return it as base64-encoded PNG together with the computed layout. An empty detection list renders a 'No plastic detected' banner.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": renderProps,
				"required":   []string{"source", "detections"},
			},
		},

		// Per-detection Analysis
		{
			Name:        "detection_crop",
			Description: "Crop one detection's bounding box out of the image and return it as base64-encoded PNG. Use this to zoom into an item.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": sourceProperty,
					"box":    boxProperty,
					"padding": map[string]interface{}{
						"type":        "number",
						"description": "Extra margin per side as a fraction of the box size (0.1 = 10%). Default 0",
						"default":     0.0,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"source", "box"},
			},
		},
		{
			Name:        "detection_colors",
			Description: "Extract the dominant colors inside each detection's bounding box.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source":     sourceProperty,
					"detections": detectionsProperty,
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Number of colors per detection. Default 5",
						"default":     5,
					},
				},
				"required": []string{"source", "detections"},
			},
		},
		{
			Name:        "detection_resin_code",
			Description: "Read the resin identification code (recycling triangle digit or acronym) inside a detection's box with OCR and map it to a material.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source": sourceProperty,
					"box":    boxProperty,
				},
				"required": []string{"source", "box"},
			},
		},

		// Reference
		{
			Name:        "plastic_info",
			Description: "Reference information for a plastic type: resin code, full name, recyclability, common uses, handling tips and overlay color. Omit material to list all types.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"material": map[string]interface{}{
						"type":        "string",
						"description": "Material name, label or resin code, e.g. \"PET\", \"HDPE (jug)\", \"5\"",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
