package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Parsed is the detection payload extracted from model text.
type Parsed struct {
	Detections         []detect.Detection `json:"detections"`
	NonPlasticDetected bool               `json:"non_plastic_detected"`
}

// ParseAnalysis extracts detections from free-form model output.
//
// The JSON is taken from the first fenced code block if there is one,
// otherwise from the outermost object or array span in the text (see
// extractJSON). Two shapes are accepted:
//
//	{"detections": [...], "non_plastic_detected": bool}
//	[...]  (legacy: a bare detection array)
//
// Items are read leniently: a missing label becomes "Unknown", a confidence
// given as a numeric string is converted and anything else is 0, and a
// bounding box that is not exactly four numbers becomes all zeros.
// Confidence is clamped to [0, 1].
//
// An object without a "detections" array yields no detections. Text that
// contains no parseable JSON is an error.
func ParseAnalysis(text string) (*Parsed, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON found in model response")
	}

	var items []json.RawMessage
	out := &Parsed{Detections: []detect.Detection{}}

	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to parse detections: %w", err)
		}
	} else {
		var obj struct {
			Detections         json.RawMessage `json:"detections"`
			NonPlasticDetected any             `json:"non_plastic_detected"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("failed to parse detections: %w", err)
		}
		if len(obj.Detections) > 0 && obj.Detections[0] == '[' {
			if err := json.Unmarshal(obj.Detections, &items); err != nil {
				return nil, fmt.Errorf("failed to parse detections: %w", err)
			}
		}
		out.NonPlasticDetected = truthy(obj.NonPlasticDetected)
	}

	for _, item := range items {
		if d, ok := parseItem(item); ok {
			out.Detections = append(out.Detections, d)
		}
	}
	return out, nil
}

// extractJSON returns the JSON portion of text, or "" if there is none.
//
// Outside a fenced block the object span (first '{' to last '}') is
// preferred, so brackets in surrounding prose do not derail it. The array
// span (first '[' to last ']') wins only when it is valid JSON that encloses
// the object, which is the legacy bare-array reply.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	objStart, objEnd := span(text, '{', '}')
	arrStart, arrEnd := span(text, '[', ']')
	obj, arr := "", ""
	if objStart >= 0 {
		obj = text[objStart : objEnd+1]
	}
	if arrStart >= 0 {
		arr = text[arrStart : arrEnd+1]
	}

	arrValid := arr != "" && json.Valid([]byte(arr))
	switch {
	case arrValid && (obj == "" || (arrStart < objStart && arrEnd > objEnd)):
		return arr
	case obj != "" && json.Valid([]byte(obj)):
		return obj
	case arrValid:
		return arr
	case obj != "":
		return obj
	}
	return arr
}

// span returns the indexes of the first open and last close byte, or -1, -1
// when there is no such pair.
func span(text string, opener, closer byte) (int, int) {
	start := strings.IndexByte(text, opener)
	end := strings.LastIndexByte(text, closer)
	if start < 0 || end < start {
		return -1, -1
	}
	return start, end
}

// parseItem reads one detection. Entries that are not JSON objects are
// skipped.
func parseItem(raw json.RawMessage) (detect.Detection, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return detect.Detection{}, false
	}

	d := detect.Detection{Label: "Unknown"}

	var label string
	if json.Unmarshal(fields["label"], &label) == nil && strings.TrimSpace(label) != "" {
		d.Label = label
	}

	d.Confidence = number(fields["confidence"])

	var box []json.RawMessage
	if json.Unmarshal(fields["bounding_box"], &box) == nil && len(box) == 4 {
		var b detect.Box
		valid := true
		for i, v := range box {
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				valid = false
				break
			}
			b[i] = f
		}
		if valid {
			d.BoundingBox = b
		}
	}

	var desc string
	if json.Unmarshal(fields["item_description"], &desc) == nil {
		d.ItemDescription = strings.TrimSpace(desc)
	}

	return d.Clamped(), true
}

// number reads a JSON number or numeric string, defaulting to 0.
func number(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case float64:
		return t != 0
	}
	return false
}
