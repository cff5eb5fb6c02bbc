package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
	"github.com/ironsheep/plastic-detect-mcp/internal/imaging"
	"github.com/ironsheep/plastic-detect-mcp/internal/overlay"
	"github.com/ironsheep/plastic-detect-mcp/internal/vision"
)

// App holds what the handlers share. Vision may be nil, in which case
// /v1/analyze answers 503.
type App struct {
	Vision        vision.Analyzer
	Render        overlay.Options
	MaxUploadSize int64
}

func (app *App) maxUpload() int64 {
	if app.MaxUploadSize > 0 {
		return app.MaxUploadSize
	}
	return imaging.MaxSourceBytes
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

// readUpload reads the multipart file field "image".
func (app *App) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, app.maxUpload())
	if err := r.ParseMultipartForm(app.maxUpload()); err != nil {
		return nil, "", fmt.Errorf("invalid upload: %w", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", fmt.Errorf("missing image file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image file is empty")
	}
	return data, header.Header.Get("Content-Type"), nil
}

func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if app.Vision == nil {
		http.Error(w, "Plastic detection is not configured", http.StatusServiceUnavailable)
		return
	}

	data, mimeType, err := app.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = ""
	}

	analysis, err := app.Vision.Analyze(r.Context(), data, mimeType)
	if err != nil {
		log.Printf("httpapi: analyze failed: %v", err)
		http.Error(w, fmt.Sprintf("Analysis failed: %v", err), http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}

// thresholdRequest carries optional overrides of the configured policy.
type thresholdRequest struct {
	DenseCount      *int     `json:"dense_count"`
	DenseThreshold  *float64 `json:"dense_threshold"`
	SparseThreshold *float64 `json:"sparse_threshold"`
}

func (t thresholdRequest) policy(p detect.ThresholdPolicy) detect.ThresholdPolicy {
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

type filterRequest struct {
	Detections []detect.Detection `json:"detections"`
	thresholdRequest
}

type filterResponse struct {
	Threshold  float64            `json:"threshold"`
	Total      int                `json:"total"`
	Kept       int                `json:"kept"`
	Detections []detect.Detection `json:"detections"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (app *App) FilterHandler(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !decodeBody(w, r, app.maxUpload(), &req) {
		return
	}

	kept, threshold := req.policy(app.Render.Policy()).Apply(req.Detections)
	respondJSON(w, http.StatusOK, filterResponse{
		Threshold:  threshold,
		Total:      len(req.Detections),
		Kept:       len(kept),
		Detections: kept,
	})
}

type summaryRequest struct {
	Detections []detect.Detection `json:"detections"`
	Filter     bool               `json:"filter"`
	thresholdRequest
}

func (app *App) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !decodeBody(w, r, app.maxUpload(), &req) {
		return
	}

	dets := req.Detections
	if req.Filter {
		dets, _ = req.policy(app.Render.Policy()).Apply(dets)
	}
	respondJSON(w, http.StatusOK, detect.Summarize(dets))
}

// renderOptions reads per-request overrides from the multipart form.
func (app *App) renderOptions(r *http.Request) (overlay.Options, error) {
	opts := app.Render.WithDefaults()

	if v := r.FormValue("mode"); v != "" {
		mode, err := overlay.ParseMode(v)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"width", &opts.Width}, {"height", &opts.Height}} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid %s %q", f.name, v)
		}
		*f.dst = n
	}
	if v := r.FormValue("letterbox"); v != "" {
		c, err := overlay.ParseColor(v)
		if err != nil {
			return opts, err
		}
		opts.Letterbox = c
	}
	if v := r.FormValue("grid"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid grid %q", v)
		}
		opts.Grid = b
	}
	if v := r.FormValue("non_plastic_detected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid non_plastic_detected %q", v)
		}
		opts.NonPlasticDetected = b
	}
	return opts, nil
}

// RenderHandler takes a multipart form with the "image" file and a
// "detections" JSON array and answers with the overlay as PNG. The applied
// threshold and visible count are returned in headers.
func (app *App) RenderHandler(w http.ResponseWriter, r *http.Request) {
	data, _, err := app.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var dets []detect.Detection
	if raw := r.FormValue("detections"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &dets); err != nil {
			http.Error(w, fmt.Sprintf("Invalid detections: %v", err), http.StatusBadRequest)
			return
		}
	}

	opts, err := app.renderOptions(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode image: %v", err), http.StatusUnprocessableEntity)
		return
	}

	frame, layout := overlay.Render(src, dets, opts)
	png, err := overlay.EncodePNG(frame)
	if err != nil {
		http.Error(w, "Failed to encode overlay", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Plastic-Threshold", strconv.FormatFloat(layout.Threshold, 'f', -1, 64))
	w.Header().Set("X-Plastic-Total", strconv.Itoa(layout.Total))
	w.Header().Set("X-Plastic-Visible", strconv.Itoa(layout.Visible))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (app *App) MaterialsHandler(w http.ResponseWriter, r *http.Request) {
	infos := make([]detect.MaterialInfo, 0, len(detect.Materials))
	for _, m := range detect.Materials {
		infos = append(infos, detect.InfoFor(m))
	}
	respondJSON(w, http.StatusOK, infos)
}

func (app *App) MaterialHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "material")
	m := detect.ParseMaterial(name)
	if m == detect.Unknown && !strings.EqualFold(name, "unknown") {
		http.Error(w, fmt.Sprintf("Unknown material %q", name), http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, detect.InfoFor(m))
}
