package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

const (
	DefaultModel          = "gemini-1.5-flash"
	DefaultEndpoint       = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultTimeout        = 30 * time.Second
)

// ErrNoAPIKey is returned by New when the configuration has no API key.
var ErrNoAPIKey = errors.New("vision: API key is required")

// Analyzer turns an encoded image into plastic detections.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*Analysis, error)
}

// Config configures a Client. Zero values are replaced by the defaults.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string

	// MaxRetries is the total number of attempts per Analyze call.
	MaxRetries int

	// InitialBackoff is the wait after the first failed attempt; it doubles
	// after every further failure.
	InitialBackoff time.Duration

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		Model:          DefaultModel,
		Endpoint:       DefaultEndpoint,
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		Timeout:        DefaultTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	return c
}

// Client calls a hosted Gemini model's generateContent method.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client. It fails only when cfg has no API key.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Model is the model name requests are sent to.
func (c *Client) Model() string { return c.cfg.Model }

// Analysis is one model response turned into detections.
type Analysis struct {
	ID                 uuid.UUID          `json:"id"`
	Model              string             `json:"model"`
	Detections         []detect.Detection `json:"detections"`
	NonPlasticDetected bool               `json:"non_plastic_detected"`
	CreatedAt          time.Time          `json:"created_at"`
}

// APIError is a non-success HTTP response from the model endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("vision API request failed: %s", e.Status)
	}
	return fmt.Sprintf("vision API request failed: %s: %s", e.Status, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generation_config"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Analyze sends image to the model and parses its answer.
//
// Parameters:
//   - ctx: Cancels the request and any backoff wait.
//   - image: Encoded image bytes (JPEG, PNG, WebP, ...).
//   - mimeType: The image's MIME type; sniffed from the bytes when empty.
//
// Transport errors, 429 and 5xx responses are retried up to MaxRetries
// attempts with exponential backoff. Other HTTP errors and unparseable model
// output fail immediately.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (*Analysis, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: Prompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.01,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 2048,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	backoff := c.cfg.InitialBackoff
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		text, err := c.generate(ctx, body)
		if err == nil {
			parsed, err := ParseAnalysis(text)
			if err != nil {
				return nil, err
			}
			return &Analysis{
				ID:                 uuid.New(),
				Model:              c.cfg.Model,
				Detections:         parsed.Detections,
				NonPlasticDetected: parsed.NonPlasticDetected,
				CreatedAt:          time.Now().UTC(),
			}, nil
		}

		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		log.Printf("vision: attempt %d/%d failed: %v; retrying in %s", attempt, c.cfg.MaxRetries, err, backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("failed to analyze image after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	url := c.cfg.Endpoint + "/" + c.cfg.Model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", &permanentError{fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	if len(gr.Candidates) == 0 {
		if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return "", &permanentError{fmt.Errorf("request blocked: %s", gr.PromptFeedback.BlockReason)}
		}
		return "", &permanentError{fmt.Errorf("no candidates in response")}
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// permanentError marks a failure that repeating the request will not fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
