// Package config reads server settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"image/color"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
	"github.com/ironsheep/plastic-detect-mcp/internal/overlay"
	"github.com/ironsheep/plastic-detect-mcp/internal/vision"
)

// DefaultEnvFile is loaded by Load when no files are named. A missing
// default file is not an error.
const DefaultEnvFile = ".env"

type Config struct {
	// LogLevel is "debug" to enable verbose logging; anything else is quiet.
	LogLevel string

	// HTTPAddr, when set, serves the HTTP API instead of stdio MCP.
	HTTPAddr string

	// Render holds the canvas defaults for every render request.
	Render overlay.Options

	// Vision configures the hosted detection model. Vision.APIKey is empty
	// when detection is not configured.
	Vision vision.Config
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.LogLevel, "debug")
}

// VisionEnabled reports whether a vision API key is configured.
func (c *Config) VisionEnabled() bool {
	return c.Vision.APIKey != ""
}

// Load builds a Config from the environment after loading envFiles (or
// DefaultEnvFile when none are given). Variables already set in the
// environment take precedence over file values.
//
// Malformed values fall back to their defaults. Only a named env file that
// cannot be read is an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, err
	}

	render := overlay.DefaultOptions()
	render.Width = getEnvAsInt("PLASTIC_CANVAS_WIDTH", render.Width, 1)
	render.Height = getEnvAsInt("PLASTIC_CANVAS_HEIGHT", render.Height, 1)
	render.Mode = getEnvAsMode("PLASTIC_VIEW_MODE", render.Mode)
	render.Letterbox = getEnvAsColor("PLASTIC_LETTERBOX_COLOR", render.Letterbox)
	policy := render.Policy()
	render = render.WithPolicy(detect.ThresholdPolicy{
		DenseCount: getEnvAsInt("PLASTIC_DENSE_COUNT", policy.DenseCount, 0),
		Dense:      getEnvAsFloat("PLASTIC_DENSE_THRESHOLD", policy.Dense),
		Sparse:     getEnvAsFloat("PLASTIC_SPARSE_THRESHOLD", policy.Sparse),
	})
	render.Grid = getEnvAsBool("PLASTIC_GRID", false)

	return &Config{
		LogLevel: getEnv("PLASTIC_MCP_LOG_LEVEL", "info"),
		HTTPAddr: getEnv("PLASTIC_HTTP_ADDR", ""),
		Render:   render,
		Vision: vision.Config{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", vision.DefaultModel),
			Endpoint:       getEnv("GEMINI_ENDPOINT", vision.DefaultEndpoint),
			MaxRetries:     getEnvAsInt("GEMINI_MAX_RETRIES", vision.DefaultMaxRetries, 1),
			InitialBackoff: getEnvAsDuration("GEMINI_INITIAL_BACKOFF", vision.DefaultInitialBackoff),
			Timeout:        getEnvAsDuration("GEMINI_TIMEOUT", vision.DefaultTimeout),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an integer no smaller than minValue.
func getEnvAsInt(key string, defaultValue, minValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue >= minValue {
			return intValue
		}
		invalid(key, value)
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
		invalid(key, value)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		invalid(key, value)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		invalid(key, value)
	}
	return defaultValue
}

func getEnvAsMode(key string, defaultValue overlay.Mode) overlay.Mode {
	if value := getEnv(key, ""); value != "" {
		if m, err := overlay.ParseMode(value); err == nil {
			return m
		}
		invalid(key, value)
	}
	return defaultValue
}

func getEnvAsColor(key string, defaultValue color.NRGBA) color.NRGBA {
	if value := getEnv(key, ""); value != "" {
		if c, err := overlay.ParseColor(value); err == nil {
			return c
		}
		invalid(key, value)
	}
	return defaultValue
}

func invalid(key, value string) {
	log.Printf("config: ignoring invalid %s=%q, using default", key, value)
}
