package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// MaxSourceBytes bounds how much is read from any single image source.
const MaxSourceBytes = 32 << 20

// SourceKind classifies an image source string.
type SourceKind string

const (
	SourceFile SourceKind = "file" // local path or file:// URL
	SourceURL  SourceKind = "url"  // http:// or https:// URL
	SourceData SourceKind = "data" // data: URI with base64 payload
)

// KindOf classifies source. Anything that is not a recognized URL scheme is
// treated as a local path.
func KindOf(source string) SourceKind {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return SourceData
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return SourceURL
	default:
		return SourceFile
	}
}

// cachedImage is a decoded image plus what we learned while reading it.
type cachedImage struct {
	img    image.Image
	format string
	size   int64
}

// ImageCache provides thread-safe caching of loaded images to avoid redundant
// reads and downloads.
//
// Images are keyed by their source string. Local paths, file:// URLs and
// http(s) URLs are cached; data: URIs are decoded on every call since the
// source already carries the bytes.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached images remain in memory until explicitly removed via Evict() or Clear().
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.Load(ctx, "https://example.com/waste.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
	client *http.Client
}

// NewImageCache creates and initializes a new empty image cache. Remote
// sources are fetched with a 30 second timeout.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the client used for http(s) sources.
func (c *ImageCache) SetHTTPClient(client *http.Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

// Load retrieves an image from the cache or reads and decodes it.
//
// Parameters:
//   - ctx: Bounds the download of http(s) sources.
//   - source: A local path, a file:// URL, an http(s) URL or a base64 data:
//     URI. Supported formats are PNG, JPEG, GIF, BMP and WebP.
//
// # Errors
//
//   - Returns error if the source cannot be read or downloaded
//   - Returns error if the content is not a supported image
func (c *ImageCache) Load(ctx context.Context, source string) (image.Image, error) {
	entry, err := c.load(ctx, source)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(ctx context.Context, source string) (cachedImage, error) {
	c.mu.RLock()
	entry, ok := c.images[source]
	client := c.client
	c.mu.RUnlock()
	if ok {
		return entry, nil
	}

	data, err := ReadSource(ctx, client, source)
	if err != nil {
		return cachedImage{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to decode image: %w", err)
	}
	entry = cachedImage{img: img, format: format, size: int64(len(data))}

	if KindOf(source) != SourceData {
		c.mu.Lock()
		c.images[source] = entry
		c.mu.Unlock()
	}
	return entry, nil
}

// Put stores an already decoded image under source, e.g. an upload that
// should be addressable by later requests.
func (c *ImageCache) Put(source string, img image.Image, format string, size int64) {
	c.mu.Lock()
	c.images[source] = cachedImage{img: img, format: format, size: size}
	c.mu.Unlock()
}

// Clear removes all images from the cache, freeing the associated memory.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its source.
// If the source is not in the cache, this method does nothing.
func (c *ImageCache) Evict(source string) {
	c.mu.Lock()
	delete(c.images, source)
	c.mu.Unlock()
}

// Len is the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ReadSource returns the raw bytes behind source, see ImageCache.Load for
// the accepted forms. At most MaxSourceBytes are accepted.
func ReadSource(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	switch KindOf(source) {
	case SourceData:
		return decodeDataURI(source)
	case SourceURL:
		return fetch(ctx, client, source)
	}

	path := source
	if strings.HasPrefix(strings.ToLower(source), "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL: %w", err)
		}
		path = u.Path
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return readLimited(f)
}

func fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}

// decodeDataURI decodes "data:<mime>;base64,<payload>".
func decodeDataURI(source string) ([]byte, error) {
	comma := strings.IndexByte(source, ',')
	if comma < 0 {
		return nil, fmt.Errorf("invalid data URI: missing ','")
	}
	meta := source[len("data:"):comma]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, fmt.Errorf("invalid data URI: only base64 payloads are supported")
	}
	data, err := base64.StdEncoding.DecodeString(source[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("invalid data URI payload: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxSourceBytes)
	}
	return data, nil
}

// ImageInfo contains metadata about a loaded image.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that accepted the content: "png", "jpeg",
	// "gif", "bmp" or "webp".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded source in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// Source is the kind of source the image came from.
	Source SourceKind `json:"source"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(ctx context.Context, cache *ImageCache, source string) (*ImageInfo, error) {
	entry, err := cache.load(ctx, source)
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch entry.img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := entry.img.Bounds()
	return &ImageInfo{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Format:     entry.format,
		ColorDepth: colorDepth,
		HasAlpha:   hasAlpha,
		SizeBytes:  entry.size,
		Source:     KindOf(source),
	}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(ctx context.Context, cache *ImageCache, source string) (*DimensionsResult, error) {
	img, err := cache.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
