package overlay

import (
	"context"
	"image"
	"log"
	"sync"

	"github.com/anthonynsimon/bild/clone"

	"github.com/ironsheep/plastic-detect-mcp/internal/detect"
)

// Loader resolves an image source (path, URL, data URI) to a decoded image.
type Loader interface {
	Load(ctx context.Context, source string) (image.Image, error)
}

// Canvas is a persistent drawing surface that is fully redrawn whenever the
// source, detections, size or mode change.
//
// Loading the source is the only slow step. A Draw captures a generation
// number before loading and commits only if no later Draw has started in
// the meantime, so a slow load can never overwrite a newer frame. A failed
// load leaves the surface as it was.
//
// Canvas is safe for concurrent use.
type Canvas struct {
	loader Loader

	mu      sync.Mutex
	gen     uint64
	surface *image.RGBA
	source  string
	layout  *Layout
}

// NewCanvas creates a blank width x height canvas.
func NewCanvas(loader Loader, width, height int) *Canvas {
	return &Canvas{
		loader:  loader,
		surface: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Draw loads source and redraws the canvas. It reports whether the result
// was committed; false means the load failed or a newer Draw superseded
// this one. Neither case is an error for the caller.
func (c *Canvas) Draw(ctx context.Context, source string, dets []detect.Detection, opts Options) bool {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	src, err := c.loader.Load(ctx, source)
	if err != nil {
		log.Printf("canvas: load %q failed, keeping previous frame: %v", source, err)
		return false
	}

	frame, l := Render(src, dets, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		log.Printf("canvas: dropping stale frame for %q", source)
		return false
	}
	c.surface = frame
	c.source = source
	c.layout = &l
	return true
}

// Snapshot returns a copy of the current surface.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone.AsRGBA(c.surface)
}

// Current returns a copy of the surface together with the source and layout
// that produced it. ok is false until a frame has been committed.
func (c *Canvas) Current() (img *image.RGBA, source string, l Layout, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout == nil {
		return clone.AsRGBA(c.surface), "", Layout{}, false
	}
	return clone.AsRGBA(c.surface), c.source, *c.layout, true
}

// Source is the source of the last committed frame, or "" if none.
func (c *Canvas) Source() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Layout is the layout of the last committed frame.
func (c *Canvas) Layout() (Layout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layout == nil {
		return Layout{}, false
	}
	return *c.layout, true
}
