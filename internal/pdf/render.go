package pdf

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

// Rasterizer draws the content of one page at exactly width×height pixels.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, page, width, height int) (image.Image, error)
}

// RenderedPage is a page drawn for the authoring canvas.
type RenderedPage struct {
	Page       int
	Zoom       float64
	PixelRatio float64
	// Viewport is the page size in CSS pixels (page size × zoom).
	Viewport geometry.Size
	// Surface holds Viewport × PixelRatio device pixels.
	Surface *raster.Surface
}

// Renderer rasterizes document pages onto white surfaces.
type Renderer struct {
	loader     Loader
	rasterizer Rasterizer
	cache      *RenderCache
	logger     *slog.Logger
}

// NewRenderer creates a renderer. cache may be nil to disable caching.
func NewRenderer(loader Loader, rasterizer Rasterizer, cache *RenderCache, logger *slog.Logger) *Renderer {
	return &Renderer{
		loader:     loader,
		rasterizer: rasterizer,
		cache:      cache,
		logger:     logging.OrDiscard(logger).With("component", "renderer"),
	}
}

// RenderPage draws page of data. On any failure it returns nil and an
// error; a partially drawn surface is never returned.
func (r *Renderer) RenderPage(ctx context.Context, data []byte, page int, zoom, pixelRatio float64) (*RenderedPage, error) {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return nil, fmt.Errorf("invalid zoom: %v", zoom)
	}
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}

	if r.cache == nil {
		return r.render(ctx, data, page, zoom, pixelRatio)
	}
	key := NewRenderKey(data, page, zoom, pixelRatio)
	return r.cache.Do(key, func() (*RenderedPage, error) {
		return r.render(ctx, data, page, zoom, pixelRatio)
	})
}

func (r *Renderer) render(ctx context.Context, data []byte, page int, zoom, pixelRatio float64) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := r.loader.Load(data)
	if err != nil {
		return nil, err
	}
	size, err := doc.PageSize(page)
	if err != nil {
		return nil, err
	}

	viewport := geometry.Size{Width: size.Width * zoom, Height: size.Height * zoom}
	width := max(1, int(math.Round(viewport.Width*pixelRatio)))
	height := max(1, int(math.Round(viewport.Height*pixelRatio)))

	content, err := r.rasterizer.Rasterize(ctx, data, page, width, height)
	if err != nil {
		r.logger.Warn("page rasterization failed", "page", page, "error", err)
		return nil, &DocumentError{Op: "render", Err: err}
	}

	surface := raster.NewSurface(width, height)
	surface.FillWhite()
	if b := content.Bounds(); b.Dx() != width || b.Dy() != height {
		content = raster.Resample(content, width, height)
	}
	draw.Draw(surface.Image(), surface.Image().Bounds(), content, content.Bounds().Min, draw.Over)

	r.logger.Debug("rendered page", "page", page, "width", width, "height", height)
	return &RenderedPage{
		Page:       page,
		Zoom:       zoom,
		PixelRatio: pixelRatio,
		Viewport:   viewport,
		Surface:    surface,
	}, nil
}
