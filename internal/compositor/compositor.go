// Package compositor merges filled field values into a base PDF.
//
// Field rectangles arrive in page units with a top-left origin. They are
// converted to PDF space exactly once, when the content is placed.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// TextMode selects how text fields are drawn.
type TextMode string

const (
	// TextModeRaster draws text into a transparent PNG that is embedded
	// like signatures and check marks.
	TextModeRaster TextMode = "raster"
	// TextModeNative uses the document's own text drawing.
	TextModeNative TextMode = "native"
)

// ParseTextMode validates a configured text mode.
func ParseTextMode(s string) (TextMode, error) {
	switch m := TextMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TextModeRaster, TextModeNative:
		return m, nil
	case "":
		return TextModeRaster, nil
	default:
		return "", fmt.Errorf("invalid text mode %q (must be raster or native)", s)
	}
}

// BaseFontSize seeds the text font fit.
const BaseFontSize = 12

var errNoKind = errors.New("field has no kind")

// PlacedField is one field ready to be drawn on a page.
type PlacedField struct {
	ID string
	// Rect is in page units with a top-left origin.
	Rect geometry.Rect
	Kind forms.FieldKind
}

// PagedField is a PlacedField together with its 1-based page.
type PagedField struct {
	Page int
	PlacedField
}

// Compositor draws fields onto documents opened by a pdf.Loader.
type Compositor struct {
	loader   pdf.Loader
	textMode TextMode
	logger   *slog.Logger
}

// New creates a compositor. An empty mode means TextModeRaster.
func New(loader pdf.Loader, mode TextMode, logger *slog.Logger) *Compositor {
	if mode == "" {
		mode = TextModeRaster
	}
	return &Compositor{
		loader:   loader,
		textMode: mode,
		logger:   logging.OrDiscard(logger).With("component", "compositor"),
	}
}

// TextMode reports the configured text mode.
func (c *Compositor) TextMode() TextMode {
	return c.textMode
}

// ComposePage draws fields onto page of data, in list order, and returns
// the saved document. A field that fails is logged and skipped; load and
// save failures fail the whole call.
func (c *Compositor) ComposePage(ctx context.Context, data []byte, page int, fields []PlacedField) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := c.loader.Load(data)
	if err != nil {
		return nil, err
	}
	size, err := doc.PageSize(page)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With("page", page)
	drawn, skipped := 0, 0
	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.placeField(doc, page, size, f)
		switch {
		case err != nil:
			skipped++
			logger.Warn("field skipped", "field", f.ID, "error", err)
		case ok:
			drawn++
		}
	}

	out, err := doc.Save()
	if err != nil {
		return nil, err
	}
	logger.Debug("page composed", "drawn", drawn, "skipped", skipped)
	return out, nil
}

// Compose runs ComposePage for every page that has fields, in ascending
// page order, carrying the output of each page into the next. Fields on
// pages the document does not have are logged and skipped.
func (c *Compositor) Compose(ctx context.Context, data []byte, fields []PagedField) ([]byte, error) {
	byPage := make(map[int][]PlacedField)
	for _, f := range fields {
		byPage[f.Page] = append(byPage[f.Page], f.PlacedField)
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	out := data
	for _, page := range pages {
		next, err := c.ComposePage(ctx, out, page, byPage[page])
		if errors.Is(err, pdf.ErrInvalidPage) {
			c.logger.Warn("page skipped", "page", page, "fields", len(byPage[page]), "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to compose page %d: %w", page, err)
		}
		out = next
	}
	return out, nil
}

// placeField draws one field. It reports false with a nil error when there
// is nothing to draw.
func (c *Compositor) placeField(doc pdf.Document, page int, size geometry.Size, f PlacedField) (drawn bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			drawn, err = false, fmt.Errorf("panic while drawing field: %v", r)
		}
	}()

	if f.Kind == nil {
		return false, errNoKind
	}
	if !(f.Rect.Width > 0 && f.Rect.Height > 0) || math.IsInf(f.Rect.Width, 0) || math.IsInf(f.Rect.Height, 0) {
		return false, fmt.Errorf("invalid field rectangle %+v", f.Rect)
	}
	dest := geometry.ToPDF(f.Rect, size.Height)

	var png []byte
	switch k := f.Kind.(type) {
	case forms.SignatureKind:
		surface, _, err := signatureSurface(k.Image, f.Rect.Width, f.Rect.Height)
		if err != nil {
			return false, err
		}
		if png, err = surface.PNG(); err != nil {
			return false, err
		}
	case forms.CheckmarkKind:
		if png, err = checkmarkSurface(f.Rect.Width, f.Rect.Height).PNG(); err != nil {
			return false, err
		}
	case forms.TextKind:
		text := strings.TrimSpace(k.Text)
		if text == "" {
			return false, nil
		}
		if c.textMode == TextModeNative {
			return true, drawNativeText(doc, page, dest, text, k.Group)
		}
		surface, err := textSurface(text, k.Group, f.Rect.Width, f.Rect.Height)
		if err != nil {
			return false, err
		}
		if png, err = surface.PNG(); err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unsupported field kind %T", f.Kind)
	}

	ref, err := doc.EmbedImage(png)
	if err != nil {
		return false, err
	}
	if err := doc.DrawImage(page, ref, dest); err != nil {
		return false, err
	}
	return true, nil
}
