package forms

import (
	"errors"
	"fmt"
	"math"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// Placement is the persisted, JSON-shaped form of a field as it was laid
// out on the authoring canvas. The pixel values and the percentages are
// both derived from the field's normalized rectangle at save time.
type Placement struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      FieldType         `json:"type"`
	Page      int               `json:"page"`
	X         float64           `json:"x"`
	Y         float64           `json:"y"`
	Width     float64           `json:"width"`
	Height    float64           `json:"height"`
	Position  PlacementPosition `json:"position"`
	Size      PlacementSize     `json:"size"`
	Group     *Group            `json:"group,omitempty"`
	CatalogID string            `json:"catalogId,omitempty"`
}

// PlacementPosition carries the top-left corner in pixels and as a
// percentage of the canvas.
type PlacementPosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
}

// PlacementSize carries the size in pixels and as a percentage of the
// canvas.
type PlacementSize struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	WidthPercent  float64 `json:"widthPercent"`
	HeightPercent float64 `json:"heightPercent"`
}

// ErrCanvasUnavailable is returned when a placement needs a mounted canvas.
var ErrCanvasUnavailable = errors.New("canvas not available")

// PlacementOf renders f against the canvas it is being saved from.
func PlacementOf(f Field, canvas geometry.Canvas, natural *geometry.Size) (Placement, error) {
	display, ok := displaySize(canvas)
	if !ok {
		return Placement{}, ErrCanvasUnavailable
	}

	r := f.DisplayRect(canvas, natural)
	return Placement{
		ID:     f.ID,
		Name:   f.Name,
		Type:   f.Type,
		Page:   f.Page,
		X:      r.X,
		Y:      r.Y,
		Width:  r.Width,
		Height: r.Height,
		Position: PlacementPosition{
			X:        r.X,
			Y:        r.Y,
			XPercent: percent(r.X, display.Width),
			YPercent: percent(r.Y, display.Height),
		},
		Size: PlacementSize{
			Width:         r.Width,
			Height:        r.Height,
			WidthPercent:  percent(r.Width, display.Width),
			HeightPercent: percent(r.Height, display.Height),
		},
		Group:     f.Group,
		CatalogID: f.CatalogID,
	}, nil
}

// FieldFromPlacement reads a placement back into a field. Pixel values are
// used when the canvas and natural size are known; otherwise the stored
// percentages are used directly.
func FieldFromPlacement(p Placement, canvas geometry.Canvas, natural *geometry.Size) (Field, error) {
	ft, err := ParseFieldType(string(p.Type))
	if err != nil {
		return Field{}, err
	}
	page := p.Page
	if page == 0 {
		page = 1
	}

	f := Field{ID: p.ID, Name: p.Name, Type: ft, Page: page, Group: p.Group, CatalogID: p.CatalogID}

	pixels := p.pixelRect()
	_, mounted := displaySize(canvas)
	switch {
	case mounted && natural != nil && natural.Valid() && pixels.Width > 0 && pixels.Height > 0:
		f.Rect = geometry.ToNormalized(pixels, canvas, natural)
	case p.Size.WidthPercent > 0 && p.Size.HeightPercent > 0:
		f.Rect = geometry.Rect{
			X:      p.Position.XPercent / 100,
			Y:      p.Position.YPercent / 100,
			Width:  p.Size.WidthPercent / 100,
			Height: p.Size.HeightPercent / 100,
		}
	default:
		return Field{}, fmt.Errorf("field %s: placement has neither a usable canvas nor percentages", p.ID)
	}

	if err := f.Validate(); err != nil {
		return Field{}, err
	}
	return f, nil
}

func (p Placement) pixelRect() geometry.Rect {
	r := geometry.Rect{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
	if r.Width == 0 && r.Height == 0 {
		r = geometry.Rect{X: p.Position.X, Y: p.Position.Y, Width: p.Size.Width, Height: p.Size.Height}
	}
	return r
}

func displaySize(canvas geometry.Canvas) (geometry.Size, bool) {
	if canvas == nil {
		return geometry.Size{}, false
	}
	s, ok := canvas.DisplaySize()
	return s, ok && s.Valid()
}

// percent is v/total*100 rounded to two decimals.
func percent(v, total float64) float64 {
	return math.Round(v/total*100*100) / 100
}
