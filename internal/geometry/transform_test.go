package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsOf(t *testing.T) {
	tests := []struct {
		name    string
		canvas  Canvas
		natural *Size
		want    Bounds
	}{
		{
			name:    "unmounted canvas",
			canvas:  StaticCanvas{},
			natural: &Size{Width: 1200, Height: 1600},
			want:    Bounds{ScaleX: 1, ScaleY: 1},
		},
		{
			name:    "nil canvas",
			canvas:  nil,
			natural: &Size{Width: 1200, Height: 1600},
			want:    Bounds{ScaleX: 1, ScaleY: 1},
		},
		{
			name:    "zoomed out canvas",
			canvas:  StaticCanvas{Size: Size{Width: 600, Height: 800}},
			natural: &Size{Width: 1200, Height: 1600},
			want:    Bounds{ScaleX: 2, ScaleY: 2, DisplayWidth: 600, DisplayHeight: 800},
		},
		{
			name:    "natural dims missing falls back to display",
			canvas:  StaticCanvas{Size: Size{Width: 600, Height: 800}},
			natural: nil,
			want:    Bounds{ScaleX: 1, ScaleY: 1, DisplayWidth: 600, DisplayHeight: 800},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundsOf(tt.canvas, tt.natural))
		})
	}
}

func TestToNormalized(t *testing.T) {
	canvas := StaticCanvas{Size: Size{Width: 600, Height: 800}}
	natural := &Size{Width: 1200, Height: 1600}

	got := ToNormalized(Rect{X: 60, Y: 80, Width: 150, Height: 40}, canvas, natural)
	assert.InDelta(t, 0.1, got.X, 1e-9)
	assert.InDelta(t, 0.1, got.Y, 1e-9)
	assert.InDelta(t, 0.25, got.Width, 1e-9)
	assert.InDelta(t, 0.05, got.Height, 1e-9)
}

func TestToNormalized_Unavailable(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 10, Height: 10}

	assert.Equal(t, Rect{}, ToNormalized(r, StaticCanvas{}, &Size{Width: 100, Height: 100}))
	assert.Equal(t, Rect{}, ToNormalized(r, nil, &Size{Width: 100, Height: 100}))
	assert.Equal(t, Rect{}, ToNormalized(r, StaticCanvas{Size: Size{Width: 100, Height: 100}}, nil))
	assert.Equal(t, Rect{}, ToNormalized(r, StaticCanvas{Size: Size{Width: 100, Height: 100}}, &Size{}))
}

func TestToDisplay_Unavailable(t *testing.T) {
	n := Rect{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1}

	assert.Equal(t, FallbackRect, ToDisplay(n, StaticCanvas{}, &Size{Width: 100, Height: 100}))
	assert.Equal(t, FallbackRect, ToDisplay(n, StaticCanvas{Size: Size{Width: 100, Height: 100}}, nil))
	assert.Equal(t, Rect{X: 50, Y: 50, Width: 150, Height: 40}, FallbackRect)
}

func TestRoundTrip(t *testing.T) {
	canvases := []Size{
		{Width: 918, Height: 1188},
		{Width: 612, Height: 792},
		{Width: 333.3, Height: 471.7},
	}
	natural := &Size{Width: 1224, Height: 1584}
	rects := []Rect{
		{X: 0, Y: 0, Width: 150, Height: 40},
		{X: 12.5, Y: 300.25, Width: 200, Height: 30},
		{X: 100, Y: 100, Width: 1, Height: 1},
	}

	for _, cs := range canvases {
		canvas := StaticCanvas{Size: cs}
		for _, r := range rects {
			if !r.Contained(cs) {
				continue
			}
			back := ToDisplay(ToNormalized(r, canvas, natural), canvas, natural)
			assert.True(t, back.ApproxEqual(r, 1e-9), "round trip %v on %v gave %v", r, cs, back)
		}
	}
}

func TestRectPredicates(t *testing.T) {
	page := Size{Width: 600, Height: 800}

	assert.True(t, Rect{X: 0, Y: 0, Width: 600, Height: 800}.Contained(page))
	assert.False(t, Rect{X: 500, Y: 0, Width: 150, Height: 40}.Contained(page))
	assert.False(t, Rect{X: -1, Y: 0, Width: 10, Height: 10}.Contained(page))

	assert.True(t, Rect{X: 500, Y: 0, Width: 150, Height: 40}.Visible(page))
	assert.False(t, Rect{X: -200, Y: 0, Width: 150, Height: 40}.Visible(page))
	assert.False(t, Rect{X: 10, Y: 801, Width: 150, Height: 40}.Visible(page))
}

func TestToPDF(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 30}
	got := ToPDF(r, 842)

	assert.Equal(t, Rect{X: 10, Y: 792, Width: 100, Height: 30}, got)

	// A second flip undoes the first, which would put content back at the
	// top-left-origin y.
	assert.Equal(t, r, ToPDF(got, 842))
	assert.NotEqual(t, r.Y, got.Y)
}

func TestDenormalize(t *testing.T) {
	n := Rect{X: 0.1, Y: 0.2, Width: 0.5, Height: 0.05}
	got := n.Denormalize(Size{Width: 595, Height: 842})

	assert.InDelta(t, 59.5, got.X, 1e-9)
	assert.InDelta(t, 168.4, got.Y, 1e-9)
	assert.InDelta(t, 297.5, got.Width, 1e-9)
	assert.InDelta(t, 42.1, got.Height, 1e-9)
}
