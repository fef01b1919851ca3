// Package geometry converts field rectangles between display pixels,
// natural document pixels, normalized [0,1] units and PDF page space.
package geometry

import "math"

// Point is a position in display pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size holds a width and height in whatever unit the caller is working in.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Rect is an axis-aligned rectangle with a top-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FallbackRect is returned by ToDisplay when the canvas cannot be measured,
// so callers always get something placeable.
var FallbackRect = Rect{X: 50, Y: 50, Width: 150, Height: 40}

// Canvas is the display surface fields are authored against.
type Canvas interface {
	// DisplaySize returns the on-screen size of the rendered page.
	// The boolean is false while the canvas is not mounted.
	DisplaySize() (Size, bool)
}

// StaticCanvas is a Canvas with a fixed display size. The zero value is an
// unmounted canvas.
type StaticCanvas struct {
	Size Size
}

// DisplaySize implements Canvas.
func (c StaticCanvas) DisplaySize() (Size, bool) {
	return c.Size, c.Size.Valid()
}

// Bounds describes the relation between the display canvas and the natural
// document resolution.
type Bounds struct {
	ScaleX        float64 `json:"scale_x"`
	ScaleY        float64 `json:"scale_y"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// BoundsOf returns natural/display scale factors for canvas. An unmounted
// canvas yields {1, 1, 0, 0}. Missing natural dimensions fall back to the
// display size, giving a scale of 1.
func BoundsOf(canvas Canvas, natural *Size) Bounds {
	display, ok := mounted(canvas)
	if !ok {
		return Bounds{ScaleX: 1, ScaleY: 1}
	}

	naturalWidth, naturalHeight := display.Width, display.Height
	if natural != nil && natural.Width > 0 {
		naturalWidth = natural.Width
	}
	if natural != nil && natural.Height > 0 {
		naturalHeight = natural.Height
	}

	return Bounds{
		ScaleX:        naturalWidth / display.Width,
		ScaleY:        naturalHeight / display.Height,
		DisplayWidth:  display.Width,
		DisplayHeight: display.Height,
	}
}

// ToNormalized converts a display-pixel rectangle into fractions of the
// natural document size. It returns the zero Rect when the canvas is not
// mounted or the natural dimensions are unknown.
func ToNormalized(r Rect, canvas Canvas, natural *Size) Rect {
	if _, ok := mounted(canvas); !ok || natural == nil || natural.Width <= 0 || natural.Height <= 0 {
		return Rect{}
	}

	b := BoundsOf(canvas, natural)

	// display -> natural -> normalized
	return Rect{
		X:      r.X * b.ScaleX / natural.Width,
		Y:      r.Y * b.ScaleY / natural.Height,
		Width:  r.Width * b.ScaleX / natural.Width,
		Height: r.Height * b.ScaleY / natural.Height,
	}
}

// ToDisplay is the inverse of ToNormalized. When the canvas or natural
// dimensions are unavailable it returns FallbackRect.
func ToDisplay(n Rect, canvas Canvas, natural *Size) Rect {
	if _, ok := mounted(canvas); !ok || natural == nil || natural.Width <= 0 || natural.Height <= 0 {
		return FallbackRect
	}

	b := BoundsOf(canvas, natural)

	// normalized -> natural -> display
	return Rect{
		X:      n.X * natural.Width / b.ScaleX,
		Y:      n.Y * natural.Height / b.ScaleY,
		Width:  n.Width * natural.Width / b.ScaleX,
		Height: n.Height * natural.Height / b.ScaleY,
	}
}

func mounted(canvas Canvas) (Size, bool) {
	if canvas == nil {
		return Size{}, false
	}
	s, ok := canvas.DisplaySize()
	if !ok || !s.Valid() {
		return Size{}, false
	}
	return s, true
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contained reports whether r lies entirely inside a container of size s.
func (r Rect) Contained(s Size) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= s.Width && r.Bottom() <= s.Height
}

// Visible reports whether any part of r can still be on a container of
// size s, i.e. it has not been dragged completely off of it.
func (r Rect) Visible(s Size) bool {
	return !(r.X < -r.Width || r.Y < -r.Height || r.X > s.Width || r.Y > s.Height)
}

// Scale multiplies every component by k.
func (r Rect) Scale(k float64) Rect {
	return Rect{X: r.X * k, Y: r.Y * k, Width: r.Width * k, Height: r.Height * k}
}

// Denormalize maps a normalized rectangle onto a page of the given size.
func (r Rect) Denormalize(page Size) Rect {
	return Rect{
		X:      r.X * page.Width,
		Y:      r.Y * page.Height,
		Width:  r.Width * page.Width,
		Height: r.Height * page.Height,
	}
}

// ApproxEqual compares two rectangles component-wise within eps.
func (r Rect) ApproxEqual(o Rect, eps float64) bool {
	return math.Abs(r.X-o.X) <= eps && math.Abs(r.Y-o.Y) <= eps &&
		math.Abs(r.Width-o.Width) <= eps && math.Abs(r.Height-o.Height) <= eps
}
