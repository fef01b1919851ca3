package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// capSegments is the polygon resolution of round caps and joins.
const capSegments = 24

// CheckmarkPoints returns the three vertices of a check mark centered in r.
// The mark spans 40% of the shorter side.
func CheckmarkPoints(r geometry.Rect) [3]geometry.Point {
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	size := math.Min(r.Width, r.Height) * 0.4
	return [3]geometry.Point{
		{X: cx - size/2, Y: cy},
		{X: cx - size/6, Y: cy + size/3},
		{X: cx + size/2, Y: cy - size/3},
	}
}

// CheckmarkStrokeWidth is the stroke width used for a given font size.
func CheckmarkStrokeWidth(fontSize float64) float64 {
	return fontSize * 0.12
}

// DrawCheckmark strokes a check mark centered in r with round caps and
// joins. Nothing else on the surface is touched.
func DrawCheckmark(s *Surface, r geometry.Rect, fontSize float64, c color.Color) {
	pts := CheckmarkPoints(r)
	half := CheckmarkStrokeWidth(fontSize) / 2
	if half <= 0 {
		return
	}

	b := s.img.Bounds()
	src := image.NewUniform(c)
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	fill := func(poly []geometry.Point) {
		z.Reset(b.Dx(), b.Dy())
		z.MoveTo(float32(poly[0].X), float32(poly[0].Y))
		for _, p := range poly[1:] {
			z.LineTo(float32(p.X), float32(p.Y))
		}
		z.ClosePath()
		z.Draw(s.img, b, src, image.Point{})
	}

	for i := 0; i < len(pts)-1; i++ {
		if seg := segmentQuad(pts[i], pts[i+1], half); seg != nil {
			fill(seg)
		}
	}
	for _, p := range pts {
		fill(disc(p, half))
	}
}

// segmentQuad is the rectangle covering the segment a-b at half-width h.
func segmentQuad(a, b geometry.Point, h float64) []geometry.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil
	}
	nx, ny := -dy/length*h, dx/length*h
	return []geometry.Point{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}
}

func disc(center geometry.Point, radius float64) []geometry.Point {
	poly := make([]geometry.Point, capSegments)
	for i := range poly {
		angle := 2 * math.Pi * float64(i) / capSegments
		poly[i] = geometry.Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return poly
}
