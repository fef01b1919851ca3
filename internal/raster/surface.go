// Package raster draws field content onto offscreen RGBA surfaces: wrapped
// and truncated text, check marks and signature images.
package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// Surface is an offscreen RGBA image. A new surface is fully transparent.
type Surface struct {
	img *image.RGBA
}

// NewSurface allocates a transparent surface. Dimensions below one pixel
// are raised to one.
func NewSurface(width, height int) *Surface {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Image exposes the backing image.
func (s *Surface) Image() *image.RGBA { return s.img }

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Size returns the surface dimensions as a geometry.Size.
func (s *Surface) Size() geometry.Size {
	return geometry.Size{Width: float64(s.Width()), Height: float64(s.Height())}
}

// Fill paints the whole surface with c.
func (s *Surface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// FillWhite paints an opaque white background.
func (s *Surface) FillWhite() { s.Fill(color.White) }

// Transparent reports whether every pixel is fully transparent.
func (s *Surface) Transparent() bool {
	pix := s.img.Pix
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0 {
			return false
		}
	}
	return true
}

// OpaqueBounds returns the smallest rectangle containing every pixel that
// is not fully transparent. It is empty for a transparent surface.
func (s *Surface) OpaqueBounds() image.Rectangle {
	b := s.img.Bounds()
	out := image.Rectangle{}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if s.img.RGBAAt(x, y).A == 0 {
				continue
			}
			out = out.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return out
}

// Downsample returns a copy scaled to width x height, used to bring a
// supersampled surface back to its target size.
func (s *Surface) Downsample(width, height int) *Surface {
	out := NewSurface(width, height)
	draw.CatmullRom.Scale(out.img, out.img.Bounds(), s.img, s.img.Bounds(), draw.Over, nil)
	return out
}

// PNG encodes the surface.
func (s *Surface) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resample stretches img to exactly width x height.
func Resample(img image.Image, width, height int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	return out
}

// pixelRect rounds a float rectangle outward onto the pixel grid.
func pixelRect(r geometry.Rect) image.Rectangle {
	return image.Rect(
		int(floor(r.X)), int(floor(r.Y)),
		int(ceil(r.Right())), int(ceil(r.Bottom())),
	)
}

// clip returns a drawable view of s restricted to r.
func (s *Surface) clip(r geometry.Rect) draw.Image {
	return s.img.SubImage(pixelRect(r).Intersect(s.img.Bounds())).(*image.RGBA)
}
