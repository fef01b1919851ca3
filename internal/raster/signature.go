package raster

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// ErrEmptyImage is returned for images without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// SignatureScale is min(fieldW/imgW, fieldH/imgH, 1). Signatures are only
// ever shrunk.
func SignatureScale(imgW, imgH, fieldW, fieldH float64) float64 {
	if imgW <= 0 || imgH <= 0 {
		return 0
	}
	return math.Min(math.Min(fieldW/imgW, fieldH/imgH), 1)
}

// SignatureRect returns where an image of size img lands when fitted into
// field: scaled by SignatureScale and centered.
func SignatureRect(img geometry.Size, field geometry.Rect) geometry.Rect {
	k := SignatureScale(img.Width, img.Height, field.Width, field.Height)
	w, h := img.Width*k, img.Height*k
	return geometry.Rect{
		X:      field.X + (field.Width-w)/2,
		Y:      field.Y + (field.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// DrawSignature composites img into r at SignatureRect and returns the
// rectangle drawn.
func DrawSignature(s *Surface, img image.Image, r geometry.Rect) (geometry.Rect, error) {
	ib := img.Bounds()
	if ib.Empty() {
		return geometry.Rect{}, ErrEmptyImage
	}

	dest := SignatureRect(geometry.Size{Width: float64(ib.Dx()), Height: float64(ib.Dy())}, r)
	target := image.Rect(
		int(math.Round(dest.X)), int(math.Round(dest.Y)),
		int(math.Round(dest.Right())), int(math.Round(dest.Bottom())),
	)
	if target.Empty() {
		return dest, nil
	}

	if target.Dx() == ib.Dx() && target.Dy() == ib.Dy() {
		draw.Draw(s.img, target, img, ib.Min, draw.Over)
		return dest, nil
	}
	draw.CatmullRom.Scale(s.img, target, img, ib, draw.Over, nil)
	return dest, nil
}
