package compositor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/font"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

const (
	// Offscreen surfaces for images are at least this many pixels on each side.
	minSurfaceSide = 50
	// Text is drawn at this multiple of the field size.
	supersample = 2
	// Horizontal padding, in page units, subtracted from the text width.
	textPadding = 16
	// Distance, in page units, of the group label from the top-right corner.
	labelInset = 5
	// Gap, in page units, kept between the group label and the main text.
	labelGap = 2
)

var errTextDoesNotFit = errors.New("text does not fit the field")

func floorSize(width, height float64) (int, int) {
	return int(math.Ceil(math.Max(width, minSurfaceSide))), int(math.Ceil(math.Max(height, minSurfaceSide)))
}

// signatureSurface draws img into a transparent surface for a field of
// width×height page units. It returns the surface and the rectangle the
// signature occupies inside it.
func signatureSurface(img image.Image, width, height float64) (*raster.Surface, geometry.Rect, error) {
	if img == nil {
		return nil, geometry.Rect{}, raster.ErrEmptyImage
	}
	w, h := floorSize(width, height)
	surface := raster.NewSurface(w, h)
	drawn, err := raster.DrawSignature(surface, img, geometry.Rect{Width: float64(w), Height: float64(h)})
	if err != nil {
		return nil, geometry.Rect{}, err
	}
	return surface, drawn, nil
}

// checkmarkSurface draws a check mark on a transparent surface for a field
// of width×height page units.
func checkmarkSurface(width, height float64) *raster.Surface {
	w, h := floorSize(width, height)
	surface := raster.NewSurface(w, h)
	fontSize := 0.6 * math.Min(float64(w), float64(h))
	raster.DrawCheckmark(surface, geometry.Rect{Width: float64(w), Height: float64(h)}, fontSize, raster.InkColor)
	return surface
}

// textLayout is where a text field's content goes on its supersampled
// surface.
type textLayout struct {
	Width, Height float64
	Text          string
	MaxWidth      float64
	Box           geometry.Rect
	Label         string
	LabelBox      geometry.Rect
}

// layoutText fits text into a field of width×height page units. face and
// labelFace are at supersampled size; labelFace may be nil without a group.
func layoutText(face, labelFace font.Face, text string, group *forms.Group, width, height float64) (textLayout, error) {
	l := textLayout{
		Width:    width * supersample,
		Height:   height * supersample,
		MaxWidth: (width - textPadding) * supersample,
	}
	bounds := geometry.Rect{Width: l.Width, Height: l.Height}

	if group != nil && labelFace != nil {
		l.Label = fmt.Sprintf("#%d", group.InstanceNumber)
		m := labelFace.Metrics()
		labelWidth := raster.Measure(labelFace, l.Label)
		l.LabelBox = geometry.Rect{
			X:      l.Width - labelInset*supersample - labelWidth,
			Y:      labelInset * supersample,
			Width:  labelWidth,
			Height: float64(m.Ascent+m.Descent) / 64,
		}

		// Text is centered, so clearing the label on the right takes the
		// same margin on the left.
		line := raster.LineBox(face, text, bounds)
		if line.Y < l.LabelBox.Bottom()+labelGap*supersample {
			reserve := 2 * (labelWidth + (labelInset+labelGap)*supersample)
			l.MaxWidth = math.Min(l.MaxWidth, l.Width-reserve)
		}
	}

	l.Text = raster.TruncateEllipsis(face, text, l.MaxWidth)
	if l.Text == "" || l.MaxWidth <= 0 {
		return l, fmt.Errorf("%w: %d runes in %.0fpt", errTextDoesNotFit, len([]rune(text)), width)
	}
	l.Box = raster.LineBox(face, l.Text, bounds)
	return l, nil
}

// textSurface renders a text field at supersampled resolution.
func textSurface(text string, group *forms.Group, width, height float64) (*raster.Surface, error) {
	bold, err := raster.Bold()
	if err != nil {
		return nil, err
	}

	size := raster.FitFontSizeAspect(width, height, BaseFontSize)
	face, err := bold.Face(size * supersample)
	if err != nil {
		return nil, err
	}
	var labelFace font.Face
	if group != nil {
		if labelFace, err = bold.Face(size / 2 * supersample); err != nil {
			return nil, err
		}
	}

	l, err := layoutText(face, labelFace, text, group, width, height)
	if err != nil {
		return nil, err
	}

	surface := raster.NewSurface(int(math.Ceil(l.Width)), int(math.Ceil(l.Height)))
	raster.DrawCentered(surface, face, l.Text, geometry.Rect{Width: l.Width, Height: l.Height}, raster.InkColor)
	if l.Label != "" {
		raster.DrawTopRight(surface, labelFace, l.Label, l.LabelBox.Right(), l.LabelBox.Y, raster.MutedColor)
	}
	return surface, nil
}
