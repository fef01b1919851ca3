package compositor

import (
	"fmt"
	"math"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

// drawNativeText places text with the document's text drawing. dest is in
// PDF space. Go Regular stands in for Helvetica when measuring; their
// advance widths are close enough for fitting and centering. Sizes are whole
// points because that is what the text stamp emits, so the measured width is
// the drawn width.
func drawNativeText(doc pdf.Document, page int, dest geometry.Rect, text string, group *forms.Group) error {
	regular, err := raster.Regular()
	if err != nil {
		return err
	}

	size := wholePoints(raster.FitFontSizeAspect(dest.Width, dest.Height, BaseFontSize))
	face, err := regular.Face(size)
	if err != nil {
		return err
	}
	style := pdf.DefaultTextStyle
	style.Size = size
	style.Color = raster.InkColor

	textBottom := dest.Y + (dest.Height-size)/2
	maxWidth := dest.Width - textPadding

	var (
		label      string
		labelBox   geometry.Rect
		labelStyle = style
	)
	if group != nil {
		label = fmt.Sprintf("#%d", group.InstanceNumber)
		labelStyle.Size = wholePoints(size / 2)
		labelStyle.Color = raster.MutedColor
		labelFace, err := regular.Face(labelStyle.Size)
		if err != nil {
			return err
		}
		labelWidth := raster.Measure(labelFace, label)
		// dest.Bottom() is the top edge of the field in PDF space.
		labelBox = geometry.Rect{
			X:      dest.Right() - labelInset - labelWidth,
			Y:      dest.Bottom() - labelInset - labelStyle.Size,
			Width:  labelWidth,
			Height: labelStyle.Size,
		}
		if textBottom+size > labelBox.Y-labelGap {
			maxWidth = math.Min(maxWidth, dest.Width-2*(labelWidth+labelInset+labelGap))
		}
	}

	fitted := raster.TruncateEllipsis(face, text, maxWidth)
	if fitted == "" || maxWidth <= 0 {
		return fmt.Errorf("%w: %d runes in %.0fpt", errTextDoesNotFit, len([]rune(text)), dest.Width)
	}
	width := raster.Measure(face, fitted)

	box := geometry.Rect{
		X:      dest.X + (dest.Width-width)/2,
		Y:      textBottom,
		Width:  width,
		Height: size,
	}
	if err := doc.DrawText(page, fitted, box, style); err != nil {
		return err
	}
	if label == "" {
		return nil
	}
	return doc.DrawText(page, label, labelBox, labelStyle)
}

func wholePoints(size float64) float64 {
	return math.Max(1, math.Floor(size))
}
