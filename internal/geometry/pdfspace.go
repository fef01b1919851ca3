package geometry

// ToPDF flips a top-left-origin rectangle into PDF page space, whose origin
// is the bottom-left corner:
//
//	pdfY = pageHeight - y - height
//
// Call it once, at the final placement step. Rectangles already in PDF
// space must not be passed through again.
func ToPDF(r Rect, pageHeight float64) Rect {
	return Rect{
		X:      r.X,
		Y:      pageHeight - r.Y - r.Height,
		Width:  r.Width,
		Height: r.Height,
	}
}
