package raster

import (
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// Default bounds for FitFontSize.
const (
	DefaultMinFontSize = 12
	DefaultMaxFontSize = 48
)

var (
	// TextColor is used for wrapped preview text.
	TextColor color.Color = color.RGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	// InkColor is used for filled values.
	InkColor color.Color = color.Black
	// MutedColor is used for group instance labels.
	MutedColor color.Color = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
)

// FitFontSize clamps min(height*0.6, width*0.1, base) into [minSize, maxSize].
// It suits wide single-line fields.
func FitFontSize(width, height, base, minSize, maxSize float64) float64 {
	return math.Max(minSize, math.Min(maxSize, math.Min(math.Min(height*0.6, width*0.1), base)))
}

// FitFontSizeAspect scales base by the field's aspect ratio and clamps the
// result into [8, height*0.6].
func FitFontSizeAspect(width, height, base float64) float64 {
	size := base
	if height > 0 {
		switch ratio := width / height; {
		case ratio > 3:
			size = base * 0.7
		case ratio > 2:
			size = base * 0.8
		case ratio < 0.5:
			size = base * 1.2
		}
	}
	return math.Max(8, math.Min(size, height*0.6))
}

// WrapLines greedily packs the words of text into lines no wider than
// maxWidth. A single word wider than maxWidth gets a line of its own.
func WrapLines(face font.Face, text string, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if Measure(face, candidate) > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	return append(lines, line)
}

// DrawWrapped wraps text to 95% of r's width and draws it with each line
// centered and the block centered vertically. Lines are spaced 1.2 x size.
// Output is clipped to r: a line that would cross the bottom edge is not
// drawn, and a block taller than r starts at its top edge. It returns the
// number of lines drawn.
func DrawWrapped(s *Surface, face font.Face, size float64, text string, r geometry.Rect, c color.Color) int {
	lines := WrapLines(face, text, r.Width*0.95)
	if len(lines) == 0 {
		return 0
	}

	lineHeight := size * 1.2
	top := math.Max(r.Y, r.Y+(r.Height-float64(len(lines))*lineHeight)/2)
	dst := s.clip(r)
	cx := r.X + r.Width/2

	drawn := 0
	for i, line := range lines {
		lineTop := top + float64(i)*lineHeight
		if lineTop+size > r.Bottom() {
			break
		}
		drawCentered(dst, face, line, cx, lineTop+lineHeight/2, c)
		drawn++
	}
	return drawn
}

// Truncate shortens text for compact single-line display. Trailing runes
// are dropped while the text is wider than 90% of fieldWidth, down to the
// empty string; if anything was dropped and more than three runes remain,
// the last three become an ellipsis.
func Truncate(face font.Face, text string, fieldWidth float64) (string, bool) {
	limit := fieldWidth * 0.9
	runes := []rune(text)
	out := runes
	for len(out) > 0 && Measure(face, string(out)) > limit {
		out = out[:len(out)-1]
	}

	truncated := len(out) < len(runes)
	if truncated && len(out) > 3 {
		return string(out[:len(out)-3]) + Ellipsis, true
	}
	return string(out), truncated
}

// TruncateEllipsis returns text unchanged if it fits maxWidth. Otherwise it
// drops trailing runes until the remainder plus an ellipsis fits. The
// result never measures wider than maxWidth; it is empty when not even the
// ellipsis fits.
func TruncateEllipsis(face font.Face, text string, maxWidth float64) string {
	if Measure(face, text) <= maxWidth {
		return text
	}
	if Measure(face, Ellipsis) > maxWidth {
		return ""
	}

	runes := []rune(text)
	for len(runes) > 0 && Measure(face, string(runes)+Ellipsis) > maxWidth {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimRight(string(runes), " ") + Ellipsis
}

// DrawCentered draws one line of text centered on both axes of r, clipped
// to r.
func DrawCentered(s *Surface, face font.Face, text string, r geometry.Rect, c color.Color) {
	drawCentered(s.clip(r), face, text, r.X+r.Width/2, r.Y+r.Height/2, c)
}

// DrawTruncated truncates text against r's width and draws it centered.
func DrawTruncated(s *Surface, face font.Face, text string, r geometry.Rect, c color.Color) string {
	out, _ := Truncate(face, text, r.Width)
	DrawCentered(s, face, out, r, c)
	return out
}

// DrawTopRight draws text right-aligned at x with its top edge at y and
// returns the box it occupies.
func DrawTopRight(s *Surface, face font.Face, text string, x, y float64, c color.Color) geometry.Rect {
	m := face.Metrics()
	width := Measure(face, text)
	drawString(s.img, face, text, x-width, y+fromFixed(m.Ascent), c)
	return geometry.Rect{X: x - width, Y: y, Width: width, Height: fromFixed(m.Ascent + m.Descent)}
}

// LineBox returns the box a centered single line of text occupies inside r.
func LineBox(face font.Face, text string, r geometry.Rect) geometry.Rect {
	m := face.Metrics()
	width := Measure(face, text)
	height := fromFixed(m.Ascent + m.Descent)
	return geometry.Rect{
		X:      r.X + (r.Width-width)/2,
		Y:      r.Y + (r.Height-height)/2,
		Width:  width,
		Height: height,
	}
}

// drawCentered places text so that its advance box is centered on cx and
// its ascent/descent box is centered on cy.
func drawCentered(dst draw.Image, face font.Face, text string, cx, cy float64, c color.Color) {
	m := face.Metrics()
	width := Measure(face, text)
	baseline := cy + (fromFixed(m.Ascent)-fromFixed(m.Descent))/2
	drawString(dst, face, text, cx-width/2, baseline, c)
}

func drawString(dst draw.Image, face font.Face, text string, x, baseline float64, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(baseline)},
	}
	d.DrawString(text)
}
