package raster

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font is a parsed OpenType font that faces of any size can be cut from.
type Font struct {
	name string
	otf  *opentype.Font
}

var (
	regularFont = sync.OnceValues(func() (*Font, error) { return parseFont("Go Regular", goregular.TTF) })
	boldFont    = sync.OnceValues(func() (*Font, error) { return parseFont("Go Bold", gobold.TTF) })
)

// Regular returns the Go Regular font.
func Regular() (*Font, error) { return regularFont() }

// Bold returns the Go Bold font.
func Bold() (*Font, error) { return boldFont() }

func parseFont(name string, ttf []byte) (*Font, error) {
	otf, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &Font{name: name, otf: otf}, nil
}

// Name returns the font's display name.
func (f *Font) Name() string { return f.name }

// Face returns a face at size pixels. Hinting is off since callers
// supersample.
func (f *Font) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("%s face at %.2f: %w", f.name, size, err)
	}
	return face, nil
}

// Measure returns the advance width of s in pixels.
func Measure(face font.Face, s string) float64 {
	return fromFixed(font.MeasureString(face, s))
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floor(v float64) float64 { return math.Floor(v) }
func ceil(v float64) float64  { return math.Ceil(v) }
