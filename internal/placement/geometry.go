package placement

import (
	"fmt"
	"math"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// Minimum field size while resizing, in display pixels.
const (
	MinWidth  = 50
	MinHeight = 30
)

// Handle names a resize corner.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleNE Handle = "ne"
	HandleSW Handle = "sw"
	HandleSE Handle = "se"
)

// ParseHandle validates a corner name.
func ParseHandle(s string) (Handle, error) {
	switch h := Handle(s); h {
	case HandleNW, HandleNE, HandleSW, HandleSE:
		return h, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
}

// Drag moves initial by delta, keeping the top-left corner on the canvas.
func Drag(initial geometry.Rect, delta geometry.Point) geometry.Rect {
	r := initial
	r.X = math.Max(0, initial.X+delta.X)
	r.Y = math.Max(0, initial.Y+delta.Y)
	return r
}

// Resize drags corner h of initial by delta. The opposite corner stays
// where it was and the size never drops below MinWidth x MinHeight.
func Resize(initial geometry.Rect, h Handle, delta geometry.Point) geometry.Rect {
	r := initial

	switch h {
	case HandleSE, HandleNE:
		r.Width = math.Max(MinWidth, initial.Width+delta.X)
	case HandleSW, HandleNW:
		r.Width = math.Max(MinWidth, initial.Width-delta.X)
		r.X = initial.X + (initial.Width - r.Width)
	}

	switch h {
	case HandleSE, HandleSW:
		r.Height = math.Max(MinHeight, initial.Height+delta.Y)
	case HandleNE, HandleNW:
		r.Height = math.Max(MinHeight, initial.Height-delta.Y)
		r.Y = initial.Y + (initial.Height - r.Height)
	}

	return r
}
