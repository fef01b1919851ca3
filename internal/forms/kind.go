package forms

import (
	"fmt"
	"image"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

// FieldKind is what the compositor draws for a filled field. It is a
// closed set: TextKind, CheckmarkKind and SignatureKind.
type FieldKind interface {
	isFieldKind()
}

// TextKind draws Text, optionally tagged with the instance number of its
// group.
type TextKind struct {
	Text  string
	Group *Group
}

// CheckmarkKind draws a vector check mark.
type CheckmarkKind struct{}

// SignatureKind draws a captured signature image.
type SignatureKind struct {
	Image image.Image
}

func (TextKind) isFieldKind()      {}
func (CheckmarkKind) isFieldKind() {}
func (SignatureKind) isFieldKind() {}

var truthy = map[string]bool{
	"true": true,
	"on":   true,
	"yes":  true,
	"1":    true,
	"x":    true,
	"✓":    true,
}

// KindFor maps a field and its submitted value onto the kind to draw.
// The boolean is false when nothing should be drawn: blank values and
// unchecked checkboxes.
func KindFor(f Field, value string) (FieldKind, bool, error) {
	value = Sanitize(value)
	if value == "" {
		return nil, false, nil
	}

	switch f.Type {
	case TypeSignature:
		img, err := raster.DecodeDataURL(value)
		if err != nil {
			return nil, false, fmt.Errorf("field %s: %w", f.ID, err)
		}
		return SignatureKind{Image: img}, true, nil
	case TypeCheckbox:
		if !truthy[strings.ToLower(value)] {
			return nil, false, nil
		}
		return CheckmarkKind{}, true, nil
	case TypeText, TypeDate, TypeNumber:
		return TextKind{Text: value, Group: f.Group}, true, nil
	default:
		return nil, false, fmt.Errorf("field %s: %w: %q", f.ID, ErrInvalidFieldType, f.Type)
	}
}
