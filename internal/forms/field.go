// Package forms holds the document-request data model: field definitions,
// templates, requests and the persisted placement format.
package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// FieldType identifies what a field collects.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeSignature FieldType = "signature"
	TypeDate      FieldType = "date"
	TypeCheckbox  FieldType = "checkbox"
	TypeNumber    FieldType = "number"
)

// ErrInvalidFieldType is returned for field types outside the catalog.
var ErrInvalidFieldType = errors.New("invalid field type")

// FieldTypes returns the catalog in display order.
func FieldTypes() []FieldType {
	return []FieldType{TypeText, TypeSignature, TypeDate, TypeCheckbox, TypeNumber}
}

// ParseFieldType validates s against the catalog.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FieldTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFieldType, s)
}

// Label is the human readable name used when numbering new fields.
func (t FieldType) Label() string {
	switch t {
	case TypeText:
		return "Text Field"
	case TypeSignature:
		return "Signature"
	case TypeDate:
		return "Date"
	case TypeCheckbox:
		return "Checkbox"
	case TypeNumber:
		return "Number"
	default:
		return string(t)
	}
}

// Group marks a field as one occurrence of a repeated logical field.
type Group struct {
	Name           string `json:"name"`
	InstanceNumber int    `json:"instanceNumber"`
}

// Field is a placeable element on a template page. Rect is in normalized
// units (fractions of the natural page size); pixel positions are always
// derived from it. CatalogID names the field type catalog entry the field
// was created from, when there is one.
type Field struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      FieldType     `json:"type"`
	Page      int           `json:"page"`
	Rect      geometry.Rect `json:"rect"`
	Group     *Group        `json:"group,omitempty"`
	CatalogID string        `json:"catalogId,omitempty"`
}

// DisplayRect derives the on-screen rectangle of f.
func (f Field) DisplayRect(canvas geometry.Canvas, natural *geometry.Size) geometry.Rect {
	return geometry.ToDisplay(f.Rect, canvas, natural)
}

// InBounds reports whether f lies fully inside its page.
func (f Field) InBounds() bool {
	return f.Rect.Contained(geometry.Size{Width: 1, Height: 1})
}

// Validate checks the structural invariants that can be checked without
// the base document.
func (f Field) Validate() error {
	if f.ID == "" {
		return errors.New("field id cannot be empty")
	}
	if _, err := ParseFieldType(string(f.Type)); err != nil {
		return err
	}
	if f.Page < 1 {
		return fmt.Errorf("field %s: page must be at least 1, got %d", f.ID, f.Page)
	}
	if f.Rect.X < 0 || f.Rect.Y < 0 {
		return fmt.Errorf("field %s: position cannot be negative", f.ID)
	}
	if f.Rect.Width <= 0 || f.Rect.Height <= 0 {
		return fmt.Errorf("field %s: size must be positive", f.ID)
	}
	return nil
}
