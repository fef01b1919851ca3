package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/store"
)

// Defaults applied to catalog entries that leave an attribute unset.
const (
	DefaultEntryWidth    = 100
	DefaultEntryHeight   = 40
	DefaultEntryAmount   = 1
	DefaultEntryFont     = "Helvetica"
	DefaultEntryFontSize = 14
)

// FieldTypeInput describes a catalog entry to create or replace. Zero
// sizes, amount and font take the defaults; a nil Fillable means fillable.
type FieldTypeInput struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Icon     string  `json:"icon"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Amount   int     `json:"amount,omitempty"`
	Font     string  `json:"font,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Fillable *bool   `json:"fillable,omitempty"`
}

func (in FieldTypeInput) entry(id string) (*store.FieldTypeInfo, error) {
	required := []struct{ name, value string }{{"name", in.Name}, {"label", in.Label}, {"icon", in.Icon}}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidInput, r.name)
		}
	}
	ft, err := forms.ParseFieldType(in.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if in.Width < 0 || in.Height < 0 || in.FontSize < 0 || in.Amount < 0 {
		return nil, fmt.Errorf("%w: sizes and amount must not be negative", ErrInvalidInput)
	}

	info := &store.FieldTypeInfo{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Type:          ft,
		Label:         strings.TrimSpace(in.Label),
		Icon:          strings.TrimSpace(in.Icon),
		DefaultWidth:  orDefault(in.Width, DefaultEntryWidth),
		DefaultHeight: orDefault(in.Height, DefaultEntryHeight),
		Amount:        in.Amount,
		Font:          in.Font,
		FontSize:      orDefault(in.FontSize, DefaultEntryFontSize),
		Fillable:      in.Fillable == nil || *in.Fillable,
	}
	if info.Amount == 0 {
		info.Amount = DefaultEntryAmount
	}
	if info.Font == "" {
		info.Font = DefaultEntryFont
	}
	return info, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// FieldTypes returns the field type catalog.
func (s *Service) FieldTypes(ctx context.Context) ([]store.FieldTypeInfo, error) {
	return s.store.ListFieldTypes(ctx)
}

// GetFieldType returns one catalog entry.
func (s *Service) GetFieldType(ctx context.Context, id string) (*store.FieldTypeInfo, error) {
	return s.store.GetFieldType(ctx, id)
}

// CreateFieldType adds an entry to the end of the catalog.
func (s *Service) CreateFieldType(ctx context.Context, in FieldTypeInput) (*store.FieldTypeInfo, error) {
	info, err := in.entry(uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateFieldType(ctx, info); err != nil {
		return nil, err
	}
	s.logger.Info("created field type", "field_type", info.ID, "name", info.Name, "type", info.Type)
	return info, nil
}

// UpdateFieldType replaces a catalog entry. Fields already placed from it
// are unchanged.
func (s *Service) UpdateFieldType(ctx context.Context, id string, in FieldTypeInput) (*store.FieldTypeInfo, error) {
	info, err := in.entry(id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateFieldType(ctx, info); err != nil {
		return nil, err
	}
	s.logger.Info("updated field type", "field_type", id)
	return info, nil
}

// DeleteFieldType removes a catalog entry.
func (s *Service) DeleteFieldType(ctx context.Context, id string) error {
	if err := s.store.DeleteFieldType(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted field type", "field_type", id)
	return nil
}

// lookupFieldType resolves a catalog entry id for authoring. Unknown ids
// are invalid input rather than missing resources.
func (s *Service) lookupFieldType(ctx context.Context, id string) (*store.FieldTypeInfo, error) {
	info, err := s.store.GetFieldType(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown field type %q", ErrInvalidInput, id)
	}
	return info, err
}
