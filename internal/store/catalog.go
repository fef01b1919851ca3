package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// FieldTypeInfo is an entry of the field type catalog offered to template
// authors. Several entries may share a Type. Amount caps how many fields a
// template may take from the entry; 0 means no limit.
type FieldTypeInfo struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          forms.FieldType `json:"type"`
	Label         string          `json:"label"`
	Icon          string          `json:"icon"`
	DefaultWidth  float64         `json:"defaultWidth"`
	DefaultHeight float64         `json:"defaultHeight"`
	Amount        int             `json:"amount"`
	Font          string          `json:"font,omitempty"`
	FontSize      float64         `json:"fontSize"`
	Fillable      bool            `json:"fillable"`
}

// DefaultSize returns the default display size of the entry.
func (f FieldTypeInfo) DefaultSize() geometry.Size {
	return geometry.Size{Width: f.DefaultWidth, Height: f.DefaultHeight}
}

const catalogColumns = `id, name, type, label, icon, default_width, default_height, amount, font, font_size, fillable`

func scanFieldType(row scanner) (*FieldTypeInfo, error) {
	var (
		info     FieldTypeInfo
		typ      string
		fillable int
	)
	err := row.Scan(&info.ID, &info.Name, &typ, &info.Label, &info.Icon, &info.DefaultWidth, &info.DefaultHeight,
		&info.Amount, &info.Font, &info.FontSize, &fillable)
	if err != nil {
		return nil, err
	}
	info.Type = forms.FieldType(typ)
	info.Fillable = fillable != 0
	return &info, nil
}

// ListFieldTypes returns the catalog in display order.
func (s *Store) ListFieldTypes(ctx context.Context) ([]FieldTypeInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+catalogColumns+` FROM field_catalog ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list field types: %w", err)
	}
	defer rows.Close()

	var out []FieldTypeInfo
	for rows.Next() {
		info, err := scanFieldType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

// GetFieldType loads a catalog entry by id.
func (s *Store) GetFieldType(ctx context.Context, id string) (*FieldTypeInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM field_catalog WHERE id=?`, id)
	info, err := scanFieldType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("field type %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load field type %s: %w", id, err)
	}
	return info, nil
}

// CreateFieldType appends an entry to the end of the catalog.
func (s *Store) CreateFieldType(ctx context.Context, f *FieldTypeInfo) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO field_catalog(`+catalogColumns+`, sort_order)
		VALUES(?,?,?,?,?,?,?,?,?,?,?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM field_catalog))`,
		f.ID, f.Name, string(f.Type), f.Label, f.Icon, f.DefaultWidth, f.DefaultHeight,
		f.Amount, f.Font, f.FontSize, boolInt(f.Fillable),
	)
	if err != nil {
		return fmt.Errorf("failed to create field type %s: %w", f.ID, err)
	}
	return nil
}

// UpdateFieldType replaces every attribute of an existing entry.
func (s *Store) UpdateFieldType(ctx context.Context, f *FieldTypeInfo) error {
	res, err := s.db.ExecContext(ctx, `UPDATE field_catalog SET
		name=?, type=?, label=?, icon=?, default_width=?, default_height=?, amount=?, font=?, font_size=?, fillable=?
		WHERE id=?`,
		f.Name, string(f.Type), f.Label, f.Icon, f.DefaultWidth, f.DefaultHeight,
		f.Amount, f.Font, f.FontSize, boolInt(f.Fillable), f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update field type %s: %w", f.ID, err)
	}
	return expectOne(res, "field type", f.ID)
}

// DeleteFieldType removes an entry. Fields already placed from it keep
// their type.
func (s *Store) DeleteFieldType(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM field_catalog WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field type %s: %w", id, err)
	}
	return expectOne(res, "field type", id)
}
