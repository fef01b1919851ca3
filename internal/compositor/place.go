package compositor

import (
	"log/slog"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// PlaceFields converts template fields and their values into fields in the
// page units of doc. Fields without a value are left out; fields that
// cannot be placed are logged and left out.
func PlaceFields(doc pdf.Document, fields []forms.Field, values map[string]string, logger *slog.Logger) []PagedField {
	logger = logging.OrDiscard(logger)

	var placed []PagedField
	for _, f := range fields {
		kind, ok, err := forms.KindFor(f, values[f.ID])
		if err != nil {
			logger.Warn("field skipped", "field", f.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		size, err := doc.PageSize(f.Page)
		if err != nil {
			logger.Warn("field skipped", "field", f.ID, "error", err)
			continue
		}
		placed = append(placed, PagedField{
			Page: f.Page,
			PlacedField: PlacedField{
				ID:   f.ID,
				Rect: f.Rect.Denormalize(size),
				Kind: kind,
			},
		})
	}
	return placed
}
