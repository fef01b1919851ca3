package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// Upload describes a stored base document.
type Upload struct {
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	PageCount int    `json:"pageCount"`
	Size      int    `json:"size"`
}

// UploadTemplateFile validates data as a PDF and stores it under
// uploads/templates with a generated name.
func (s *Service) UploadTemplateFile(ctx context.Context, filename string, data []byte) (*Upload, error) {
	if filename != "" && !strings.EqualFold(path.Ext(filename), ".pdf") {
		return nil, fmt.Errorf("%w: %s is not a PDF file", ErrInvalidInput, filename)
	}
	pages, err := s.validator.ValidateBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("template_%d_%s.pdf", s.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	rel := path.Join(uploadDir, name)
	if _, err := s.writeStored(rel, data); err != nil {
		return nil, err
	}

	s.logger.Info("stored base document", "file", name, "pages", pages, "bytes", len(data))
	return &Upload{URL: "/" + rel, Filename: name, PageCount: pages, Size: len(data)}, nil
}

// CreateTemplateInput defines a new template. Fields may be given as
// placements authored on a canvas (Canvas is then the display size they
// were authored on) or directly in normalized units.
type CreateTemplateInput struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category,omitempty"`
	Version     string            `json:"version,omitempty"`
	DocumentURL string            `json:"documentUrl"`
	Natural     *geometry.Size    `json:"natural,omitempty"`
	Canvas      *geometry.Size    `json:"canvas,omitempty"`
	Placements  []forms.Placement `json:"placements,omitempty"`
	Fields      []forms.Field     `json:"fields,omitempty"`
}

// CreateTemplate normalizes and validates the input, checks the base
// document, and stores the template.
func (s *Service) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*forms.Template, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.DocumentURL) == "" {
		return nil, fmt.Errorf("%w: document url is required", ErrInvalidInput)
	}

	data, err := s.fetchDocument(ctx, in.DocumentURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pages, err := s.validator.ValidateBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	natural, err := s.naturalSize(data, in.Natural)
	if err != nil {
		return nil, err
	}

	fields, err := s.normalizeFields(in, natural)
	if err != nil {
		return nil, err
	}

	t := &forms.Template{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Version:     in.Version,
		Active:      true,
		DocumentURL: in.DocumentURL,
		Natural:     natural,
		PageCount:   pages,
		Fields:      fields,
		CreatedAt:   s.now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("created template", "template", t.ID, "fields", len(t.Fields), "pages", pages)
	return t, nil
}

// naturalSize returns the given natural size, or the first page's size in
// points when none was given.
func (s *Service) naturalSize(data []byte, given *geometry.Size) (geometry.Size, error) {
	if given != nil && given.Valid() {
		return *given, nil
	}
	doc, err := s.loader.Load(data)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return doc.PageSize(1)
}

func (s *Service) normalizeFields(in CreateTemplateInput, natural geometry.Size) ([]forms.Field, error) {
	var canvas geometry.StaticCanvas
	if in.Canvas != nil {
		canvas.Size = *in.Canvas
	}

	counts := make(map[forms.FieldType]int)
	name := func(t forms.FieldType, given string) string {
		counts[t]++
		if strings.TrimSpace(given) != "" {
			return given
		}
		return fmt.Sprintf("%s %d", t.Label(), counts[t])
	}

	fields := make([]forms.Field, 0, len(in.Placements)+len(in.Fields))
	for i, p := range in.Placements {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		f, err := forms.FieldFromPlacement(p, canvas, &natural)
		if err != nil {
			return nil, fmt.Errorf("%w: placement %d: %w", ErrInvalidInput, i, err)
		}
		f.Name = name(f.Type, f.Name)
		fields = append(fields, f)
	}
	for _, f := range in.Fields {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.Page == 0 {
			f.Page = 1
		}
		f.Name = name(f.Type, f.Name)
		fields = append(fields, f)
	}
	return fields, nil
}

// GetTemplate returns a template by id.
func (s *Service) GetTemplate(ctx context.Context, id string) (*forms.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns stored templates, newest first.
func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*forms.Template, error) {
	return s.store.ListTemplates(ctx, activeOnly)
}

// RenderTemplatePage renders a page of a template's base document for
// authoring. A zoom of zero uses the configured default.
func (s *Service) RenderTemplatePage(ctx context.Context, templateID string, page int, zoom float64) (*pdf.RenderedPage, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("page rendering is not configured")
	}
	if zoom == 0 {
		zoom = s.zoom
	}
	if zoom < 0 {
		return nil, fmt.Errorf("%w: zoom must be positive", ErrInvalidInput)
	}

	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if page < 1 || (t.PageCount > 0 && page > t.PageCount) {
		return nil, fmt.Errorf("%w: page %d (template has %d pages)", ErrInvalidInput, page, t.PageCount)
	}
	data, err := s.fetchDocument(ctx, t.DocumentURL)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderPage(ctx, data, page, zoom, 1)
}
