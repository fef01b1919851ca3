package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/placement"
)

// ErrDraftNotFound is returned for unknown or closed drafts.
var ErrDraftNotFound = errors.New("draft not found")

// draft is a template being laid out. Every page is assumed to share the
// first page's natural size.
type draft struct {
	model       *placement.Model
	documentURL string
	natural     geometry.Size
	canvas      geometry.Size
}

// OpenDraftInput starts a draft from a base document, or from a stored
// template when TemplateID is set. Canvas is the display size the client
// renders pages at.
type OpenDraftInput struct {
	TemplateID  string        `json:"templateId,omitempty"`
	DocumentURL string        `json:"documentUrl,omitempty"`
	Canvas      geometry.Size `json:"canvas"`
}

// DraftField is a field with its rectangle on the draft's canvas.
type DraftField struct {
	forms.Field
	Display geometry.Rect `json:"display"`
}

// DraftView is the state of a draft after an edit.
type DraftView struct {
	ID          string       `json:"id"`
	DocumentURL string       `json:"documentUrl"`
	Page        int          `json:"page"`
	TotalPages  int          `json:"totalPages"`
	Fields      []DraftField `json:"fields"`
	OutOfBounds []string     `json:"outOfBounds,omitempty"`
}

// OpenDraft creates an authoring draft.
func (s *Service) OpenDraft(ctx context.Context, in OpenDraftInput) (*DraftView, error) {
	if !in.Canvas.Valid() {
		return nil, fmt.Errorf("%w: canvas size must be positive", ErrInvalidInput)
	}

	var fields []forms.Field
	if in.TemplateID != "" {
		t, err := s.store.GetTemplate(ctx, in.TemplateID)
		if err != nil {
			return nil, err
		}
		in.DocumentURL = t.DocumentURL
		fields = t.Fields
	}
	if strings.TrimSpace(in.DocumentURL) == "" {
		return nil, fmt.Errorf("%w: document url or template id is required", ErrInvalidInput)
	}

	data, err := s.fetchDocument(ctx, in.DocumentURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	pages, err := s.validator.ValidateBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	natural, err := s.naturalSize(data, nil)
	if err != nil {
		return nil, err
	}

	d := &draft{
		model:       placement.NewModel(pages),
		documentURL: in.DocumentURL,
		natural:     natural,
		canvas:      in.Canvas,
	}
	d.model.SetCanvas(geometry.StaticCanvas{Size: in.Canvas}, &d.natural)
	if fields != nil {
		d.model.Load(fields)
	}

	id := uuid.NewString()
	s.draftsMu.Lock()
	s.drafts[id] = d
	s.draftsMu.Unlock()

	s.logger.Debug("opened draft", "draft", id, "pages", pages)
	return s.view(id, d)
}

func (s *Service) draft(id string) (*draft, error) {
	s.draftsMu.Lock()
	defer s.draftsMu.Unlock()
	d, ok := s.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return d, nil
}

func (s *Service) view(id string, d *draft) (*DraftView, error) {
	fields := d.model.Fields()
	v := &DraftView{
		ID:          id,
		DocumentURL: d.documentURL,
		Page:        d.model.Page(),
		TotalPages:  d.model.TotalPages(),
		Fields:      make([]DraftField, 0, len(fields)),
		OutOfBounds: d.model.OutOfBounds(),
	}
	for _, f := range fields {
		r, err := d.model.DisplayRect(f.ID)
		if err != nil {
			return nil, err
		}
		v.Fields = append(v.Fields, DraftField{Field: f, Display: r})
	}
	return v, nil
}

// edit runs fn against a draft and returns the resulting view. Model
// errors are reported as invalid input.
func (s *Service) edit(id string, fn func(m *placement.Model) error) (*DraftView, error) {
	d, err := s.draft(id)
	if err != nil {
		return nil, err
	}
	if err := fn(d.model); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return s.view(id, d)
}

// DraftAddField adds a field from a catalog entry at the default position
// of page. Entries seeded for each field type use the type as their id.
func (s *Service) DraftAddField(ctx context.Context, id, entry string, page int) (*DraftView, error) {
	if _, err := s.draft(id); err != nil {
		return nil, err
	}
	info, err := s.lookupFieldType(ctx, entry)
	if err != nil {
		return nil, err
	}
	preset := placement.Preset{
		Type:      info.Type,
		CatalogID: info.ID,
		Label:     info.Label,
		Size:      info.DefaultSize(),
		Limit:     info.Amount,
	}
	return s.edit(id, func(m *placement.Model) error {
		if page > 0 {
			if err := m.SetPage(page); err != nil {
				return err
			}
		}
		_, err := m.AddPreset(preset)
		return err
	})
}

// DraftMove drags a field by delta canvas pixels.
func (s *Service) DraftMove(id, fieldID string, delta geometry.Point) (*DraftView, error) {
	return s.edit(id, func(m *placement.Model) error {
		sess, err := m.BeginDrag(fieldID, geometry.Point{})
		if err != nil {
			return err
		}
		return m.WithSession(sess, func(sess *placement.Session) error {
			_, err := sess.Move(delta)
			return err
		})
	})
}

// DraftResize resizes a field by dragging corner handle by delta canvas
// pixels.
func (s *Service) DraftResize(id, fieldID, handle string, delta geometry.Point) (*DraftView, error) {
	return s.edit(id, func(m *placement.Model) error {
		h, err := placement.ParseHandle(handle)
		if err != nil {
			return err
		}
		sess, err := m.BeginResize(fieldID, h, geometry.Point{})
		if err != nil {
			return err
		}
		return m.WithSession(sess, func(sess *placement.Session) error {
			_, err := sess.Move(delta)
			return err
		})
	})
}

// DraftUpdateField renames a field and sets or clears its group.
func (s *Service) DraftUpdateField(id, fieldID, name string, group *forms.Group) (*DraftView, error) {
	return s.edit(id, func(m *placement.Model) error {
		if name != "" {
			if err := m.Rename(fieldID, name); err != nil {
				return err
			}
		}
		return m.SetGroup(fieldID, group)
	})
}

// DraftDeleteField removes a field.
func (s *Service) DraftDeleteField(id, fieldID string) (*DraftView, error) {
	return s.edit(id, func(m *placement.Model) error {
		return m.Delete(fieldID)
	})
}

// SaveDraft stores the draft as a new template and closes it.
func (s *Service) SaveDraft(ctx context.Context, id, name, description string) (*forms.Template, error) {
	d, err := s.draft(id)
	if err != nil {
		return nil, err
	}
	saved, err := d.model.Save(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	t, err := s.CreateTemplate(ctx, CreateTemplateInput{
		Name:        saved.FormName,
		Description: description,
		DocumentURL: d.documentURL,
		Natural:     &d.natural,
		Canvas:      &d.canvas,
		Placements:  saved.Fields,
	})
	if err != nil {
		return nil, err
	}
	s.CloseDraft(id)
	return t, nil
}

// CloseDraft discards a draft. Closing an unknown draft is a no-op.
func (s *Service) CloseDraft(id string) {
	s.draftsMu.Lock()
	d, ok := s.drafts[id]
	delete(s.drafts, id)
	s.draftsMu.Unlock()
	if ok {
		d.model.Close()
	}
}
