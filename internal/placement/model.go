// Package placement is the authoring-time model for laying fields out on a
// rendered page: adding, selecting, deleting, dragging and resizing.
//
// Fields are stored in normalized units only. Every pixel rectangle the
// model hands out is derived from the current canvas on demand.
package placement

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// DefaultFormName is used when a form is saved without a name.
const DefaultFormName = "Untitled Form"

var (
	ErrFieldNotFound  = errors.New("field not found")
	ErrSessionActive  = errors.New("another drag or resize session is active")
	ErrSessionEnded   = errors.New("session has ended")
	ErrCanvasNotReady = errors.New("canvas not ready")
	ErrNoFields       = errors.New("add at least one field before saving")
	ErrInvalidHandle  = errors.New("invalid resize handle")
	ErrInvalidPage    = errors.New("page out of range")
	ErrLimitReached   = errors.New("field limit reached")
)

// Preset describes what a new field is created from. Fields created from a
// preset with a CatalogID count against its Limit; a zero Limit is
// unlimited. A zero Size keeps the default size.
type Preset struct {
	Type      forms.FieldType
	CatalogID string
	Label     string
	Size      geometry.Size
	Limit     int
}

// Model holds the fields of one template being authored. It is safe for
// use from multiple goroutines.
type Model struct {
	mu sync.Mutex

	canvas     geometry.Canvas
	natural    *geometry.Size
	totalPages int
	page       int

	fields   []forms.Field
	selected string
	counter  int
	session  *Session

	now func() time.Time
}

// NewModel returns an empty model for a document with totalPages pages,
// positioned on page 1.
func NewModel(totalPages int) *Model {
	return &Model{
		totalPages: max(totalPages, 1),
		page:       1,
		now:        time.Now,
	}
}

// SetCanvas records the canvas the current page is rendered on and the
// page's natural size. A nil canvas unmounts it.
func (m *Model) SetCanvas(canvas geometry.Canvas, natural *geometry.Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canvas = canvas
	m.natural = natural
}

// SetPage switches the current page.
func (m *Model) SetPage(page int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page < 1 || page > m.totalPages {
		return fmt.Errorf("%w: %d of %d", ErrInvalidPage, page, m.totalPages)
	}
	m.page = page
	return nil
}

// Page returns the current page number.
func (m *Model) Page() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

// TotalPages returns the page count of the document being authored.
func (m *Model) TotalPages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalPages
}

// Load replaces the model's fields, e.g. when editing a saved template.
func (m *Model) Load(fields []forms.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
	m.fields = slices.Clone(fields)
	m.counter = len(fields)
	m.selected = ""
}

// Fields returns a copy of every field.
func (m *Model) Fields() []forms.Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.fields)
}

// FieldsOnPage returns the fields that belong to the current page.
func (m *Model) FieldsOnPage() []forms.Field {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []forms.Field
	for _, f := range m.fields {
		if f.Page == m.page {
			out = append(out, f)
		}
	}
	return out
}

// AddField places a new field of type ft at the default position on the
// current page and selects it.
func (m *Model) AddField(ft forms.FieldType) (forms.Field, error) {
	return m.AddPreset(Preset{Type: ft})
}

// AddPreset places a new field described by p at the default position on
// the current page and selects it.
func (m *Model) AddPreset(p Preset) (forms.Field, error) {
	if _, err := forms.ParseFieldType(string(p.Type)); err != nil {
		return forms.Field{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canvasReady() {
		return forms.Field{}, ErrCanvasNotReady
	}
	if p.CatalogID != "" && p.Limit > 0 {
		used := 0
		for _, f := range m.fields {
			if f.CatalogID == p.CatalogID {
				used++
			}
		}
		if used >= p.Limit {
			return forms.Field{}, fmt.Errorf("%w: %s allows %d", ErrLimitReached, p.CatalogID, p.Limit)
		}
	}

	label := p.Label
	if label == "" {
		label = p.Type.Label()
	}
	display := geometry.FallbackRect
	if p.Size.Valid() {
		display.Width, display.Height = p.Size.Width, p.Size.Height
	}

	m.counter++
	f := forms.Field{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("%s %d", label, m.counter),
		Type:      p.Type,
		Page:      m.page,
		Rect:      geometry.ToNormalized(display, m.canvas, m.natural),
		CatalogID: p.CatalogID,
	}
	m.fields = append(m.fields, f)
	m.selected = f.ID
	return f, nil
}

// Rename changes a field's display name.
func (m *Model) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	m.fields[i].Name = name
	return nil
}

// SetGroup marks a field as an instance of a repeated group. A nil group
// clears it.
func (m *Model) SetGroup(id string, group *forms.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	m.fields[i].Group = group
	return nil
}

// Select makes id the selected field.
func (m *Model) Select(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexLocked(id) < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	m.selected = id
	return nil
}

// Selected returns the selected field id, if any.
func (m *Model) Selected() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected, m.selected != ""
}

// Delete removes a field. Deleting the selected field clears the
// selection, and a session on it is ended.
func (m *Model) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	m.fields = slices.Delete(m.fields, i, i+1)
	if m.selected == id {
		m.selected = ""
	}
	if m.session != nil && m.session.fieldID == id {
		m.endLocked()
	}
	return nil
}

// DisplayRect derives the on-screen rectangle of a field from its
// normalized rectangle and the current canvas.
func (m *Model) DisplayRect(id string) (geometry.Rect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return geometry.Rect{}, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	return m.fields[i].DisplayRect(m.canvas, m.natural), nil
}

// OutOfBounds returns the ids of fields on the current page that are not
// fully inside it.
func (m *Model) OutOfBounds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, f := range m.fields {
		if f.Page == m.page && !f.InBounds() {
			out = append(out, f.ID)
		}
	}
	return out
}

// Close ends any active session. Call it when the authoring surface goes
// away.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endLocked()
}

// SavedForm is the serialized result of an authoring session.
type SavedForm struct {
	FormName   string            `json:"formName"`
	TotalPages int               `json:"totalPages"`
	Fields     []forms.Placement `json:"fields"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Save serializes every field against the current canvas.
func (m *Model) Save(formName string) (SavedForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canvasReady() {
		return SavedForm{}, ErrCanvasNotReady
	}
	if len(m.fields) == 0 {
		return SavedForm{}, ErrNoFields
	}
	if formName == "" {
		formName = DefaultFormName
	}

	placements := make([]forms.Placement, 0, len(m.fields))
	for _, f := range m.fields {
		p, err := forms.PlacementOf(f, m.canvas, m.natural)
		if err != nil {
			return SavedForm{}, fmt.Errorf("field %s: %w", f.ID, err)
		}
		placements = append(placements, p)
	}

	return SavedForm{
		FormName:   formName,
		TotalPages: m.totalPages,
		Fields:     placements,
		CreatedAt:  m.now().UTC(),
	}, nil
}

func (m *Model) canvasReady() bool {
	if m.canvas == nil || m.natural == nil || !m.natural.Valid() {
		return false
	}
	s, ok := m.canvas.DisplaySize()
	return ok && s.Valid()
}

func (m *Model) indexLocked(id string) int {
	return slices.IndexFunc(m.fields, func(f forms.Field) bool { return f.ID == id })
}
