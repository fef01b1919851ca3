package placement

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

type sessionKind int

const (
	dragSession sessionKind = iota
	resizeSession
)

// Session is one drag or resize gesture on one field. A model has at most
// one live session; it is released by End, by Model.Close, or when its
// field is deleted.
type Session struct {
	model   *Model
	kind    sessionKind
	handle  Handle
	fieldID string
	start   geometry.Point
	initial geometry.Rect
	ended   bool
}

// BeginDrag starts moving field id from cursor. The field becomes selected.
func (m *Model) BeginDrag(id string, cursor geometry.Point) (*Session, error) {
	return m.begin(id, dragSession, "", cursor)
}

// BeginResize starts resizing field id by corner h from cursor.
func (m *Model) BeginResize(id string, h Handle, cursor geometry.Point) (*Session, error) {
	if _, err := ParseHandle(string(h)); err != nil {
		return nil, err
	}
	return m.begin(id, resizeSession, h, cursor)
}

func (m *Model) begin(id string, kind sessionKind, h Handle, cursor geometry.Point) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrSessionActive
	}
	if !m.canvasReady() {
		return nil, ErrCanvasNotReady
	}
	i := m.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}

	s := &Session{
		model:   m,
		kind:    kind,
		handle:  h,
		fieldID: id,
		start:   cursor,
		initial: m.fields[i].DisplayRect(m.canvas, m.natural),
	}
	m.session = s
	m.selected = id
	return s, nil
}

// Active reports whether a session is live.
func (m *Model) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// FieldID returns the id of the field the session acts on.
func (s *Session) FieldID() string { return s.fieldID }

// Move applies the cursor position and returns the field's new display
// rectangle.
func (s *Session) Move(cursor geometry.Point) (geometry.Rect, error) {
	m := s.model
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ended || m.session != s {
		return geometry.Rect{}, ErrSessionEnded
	}
	i := m.indexLocked(s.fieldID)
	if i < 0 {
		return geometry.Rect{}, fmt.Errorf("%w: %s", ErrFieldNotFound, s.fieldID)
	}

	delta := geometry.Point{X: cursor.X - s.start.X, Y: cursor.Y - s.start.Y}
	var next geometry.Rect
	switch s.kind {
	case dragSession:
		next = Drag(s.initial, delta)
	case resizeSession:
		next = Resize(s.initial, s.handle, delta)
	}

	m.fields[i].Rect = geometry.ToNormalized(next, m.canvas, m.natural)
	return next, nil
}

// End releases the session. It is safe to call more than once.
func (s *Session) End() {
	m := s.model
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == s {
		m.endLocked()
	}
	s.ended = true
}

// WithSession runs fn and ends s afterwards, also when fn panics.
func (m *Model) WithSession(s *Session, fn func(*Session) error) error {
	defer s.End()
	return fn(s)
}

func (m *Model) endLocked() {
	if m.session != nil {
		m.session.ended = true
		m.session = nil
	}
}
