package forms

import (
	"errors"
	"fmt"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

// Template is an ordered set of fields bound to one base document.
type Template struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category,omitempty"`
	Version     string        `json:"version,omitempty"`
	Active      bool          `json:"active"`
	DocumentURL string        `json:"documentUrl"`
	Natural     geometry.Size `json:"natural"`
	PageCount   int           `json:"pageCount"`
	Fields      []Field       `json:"fields"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Field returns the field with the given id.
func (t *Template) Field(id string) (Field, bool) {
	for _, f := range t.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks every field and that field ids are unique. Page numbers
// are checked against PageCount only when it is known.
func (t *Template) Validate() error {
	if t.Name == "" {
		return errors.New("template name cannot be empty")
	}
	if t.DocumentURL == "" {
		return errors.New("template document url cannot be empty")
	}

	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate field id %s", f.ID)
		}
		seen[f.ID] = true
		if t.PageCount > 0 && f.Page > t.PageCount {
			return fmt.Errorf("field %s: page %d exceeds page count %d", f.ID, f.Page, t.PageCount)
		}
	}
	return nil
}

// Status is the workflow state of a request.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in-progress"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

var transitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusApproved, StatusRejected},
}

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusInProgress, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("invalid status %q", s)
	}
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a request in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Request is one instantiation of a template. Values are keyed by field id
// and kept apart from the template so later template edits do not rewrite
// history.
type Request struct {
	ID                string            `json:"id"`
	TemplateID        string            `json:"templateId"`
	Status            Status            `json:"status"`
	SubmittedAt       *time.Time        `json:"submittedAt,omitempty"`
	FilledDocumentURL string            `json:"filledDocumentUrl,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	Values            map[string]string `json:"values,omitempty"`
}
