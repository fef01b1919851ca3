package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
)

// CreateRequest starts a draft request for a template.
func (s *Service) CreateRequest(ctx context.Context, templateID string) (*forms.Request, error) {
	t, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: template %s is not active", ErrInvalidInput, templateID)
	}

	r := &forms.Request{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		Status:     forms.StatusDraft,
		CreatedAt:  s.now().UTC(),
		Values:     map[string]string{},
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("created request", "request", r.ID, "template", t.ID)
	return r, nil
}

// GetRequest returns a request with its values.
func (s *Service) GetRequest(ctx context.Context, id string) (*forms.Request, error) {
	return s.store.GetRequest(ctx, id)
}

// ListRequests returns requests newest first; templateID may be empty.
func (s *Service) ListRequests(ctx context.Context, templateID string) ([]*forms.Request, error) {
	return s.store.ListRequests(ctx, templateID)
}

// SetFieldValues stores values keyed by field id. Every id must belong to
// the request's template, otherwise nothing is stored.
func (s *Service) SetFieldValues(ctx context.Context, requestID string, values map[string]string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no values given", ErrInvalidInput)
	}
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if r.Status.Terminal() {
		return fmt.Errorf("%w: request %s is %s", ErrInvalidInput, requestID, r.Status)
	}
	t, err := s.store.GetTemplate(ctx, r.TemplateID)
	if err != nil {
		return err
	}

	var unknown []string
	for id := range values {
		if _, ok := t.Field(id); !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: unknown field ids: %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}

	return s.store.SaveValues(ctx, requestID, values)
}

// UpdateStatus moves a request along its lifecycle. Entering in-progress
// records the submission time.
func (s *Service) UpdateStatus(ctx context.Context, requestID, status string) (*forms.Request, error) {
	next, err := forms.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, r.Status, next)
	}

	var submitted = r.SubmittedAt
	if next == forms.StatusInProgress {
		now := s.now().UTC()
		submitted = &now
	}
	if err := s.store.UpdateRequestStatus(ctx, requestID, next, submitted); err != nil {
		return nil, err
	}
	s.logger.Info("request status changed", "request", requestID, "from", r.Status, "to", next)
	return s.store.GetRequest(ctx, requestID)
}
