package workflow

import (
	"context"
	"fmt"

	"github.com/a3tai/mcp-pdf-forms/internal/compositor"
)

// Generated describes a filled document.
type Generated struct {
	URL    string `json:"filledDocumentUrl"`
	Path   string `json:"-"`
	Size   int    `json:"size"`
	Fields int    `json:"fields"`
}

// GenerateFilledPDF draws a request's values onto its template's base
// document, stores the result and records its URL on the request. Failing
// to fetch or load the base document fails the call; a field that cannot
// be drawn is logged and left out.
func (s *Service) GenerateFilledPDF(ctx context.Context, requestID string) (*Generated, error) {
	r, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTemplate(ctx, r.TemplateID)
	if err != nil {
		return nil, err
	}

	base, err := s.fetchDocument(ctx, t.DocumentURL)
	if err != nil {
		return nil, err
	}
	doc, err := s.loader.Load(base)
	if err != nil {
		return nil, fmt.Errorf("failed to load base document: %w", err)
	}

	placed := compositor.PlaceFields(doc, t.Fields, r.Values, s.logger.With("template", t.ID))
	out, err := s.compositor.Compose(ctx, base, placed)
	if err != nil {
		return nil, fmt.Errorf("failed to generate filled document: %w", err)
	}

	rel := fmt.Sprintf("%s/request-%s-filled.pdf", filledDir, r.ID)
	path, err := s.writeStored(rel, out)
	if err != nil {
		return nil, err
	}
	url := "/" + rel
	if err := s.store.SetFilledDocument(ctx, r.ID, url); err != nil {
		return nil, err
	}

	s.logger.Info("generated filled document", "request", r.ID, "fields", len(placed), "bytes", len(out))
	return &Generated{URL: url, Path: path, Size: len(out), Fields: len(placed)}, nil
}
