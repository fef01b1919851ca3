// Package workflow implements the template and request lifecycle: base
// document upload, template definition, value collection and generation of
// the filled PDF.
package workflow

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a3tai/mcp-pdf-forms/internal/compositor"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/store"
)

var (
	// ErrNotFound is returned for unknown templates and requests.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidInput is returned for rejected arguments. Nothing is changed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidStatusTransition is returned when a status change is not
	// allowed from the current status.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

const (
	uploadDir = "uploads/templates"
	filledDir = "uploads/filled-requests"

	// DefaultFetchTimeout bounds remote base document downloads.
	DefaultFetchTimeout = 30 * time.Second
)

// Service runs the document request workflow.
type Service struct {
	store      *store.Store
	validator  *pdf.Validator
	guard      *pdf.PathGuard
	loader     pdf.Loader
	compositor *compositor.Compositor
	renderer   *pdf.Renderer
	client     *http.Client
	logger     *slog.Logger

	maxFileSize int64
	zoom        float64
	now         func() time.Time

	draftsMu sync.Mutex
	drafts   map[string]*draft
}

// Options configures a Service.
type Options struct {
	Store       *store.Store
	Guard       *pdf.PathGuard
	Loader      pdf.Loader
	Compositor  *compositor.Compositor
	Renderer    *pdf.Renderer
	HTTPClient  *http.Client
	Logger      *slog.Logger
	MaxFileSize int64
	Zoom        float64
}

// NewService wires a service. Loader defaults to pdfcpu and Compositor to
// a raster text compositor over Loader.
func NewService(opts Options) *Service {
	logger := logging.OrDiscard(opts.Logger)
	if opts.Loader == nil {
		opts.Loader = pdf.NewPDFCPULoader()
	}
	if opts.Compositor == nil {
		opts.Compositor = compositor.New(opts.Loader, compositor.TextModeRaster, logger)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 100 * 1024 * 1024
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 1.5
	}

	return &Service{
		store:       opts.Store,
		validator:   pdf.NewValidator(opts.MaxFileSize),
		guard:       opts.Guard,
		loader:      opts.Loader,
		compositor:  opts.Compositor,
		renderer:    opts.Renderer,
		client:      opts.HTTPClient,
		logger:      logger.With("component", "workflow"),
		maxFileSize: opts.MaxFileSize,
		zoom:        opts.Zoom,
		now:         time.Now,
		drafts:      make(map[string]*draft),
	}
}
