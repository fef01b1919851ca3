package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/descriptions"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/workflow"
)

const shutdownTimeout = 5 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *workflow.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
	tools     []mcp.Tool
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *workflow.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
		logger:    logging.OrDiscard(logger).With("component", "mcp"),
	}

	s.registerTools()

	return s, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.tools = append(s.tools, tool)
	s.mcpServer.AddTool(tool, handler)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(
		"server_info",
		mcp.WithDescription(descriptions.GetToolDescription("server_info", "Get server information and available tools")),
	), s.handleServerInfo)

	// Templates
	s.addTool(mcp.NewTool(
		"template_upload",
		mcp.WithDescription(descriptions.GetToolDescription("template_upload", "Store a base PDF document for a new template. Returns its document url and page count")),
		mcp.WithString("data", mcp.Required(), mcp.Description("Base64 encoded PDF bytes")),
		mcp.WithString("filename", mcp.Description("Original file name; must end in .pdf when given")),
	), s.handleTemplateUpload)

	s.addTool(mcp.NewTool(
		"template_create",
		mcp.WithDescription(descriptions.GetToolDescription("template_create", "Create a template from a base document and field definitions. "+
			"Fields use normalized rectangles (fractions of the page, origin top-left); "+
			"placements use canvas pixels together with canvas_width and canvas_height")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Template name")),
		mcp.WithString("document_url", mcp.Required(), mcp.Description("Base document url from template_upload, or an http(s) url")),
		mcp.WithString("description", mcp.Description("Template description")),
		mcp.WithString("category", mcp.Description("Template category")),
		mcp.WithString("version", mcp.Description("Template version")),
		mcp.WithArray("fields", mcp.Description("Fields: {id?, name?, type, page, rect: {x, y, width, height}, group?}")),
		mcp.WithArray("placements", mcp.Description("Placements: {id?, name?, type, page, x, y, width, height, position?, size?, group?}")),
		mcp.WithNumber("canvas_width", mcp.Description("Display width the placements were authored on")),
		mcp.WithNumber("canvas_height", mcp.Description("Display height the placements were authored on")),
	), s.handleTemplateCreate)

	s.addTool(mcp.NewTool(
		"template_get",
		mcp.WithDescription("Get a template with its fields"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Template id")),
	), s.handleTemplateGet)

	s.addTool(mcp.NewTool(
		"template_list",
		mcp.WithDescription("List templates, newest first"),
		mcp.WithBoolean("active_only", mcp.Description("Only list active templates (default true)")),
	), s.handleTemplateList)

	s.addTool(mcp.NewTool(
		"field_types",
		mcp.WithDescription("List the field types with their default sizes"),
	), s.handleFieldTypes)

	s.addTool(fieldTypeTool("field_type_create",
		descriptions.GetToolDescription("field_type_create", "Add an entry to the field type catalog"),
	), s.handleFieldTypeCreate)

	s.addTool(fieldTypeTool("field_type_update",
		"Replace a field type catalog entry. Fields already placed from it keep their settings",
		mcp.WithString("id", mcp.Required(), mcp.Description("Catalog entry id")),
	), s.handleFieldTypeUpdate)

	s.addTool(mcp.NewTool(
		"field_type_delete",
		mcp.WithDescription("Remove a field type catalog entry"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Catalog entry id")),
	), s.handleFieldTypeDelete)

	s.addTool(mcp.NewTool(
		"template_render_page",
		mcp.WithDescription(descriptions.GetToolDescription("template_render_page", "Render a page of a template's base document as a PNG image")),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Template id")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("zoom", mcp.Description("Zoom factor (default from configuration)")),
	), s.handleTemplateRenderPage)

	// Requests
	s.addTool(mcp.NewTool(
		"request_create",
		mcp.WithDescription("Start a draft request for a template"),
		mcp.WithString("template_id", mcp.Required(), mcp.Description("Template id")),
	), s.handleRequestCreate)

	s.addTool(mcp.NewTool(
		"request_get",
		mcp.WithDescription("Get a request with its field values"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Request id")),
	), s.handleRequestGet)

	s.addTool(mcp.NewTool(
		"request_list",
		mcp.WithDescription("List requests, newest first"),
		mcp.WithString("template_id", mcp.Description("Only list requests of this template")),
	), s.handleRequestList)

	s.addTool(mcp.NewTool(
		"request_set_values",
		mcp.WithDescription(descriptions.GetToolDescription("request_set_values", "Set field values of a request. Signatures are image data urls; checkboxes take true/yes/on/1/x")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithObject("values", mcp.Required(), mcp.Description("Values keyed by field id")),
	), s.handleRequestSetValues)

	s.addTool(mcp.NewTool(
		"request_update_status",
		mcp.WithDescription("Move a request to a new status"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status"),
			mcp.Enum("draft", "in-progress", "approved", "rejected")),
	), s.handleRequestUpdateStatus)

	s.addTool(mcp.NewTool(
		"request_generate_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("request_generate_pdf", "Draw a request's values onto its template's base document and store the filled PDF")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Request id")),
	), s.handleRequestGeneratePDF)

	// Layout drafts
	s.addTool(mcp.NewTool(
		"draft_open",
		mcp.WithDescription(descriptions.GetToolDescription("draft_open", "Open a layout draft on a base document or an existing template. Coordinates in later draft calls are canvas pixels")),
		mcp.WithNumber("canvas_width", mcp.Required(), mcp.Description("Display width pages are shown at")),
		mcp.WithNumber("canvas_height", mcp.Required(), mcp.Description("Display height pages are shown at")),
		mcp.WithString("document_url", mcp.Description("Base document url")),
		mcp.WithString("template_id", mcp.Description("Template to edit; its fields are loaded")),
	), s.handleDraftOpen)

	s.addTool(mcp.NewTool(
		"draft_add_field",
		mcp.WithDescription("Add a field from the field type catalog at the default position"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Field type or field type catalog entry id")),
		mcp.WithNumber("page", mcp.Description("Page to add the field on (default current page)")),
	), s.handleDraftAddField)

	s.addTool(mcp.NewTool(
		"draft_move_field",
		mcp.WithDescription("Drag a field by dx, dy canvas pixels"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
		mcp.WithNumber("dx", mcp.Description("Horizontal movement")),
		mcp.WithNumber("dy", mcp.Description("Vertical movement")),
	), s.handleDraftMoveField)

	s.addTool(mcp.NewTool(
		"draft_resize_field",
		mcp.WithDescription("Resize a field by dragging one corner by dx, dy canvas pixels"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Corner"), mcp.Enum("nw", "ne", "sw", "se")),
		mcp.WithNumber("dx", mcp.Description("Horizontal movement")),
		mcp.WithNumber("dy", mcp.Description("Vertical movement")),
	), s.handleDraftResizeField)

	s.addTool(mcp.NewTool(
		"draft_update_field",
		mcp.WithDescription("Rename a field and set or clear its repeated group"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
		mcp.WithString("name", mcp.Description("New display name")),
		mcp.WithString("group_name", mcp.Description("Repeated group name; empty clears the group")),
		mcp.WithNumber("group_instance", mcp.Description("Instance number within the group")),
	), s.handleDraftUpdateField)

	s.addTool(mcp.NewTool(
		"draft_delete_field",
		mcp.WithDescription("Remove a field from a draft"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("field_id", mcp.Required(), mcp.Description("Field id")),
	), s.handleDraftDeleteField)

	s.addTool(mcp.NewTool(
		"draft_save",
		mcp.WithDescription("Save a draft as a new template and close it"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
		mcp.WithString("name", mcp.Description("Template name")),
		mcp.WithString("description", mcp.Description("Template description")),
	), s.handleDraftSave)

	s.addTool(mcp.NewTool(
		"draft_close",
		mcp.WithDescription("Discard a draft"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("Draft id")),
	), s.handleDraftClose)
}

// fieldTypeTool declares a tool taking the attributes of a catalog entry.
func fieldTypeTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	opts = append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)
	opts = append(opts,
		mcp.WithString("name", mcp.Required(), mcp.Description("Entry name")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Field type"),
			mcp.Enum("text", "signature", "date", "checkbox", "number")),
		mcp.WithString("label", mcp.Required(), mcp.Description("Label fields from this entry are named after")),
		mcp.WithString("icon", mcp.Required(), mcp.Description("Icon name shown in the palette")),
		mcp.WithNumber("width", mcp.Description("Default display width (default 100)")),
		mcp.WithNumber("height", mcp.Description("Default display height (default 40)")),
		mcp.WithNumber("amount", mcp.Description("Most fields a template may take from this entry (default 1)")),
		mcp.WithString("font", mcp.Description("Font name (default Helvetica)")),
		mcp.WithNumber("font_size", mcp.Description("Font size (default 14)")),
		mcp.WithBoolean("fillable", mcp.Description("Whether requesters fill it in (default true)")),
	)
	return mcp.NewTool(name, opts...)
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or stdin
// closes.
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting stdio transport", "storage", s.config.StorageDir)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE together with the stored documents
// under /uploads/.
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.routes(sse),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sse.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("sse shutdown", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) routes(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	uploads := filepath.Join(s.config.StorageDir, "uploads")
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploads))))
	mux.Handle("/", mcpHandler)
	return mux
}
