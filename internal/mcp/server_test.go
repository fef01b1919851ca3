package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-forms/internal/store"
	"github.com/a3tai/mcp-pdf-forms/internal/workflow"
)

type blankRasterizer struct{}

func (blankRasterizer) Rasterize(_ context.Context, _ []byte, _ int, width, height int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func newTestServer(t *testing.T) (*Server, *logging.BufferedHandler) {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.StorageDir = t.TempDir()
	cfg.ServerName = "test-server"
	cfg.Version = "1.0.0"

	st, err := store.Open(ctx, cfg.Database(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	guard, err := pdf.NewPathGuard(cfg.StorageDir)
	require.NoError(t, err)

	logs := logging.NewBufferedHandler(slog.LevelDebug)
	logger := slog.New(logs)
	loader := pdf.NewPDFCPULoader()

	svc := workflow.NewService(workflow.Options{
		Store:    st,
		Guard:    guard,
		Loader:   loader,
		Renderer: pdf.NewRenderer(loader, blankRasterizer{}, nil, logger),
		Logger:   logger,
	})

	s, err := NewServer(cfg, svc, logger)
	require.NoError(t, err)
	return s, logs
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// decodeResult parses the JSON that follows the summary line.
func decodeResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.False(t, result.IsError, extractTextFromResult(result))
	text := extractTextFromResult(result)
	_, body, ok := strings.Cut(text, "\n")
	require.True(t, ok, text)
	require.NoError(t, json.Unmarshal([]byte(body), target))
}

func uploadLetter(t *testing.T, s *Server, pages int) string {
	t.Helper()
	result, err := s.handleTemplateUpload(context.Background(), callRequest(map[string]any{
		"data":     base64.StdEncoding.EncodeToString(pdftest.Letter(pages)),
		"filename": "form.pdf",
	}))
	require.NoError(t, err)

	var up workflow.Upload
	decodeResult(t, result, &up)
	return up.URL
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, &workflow.Service{}, nil)
	assert.Error(t, err)
	_, err = NewServer(config.DefaultConfig(), nil, nil)
	assert.Error(t, err)

	s, _ := newTestServer(t)
	assert.NotNil(t, s.mcpServer)
}

func TestServer_ToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	s.mcpServer.HandleMessage(ctx, json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`))
	resp := s.mcpServer.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var list struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &list))

	var names []string
	for _, tool := range list.Result.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"template_upload", "template_create", "template_get", "template_list", "field_types",
		"field_type_create", "field_type_update", "field_type_delete",
		"template_render_page", "request_create", "request_get", "request_list",
		"request_set_values", "request_update_status", "request_generate_pdf",
		"draft_open", "draft_add_field", "draft_move_field", "draft_resize_field",
		"draft_update_field", "draft_delete_field", "draft_save", "draft_close",
		"server_info",
	} {
		assert.Contains(t, names, want)
	}
}

func TestServer_ServerInfo(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	s.config.Rasterizer = "no-such-rasterizer"
	uploadLetter(t, s, 1)

	result, err := s.handleServerInfo(ctx, callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Server: test-server v1.0.0 (stdio mode)")
	assert.Contains(t, text, "Templates: 0")
	assert.Contains(t, text, "no-such-rasterizer")
	assert.Contains(t, text, "unavailable")
	assert.Contains(t, text, "- draft_open: Open a layout draft to place fields interactively.")
	assert.Contains(t, text, "canvas_height (required)")
	assert.Contains(t, text, "- field_types: List the field types with their default sizes\n  Parameters: No parameters required")
	assert.Contains(t, text, "PDF Forms MCP Server Usage Guide")

	info, err := s.serverInfo(ctx)
	require.NoError(t, err)
	assert.Len(t, info.AvailableTools, len(s.tools))
	assert.False(t, info.RasterizerAvailable)
}

func TestServer_TemplateUpload_Rejects(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleTemplateUpload(ctx, callRequest(map[string]any{"data": "%%%"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "base64")

	result, err = s.handleTemplateUpload(ctx, callRequest(map[string]any{
		"data": base64.StdEncoding.EncodeToString([]byte("not a pdf")),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleTemplateUpload(ctx, callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_TemplateUpload_DataURL(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleTemplateUpload(context.Background(), callRequest(map[string]any{
		"data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdftest.Letter(1)),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, extractTextFromResult(result))
	assert.Contains(t, extractTextFromResult(result), "(1 pages)")
}

func TestServer_RequestWorkflow(t *testing.T) {
	s, logs := newTestServer(t)
	ctx := context.Background()
	url := uploadLetter(t, s, 1)

	result, err := s.handleTemplateCreate(ctx, callRequest(map[string]any{
		"name":         "Consent",
		"document_url": url,
		"fields": []any{
			map[string]any{"id": "name", "type": "text", "page": 1,
				"rect": map[string]any{"x": 0.1, "y": 0.1, "width": 0.4, "height": 0.05}},
			map[string]any{"id": "agree", "type": "checkbox", "page": 1,
				"rect": map[string]any{"x": 0.1, "y": 0.3, "width": 0.05, "height": 0.04}},
		},
	}))
	require.NoError(t, err)
	var tmpl struct {
		ID     string `json:"id"`
		Fields []any  `json:"fields"`
	}
	decodeResult(t, result, &tmpl)
	assert.Len(t, tmpl.Fields, 2)

	result, err = s.handleRequestCreate(ctx, callRequest(map[string]any{"template_id": tmpl.ID}))
	require.NoError(t, err)
	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeResult(t, result, &req)
	assert.Equal(t, "draft", req.Status)

	result, err = s.handleRequestSetValues(ctx, callRequest(map[string]any{
		"id":     req.ID,
		"values": map[string]any{"name": "Ada", "agree": true},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError, extractTextFromResult(result))

	result, err = s.handleRequestSetValues(ctx, callRequest(map[string]any{
		"id":     req.ID,
		"values": map[string]any{"nope": "x"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "unknown field ids: nope")
	assert.True(t, logs.Contains("tool rejected"))

	result, err = s.handleRequestUpdateStatus(ctx, callRequest(map[string]any{"id": req.ID, "status": "approved"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "invalid status transition")

	result, err = s.handleRequestUpdateStatus(ctx, callRequest(map[string]any{"id": req.ID, "status": "in-progress"}))
	require.NoError(t, err)
	decodeResult(t, result, &req)
	assert.Equal(t, "in-progress", req.Status)

	result, err = s.handleRequestGeneratePDF(ctx, callRequest(map[string]any{"id": req.ID}))
	require.NoError(t, err)
	var gen workflow.Generated
	decodeResult(t, result, &gen)
	assert.Equal(t, "/uploads/filled-requests/request-"+req.ID+"-filled.pdf", gen.URL)
	assert.Equal(t, 2, gen.Fields)
	assert.FileExists(t, filepath.Join(s.config.StorageDir, gen.URL))

	result, err = s.handleRequestGet(ctx, callRequest(map[string]any{"id": req.ID}))
	require.NoError(t, err)
	var got struct {
		Values            map[string]string `json:"values"`
		FilledDocumentURL string            `json:"filledDocumentUrl"`
	}
	decodeResult(t, result, &got)
	assert.Equal(t, map[string]string{"name": "Ada", "agree": "true"}, got.Values)
	assert.Equal(t, gen.URL, got.FilledDocumentURL)

	result, err = s.handleRequestList(ctx, callRequest(map[string]any{"template_id": tmpl.ID}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Found 1 request(s)")
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleTemplateGet(ctx, callRequest(map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "not found")

	result, err = s.handleRequestGet(ctx, callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleTemplateList(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No templates found", extractTextFromResult(result))
}

func TestServer_FieldTypes(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleFieldTypes(context.Background(), callRequest(nil))
	require.NoError(t, err)
	var types []store.FieldTypeInfo
	decodeResult(t, result, &types)
	assert.Len(t, types, 5)
}

func TestServer_FieldTypeCatalog(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleFieldTypeCreate(ctx, callRequest(map[string]any{
		"name": "Applicant signature", "type": "signature", "label": "Applicant signature",
		"icon": "signature", "width": float64(220), "height": float64(70), "fillable": false,
	}))
	require.NoError(t, err)
	var entry store.FieldTypeInfo
	decodeResult(t, result, &entry)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 1, entry.Amount)
	assert.Equal(t, "Helvetica", entry.Font)
	assert.False(t, entry.Fillable)

	result, err = s.handleFieldTypeCreate(ctx, callRequest(map[string]any{
		"name": "Stamp", "type": "stamp", "label": "Stamp", "icon": "stamp",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	// Only one applicant signature fits on a template.
	url := uploadLetter(t, s, 1)
	result, err = s.handleDraftOpen(ctx, callRequest(map[string]any{
		"document_url": url, "canvas_width": float64(612), "canvas_height": float64(792),
	}))
	require.NoError(t, err)
	var view workflow.DraftView
	decodeResult(t, result, &view)
	draftID := view.ID

	result, err = s.handleDraftAddField(ctx, callRequest(map[string]any{"draft_id": draftID, "type": entry.ID}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	require.Len(t, view.Fields, 1)
	assert.Equal(t, "Applicant signature 1", view.Fields[0].Name)
	assert.Equal(t, entry.ID, view.Fields[0].CatalogID)
	assert.InDelta(t, 220.0, view.Fields[0].Display.Width, 1e-9)

	result, err = s.handleDraftAddField(ctx, callRequest(map[string]any{"draft_id": draftID, "type": entry.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "field limit reached")

	result, err = s.handleFieldTypeUpdate(ctx, callRequest(map[string]any{
		"id": entry.ID, "name": "Applicant signature", "type": "signature", "label": "Signature of applicant",
		"icon": "signature", "amount": float64(2),
	}))
	require.NoError(t, err)
	decodeResult(t, result, &entry)
	assert.Equal(t, 2, entry.Amount)
	assert.True(t, entry.Fillable, "fillable defaults to true")

	result, err = s.handleDraftAddField(ctx, callRequest(map[string]any{"draft_id": draftID, "type": entry.ID}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	require.Len(t, view.Fields, 2)
	assert.Equal(t, "Signature of applicant 2", view.Fields[1].Name)

	result, err = s.handleFieldTypeDelete(ctx, callRequest(map[string]any{"id": entry.ID}))
	require.NoError(t, err)
	assert.False(t, result.IsError, extractTextFromResult(result))

	result, err = s.handleFieldTypeDelete(ctx, callRequest(map[string]any{"id": entry.ID}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "not found")

	result, err = s.handleFieldTypeUpdate(ctx, callRequest(map[string]any{
		"id": entry.ID, "name": "Gone", "type": "text", "label": "Gone", "icon": "text",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleFieldTypes(ctx, callRequest(nil))
	require.NoError(t, err)
	var types []store.FieldTypeInfo
	decodeResult(t, result, &types)
	assert.Len(t, types, 5)
}

func TestServer_TemplateRenderPage(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	url := uploadLetter(t, s, 2)

	result, err := s.handleTemplateCreate(ctx, callRequest(map[string]any{"name": "Blank", "document_url": url}))
	require.NoError(t, err)
	var tmpl struct {
		ID string `json:"id"`
	}
	decodeResult(t, result, &tmpl)

	result, err = s.handleTemplateRenderPage(ctx, callRequest(map[string]any{
		"template_id": tmpl.ID, "page": float64(2), "zoom": float64(1),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	assert.Contains(t, extractTextFromResult(result), "Page 2 at zoom 1: 612x792")

	var img mcp.ImageContent
	for _, c := range result.Content {
		if ic, ok := c.(mcp.ImageContent); ok {
			img = ic
		}
	}
	assert.Equal(t, "image/png", img.MIMEType)
	png, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))
}

func TestServer_DraftTools(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	url := uploadLetter(t, s, 1)

	result, err := s.handleDraftOpen(ctx, callRequest(map[string]any{
		"document_url": url, "canvas_width": float64(612), "canvas_height": float64(792),
	}))
	require.NoError(t, err)
	var view workflow.DraftView
	decodeResult(t, result, &view)
	draftID := view.ID

	result, err = s.handleDraftAddField(ctx, callRequest(map[string]any{"draft_id": draftID, "type": "date"}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	require.Len(t, view.Fields, 1)
	fieldID := view.Fields[0].ID

	result, err = s.handleDraftMoveField(ctx, callRequest(map[string]any{
		"draft_id": draftID, "field_id": fieldID, "dx": float64(-100), "dy": float64(10),
	}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	assert.Equal(t, 0.0, view.Fields[0].Display.X, "drag keeps the field on the canvas")
	assert.Equal(t, 60.0, view.Fields[0].Display.Y)

	result, err = s.handleDraftResizeField(ctx, callRequest(map[string]any{
		"draft_id": draftID, "field_id": fieldID, "handle": "se", "dx": float64(50), "dy": float64(20),
	}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	assert.Equal(t, 170.0, view.Fields[0].Display.Width, "date entries start 120 wide")
	assert.Equal(t, 60.0, view.Fields[0].Display.Height)

	result, err = s.handleDraftUpdateField(ctx, callRequest(map[string]any{
		"draft_id": draftID, "field_id": fieldID, "name": "Start date",
		"group_name": "Periods", "group_instance": float64(2),
	}))
	require.NoError(t, err)
	decodeResult(t, result, &view)
	assert.Equal(t, "Start date", view.Fields[0].Name)
	assert.Equal(t, 2, view.Fields[0].Group.InstanceNumber)

	result, err = s.handleDraftSave(ctx, callRequest(map[string]any{"draft_id": draftID, "name": "Periods"}))
	require.NoError(t, err)
	var tmpl struct {
		Name   string `json:"name"`
		Fields []any  `json:"fields"`
	}
	decodeResult(t, result, &tmpl)
	assert.Equal(t, "Periods", tmpl.Name)
	assert.Len(t, tmpl.Fields, 1)

	result, err = s.handleDraftDeleteField(ctx, callRequest(map[string]any{"draft_id": draftID, "field_id": fieldID}))
	require.NoError(t, err)
	assert.True(t, result.IsError, "saved drafts are closed")

	result, err = s.handleDraftClose(ctx, callRequest(map[string]any{"draft_id": draftID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestServer_UploadsRoute(t *testing.T) {
	s, _ := newTestServer(t)
	url := uploadLetter(t, s, 1)

	ts := httptest.NewServer(s.routes(http.NotFoundHandler()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, pdftest.Letter(1), body)

	// The database next to uploads is not served.
	resp2, err := http.Get(ts.URL + "/uploads/../forms.db")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp2.StatusCode)
}

func TestServer_Run_ServerModeShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Mode = config.ModeServer
	s.config.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, s.Run(ctx))
}
