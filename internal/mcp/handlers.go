package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/workflow"
)

// toolError turns a workflow error into a tool error result. Errors the
// caller cannot fix are logged.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, workflow.ErrDraftNotFound),
		errors.Is(err, workflow.ErrInvalidStatusTransition):
		s.logger.Debug("tool rejected", "tool", tool, "error", err)
	default:
		s.logger.Error("tool failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(err.Error())
}

// jsonResult renders v as indented JSON after a one-line summary.
func jsonResult(summary string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(summary + "\n" + string(data)), nil
}

// decodeArgument re-decodes a structured argument into target.
func decodeArgument(request mcp.CallToolRequest, key string, target any) (bool, error) {
	raw, ok := request.GetArguments()[key]
	if !ok || raw == nil {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return true, nil
}

func (s *Server) handleTemplateUpload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := request.RequireString("data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// Accept data urls as well as bare base64.
	if i := strings.Index(encoded, ";base64,"); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("data is not valid base64: %v", err)), nil
	}

	up, err := s.service.UploadTemplateFile(ctx, request.GetString("filename", ""), data)
	if err != nil {
		return s.toolError("template_upload", err), nil
	}
	return jsonResult(fmt.Sprintf("Stored base document %s (%d pages)", up.URL, up.PageCount), up)
}

func (s *Server) handleTemplateCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	documentURL, err := request.RequireString("document_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := workflow.CreateTemplateInput{
		Name:        name,
		Description: request.GetString("description", ""),
		Category:    request.GetString("category", ""),
		Version:     request.GetString("version", ""),
		DocumentURL: documentURL,
	}
	if _, err := decodeArgument(request, "fields", &in.Fields); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := decodeArgument(request, "placements", &in.Placements); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	canvas := geometry.Size{
		Width:  request.GetFloat("canvas_width", 0),
		Height: request.GetFloat("canvas_height", 0),
	}
	if canvas.Valid() {
		in.Canvas = &canvas
	}

	t, err := s.service.CreateTemplate(ctx, in)
	if err != nil {
		return s.toolError("template_create", err), nil
	}
	return jsonResult(fmt.Sprintf("Created template %s with %d field(s)", t.ID, len(t.Fields)), t)
}

func (s *Server) handleTemplateGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.service.GetTemplate(ctx, id)
	if err != nil {
		return s.toolError("template_get", err), nil
	}
	return jsonResult(fmt.Sprintf("Template %s: %s", t.ID, t.Name), t)
}

func (s *Server) handleTemplateList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := s.service.ListTemplates(ctx, request.GetBool("active_only", true))
	if err != nil {
		return s.toolError("template_list", err), nil
	}
	if len(templates) == 0 {
		return mcp.NewToolResultText("No templates found"), nil
	}
	return jsonResult(fmt.Sprintf("Found %d template(s)", len(templates)), templates)
}

func (s *Server) handleFieldTypes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.service.FieldTypes(ctx)
	if err != nil {
		return s.toolError("field_types", err), nil
	}
	return jsonResult(fmt.Sprintf("%d field type(s)", len(types)), types)
}

// fieldTypeInput reads catalog entry attributes. Missing numbers are left
// zero for the workflow defaults.
func fieldTypeInput(request mcp.CallToolRequest) workflow.FieldTypeInput {
	in := workflow.FieldTypeInput{
		Name:     request.GetString("name", ""),
		Type:     request.GetString("type", ""),
		Label:    request.GetString("label", ""),
		Icon:     request.GetString("icon", ""),
		Width:    request.GetFloat("width", 0),
		Height:   request.GetFloat("height", 0),
		Amount:   request.GetInt("amount", 0),
		Font:     request.GetString("font", ""),
		FontSize: request.GetFloat("font_size", 0),
	}
	if _, ok := request.GetArguments()["fillable"]; ok {
		fillable := request.GetBool("fillable", true)
		in.Fillable = &fillable
	}
	return in
}

func (s *Server) handleFieldTypeCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.service.CreateFieldType(ctx, fieldTypeInput(request))
	if err != nil {
		return s.toolError("field_type_create", err), nil
	}
	return jsonResult(fmt.Sprintf("Created field type %s (%s)", info.ID, info.Name), info)
}

func (s *Server) handleFieldTypeUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := s.service.UpdateFieldType(ctx, id, fieldTypeInput(request))
	if err != nil {
		return s.toolError("field_type_update", err), nil
	}
	return jsonResult(fmt.Sprintf("Updated field type %s", info.ID), info)
}

func (s *Server) handleFieldTypeDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.service.DeleteFieldType(ctx, id); err != nil {
		return s.toolError("field_type_delete", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted field type %s", id)), nil
}

func (s *Server) handleTemplateRenderPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page := request.GetInt("page", 1)

	rendered, err := s.service.RenderTemplatePage(ctx, id, page, request.GetFloat("zoom", 0))
	if err != nil {
		return s.toolError("template_render_page", err), nil
	}
	png, err := rendered.Surface.PNG()
	if err != nil {
		return s.toolError("template_render_page", err), nil
	}

	summary := fmt.Sprintf("Page %d at zoom %g: %gx%g (%dx%d pixels)",
		rendered.Page, rendered.Zoom, rendered.Viewport.Width, rendered.Viewport.Height,
		rendered.Surface.Width(), rendered.Surface.Height())
	return mcp.NewToolResultImage(summary, base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

func (s *Server) handleRequestCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templateID, err := request.RequireString("template_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.service.CreateRequest(ctx, templateID)
	if err != nil {
		return s.toolError("request_create", err), nil
	}
	return jsonResult(fmt.Sprintf("Created request %s", r.ID), r)
}

func (s *Server) handleRequestGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.service.GetRequest(ctx, id)
	if err != nil {
		return s.toolError("request_get", err), nil
	}
	return jsonResult(fmt.Sprintf("Request %s is %s", r.ID, r.Status), r)
}

func (s *Server) handleRequestList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requests, err := s.service.ListRequests(ctx, request.GetString("template_id", ""))
	if err != nil {
		return s.toolError("request_list", err), nil
	}
	if len(requests) == 0 {
		return mcp.NewToolResultText("No requests found"), nil
	}
	return jsonResult(fmt.Sprintf("Found %d request(s)", len(requests)), requests)
}

func (s *Server) handleRequestSetValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, ok := request.GetArguments()["values"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("values must be an object keyed by field id"), nil
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			values[k] = v
		case bool:
			values[k] = fmt.Sprint(v)
		case float64:
			values[k] = fmt.Sprint(v)
		case nil:
			values[k] = ""
		default:
			return mcp.NewToolResultError(fmt.Sprintf("value of %s must be a string", k)), nil
		}
	}

	if err := s.service.SetFieldValues(ctx, id, values); err != nil {
		return s.toolError("request_set_values", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Stored %d value(s) on request %s", len(values), id)), nil
}

func (s *Server) handleRequestUpdateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.service.UpdateStatus(ctx, id, status)
	if err != nil {
		return s.toolError("request_update_status", err), nil
	}
	return jsonResult(fmt.Sprintf("Request %s is now %s", r.ID, r.Status), r)
}

func (s *Server) handleRequestGeneratePDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gen, err := s.service.GenerateFilledPDF(ctx, id)
	if err != nil {
		return s.toolError("request_generate_pdf", err), nil
	}
	return jsonResult(fmt.Sprintf("Generated %s with %d field(s)", gen.URL, gen.Fields), gen)
}

func (s *Server) handleDraftOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.service.OpenDraft(ctx, workflow.OpenDraftInput{
		TemplateID:  request.GetString("template_id", ""),
		DocumentURL: request.GetString("document_url", ""),
		Canvas: geometry.Size{
			Width:  request.GetFloat("canvas_width", 0),
			Height: request.GetFloat("canvas_height", 0),
		},
	})
	if err != nil {
		return s.toolError("draft_open", err), nil
	}
	return jsonResult(fmt.Sprintf("Opened draft %s (%d pages)", v.ID, v.TotalPages), v)
}

func draftIDs(request mcp.CallToolRequest) (string, string, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return "", "", err
	}
	fieldID, err := request.RequireString("field_id")
	if err != nil {
		return "", "", err
	}
	return draftID, fieldID, nil
}

func delta(request mcp.CallToolRequest) geometry.Point {
	return geometry.Point{X: request.GetFloat("dx", 0), Y: request.GetFloat("dy", 0)}
}

func (s *Server) draftResult(tool string, v *workflow.DraftView, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return s.toolError(tool, err), nil
	}
	summary := fmt.Sprintf("Draft %s: %d field(s), page %d of %d", v.ID, len(v.Fields), v.Page, v.TotalPages)
	if len(v.OutOfBounds) > 0 {
		summary += fmt.Sprintf("; %d field(s) outside the page", len(v.OutOfBounds))
	}
	return jsonResult(summary, v)
}

func (s *Server) handleDraftAddField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fieldType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.service.DraftAddField(ctx, draftID, fieldType, request.GetInt("page", 0))
	return s.draftResult("draft_add_field", v, err)
}

func (s *Server) handleDraftMoveField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, fieldID, err := draftIDs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.service.DraftMove(draftID, fieldID, delta(request))
	return s.draftResult("draft_move_field", v, err)
}

func (s *Server) handleDraftResizeField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, fieldID, err := draftIDs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	handle, err := request.RequireString("handle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.service.DraftResize(draftID, fieldID, handle, delta(request))
	return s.draftResult("draft_resize_field", v, err)
}

func (s *Server) handleDraftUpdateField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, fieldID, err := draftIDs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var group *forms.Group
	if name := strings.TrimSpace(request.GetString("group_name", "")); name != "" {
		group = &forms.Group{Name: name, InstanceNumber: request.GetInt("group_instance", 1)}
	}
	v, err := s.service.DraftUpdateField(draftID, fieldID, request.GetString("name", ""), group)
	return s.draftResult("draft_update_field", v, err)
}

func (s *Server) handleDraftDeleteField(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, fieldID, err := draftIDs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.service.DraftDeleteField(draftID, fieldID)
	return s.draftResult("draft_delete_field", v, err)
}

func (s *Server) handleDraftSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.service.SaveDraft(ctx, draftID, request.GetString("name", ""), request.GetString("description", ""))
	if err != nil {
		return s.toolError("draft_save", err), nil
	}
	return jsonResult(fmt.Sprintf("Saved template %s with %d field(s)", t.ID, len(t.Fields)), t)
}

func (s *Server) handleDraftClose(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.service.CloseDraft(draftID)
	return mcp.NewToolResultText(fmt.Sprintf("Closed draft %s", draftID)), nil
}
