package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-forms/internal/config"
)

// ServerInfo describes the running server and how to use it.
type ServerInfo struct {
	ServerName          string     `json:"server_name"`
	Version             string     `json:"version"`
	Mode                string     `json:"mode"`
	StorageDir          string     `json:"storage_dir"`
	MaxFileSize         int64      `json:"max_file_size"`
	TextMode            string     `json:"text_mode"`
	Zoom                float64    `json:"zoom"`
	Rasterizer          string     `json:"rasterizer"`
	RasterizerAvailable bool       `json:"rasterizer_available"`
	Templates           int        `json:"templates"`
	Requests            int        `json:"requests"`
	AvailableTools      []ToolInfo `json:"available_tools"`
	UsageGuidance       string     `json:"usage_guidance"`
}

// ToolInfo summarizes one registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  string `json:"parameters"`
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.serverInfo(ctx)
	if err != nil {
		return s.toolError("server_info", err), nil
	}
	return mcp.NewToolResultText(formatServerInfo(info)), nil
}

func (s *Server) serverInfo(ctx context.Context) (*ServerInfo, error) {
	templates, err := s.service.ListTemplates(ctx, false)
	if err != nil {
		return nil, err
	}
	requests, err := s.service.ListRequests(ctx, "")
	if err != nil {
		return nil, err
	}

	_, lookErr := exec.LookPath(s.config.Rasterizer)

	return &ServerInfo{
		ServerName:          s.config.ServerName,
		Version:             s.config.Version,
		Mode:                s.config.Mode,
		StorageDir:          s.config.StorageDir,
		MaxFileSize:         s.config.MaxFileSize,
		TextMode:            s.config.TextMode,
		Zoom:                s.config.Zoom,
		Rasterizer:          s.config.Rasterizer,
		RasterizerAvailable: lookErr == nil,
		Templates:           len(templates),
		Requests:            len(requests),
		AvailableTools:      s.availableTools(),
		UsageGuidance:       usageGuidance(s.config),
	}, nil
}

func (s *Server) availableTools() []ToolInfo {
	tools := make([]ToolInfo, 0, len(s.tools))
	for _, tool := range s.tools {
		description, _, _ := strings.Cut(tool.Description, "\n")
		tools = append(tools, ToolInfo{
			Name:        tool.Name,
			Description: description,
			Parameters:  describeParameters(tool.InputSchema),
		})
	}
	return tools
}

func describeParameters(schema mcp.ToolInputSchema) string {
	if len(schema.Properties) == 0 {
		return "No parameters required"
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if slices.Contains(schema.Required, name) {
			parts = append(parts, name+" (required)")
		} else {
			parts = append(parts, name+" (optional)")
		}
	}
	return strings.Join(parts, ", ")
}

func usageGuidance(cfg *config.Config) string {
	return fmt.Sprintf(`PDF Forms MCP Server Usage Guide:

1. BUILD A TEMPLATE:
   - Use 'template_upload' to store the base PDF
   - Use 'template_render_page' to look at its pages
   - Use 'template_create' with normalized field rectangles, or
   - Use 'draft_open', 'draft_add_field', 'draft_move_field' and 'draft_save' to place fields on a canvas
   - Use 'field_types' to list the catalog draft_add_field draws from; 'field_type_create',
     'field_type_update' and 'field_type_delete' maintain it

2. FILL A REQUEST:
   - Use 'request_create' to start a draft request for a template
   - Use 'request_set_values' to store answers keyed by field id
   - Use 'request_update_status' to move it: draft -> in-progress -> approved or rejected

3. GENERATE THE DOCUMENT:
   - Use 'request_generate_pdf' to draw the values onto the base document
   - Fields that cannot be drawn are skipped and logged

IMPORTANT NOTES:
- Rectangles use a top-left origin and fractions of the page size
- Base documents can be up to %dMB
- Text is drawn in %s mode; pages render at zoom %g by default
- Approved and rejected requests are read-only`,
		cfg.MaxFileSize/(1024*1024), cfg.TextMode, cfg.Zoom)
}

func formatServerInfo(info *ServerInfo) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Server: %s v%s (%s mode)\n", info.ServerName, info.Version, info.Mode)
	fmt.Fprintf(&sb, "Storage: %s\n", info.StorageDir)
	fmt.Fprintf(&sb, "Max file size: %d bytes\n", info.MaxFileSize)
	fmt.Fprintf(&sb, "Text mode: %s\n", info.TextMode)

	rendering := "available"
	if !info.RasterizerAvailable {
		rendering = "unavailable, template_render_page will fail"
	}
	fmt.Fprintf(&sb, "Page rendering: %s at zoom %g (%s)\n", info.Rasterizer, info.Zoom, rendering)
	fmt.Fprintf(&sb, "Templates: %d\n", info.Templates)
	fmt.Fprintf(&sb, "Requests: %d\n", info.Requests)

	sb.WriteString("\nAvailable Tools:\n")
	for _, tool := range info.AvailableTools {
		fmt.Fprintf(&sb, "- %s: %s\n", tool.Name, tool.Description)
		fmt.Fprintf(&sb, "  Parameters: %s\n", tool.Parameters)
	}

	sb.WriteString("\n")
	sb.WriteString(info.UsageGuidance)
	return sb.String()
}
