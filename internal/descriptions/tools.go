package descriptions

import "sort"

// Long-form descriptions for the tools that drive the form workflow.

const (
	// Templates
	TemplateUploadDescription = `Store a base PDF document that form templates are drawn onto.

**When to use:** First step of building a template, when the form exists only as a flat PDF.

**Why it's useful:** The document is validated (PDF header, page count) and stored under the server's storage root, so later calls can refer to it by url instead of sending the bytes again.

**Examples:**
• "Upload leave-request.pdf so we can add fields to it"
• "Store this scanned consent form as a base document"

**Common workflows:**
1. Upload → template_render_page to look at the pages → template_create with field rectangles
2. Upload → draft_open → draft_add_field / draft_move_field → draft_save

**Best practices:** Send the bytes base64 encoded; pass the original filename so non-PDF files are rejected early.`

	TemplateCreateDescription = `Define a template: an ordered set of fields bound to a base document.

**When to use:** The field positions are already known, either as fractions of the page or as pixels on a canvas of known size.

**Why it's useful:** Fields are stored in normalized page units, so the same template fills correctly regardless of the resolution it was authored at.

**Examples:**
• Normalized field: {"type": "text", "page": 1, "rect": {"x": 0.12, "y": 0.20, "width": 0.40, "height": 0.03}}
• Canvas placement: {"type": "signature", "page": 2, "x": 90, "y": 640, "width": 200, "height": 60} with canvas_width 612 and canvas_height 792
• Repeated field: add "group": {"name": "Children", "instanceNumber": 2} to label the second child

**Common workflows:**
1. template_upload → template_create → request_create
2. template_get → adjust fields → template_create as a new version

**Best practices:** Rectangles use a top-left origin. Field types are text, signature, date, checkbox and number; see field_types for default sizes.`

	FieldTypeCreateDescription = `Add an entry to the field type catalog that draft_add_field places fields from.

**When to use:** A form needs a preset the built-in types do not offer, such as an "Applicant signature" with its own size that may appear only once.

**Why it's useful:** Fields added from the entry are named after its label, start at its default size and are counted against its amount, so a template cannot take more of them than allowed.

**Examples:**
• {"name": "Applicant signature", "type": "signature", "label": "Applicant signature", "icon": "signature", "width": 220, "height": 70, "amount": 1}
• {"name": "Initials", "type": "text", "label": "Initials", "icon": "text", "width": 60, "amount": 10}

**Best practices:** Amount 0 is stored as 1. The entries seeded for each field type use the type as their id and are not limited.`

	TemplateRenderPageDescription = `Render one page of a template's base document as a PNG image.

**When to use:** To look at a page before placing fields, or to check where existing fields sit.

**Why it's useful:** Field rectangles are relative to the page, so a rendered page gives the visual reference needed to pick coordinates.

**Examples:**
• "Show me page 2 of the leave request template"
• "Render the first page at zoom 2 so the small print is readable"

**Best practices:** The image size is the page size in points times the zoom factor.`

	// Requests
	RequestSetValuesDescription = `Store values for a request's fields, keyed by field id.

**When to use:** While a request is draft or in-progress and the person filling it provides answers.

**Why it's useful:** Values are validated against the template (unknown field ids are rejected and nothing is stored) and sanitized before they are kept.

**Examples:**
• Text and dates: {"name": "Ada Lovelace", "start": "2024-05-01"}
• Checkbox: {"agree": "yes"} (true, yes, on, 1 and x tick the box)
• Signature: {"sig": "data:image/png;base64,iVBOR..."}

**Best practices:** Set values in as many calls as needed; later values for the same field replace earlier ones. Approved and rejected requests are read-only.`

	RequestGeneratePDFDescription = `Draw a request's values onto the template's base document and store the filled PDF.

**When to use:** Once the values are complete, typically before or after approval.

**Why it's useful:** Text is fitted to its field, checkboxes get a drawn checkmark and signatures are scaled into their box without distortion. A field that cannot be drawn is skipped instead of failing the whole document.

**Examples:**
• "Generate the filled leave request for request 7f3c..."

**Common workflows:**
1. request_set_values → request_update_status in-progress → request_generate_pdf
2. request_generate_pdf again after values change; the earlier file is replaced

**Best practices:** The response carries the url of the filled document; in server mode it is served under /uploads/.`

	// Layout drafts
	DraftOpenDescription = `Open a layout draft to place fields interactively.

**When to use:** Field positions are not known up front and are worked out by looking at rendered pages.

**Why it's useful:** The draft keeps fields in page units and reports every field's rectangle on the canvas you render at, so moves and resizes can be given in the same pixels you see.

**Common workflows:**
1. template_render_page → draft_open with the image size as canvas → draft_add_field → draft_move_field / draft_resize_field → draft_save
2. draft_open with template_id to start from an existing template's fields

**Best practices:** Fields keep a minimum size of 50x30 canvas pixels while resizing. Close drafts you do not save.`

	ServerInfoDescription = `Get server information, storage location, rendering setup and available tools.

**When to use:** At the start of a session to learn what the server can do.

**Best practices:** Check whether page rendering is available before relying on template_render_page.`
)

// ToolDescriptions maps tool names to their long-form descriptions
var ToolDescriptions = map[string]string{
	"template_upload":      TemplateUploadDescription,
	"template_create":      TemplateCreateDescription,
	"template_render_page": TemplateRenderPageDescription,
	"field_type_create":    FieldTypeCreateDescription,
	"request_set_values":   RequestSetValuesDescription,
	"request_generate_pdf": RequestGeneratePDFDescription,
	"draft_open":           DraftOpenDescription,
	"server_info":          ServerInfoDescription,
}

// GetToolDescription returns the long-form description for a tool, or
// fallback when there is none.
func GetToolDescription(toolName, fallback string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return fallback
}

// GetAllToolNames returns the names of tools with long-form descriptions,
// sorted.
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
