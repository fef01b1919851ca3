package workflow

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdftest"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
	"github.com/a3tai/mcp-pdf-forms/internal/store"
)

type blankRasterizer struct{}

func (blankRasterizer) Rasterize(_ context.Context, _ []byte, _ int, width, height int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

type fixture struct {
	svc  *Service
	root string
	logs *logging.BufferedHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	st, err := store.Open(ctx, filepath.Join(root, "forms.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	guard, err := pdf.NewPathGuard(root)
	require.NoError(t, err)

	logs := logging.NewBufferedHandler(slog.LevelDebug)
	logger := slog.New(logs)
	loader := pdf.NewPDFCPULoader()

	svc := NewService(Options{
		Store:    st,
		Guard:    guard,
		Loader:   loader,
		Renderer: pdf.NewRenderer(loader, blankRasterizer{}, pdf.NewRenderCache(4), logger),
		Logger:   logger,
	})
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return &fixture{svc: svc, root: root, logs: logs}
}

func (f *fixture) upload(t *testing.T, data []byte) *Upload {
	t.Helper()
	up, err := f.svc.UploadTemplateFile(context.Background(), "form.pdf", data)
	require.NoError(t, err)
	return up
}

func signatureDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.Black)
		}
	}
	s, err := raster.EncodeDataURL(img)
	require.NoError(t, err)
	return s
}

func TestUploadTemplateFile(t *testing.T) {
	f := newFixture(t)

	up := f.upload(t, pdftest.Letter(2))

	assert.True(t, strings.HasPrefix(up.URL, "/uploads/templates/template_1700000000000_"), up.URL)
	assert.True(t, strings.HasSuffix(up.URL, ".pdf"))
	assert.Equal(t, 2, up.PageCount)

	stored, err := os.ReadFile(filepath.Join(f.root, up.URL))
	require.NoError(t, err)
	assert.Equal(t, pdftest.Letter(2), stored)
}

func TestUploadTemplateFile_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UploadTemplateFile(ctx, "form.docx", pdftest.Letter(1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UploadTemplateFile(ctx, "form.pdf", []byte("hello"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.UploadTemplateFile(ctx, "form.pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, statErr := os.Stat(filepath.Join(f.root, uploadDir))
	assert.True(t, os.IsNotExist(statErr), "nothing stored for rejected uploads")
}

func TestCreateTemplate_Fields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := f.upload(t, pdftest.Letter(2))

	tmpl, err := f.svc.CreateTemplate(ctx, CreateTemplateInput{
		Name:        "  Leave request ",
		DocumentURL: up.URL,
		Fields: []forms.Field{
			{Type: forms.TypeText, Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.05}},
			{Type: forms.TypeText, Page: 2, Rect: geometry.Rect{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.05}},
			{ID: "sig", Name: "Employee", Type: forms.TypeSignature, Rect: geometry.Rect{X: 0.5, Y: 0.8, Width: 0.3, Height: 0.1}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Leave request", tmpl.Name)
	assert.True(t, tmpl.Active)
	assert.Equal(t, 2, tmpl.PageCount)
	assert.Equal(t, geometry.Size{Width: pdftest.LetterWidth, Height: pdftest.LetterHeight}, tmpl.Natural)
	require.Len(t, tmpl.Fields, 3)
	assert.Equal(t, "Text Field 1", tmpl.Fields[0].Name)
	assert.Equal(t, 1, tmpl.Fields[0].Page)
	assert.NotEmpty(t, tmpl.Fields[0].ID)
	assert.Equal(t, "Text Field 2", tmpl.Fields[1].Name)
	assert.Equal(t, "Employee", tmpl.Fields[2].Name)
	assert.Equal(t, "sig", tmpl.Fields[2].ID)

	got, err := f.svc.GetTemplate(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Fields, got.Fields)

	list, err := f.svc.ListTemplates(ctx, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateTemplate_Placements(t *testing.T) {
	f := newFixture(t)
	up := f.upload(t, pdftest.Letter(1))

	tmpl, err := f.svc.CreateTemplate(context.Background(), CreateTemplateInput{
		Name:        "Consent",
		DocumentURL: up.URL,
		Canvas:      &geometry.Size{Width: 306, Height: 396},
		Placements: []forms.Placement{
			{Type: forms.TypeCheckbox, Page: 1, X: 30.6, Y: 39.6, Width: 61.2, Height: 39.6},
			{Type: forms.TypeDate, Page: 1,
				Position: forms.PlacementPosition{XPercent: 50, YPercent: 50},
				Size:     forms.PlacementSize{WidthPercent: 20, HeightPercent: 5}},
		},
	})
	require.NoError(t, err)
	require.Len(t, tmpl.Fields, 2)

	assert.True(t, tmpl.Fields[0].Rect.ApproxEqual(geometry.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.1}, 1e-9), "%+v", tmpl.Fields[0].Rect)
	assert.Equal(t, "Checkbox 1", tmpl.Fields[0].Name)
	assert.True(t, tmpl.Fields[1].Rect.ApproxEqual(geometry.Rect{X: 0.5, Y: 0.5, Width: 0.2, Height: 0.05}, 1e-9))
	assert.Equal(t, "Date 1", tmpl.Fields[1].Name)
}

func TestCreateTemplate_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := f.upload(t, pdftest.Letter(1))
	field := forms.Field{Type: forms.TypeText, Page: 1, Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}}

	tests := []struct {
		name string
		in   CreateTemplateInput
	}{
		{"no name", CreateTemplateInput{Name: " ", DocumentURL: up.URL}},
		{"no document", CreateTemplateInput{Name: "x"}},
		{"missing document", CreateTemplateInput{Name: "x", DocumentURL: "/uploads/templates/missing.pdf"}},
		{"unknown type", CreateTemplateInput{Name: "x", DocumentURL: up.URL,
			Fields: []forms.Field{{Type: "radio", Page: 1, Rect: field.Rect}}}},
		{"page beyond document", CreateTemplateInput{Name: "x", DocumentURL: up.URL,
			Fields: []forms.Field{{Type: forms.TypeText, Page: 2, Rect: field.Rect}}}},
		{"duplicate ids", CreateTemplateInput{Name: "x", DocumentURL: up.URL,
			Fields: []forms.Field{{ID: "a", Type: forms.TypeText, Rect: field.Rect}, {ID: "a", Type: forms.TypeText, Rect: field.Rect}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTemplate(ctx, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	list, err := f.svc.ListTemplates(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFieldTypes(t *testing.T) {
	f := newFixture(t)

	types, err := f.svc.FieldTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 5)

	byType := map[forms.FieldType]store.FieldTypeInfo{}
	for _, ft := range types {
		byType[ft.Type] = ft
	}
	assert.Equal(t, geometry.Size{Width: 200, Height: 60}, byType[forms.TypeSignature].DefaultSize())
}

func createTemplate(t *testing.T, f *fixture, url string) *forms.Template {
	t.Helper()
	tmpl, err := f.svc.CreateTemplate(context.Background(), CreateTemplateInput{
		Name:        "Leave request",
		DocumentURL: url,
		Fields: []forms.Field{
			{ID: "name", Type: forms.TypeText, Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.05}},
			{ID: "agree", Type: forms.TypeCheckbox, Rect: geometry.Rect{X: 0.1, Y: 0.3, Width: 0.05, Height: 0.04}},
			{ID: "sig", Type: forms.TypeSignature, Rect: geometry.Rect{X: 0.5, Y: 0.8, Width: 0.3, Height: 0.1}},
			{ID: "child", Type: forms.TypeText, Page: 2, Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.05},
				Group: &forms.Group{Name: "Children", InstanceNumber: 2}},
		},
	})
	require.NoError(t, err)
	return tmpl
}

func TestRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, f.upload(t, pdftest.Letter(2)).URL)

	req, err := f.svc.CreateRequest(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, forms.StatusDraft, req.Status)

	err = f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Ada", "bogus": "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "bogus")

	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Values, "rejected values are not stored")

	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Ada"}))
	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Ada Lovelace", "agree": "yes"}))

	got, err = f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Ada Lovelace", "agree": "yes"}, got.Values)

	_, err = f.svc.UpdateStatus(ctx, req.ID, "approved")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = f.svc.UpdateStatus(ctx, req.ID, "done")
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, err = f.svc.UpdateStatus(ctx, req.ID, "in-progress")
	require.NoError(t, err)
	assert.Equal(t, forms.StatusInProgress, got.Status)
	require.NotNil(t, got.SubmittedAt)
	assert.Equal(t, int64(1700000000000), got.SubmittedAt.UnixMilli())

	got, err = f.svc.UpdateStatus(ctx, req.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, forms.StatusApproved, got.Status)
	assert.NotNil(t, got.SubmittedAt)

	err = f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Changed"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := f.svc.ListRequests(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRequest_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetRequest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.CreateRequest(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.GenerateFilledPDF(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateFilledPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, f.upload(t, pdftest.Letter(2)).URL)

	req, err := f.svc.CreateRequest(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{
		"name":  "Ada Lovelace",
		"agree": "true",
		"sig":   signatureDataURL(t),
		"child": "Byron",
	}))

	gen, err := f.svc.GenerateFilledPDF(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/filled-requests/request-"+req.ID+"-filled.pdf", gen.URL)
	assert.Equal(t, 4, gen.Fields)

	data, err := os.ReadFile(gen.Path)
	require.NoError(t, err)
	assert.Equal(t, gen.Size, len(data))

	pages, err := pdf.NewValidator(100<<20).ValidateBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.URL, got.FilledDocumentURL)

	// Generating again replaces the earlier file.
	again, err := f.svc.GenerateFilledPDF(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, gen.Path, again.Path)
}

func TestGenerateFilledPDF_SkipsBadFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, f.upload(t, pdftest.Letter(2)).URL)

	req, err := f.svc.CreateRequest(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{
		"name":  "Ada",
		"agree": "no",
		"sig":   "data:image/png;base64,not-an-image",
	}))

	gen, err := f.svc.GenerateFilledPDF(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Fields, "unchecked box and broken signature are left out")
	assert.True(t, f.logs.Contains("field skipped"))
	assert.True(t, f.logs.Contains("field=sig"))
}

func TestGenerateFilledPDF_RemoteDocument(t *testing.T) {
	base := pdftest.Letter(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(base)
	}))
	defer srv.Close()

	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, srv.URL+"/form.pdf")

	req, err := f.svc.CreateRequest(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Ada"}))

	gen, err := f.svc.GenerateFilledPDF(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Fields)

	_, err = f.svc.fetchDocument(ctx, srv.URL+"/missing.pdf")
	assert.ErrorContains(t, err, "404")
}

func TestGenerateFilledPDF_MissingBaseDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := f.upload(t, pdftest.Letter(2))
	tmpl := createTemplate(t, f, up.URL)

	req, err := f.svc.CreateRequest(ctx, tmpl.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetFieldValues(ctx, req.ID, map[string]string{"name": "Ada"}))

	require.NoError(t, os.Remove(filepath.Join(f.root, up.URL)))

	_, err = f.svc.GenerateFilledPDF(ctx, req.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch base document")

	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FilledDocumentURL)
}

func TestFetchDocument_StaysUnderRoot(t *testing.T) {
	f := newFixture(t)
	outside := filepath.Join(t.TempDir(), "secret.pdf")
	require.NoError(t, os.WriteFile(outside, pdftest.Letter(1), 0o644))

	_, err := f.svc.fetchDocument(context.Background(), outside)
	assert.Error(t, err)
	_, err = f.svc.fetchDocument(context.Background(), "../"+filepath.Base(filepath.Dir(outside))+"/secret.pdf")
	assert.Error(t, err)
}

func TestRenderTemplatePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, f.upload(t, pdftest.Letter(2)).URL)

	page, err := f.svc.RenderTemplatePage(ctx, tmpl.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, geometry.Size{Width: 918, Height: 1188}, page.Viewport)

	_, err = f.svc.RenderTemplatePage(ctx, tmpl.ID, 3, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.RenderTemplatePage(ctx, tmpl.ID, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.RenderTemplatePage(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
