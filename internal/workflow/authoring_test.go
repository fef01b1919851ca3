package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf/pdftest"
)

// Letter pages shown at half size.
var halfLetter = geometry.Size{Width: 306, Height: 396}

func TestDraft_LayoutAndSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := f.upload(t, pdftest.Letter(2))

	v, err := f.svc.OpenDraft(ctx, OpenDraftInput{DocumentURL: up.URL, Canvas: halfLetter})
	require.NoError(t, err)
	assert.Equal(t, 2, v.TotalPages)
	assert.Empty(t, v.Fields)
	id := v.ID

	v, err = f.svc.DraftAddField(ctx, id, "text", 0)
	require.NoError(t, err)
	require.Len(t, v.Fields, 1)
	text := v.Fields[0]
	assert.Equal(t, "Text Field 1", text.Name)
	assert.Equal(t, geometry.FallbackRect, text.Display)

	v, err = f.svc.DraftAddField(ctx, id, "signature", 2)
	require.NoError(t, err)
	require.Len(t, v.Fields, 2)
	assert.Equal(t, 2, v.Page)
	assert.Equal(t, 2, v.Fields[1].Page)
	sig := v.Fields[1]

	v, err = f.svc.DraftMove(id, text.ID, geometry.Point{X: 10, Y: 20})
	require.NoError(t, err)
	assert.True(t, v.Fields[0].Display.ApproxEqual(geometry.Rect{X: 60, Y: 70, Width: 150, Height: 40}, 1e-9))

	v, err = f.svc.DraftResize(id, text.ID, "se", geometry.Point{X: -200, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 50, v.Fields[0].Display.Width, 1e-9, "resize stops at the minimum width")

	_, err = f.svc.DraftResize(id, text.ID, "middle", geometry.Point{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	v, err = f.svc.DraftUpdateField(id, text.ID, "Child name", &forms.Group{Name: "Children", InstanceNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, "Child name", v.Fields[0].Name)
	require.NotNil(t, v.Fields[0].Group)

	v, err = f.svc.DraftDeleteField(id, sig.ID)
	require.NoError(t, err)
	assert.Len(t, v.Fields, 1)

	tmpl, err := f.svc.SaveDraft(ctx, id, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Form", tmpl.Name)
	require.Len(t, tmpl.Fields, 1)
	got := tmpl.Fields[0]
	assert.Equal(t, "Child name", got.Name)
	assert.Equal(t, "Children", got.Group.Name)
	want := geometry.Rect{X: 120.0 / 612, Y: 140.0 / 792, Width: 100.0 / 612, Height: 80.0 / 792}
	assert.True(t, got.Rect.ApproxEqual(want, 1e-9), "%+v", got.Rect)

	_, err = f.svc.DraftMove(id, text.ID, geometry.Point{})
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraft_FromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tmpl := createTemplate(t, f, f.upload(t, pdftest.Letter(2)).URL)

	v, err := f.svc.OpenDraft(ctx, OpenDraftInput{TemplateID: tmpl.ID, Canvas: halfLetter})
	require.NoError(t, err)
	assert.Equal(t, tmpl.DocumentURL, v.DocumentURL)
	require.Len(t, v.Fields, len(tmpl.Fields))

	// name field at {0.1, 0.1, 0.4, 0.05} of the page.
	assert.True(t, v.Fields[0].Display.ApproxEqual(geometry.Rect{X: 30.6, Y: 39.6, Width: 122.4, Height: 19.8}, 1e-9))

	f.svc.CloseDraft(v.ID)
	f.svc.CloseDraft(v.ID)
	_, err = f.svc.DraftAddField(ctx, v.ID, "text", 1)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestDraft_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	up := f.upload(t, pdftest.Letter(1))

	_, err := f.svc.OpenDraft(ctx, OpenDraftInput{DocumentURL: up.URL})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.OpenDraft(ctx, OpenDraftInput{Canvas: halfLetter})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.OpenDraft(ctx, OpenDraftInput{TemplateID: "missing", Canvas: halfLetter})
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := f.svc.OpenDraft(ctx, OpenDraftInput{DocumentURL: up.URL, Canvas: halfLetter})
	require.NoError(t, err)

	_, err = f.svc.DraftAddField(ctx, v.ID, "radio", 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.DraftAddField(ctx, v.ID, "text", 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.SaveDraft(ctx, v.ID, "Empty", "")
	assert.ErrorIs(t, err, ErrInvalidInput, "saving needs at least one field")
	_, err = f.svc.DraftMove(v.ID, "missing", geometry.Point{X: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
