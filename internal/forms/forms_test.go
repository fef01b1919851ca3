package forms

import (
	"encoding/json"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

func TestParseFieldType(t *testing.T) {
	for _, ft := range FieldTypes() {
		got, err := ParseFieldType(string(ft))
		require.NoError(t, err)
		assert.Equal(t, ft, got)
	}

	got, err := ParseFieldType(" Checkbox ")
	require.NoError(t, err)
	assert.Equal(t, TypeCheckbox, got)

	_, err = ParseFieldType("radio")
	assert.ErrorIs(t, err, ErrInvalidFieldType)
}

func TestFieldValidate(t *testing.T) {
	valid := Field{ID: "f1", Type: TypeText, Page: 1, Rect: geometry.Rect{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Field)
	}{
		{"missing id", func(f *Field) { f.ID = "" }},
		{"bad type", func(f *Field) { f.Type = "radio" }},
		{"page zero", func(f *Field) { f.Page = 0 }},
		{"negative x", func(f *Field) { f.Rect.X = -0.1 }},
		{"zero width", func(f *Field) { f.Rect.Width = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			assert.Error(t, f.Validate())
		})
	}
}

func TestFieldInBounds(t *testing.T) {
	assert.True(t, Field{Rect: geometry.Rect{X: 0.5, Y: 0.5, Width: 0.5, Height: 0.5}}.InBounds())
	assert.False(t, Field{Rect: geometry.Rect{X: 0.9, Y: 0.5, Width: 0.2, Height: 0.1}}.InBounds())
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Jane Doe  ", "Jane Doe"},
		{"<b>bold</b>", "bbold/b"},
		{"javascript:alert(1)", "alert(1)"},
		{"x onclick=run()", "x run()"},
		{"   ", ""},
		{"data:image/png;base64,abconA=", "data:image/png;base64,abconA="},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestKindFor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.Black)
	sig, err := raster.EncodeDataURL(img)
	require.NoError(t, err)

	group := &Group{Name: "witness", InstanceNumber: 2}
	text := Field{ID: "t", Type: TypeText, Group: group}
	check := Field{ID: "c", Type: TypeCheckbox}
	signature := Field{ID: "s", Type: TypeSignature}

	kind, ok, err := KindFor(text, "  hello ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TextKind{Text: "hello", Group: group}, kind)

	_, ok, err = KindFor(text, "   ")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, v := range []string{"true", "on", "YES", "1", "x", "✓"} {
		kind, ok, err = KindFor(check, v)
		require.NoError(t, err)
		assert.True(t, ok, v)
		assert.Equal(t, CheckmarkKind{}, kind)
	}
	_, ok, err = KindFor(check, "false")
	require.NoError(t, err)
	assert.False(t, ok)

	kind, ok, err = KindFor(signature, sig)
	require.NoError(t, err)
	require.True(t, ok)
	sk, isSig := kind.(SignatureKind)
	require.True(t, isSig)
	assert.Equal(t, image.Rect(0, 0, 3, 2), sk.Image.Bounds())

	_, _, err = KindFor(signature, "not a data url")
	assert.ErrorIs(t, err, raster.ErrInvalidDataURL)

	_, _, err = KindFor(Field{ID: "q", Type: "radio"}, "x")
	assert.ErrorIs(t, err, ErrInvalidFieldType)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusInProgress, true},
		{StatusDraft, StatusRejected, true},
		{StatusDraft, StatusApproved, false},
		{StatusInProgress, StatusApproved, true},
		{StatusInProgress, StatusRejected, true},
		{StatusInProgress, StatusDraft, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, StatusDraft.Terminal())

	_, err := ParseStatus("in-progress")
	assert.NoError(t, err)
	_, err = ParseStatus("done")
	assert.Error(t, err)
}

func TestTemplateValidate(t *testing.T) {
	field := Field{ID: "f1", Type: TypeText, Page: 2, Rect: geometry.Rect{Width: 0.1, Height: 0.1}}
	tpl := Template{Name: "Leave form", DocumentURL: "/uploads/templates/a.pdf", PageCount: 2, Fields: []Field{field}}
	require.NoError(t, tpl.Validate())

	got, ok := tpl.Field("f1")
	assert.True(t, ok)
	assert.Equal(t, field, got)
	_, ok = tpl.Field("nope")
	assert.False(t, ok)

	tpl.PageCount = 1
	assert.Error(t, tpl.Validate())

	tpl.PageCount = 2
	tpl.Fields = []Field{field, field}
	assert.ErrorContains(t, tpl.Validate(), "duplicate")

	tpl.Fields = nil
	tpl.Name = ""
	assert.Error(t, tpl.Validate())
}

func TestPlacementOf(t *testing.T) {
	canvas := geometry.StaticCanvas{Size: geometry.Size{Width: 800, Height: 1000}}
	natural := &geometry.Size{Width: 1600, Height: 2000}
	f := Field{
		ID: "f1", Name: "Text Field 1", Type: TypeText, Page: 1,
		Rect: geometry.Rect{X: 0.0625, Y: 0.05, Width: 0.1875, Height: 0.04},
	}

	p, err := PlacementOf(f, canvas, natural)
	require.NoError(t, err)

	assert.InDelta(t, 50, p.X, 1e-9)
	assert.InDelta(t, 50, p.Y, 1e-9)
	assert.InDelta(t, 150, p.Width, 1e-9)
	assert.InDelta(t, 40, p.Height, 1e-9)
	assert.Equal(t, p.X, p.Position.X)
	assert.Equal(t, p.Height, p.Size.Height)

	assert.InDelta(t, p.X/800*100, p.Position.XPercent, 0.005)
	assert.InDelta(t, p.Y/1000*100, p.Position.YPercent, 0.005)
	assert.InDelta(t, p.Width/800*100, p.Size.WidthPercent, 0.005)
	assert.InDelta(t, p.Height/1000*100, p.Size.HeightPercent, 0.005)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	for _, key := range []string{`"position"`, `"xPercent"`, `"size"`, `"heightPercent"`} {
		assert.Contains(t, string(raw), key)
	}

	_, err = PlacementOf(f, geometry.StaticCanvas{}, natural)
	assert.ErrorIs(t, err, ErrCanvasUnavailable)
}

func TestFieldFromPlacement(t *testing.T) {
	canvas := geometry.StaticCanvas{Size: geometry.Size{Width: 800, Height: 1000}}
	natural := &geometry.Size{Width: 1600, Height: 2000}
	f := Field{
		ID: "f1", Name: "Date 2", Type: TypeDate, Page: 3,
		Rect:      geometry.Rect{X: 0.25, Y: 0.5, Width: 0.125, Height: 0.03},
		Group:     &Group{Name: "dates", InstanceNumber: 1},
		CatalogID: "start-date",
	}

	p, err := PlacementOf(f, canvas, natural)
	require.NoError(t, err)
	assert.Equal(t, "start-date", p.CatalogID)

	back, err := FieldFromPlacement(p, canvas, natural)
	require.NoError(t, err)
	assert.True(t, back.Rect.ApproxEqual(f.Rect, 1e-9))
	assert.Equal(t, f.Group, back.Group)
	assert.Equal(t, "start-date", back.CatalogID)
	assert.Equal(t, 3, back.Page)

	// Without a canvas the stored percentages are used.
	fromPercent, err := FieldFromPlacement(p, nil, nil)
	require.NoError(t, err)
	assert.True(t, fromPercent.Rect.ApproxEqual(f.Rect, 1e-4))

	_, err = FieldFromPlacement(Placement{ID: "x", Type: TypeText, Page: 1}, nil, nil)
	assert.Error(t, err)

	_, err = FieldFromPlacement(Placement{ID: "x", Type: "radio"}, canvas, natural)
	assert.ErrorIs(t, err, ErrInvalidFieldType)
}
