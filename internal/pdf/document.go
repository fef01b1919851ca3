// Package pdf wraps the PDF engines the server depends on: loading and
// stamping documents, validating uploads, and rasterizing pages for the
// authoring canvas.
package pdf

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
)

var (
	// ErrInvalidPage is returned for page numbers outside the document.
	ErrInvalidPage = errors.New("invalid page number")
	// ErrNotPDF is returned for data that does not look like a PDF.
	ErrNotPDF = errors.New("not a PDF document")
)

// DocumentError reports a failure inside a PDF engine.
type DocumentError struct {
	Op  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("pdf %s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// ImageRef identifies an image embedded with Document.EmbedImage.
type ImageRef int

// TextStyle controls native text drawing.
type TextStyle struct {
	Font  string
	Size  float64
	Color color.Color
}

// DefaultTextStyle is 12pt black Helvetica.
var DefaultTextStyle = TextStyle{Font: "Helvetica", Size: 12, Color: color.Black}

// Document is a loaded PDF that content can be added to. Rectangles are
// in PDF page space: points, origin at the bottom-left corner.
//
// A Document is not safe for concurrent use.
type Document interface {
	PageCount() int
	PageSize(page int) (geometry.Size, error)
	EmbedImage(png []byte) (ImageRef, error)
	DrawImage(page int, ref ImageRef, rect geometry.Rect) error
	DrawText(page int, text string, rect geometry.Rect, style TextStyle) error
	Save() ([]byte, error)
}

// Loader opens documents from raw bytes.
type Loader interface {
	Load(data []byte) (Document, error)
}

func checkPage(page, count int) error {
	if page < 1 || page > count {
		return fmt.Errorf("%w: %d (document has %d pages)", ErrInvalidPage, page, count)
	}
	return nil
}
