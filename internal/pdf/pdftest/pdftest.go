// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// US Letter page size in points.
const (
	LetterWidth  = 612
	LetterHeight = 792
)

// Minimal returns a PDF with pages blank pages of width×height points.
func Minimal(pages int, width, height float64) []byte {
	sizes := make([][2]float64, pages)
	for i := range sizes {
		sizes[i] = [2]float64{width, height}
	}
	return WithSizes(sizes...)
}

// Letter returns a PDF with pages blank US Letter pages.
func Letter(pages int) []byte {
	return Minimal(pages, LetterWidth, LetterHeight)
}

// WithSizes returns a PDF with one blank page per {width, height} pair.
func WithSizes(sizes ...[2]float64) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	object := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := make([]string, len(sizes))
	for i := range sizes {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	object("<< /Type /Catalog /Pages 2 0 R >>")
	object(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(sizes)))

	const content = "q Q"
	for i, size := range sizes {
		object(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Contents %d 0 R /Resources << >> >>",
			size[0], size[1], 4+2*i,
		))
		object(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
