package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Validator checks uploaded base documents before they are stored.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator that rejects documents larger than
// maxFileSize bytes.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateBytes checks that data is a readable PDF within the size limit
// and returns its page count.
func (v *Validator) ValidateBytes(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("document is empty")
	}
	if int64(len(data)) > v.maxFileSize {
		return 0, fmt.Errorf("document too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return 0, ErrNotPDF
	}
	return pageCount(data)
}

// ValidateFile runs ValidateBytes on the file at path.
func (v *Validator) ValidateFile(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("path cannot be empty")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return 0, fmt.Errorf("%w: %s", ErrNotPDF, path)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return 0, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() > v.maxFileSize {
		return 0, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("cannot read file: %w", err)
	}
	return v.ValidateBytes(data)
}

// pageCount opens data with ledongthuc/pdf, which panics on some malformed
// inputs.
func pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: parser panic: %v", ErrNotPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotPDF, err)
	}
	n = reader.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("%w: document has no pages", ErrNotPDF)
	}
	return n, nil
}
