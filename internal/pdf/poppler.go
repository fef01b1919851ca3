package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// PopplerRasterizer renders pages with the pdftoppm command line tool.
type PopplerRasterizer struct {
	Binary string
}

// NewPopplerRasterizer returns a rasterizer running binary, or "pdftoppm"
// from PATH when binary is empty.
func NewPopplerRasterizer(binary string) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &PopplerRasterizer{Binary: binary}
}

// Rasterize implements Rasterizer.
func (p *PopplerRasterizer) Rasterize(ctx context.Context, data []byte, page, width, height int) (image.Image, error) {
	dir, err := os.MkdirTemp("", "pdf-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	outBase := filepath.Join(dir, "out")

	n := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, p.Binary,
		"-png", "-f", n, "-l", n,
		"-scale-to-x", strconv.Itoa(width),
		"-scale-to-y", strconv.Itoa(height),
		"-singlefile",
		input, outBase,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", p.Binary, err, bytes.TrimSpace(stderr.Bytes()))
	}

	out, err := os.ReadFile(outBase + ".png")
	if err != nil {
		return nil, fmt.Errorf("missing rasterizer output: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode rasterizer output: %w", err)
	}
	return img, nil
}
