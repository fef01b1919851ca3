package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/raster"
)

// PDFCPULoader loads documents with pdfcpu. Added content becomes pdfcpu
// stamps that are applied in one pass by Save.
type PDFCPULoader struct{}

// NewPDFCPULoader returns a loader.
func NewPDFCPULoader() *PDFCPULoader {
	return &PDFCPULoader{}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Load implements Loader.
func (l *PDFCPULoader) Load(data []byte) (Document, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, &DocumentError{Op: "load", Err: ErrNotPDF}
	}

	conf := newConfiguration()
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, &DocumentError{Op: "load", Err: fmt.Errorf("failed to read page dimensions: %w", err)}
	}
	if len(dims) == 0 {
		return nil, &DocumentError{Op: "load", Err: fmt.Errorf("document has no pages")}
	}

	return &pdfcpuDocument{
		data:   data,
		conf:   conf,
		dims:   dims,
		stamps: make(map[int][]*model.Watermark),
	}, nil
}

type pdfcpuDocument struct {
	data   []byte
	conf   *model.Configuration
	dims   []types.Dim
	images []image.Image
	stamps map[int][]*model.Watermark
}

func (d *pdfcpuDocument) PageCount() int {
	return len(d.dims)
}

func (d *pdfcpuDocument) PageSize(page int) (geometry.Size, error) {
	if err := checkPage(page, len(d.dims)); err != nil {
		return geometry.Size{}, err
	}
	dim := d.dims[page-1]
	return geometry.Size{Width: dim.Width, Height: dim.Height}, nil
}

func (d *pdfcpuDocument) EmbedImage(data []byte) (ImageRef, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, &DocumentError{Op: "embed image", Err: err}
	}
	if img.Bounds().Empty() {
		return 0, &DocumentError{Op: "embed image", Err: raster.ErrEmptyImage}
	}
	d.images = append(d.images, img)
	return ImageRef(len(d.images) - 1), nil
}

// DrawImage stamps an embedded image so that it covers rect exactly.
// pdfcpu keeps the aspect ratio of image stamps, so the image is first
// resampled to rect's aspect at no less than its own resolution.
func (d *pdfcpuDocument) DrawImage(page int, ref ImageRef, rect geometry.Rect) error {
	if err := checkPage(page, len(d.dims)); err != nil {
		return err
	}
	if int(ref) < 0 || int(ref) >= len(d.images) {
		return &DocumentError{Op: "draw image", Err: fmt.Errorf("unknown image %d", ref)}
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return &DocumentError{Op: "draw image", Err: fmt.Errorf("empty destination %v", rect)}
	}

	src := d.images[ref]
	pxW, pxH := stampPixels(src.Bounds(), rect)
	var buf bytes.Buffer
	if err := png.Encode(&buf, raster.Resample(src, pxW, pxH)); err != nil {
		return &DocumentError{Op: "draw image", Err: err}
	}

	desc := fmt.Sprintf(
		"position:bl, offset:%.2f %.2f, scalefactor:%.6f abs, rotation:0, opacity:1",
		rect.X, rect.Y, rect.Width/float64(pxW),
	)
	wm, err := api.ImageWatermarkForReader(&buf, desc, true, false, types.POINTS)
	if err != nil {
		return &DocumentError{Op: "draw image", Err: err}
	}
	d.stamps[page] = append(d.stamps[page], wm)
	return nil
}

// stampPixels picks the pixel size an image is resampled to before it is
// stamped into rect: rect's aspect ratio, at least one pixel per point,
// and never fewer pixels than the source along either axis.
func stampPixels(src image.Rectangle, rect geometry.Rect) (int, int) {
	density := math.Max(1, math.Max(
		float64(src.Dx())/rect.Width,
		float64(src.Dy())/rect.Height,
	))
	return max(1, int(math.Round(rect.Width*density))), max(1, int(math.Round(rect.Height*density)))
}

// DrawText stamps text with its bottom-left corner at rect's origin.
func (d *pdfcpuDocument) DrawText(page int, text string, rect geometry.Rect, style TextStyle) error {
	if err := checkPage(page, len(d.dims)); err != nil {
		return err
	}
	if style.Font == "" {
		style.Font = DefaultTextStyle.Font
	}
	if style.Size <= 0 {
		style.Size = DefaultTextStyle.Size
	}
	if style.Color == nil {
		style.Color = DefaultTextStyle.Color
	}

	desc := fmt.Sprintf(
		"fontname:%s, points:%d, fillcolor:%s, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, opacity:1",
		style.Font, int(math.Round(style.Size)), hexColor(style.Color), rect.X, rect.Y,
	)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return &DocumentError{Op: "draw text", Err: err}
	}
	d.stamps[page] = append(d.stamps[page], wm)
	return nil
}

// Save applies every stamp, page by page in call order. With nothing to
// apply it returns the original bytes.
func (d *pdfcpuDocument) Save() ([]byte, error) {
	if len(d.stamps) == 0 {
		return bytes.Clone(d.data), nil
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(d.data), &out, d.stamps, d.conf); err != nil {
		return nil, &DocumentError{Op: "save", Err: err}
	}
	return out.Bytes(), nil
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
