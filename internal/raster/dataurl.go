package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
)

// ErrInvalidDataURL is returned for values that are not base64 image data
// URLs.
var ErrInvalidDataURL = errors.New("invalid image data url")

// DecodeDataURL decodes a data:image/png or data:image/jpeg base64 URL.
func DecodeDataURL(s string) (image.Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mime, ok := strings.CutSuffix(strings.ToLower(meta), ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
	}

	var img image.Image
	switch mime {
	case "image/png":
		img, err = png.Decode(bytes.NewReader(raw))
	case "image/jpeg", "image/jpg":
		img, err = jpeg.Decode(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidDataURL, mime)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime, err)
	}
	return img, nil
}

// EncodeDataURL renders img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
