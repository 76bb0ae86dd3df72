package img

import (
	"context"
	"image"
	"strings"

	"github.com/tendant/simple-converter/internal/media"
)

// Decoder turns source bytes of one family into pixels. This lets the
// orchestrator treat raster images and PDF pages uniformly.
type Decoder interface {
	// Decode produces the pixels of the source
	Decode(ctx context.Context, data []byte, opts DecodeOptions) (image.Image, error)

	// Supports returns true if this decoder can handle the given MIME type
	Supports(mimeType string) bool

	// Name returns the decoder name for logging
	Name() string
}

// DecodeOptions applies to paged sources only.
type DecodeOptions struct {
	Page  int     // 1-based, default 1
	Scale float64 // render magnification, default 2.0
}

// GetDecoder routes a source media type to its decoder:
//   - Images: imaging / x/image/webp
//   - PDFs: the page rasterizer
func GetDecoder(mimeType string, pdf *PDFRasterizer) (Decoder, error) {
	mimeType = media.NormalizeMime(mimeType)

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return &ImageDecoder{}, nil

	case mimeType == media.MimePDF:
		if pdf == nil {
			return nil, media.Errorf(media.KindCapabilityUnavailable, nil, "pdf rasterizer not configured")
		}
		return pdf, nil

	default:
		return nil, media.Errorf(media.KindValidation, nil, "unsupported source type: %s (supported: image/*, application/pdf)", mimeType)
	}
}

// ImageDecoder decodes raster images.
type ImageDecoder struct{}

func (d *ImageDecoder) Decode(ctx context.Context, data []byte, _ DecodeOptions) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(data)
}

func (d *ImageDecoder) Supports(mimeType string) bool {
	return strings.HasPrefix(media.NormalizeMime(mimeType), "image/")
}

func (d *ImageDecoder) Name() string {
	return "image"
}
