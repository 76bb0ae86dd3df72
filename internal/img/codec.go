// Package img is the raster codec: decoding source bytes to pixels, drawing
// them onto a Surface and encoding the result as JPEG, PNG, WebP or PDF.
package img

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	chaiwebp "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xwebp "golang.org/x/image/webp"

	"github.com/tendant/simple-converter/internal/media"
)

// DefaultQuality matches the browser default for lossy canvas encodes.
const DefaultQuality = 0.92

// Decode parses image bytes into pixels, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, media.NewError(media.KindDecode, "decode image", errors.New("input is empty"))
	}

	var (
		src image.Image
		err error
	)
	if media.Sniff(data) == media.KindWebP {
		src, err = xwebp.Decode(bytes.NewReader(data))
	} else {
		src, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, media.NewError(media.KindDecode, "decode image", err)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, media.Errorf(media.KindDecode, nil, "decode image: empty dimensions %dx%d", b.Dx(), b.Dy())
	}
	return src, nil
}

// DecodeConfig reads dimensions without decoding pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	if media.Sniff(data) == media.KindWebP {
		cfg, err := xwebp.DecodeConfig(bytes.NewReader(data))
		return cfg, "webp", err
	}
	return image.DecodeConfig(bytes.NewReader(data))
}

// Encode serializes img as mimeType at quality in (0,1]. Natural pixel
// dimensions are preserved.
func Encode(img image.Image, mimeType string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, img, mimeType, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTo(w io.Writer, img image.Image, mimeType string, quality float64) error {
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return media.Errorf(media.KindValidation, nil, "quality %.2f out of range (0,1]", quality)
	}

	var err error
	switch media.NormalizeMime(mimeType) {
	case media.MimeJPEG:
		flat := NewSurface(img.Bounds().Dx(), img.Bounds().Dy())
		flat.Fill(color.White)
		flat.Draw(img)
		err = imaging.Encode(w, flat.Image(), imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality)))
	case media.MimePNG:
		err = imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality)))
	case media.MimeWebP:
		err = chaiwebp.Encode(w, img, &chaiwebp.Options{Quality: float32(quality * 100)})
	default:
		return media.Errorf(media.KindUnsupportedFormat, nil, "cannot encode %q (supported: image/jpeg, image/png, image/webp)", mimeType)
	}
	if err != nil {
		return media.NewError(media.KindEncode, "encode "+mimeType, err)
	}
	return nil
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// pngLevel maps the lossy quality knob onto zlib effort: PNG is lossless, so
// lower quality asks for smaller files instead.
func pngLevel(q float64) png.CompressionLevel {
	if q < 0.8 {
		return png.BestCompression
	}
	return png.DefaultCompression
}

// Fit scales img down to fit within maxW×maxH. Smaller images are returned
// unchanged; a non-positive bound leaves that axis free.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if !Exceeds(b.Dx(), b.Dy(), maxW, maxH) {
		return img
	}
	if maxW <= 0 {
		maxW = b.Dx()
	}
	if maxH <= 0 {
		maxH = b.Dy()
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

// Exceeds reports whether a w×h image is larger than the bounds Fit would
// apply.
func Exceeds(w, h, maxW, maxH int) bool {
	return (maxW > 0 && w > maxW) || (maxH > 0 && h > maxH)
}

// HasAlpha reports whether any pixel is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}
