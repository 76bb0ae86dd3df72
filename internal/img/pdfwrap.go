package img

import (
	"bytes"
	"image"

	"github.com/phpdave11/gofpdf"

	"github.com/tendant/simple-converter/internal/media"
)

// WrapPDF places img on a single PDF page sized to the image, one point per
// pixel. Opaque images are embedded as JPEG at quality, others as PNG so the
// alpha channel survives.
func WrapPDF(img image.Image, quality float64) ([]byte, error) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	imageType, mimeType := "PNG", media.MimePNG
	if !HasAlpha(img) {
		imageType, mimeType = "JPG", media.MimeJPEG
	}
	raster, err := Encode(img, mimeType, quality)
	if err != nil {
		return nil, err
	}

	size := gofpdf.SizeType{Wd: w, Ht: h}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", size)

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: false}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(raster))
	pdf.ImageOptions("page", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, media.NewError(media.KindEncode, "write pdf", err)
	}
	return buf.Bytes(), nil
}
