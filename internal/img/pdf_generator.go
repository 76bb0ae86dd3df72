package img

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/media"
)

const (
	DefaultPDFPage  = 1
	DefaultPDFScale = 2.0

	// maxRenderPixels bounds the surface a page may be rendered to.
	maxRenderPixels = 64 << 20
)

// PDFRasterizer renders a single PDF page onto a Surface. It adapts a
// converters.PageRenderer to the Decoder interface.
type PDFRasterizer struct {
	renderer converters.PageRenderer
	workDir  string
}

// NewPDFRasterizer creates a rasterizer writing scratch files under workDir.
func NewPDFRasterizer(renderer converters.PageRenderer, workDir string) *PDFRasterizer {
	return &PDFRasterizer{renderer: renderer, workDir: workDir}
}

// EnsureLoaded locates the page renderer.
func (r *PDFRasterizer) EnsureLoaded(ctx context.Context) error {
	return r.renderer.EnsureLoaded(ctx)
}

// Decode implements Decoder.Decode for PDFs
func (r *PDFRasterizer) Decode(ctx context.Context, data []byte, opts DecodeOptions) (image.Image, error) {
	s, err := r.RenderSurface(ctx, data, opts.Page, opts.Scale)
	if err != nil {
		return nil, err
	}
	return s.Image(), nil
}

// RenderSurface renders only the requested page at its point size times
// scale. Page 0 means page 1 and a non-positive scale means 2.0.
func (r *PDFRasterizer) RenderSurface(ctx context.Context, data []byte, page int, scale float64) (*Surface, error) {
	if page == 0 {
		page = DefaultPDFPage
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = DefaultPDFScale
	}

	doc, err := converters.OpenPDF(data)
	if err != nil {
		return nil, err
	}
	ptsW, ptsH, err := doc.PageSize(page)
	if err != nil {
		return nil, err
	}

	w, h, err := renderSize(ptsW, ptsH, scale)
	if err != nil {
		return nil, media.Errorf(media.KindValidation, nil, "page %d at scale %g: %v", page, scale, err)
	}

	src, err := os.CreateTemp(r.workDir, "source-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create pdf scratch file: %w", err)
	}
	defer os.Remove(src.Name())
	if _, err := src.Write(data); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("write pdf scratch file: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("close pdf scratch file: %w", err)
	}

	rendered, err := r.renderer.RenderPage(ctx, src.Name(), page, w, h)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}

	surface := NewSurface(w, h)
	surface.Draw(rendered)
	return surface, nil
}

// renderSize converts a page size in points to pixels. The bound is
// checked in float64 so that huge scales cannot overflow into a small or
// negative size.
func renderSize(ptsW, ptsH, scale float64) (int, int, error) {
	fw := math.Max(1, math.Round(ptsW*scale))
	fh := math.Max(1, math.Round(ptsH*scale))
	if math.IsInf(fw, 0) || math.IsInf(fh, 0) || fw*fh > maxRenderPixels {
		return 0, 0, fmt.Errorf("%.0fx%.0f pixels is too large to render", fw, fh)
	}
	return int(fw), int(fh), nil
}

// Supports implements Decoder.Supports for PDFs
func (r *PDFRasterizer) Supports(mimeType string) bool {
	return media.NormalizeMime(mimeType) == media.MimePDF
}

// Name implements Decoder.Name
func (r *PDFRasterizer) Name() string {
	return "pdf"
}
