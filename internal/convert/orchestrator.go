package convert

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/img"
	"github.com/tendant/simple-converter/internal/media"
)

// Request describes one conversion.
type Request struct {
	Source media.File
	Format string // jpg, png, webp, pdf or png-no-bg

	// PDF sources only. Zero values fall back to the pipeline defaults.
	Page  int
	Scale float64

	Quality   float64 // lossy targets only, pipeline default when zero
	MaxWidth  int
	MaxHeight int

	ItemID string
}

// Result is either an output file or a failure reason, never both.
type Result struct {
	Output *media.File
	Err    error
}

func (r Result) OK() bool { return r.Err == nil && r.Output != nil }

// Reason is the failure text, empty on success.
func (r Result) Reason() string { return Reason(r.Err) }

func failed(err error) Result { return Result{Err: err} }

// Convert converts req.Source to req.Format. Progress for req.ItemID is
// reported to obs and never decreases. Unknown formats and invalid sources
// fail before any progress is reported.
func (p *Pipeline) Convert(ctx context.Context, req Request, obs Observer) Result {
	start := time.Now()
	logger := p.logger.With("item_id", req.ItemID, "name", req.Source.Name, "format", req.Format)

	res := p.convert(ctx, req, obs)
	if res.Err != nil {
		logger.Warn("conversion failed", "err", res.Err, "kind", media.KindOf(res.Err), "elapsed", time.Since(start))
		return res
	}
	logger.Info("conversion complete",
		"output", res.Output.Name,
		"input_bytes", req.Source.Size(),
		"output_bytes", res.Output.Size(),
		"elapsed", time.Since(start))
	return res
}

func (p *Pipeline) convert(ctx context.Context, req Request, obs Observer) Result {
	format, err := media.ParseFormat(req.Format)
	if err != nil {
		return failed(err)
	}

	release, err := p.acquire()
	if err != nil {
		return failed(err)
	}
	defer release()

	src := req.Source
	src.MimeType = media.NormalizeMime(src.MimeType)
	if err := media.ValidateSource(src, p.opts.MaxSourceBytes); err != nil {
		return failed(err)
	}

	quality := req.Quality
	if quality == 0 {
		quality = p.opts.Quality
	}
	if quality < 0 || quality > 1 || math.IsNaN(quality) {
		return failed(media.Errorf(media.KindValidation, nil, "quality %.2f outside (0,1]", quality))
	}
	page := req.Page
	if page == 0 {
		page = p.opts.DefaultPage
	}
	if page < 0 {
		return failed(media.Errorf(media.KindValidation, nil, "page %d must be positive", page))
	}
	scale := req.Scale
	if scale <= 0 {
		scale = p.opts.DefaultScale
	}

	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	tr := NewTracker(req.ItemID, obs)

	if passthrough(src, format) && !p.needsFit(src, page, scale, req) {
		tr.Emit(StageDone, 100)
		return Result{Output: &media.File{
			Name:     media.ConvertedName(src, format),
			MimeType: src.MimeType,
			Data:     src.Data,
		}}
	}

	tr.Emit(StageDispatch, 10)
	dec, err := img.GetDecoder(src.MimeType, p.raster)
	if err != nil {
		return failed(err)
	}
	if src.MimeType == media.MimePDF {
		if err := p.raster.EnsureLoaded(ctx); err != nil {
			return failed(err)
		}
	}
	if format == media.FormatPNGNoBG {
		if err := p.remover.EnsureLoaded(ctx); err != nil {
			return failed(err)
		}
	}

	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	pixels, err := dec.Decode(ctx, src.Data, img.DecodeOptions{Page: page, Scale: scale})
	if err != nil {
		return failed(err)
	}
	tr.Emit(StageDecode, 30)

	pixels, err = p.transform(ctx, pixels, format, req)
	if err != nil {
		return failed(err)
	}
	tr.Emit(StageTransform, 55)

	if err := ctx.Err(); err != nil {
		return failed(err)
	}
	tr.Emit(StageEncode, 80)
	data, err := encodeTarget(pixels, format, quality)
	if err != nil {
		return failed(err)
	}
	tr.Emit(StageDone, 100)

	return Result{Output: &media.File{
		Name:     media.ConvertedName(src, format),
		MimeType: format.MimeType(),
		Data:     data,
	}}
}

func (p *Pipeline) transform(ctx context.Context, pixels image.Image, format media.Format, req Request) (image.Image, error) {
	if req.MaxWidth > 0 || req.MaxHeight > 0 {
		pixels = img.Fit(pixels, req.MaxWidth, req.MaxHeight)
	}
	if format != media.FormatPNGNoBG {
		return pixels, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.remover.Cutout(ctx, pixels)
}

func encodeTarget(pixels image.Image, format media.Format, quality float64) ([]byte, error) {
	switch format {
	case media.FormatPDF:
		return img.WrapPDF(pixels, quality)
	case media.FormatPNGNoBG:
		return img.Encode(pixels, media.MimePNG, 1)
	default:
		return img.Encode(pixels, format.MimeType(), quality)
	}
}

// needsFit reports whether the caller's size bounds would change the
// source, in which case it cannot be passed through untouched.
func (p *Pipeline) needsFit(src media.File, page int, scale float64, req Request) bool {
	if req.MaxWidth <= 0 && req.MaxHeight <= 0 {
		return false
	}
	if src.MimeType == media.MimePDF {
		doc, err := converters.OpenPDF(src.Data)
		if err != nil {
			return true
		}
		ptsW, ptsH, err := doc.PageSize(page)
		if err != nil {
			return true
		}
		w, h := math.Round(ptsW*scale), math.Round(ptsH*scale)
		return (req.MaxWidth > 0 && w > float64(req.MaxWidth)) || (req.MaxHeight > 0 && h > float64(req.MaxHeight))
	}
	cfg, _, err := img.DecodeConfig(src.Data)
	if err != nil {
		// let the decoder report it
		return true
	}
	return img.Exceeds(cfg.Width, cfg.Height, req.MaxWidth, req.MaxHeight)
}

// passthrough reports whether src is already in the target format. A
// png-no-bg target always needs processing.
func passthrough(src media.File, format media.Format) bool {
	if format == media.FormatPNGNoBG {
		return false
	}
	return src.MimeType == format.MimeType()
}
