package segment

import (
	"context"
	"image"

	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/img"
	"github.com/tendant/simple-converter/internal/media"
)

// Rembg segments through the external rembg model.
type Rembg struct {
	tool *converters.Rembg
}

// RembgLoader locates the rembg binary on first use.
func RembgLoader(bin, workDir string) Loader {
	return func(ctx context.Context) (Segmenter, error) {
		tool := converters.NewRembg(bin, workDir)
		if err := tool.EnsureLoaded(ctx); err != nil {
			return nil, err
		}
		return &Rembg{tool: tool}, nil
	}
}

func (r *Rembg) Name() string { return "rembg" }

func (r *Rembg) Segment(ctx context.Context, src image.Image) (image.Image, error) {
	in, err := img.Encode(src, media.MimePNG, 1)
	if err != nil {
		return nil, err
	}
	out, err := r.tool.Cutout(ctx, in)
	if err != nil {
		return nil, err
	}
	return img.Decode(out)
}
