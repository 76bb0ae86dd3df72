// Package segment removes image backgrounds behind a narrow
// image-in, image-out interface. The segmentation backend is loaded on first
// use and a failed load disables the feature for the remover's lifetime.
package segment

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/media"
)

// Segmenter returns a copy of src where background pixels are transparent.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, src image.Image) (image.Image, error)
}

// Loader constructs a Segmenter; it may be slow.
type Loader func(ctx context.Context) (Segmenter, error)

// Remover is the lazily loaded background removal capability.
type Remover struct {
	seg    *converters.Lazy[Segmenter]
	logger *slog.Logger
}

func NewRemover(load Loader, logger *slog.Logger) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Remover{logger: logger}
	r.seg = converters.NewLazy("background removal", func(ctx context.Context) (Segmenter, error) {
		s, err := load(ctx)
		if err != nil {
			logger.Warn("background removal unavailable", "err", err)
			return nil, err
		}
		logger.Info("background removal loaded", "segmenter", s.Name())
		return s, nil
	})
	return r
}

// EnsureLoaded loads the segmenter if needed.
func (r *Remover) EnsureLoaded(ctx context.Context) error {
	_, err := r.seg.Get(ctx)
	return err
}

func (r *Remover) Loaded() bool { return r.seg.Loaded() }

// Cutout segments src without encoding.
func (r *Remover) Cutout(ctx context.Context, src image.Image) (image.Image, error) {
	seg, err := r.seg.Get(ctx)
	if err != nil {
		return nil, err
	}
	out, err := seg.Segment(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, media.NewError(media.KindEncode, fmt.Sprintf("remove background (%s)", seg.Name()), err)
	}
	return out, nil
}

// Static returns a Loader for an already constructed segmenter.
func Static(s Segmenter) Loader {
	return func(context.Context) (Segmenter, error) { return s, nil }
}
