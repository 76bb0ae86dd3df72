package convert

import (
	"context"
	"strings"
	"time"

	"github.com/tendant/simple-converter/internal/img"
	"github.com/tendant/simple-converter/internal/media"
)

const (
	InitialQuality = 0.85
	RetryQuality   = 0.75

	// A retry only happens while the current quality is above this floor.
	qualityFloor = 0.6
	// Output must be at least this much smaller to skip the retry.
	targetReduction = 0.10
)

// Compression is the outcome of a successful compression.
type Compression struct {
	Output              media.File
	Quality             float64
	Attempts            int
	OriginalSize        int64
	CompressedSize      int64
	MetadataTagsRemoved int
}

func (c *Compression) SavedBytes() int64 { return c.OriginalSize - c.CompressedSize }

// SavingsPercent is the size reduction relative to the original.
func (c *Compression) SavingsPercent() float64 {
	if c.OriginalSize == 0 {
		return 0
	}
	return float64(c.SavedBytes()) / float64(c.OriginalSize) * 100
}

// Compress re-encodes an image at quality 0.85 and retries once at 0.75 when
// the first attempt did not save at least 10%. PNG stays PNG, every other
// image type becomes JPEG. Re-encoding drops embedded metadata. An output
// that is not smaller than the source is an error.
func (p *Pipeline) Compress(ctx context.Context, src media.File, itemID string, obs Observer) (*Compression, error) {
	start := time.Now()
	logger := p.logger.With("item_id", itemID, "name", src.Name)

	c, err := p.compress(ctx, src, itemID, obs)
	if err != nil {
		logger.Warn("compression failed", "err", err, "kind", media.KindOf(err), "elapsed", time.Since(start))
		return nil, err
	}
	logger.Info("compression complete",
		"output", c.Output.Name,
		"quality", c.Quality,
		"attempts", c.Attempts,
		"original_bytes", c.OriginalSize,
		"compressed_bytes", c.CompressedSize,
		"tags_removed", c.MetadataTagsRemoved,
		"elapsed", time.Since(start))
	return c, nil
}

func (p *Pipeline) compress(ctx context.Context, src media.File, itemID string, obs Observer) (*Compression, error) {
	release, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	mt := media.NormalizeMime(src.MimeType)
	if !strings.HasPrefix(mt, "image/") {
		return nil, media.Errorf(media.KindValidation, nil, "%s: %q is not an image", src.Name, src.MimeType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tr := NewTracker(itemID, obs)
	pixels, err := img.Decode(src.Data)
	if err != nil {
		return nil, err
	}
	tr.Emit(StageDecode, 20)

	target := media.MimeJPEG
	if mt == media.MimePNG {
		target = media.MimePNG
	}

	tags, err := img.MetadataTags(src.Data)
	if err != nil {
		p.logger.Debug("exif scan failed", "item_id", itemID, "err", err)
	}

	original := src.Size()
	quality := InitialQuality
	best, err := img.Encode(pixels, target, quality)
	if err != nil {
		return nil, err
	}
	attempts := 1
	tr.Emit(StageEncode, 60)

	if !meetsTarget(int64(len(best)), original) && quality > qualityFloor {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		retry, err := img.Encode(pixels, target, RetryQuality)
		if err != nil {
			return nil, err
		}
		attempts++
		tr.Emit(StageRetry, 80)
		if len(retry) < len(best) {
			best, quality = retry, RetryQuality
		}
	}

	if int64(len(best)) >= original {
		return nil, media.Errorf(media.KindEncode, nil,
			"compressed output (%d bytes) is not smaller than the original (%d bytes)", len(best), original)
	}
	tr.Emit(StageDone, 100)

	return &Compression{
		Output: media.File{
			Name:     media.CompressedName(src),
			MimeType: target,
			Data:     best,
		},
		Quality:             quality,
		Attempts:            attempts,
		OriginalSize:        original,
		CompressedSize:      int64(len(best)),
		MetadataTagsRemoved: tags,
	}, nil
}

// meetsTarget reports whether size is at least targetReduction below original.
func meetsTarget(size, original int64) bool {
	return float64(size) <= float64(original)*(1-targetReduction)
}
