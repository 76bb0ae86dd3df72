// Package convert runs conversions and compressions against an explicitly
// owned pipeline context: create it, optionally warm up its heavy
// capabilities, use it, then close it.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/tendant/simple-converter/internal/config"
	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/img"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/segment"
)

// ErrClosed is returned by a pipeline after Close.
var ErrClosed = errors.New("pipeline is closed")

type Options struct {
	MaxSourceBytes int64
	DefaultPage    int
	DefaultScale   float64
	Quality        float64 // lossy conversion quality in (0,1]

	// WorkDir is the parent of the pipeline's scratch directory.
	WorkDir string

	// Renderer draws PDF pages; Poppler when nil.
	Renderer      converters.PageRenderer
	PdftoppmBin   string
	PdftocairoBin string

	// Segmenter loads the background removal backend; flood fill when nil.
	Segmenter segment.Loader
}

// OptionsFromConfig maps runtime configuration onto pipeline options.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		MaxSourceBytes: cfg.MaxSourceBytes,
		DefaultPage:    cfg.PDFPage,
		DefaultScale:   cfg.PDFScale,
		Quality:        cfg.Quality,
		WorkDir:        cfg.WorkDir,
		PdftoppmBin:    cfg.PdftoppmBin,
		PdftocairoBin:  cfg.PdftocairoBin,
	}
	switch cfg.Segmenter {
	case "rembg":
		opts.Segmenter = segment.RembgLoader(cfg.RembgBin, cfg.WorkDir)
	default:
		opts.Segmenter = segment.FloodFillLoader(cfg.SegmentTol)
	}
	return opts
}

// Pipeline owns the lazily loaded capabilities and the scratch directory
// used by external tools.
type Pipeline struct {
	opts    Options
	logger  *slog.Logger
	workDir string

	renderer converters.PageRenderer
	raster   *img.PDFRasterizer
	remover  *segment.Remover

	mu     sync.RWMutex
	closed bool
}

// New creates a pipeline. Nothing heavy is loaded until first use or Warmup.
func New(opts Options, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = media.DefaultMaxSourceBytes
	}
	if opts.DefaultPage <= 0 {
		opts.DefaultPage = img.DefaultPDFPage
	}
	if opts.DefaultScale <= 0 {
		opts.DefaultScale = img.DefaultPDFScale
	}
	if opts.Quality <= 0 || opts.Quality > 1 {
		opts.Quality = img.DefaultQuality
	}
	if opts.Segmenter == nil {
		opts.Segmenter = segment.FloodFillLoader(segment.DefaultTolerance)
	}

	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure work dir: %w", err)
		}
	}
	workDir, err := os.MkdirTemp(opts.WorkDir, "simple-converter-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = converters.NewPoppler(opts.PdftoppmBin, opts.PdftocairoBin, workDir)
	}

	p := &Pipeline{
		opts:     opts,
		logger:   logger,
		workDir:  workDir,
		renderer: renderer,
		raster:   img.NewPDFRasterizer(renderer, workDir),
		remover:  segment.NewRemover(opts.Segmenter, logger),
	}
	logger.Debug("pipeline created", "work_dir", workDir, "renderer", renderer.Name())
	return p, nil
}

// Capability reports whether an optional backend could be loaded.
type Capability struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Warmup loads the optional capabilities now instead of on first use.
// Failures are cached and reported, never fatal.
func (p *Pipeline) Warmup(ctx context.Context) []Capability {
	caps := []Capability{
		loadCapability(ctx, "pdf_rasterizer", p.raster.EnsureLoaded),
		loadCapability(ctx, "background_removal", p.remover.EnsureLoaded),
	}
	for _, c := range caps {
		if c.Available {
			p.logger.Info("capability ready", "capability", c.Name)
		} else {
			p.logger.Warn("capability unavailable", "capability", c.Name, "reason", c.Reason)
		}
	}
	return caps
}

func loadCapability(ctx context.Context, name string, ensure func(context.Context) error) Capability {
	if err := ensure(ctx); err != nil {
		return Capability{Name: name, Reason: err.Error()}
	}
	return Capability{Name: name, Available: true}
}

// Close removes the scratch directory. The pipeline is unusable afterwards.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := os.RemoveAll(p.workDir); err != nil {
		return fmt.Errorf("remove scratch dir: %w", err)
	}
	p.logger.Debug("pipeline closed", "work_dir", p.workDir)
	return nil
}

func (p *Pipeline) WorkDir() string { return p.workDir }

func (p *Pipeline) Options() Options { return p.opts }

func (p *Pipeline) acquire() (func(), error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	return p.mu.RUnlock, nil
}

// Probe reports metadata about a source file without converting it.
func (p *Pipeline) Probe(ctx context.Context, f media.File) (*converters.FileInfo, error) {
	release, err := p.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt := media.NormalizeMime(f.MimeType)
	if mt == media.MimePDF {
		return converters.ProbePDF(f.Data)
	}
	if !strings.HasPrefix(mt, "image/") {
		return nil, media.Errorf(media.KindValidation, nil, "cannot probe %s", f.MimeType)
	}

	cfg, _, err := img.DecodeConfig(f.Data)
	if err != nil {
		return nil, media.NewError(media.KindDecode, "read image header", err)
	}
	tags, err := img.MetadataTags(f.Data)
	if err != nil {
		p.logger.Debug("exif scan failed", "name", f.Name, "err", err)
	}
	return &converters.FileInfo{
		MimeType: mt,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     f.Size(),
		Tags:     tags,
	}, nil
}
