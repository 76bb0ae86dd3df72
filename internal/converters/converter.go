// Package converters wraps the heavy external capabilities of the pipeline:
// PDF page rendering, PDF inspection and background segmentation tools.
// Each one is located lazily on first use.
package converters

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/tendant/simple-converter/internal/media"
)

// PageRenderer renders exactly one page of a PDF file to pixels.
type PageRenderer interface {
	// Name returns the renderer name for logging (e.g. "pdftoppm").
	Name() string

	// EnsureLoaded locates the renderer; failures are cached.
	EnsureLoaded(ctx context.Context) error

	// RenderPage renders the 1-based page of the PDF at pdfPath scaled to
	// exactly width×height pixels.
	RenderPage(ctx context.Context, pdfPath string, page, width, height int) (image.Image, error)
}

// FileInfo contains metadata about a source file.
type FileInfo struct {
	MimeType string // detected media type
	Width    int    // pixels for images, points for PDF page 1
	Height   int    // pixels for images, points for PDF page 1
	Pages    int    // PDF page count
	Size     int64  // bytes
	Tags     int    // EXIF tags
}

// Lazy loads a value on first use and caches the outcome for its lifetime.
// Context cancellation during a load is not cached.
type Lazy[T any] struct {
	name string
	load func(ctx context.Context) (T, error)

	mu     sync.Mutex
	done   bool
	val    T
	err    error
	loaded bool
}

// NewLazy returns a loader for the named capability.
func NewLazy[T any](name string, load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, load: load}
}

// Get loads on first call. A load failure is reported as a
// capability-unavailable error on this and every later call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.done {
		v, err := l.load(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			var zero T
			return zero, err
		}
		l.val, l.err, l.done = v, err, true
		l.loaded = err == nil
	}
	if l.err != nil {
		var zero T
		return zero, media.NewError(media.KindCapabilityUnavailable, l.name+" unavailable", l.err)
	}
	return l.val, nil
}

// Loaded reports whether a load has succeeded.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *Lazy[T]) Name() string { return l.name }
