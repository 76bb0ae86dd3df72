package convert

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/phpdave11/gofpdf"

	"github.com/tendant/simple-converter/internal/converters"
	"github.com/tendant/simple-converter/internal/img"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/segment"
)

func TestConvertRasterTargets(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := media.NewFile("photo.png", "", encodePNG(t, gradient(64, 32), png.DefaultCompression))

	tests := []struct {
		format   string
		wantMime string
		wantName string
	}{
		{"jpg", media.MimeJPEG, "photo_converted.jpg"},
		{"jpeg", media.MimeJPEG, "photo_converted.jpg"},
		{"webp", media.MimeWebP, "photo_converted.webp"},
		{"pdf", media.MimePDF, "photo_converted.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := &recorder{}
			res := p.Convert(context.Background(), Request{Source: src, Format: tt.format, ItemID: "item-1"}, rec)
			if !res.OK() {
				t.Fatalf("convert failed: %v", res.Err)
			}
			if res.Output.Name != tt.wantName {
				t.Errorf("name = %s, want %s", res.Output.Name, tt.wantName)
			}
			if res.Output.MimeType != tt.wantMime {
				t.Errorf("mime = %s, want %s", res.Output.MimeType, tt.wantMime)
			}
			if got := media.Sniff(res.Output.Data).MimeType(); got != tt.wantMime {
				t.Errorf("output sniffs as %s, want %s", got, tt.wantMime)
			}

			rec.assertMonotonic(t)
			want := []int{10, 30, 55, 80, 100}
			if got := rec.percents(); !equalInts(got, want) {
				t.Errorf("progress = %v, want %v", got, want)
			}
			for _, e := range rec.snapshot() {
				if e.ItemID != "item-1" {
					t.Errorf("event for %q, want item-1", e.ItemID)
				}
			}

			if tt.wantMime == media.MimePDF {
				info, err := converters.ProbePDF(res.Output.Data)
				if err != nil {
					t.Fatalf("inspect output: %v", err)
				}
				if info.Pages != 1 || info.Width != 64 || info.Height != 32 {
					t.Errorf("pdf = %d pages %dx%d, want 1 page 64x32", info.Pages, info.Width, info.Height)
				}
				return
			}
			out, err := img.Decode(res.Output.Data)
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if b := out.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
				t.Errorf("output is %dx%d, want 64x32", b.Dx(), b.Dy())
			}
		})
	}
}

func TestConvertPassthroughIsByteIdentical(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	data := encodeJPEG(t, gradient(40, 40), 90)
	src := media.NewFile("scan.jpeg", "", data)

	rec := &recorder{}
	res := p.Convert(context.Background(), Request{Source: src, Format: "jpg"}, rec)
	if !res.OK() {
		t.Fatalf("convert failed: %v", res.Err)
	}
	if !bytes.Equal(res.Output.Data, data) {
		t.Fatal("passthrough changed the bytes")
	}
	if res.Output.Name != "scan_converted.jpg" {
		t.Errorf("name = %s", res.Output.Name)
	}
	if got := rec.percents(); !equalInts(got, []int{100}) {
		t.Errorf("progress = %v, want a single 100", got)
	}
}

func TestConvertSameFormatHonoursSizeBounds(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	data := encodePNG(t, gradient(200, 100), png.DefaultCompression)
	src := media.NewFile("banner.png", "", data)

	tests := []struct {
		name        string
		maxW, maxH  int
		wantW       int
		wantH       int
		passthrough bool
	}{
		{"width bound", 50, 0, 50, 25, false},
		{"height bound", 0, 20, 40, 20, false},
		{"bounds already met", 400, 400, 200, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			res := p.Convert(context.Background(), Request{Source: src, Format: "png", MaxWidth: tt.maxW, MaxHeight: tt.maxH}, rec)
			if !res.OK() {
				t.Fatalf("convert failed: %v", res.Err)
			}
			if got := bytes.Equal(res.Output.Data, data); got != tt.passthrough {
				t.Fatalf("passthrough = %v, want %v", got, tt.passthrough)
			}
			out, err := img.Decode(res.Output.Data)
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if b := out.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("output is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			rec.assertMonotonic(t)
		})
	}
}

func TestConvertPDFToPDFWithSizeBounds(t *testing.T) {
	renderer := &fakeRenderer{}
	p, _ := newTestPipeline(t, func(o *Options) { o.Renderer = renderer })
	data := buildPDF(t, 1, 100, 100)

	res := p.Convert(context.Background(), Request{Source: media.NewFile("doc.pdf", "", data), Format: "pdf", MaxWidth: 50}, nil)
	if !res.OK() {
		t.Fatalf("convert failed: %v", res.Err)
	}
	if bytes.Equal(res.Output.Data, data) || renderer.calls != 1 {
		t.Fatalf("bounded pdf was passed through (renderer calls %d)", renderer.calls)
	}
	if media.Sniff(res.Output.Data) != media.KindPDF {
		t.Fatal("output is not a pdf")
	}
}

func TestConvertRejectsBeforeProgress(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	good := media.NewFile("a.png", "", encodePNG(t, gradient(8, 8), png.DefaultCompression))

	tests := []struct {
		name     string
		src      media.File
		format   string
		wantKind media.ErrorKind
	}{
		{"unknown format", good, "bmp", media.KindUnsupportedFormat},
		{"empty format", good, "", media.KindUnsupportedFormat},
		{"empty source", media.File{Name: "empty.png", MimeType: media.MimePNG}, "jpg", media.KindValidation},
		{"gif source", media.File{Name: "a.gif", MimeType: "image/gif", Data: []byte("GIF89a")}, "png", media.KindValidation},
		{"oversize source", media.File{Name: "big.png", MimeType: media.MimePNG, Data: make([]byte, 2048)}, "jpg", media.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			small := p
			if tt.name == "oversize source" {
				small, _ = newTestPipeline(t, func(o *Options) { o.MaxSourceBytes = 1024 })
			}
			res := small.Convert(context.Background(), Request{Source: tt.src, Format: tt.format}, rec)
			if res.OK() {
				t.Fatal("expected failure")
			}
			if kind := media.KindOf(res.Err); kind != tt.wantKind {
				t.Errorf("kind = %s, want %s (%v)", kind, tt.wantKind, res.Err)
			}
			if res.Reason() == "" {
				t.Error("failure has no reason")
			}
			if n := len(rec.snapshot()); n != 0 {
				t.Errorf("got %d progress events, want none", n)
			}
		})
	}
}

func TestConvertDecodeFailure(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := media.File{Name: "broken.png", MimeType: media.MimePNG, Data: []byte("not really a png")}

	res := p.Convert(context.Background(), Request{Source: src, Format: "jpg"}, nil)
	if !media.IsKind(res.Err, media.KindDecode) {
		t.Fatalf("expected decode error, got %v", res.Err)
	}
}

func TestConvertPDFSource(t *testing.T) {
	renderer := &fakeRenderer{}
	p, _ := newTestPipeline(t, func(o *Options) { o.Renderer = renderer })
	src := media.NewFile("report.pdf", "", buildPDF(t, 3, 200, 100))

	res := p.Convert(context.Background(), Request{Source: src, Format: "png"}, nil)
	if !res.OK() {
		t.Fatalf("convert failed: %v", res.Err)
	}
	if renderer.page != 1 {
		t.Errorf("rendered page %d, want default page 1", renderer.page)
	}
	out, err := img.Decode(res.Output.Data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 400 || b.Dy() != 200 {
		t.Errorf("output is %dx%d, want 400x200", b.Dx(), b.Dy())
	}
	if res.Output.Name != "report_converted.png" {
		t.Errorf("name = %s", res.Output.Name)
	}

	res = p.Convert(context.Background(), Request{Source: src, Format: "jpg", Page: 2, Scale: 1}, nil)
	if !res.OK() {
		t.Fatalf("convert page 2: %v", res.Err)
	}
	if renderer.page != 2 || renderer.width != 200 || renderer.height != 100 {
		t.Errorf("rendered page %d at %dx%d, want page 2 at 200x100", renderer.page, renderer.width, renderer.height)
	}

	res = p.Convert(context.Background(), Request{Source: src, Format: "png", Page: 9}, nil)
	if !media.IsKind(res.Err, media.KindValidation) {
		t.Errorf("page out of range: got %v, want validation error", res.Err)
	}
}

func TestConvertPDFToPDFPassthrough(t *testing.T) {
	renderer := &fakeRenderer{}
	p, _ := newTestPipeline(t, func(o *Options) { o.Renderer = renderer })
	data := buildPDF(t, 1, 100, 100)

	res := p.Convert(context.Background(), Request{Source: media.NewFile("doc.pdf", "", data), Format: "pdf"}, nil)
	if !res.OK() || !bytes.Equal(res.Output.Data, data) {
		t.Fatalf("pdf passthrough failed: %v", res.Err)
	}
	if renderer.calls != 0 {
		t.Errorf("renderer called %d times for passthrough", renderer.calls)
	}
}

func TestConvertRemovesBackground(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := media.NewFile("product.png", "", encodePNG(t, subjectOnBackground(40, 40), png.DefaultCompression))

	rec := &recorder{}
	res := p.Convert(context.Background(), Request{Source: src, Format: "png-no-bg"}, rec)
	if !res.OK() {
		t.Fatalf("convert failed: %v", res.Err)
	}
	if res.Output.Name != "product_converted.png" || res.Output.MimeType != media.MimePNG {
		t.Errorf("output = %s (%s)", res.Output.Name, res.Output.MimeType)
	}
	out, err := img.Decode(res.Output.Data)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if _, _, _, a := out.At(0, 0).RGBA(); a != 0 {
		t.Errorf("corner alpha = %d, want transparent", a)
	}
	if _, _, _, a := out.At(20, 20).RGBA(); a == 0 {
		t.Error("subject was removed")
	}
	rec.assertMonotonic(t)
}

func TestConvertBackgroundRemovalUnavailable(t *testing.T) {
	loads := 0
	p, _ := newTestPipeline(t, func(o *Options) {
		o.Segmenter = func(context.Context) (segment.Segmenter, error) {
			loads++
			return nil, errors.New("model not installed")
		}
	})
	src := media.NewFile("a.png", "", encodePNG(t, gradient(8, 8), png.DefaultCompression))

	for i := 0; i < 2; i++ {
		res := p.Convert(context.Background(), Request{Source: src, Format: "png-no-bg"}, nil)
		if !media.IsKind(res.Err, media.KindCapabilityUnavailable) {
			t.Fatalf("attempt %d: got %v, want capability unavailable", i, res.Err)
		}
	}
	if loads != 1 {
		t.Errorf("loader ran %d times, want 1", loads)
	}

	// other formats keep working
	if res := p.Convert(context.Background(), Request{Source: src, Format: "jpg"}, nil); !res.OK() {
		t.Fatalf("jpg conversion failed: %v", res.Err)
	}
}

func TestConvertCanceled(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := media.NewFile("a.png", "", encodePNG(t, gradient(8, 8), png.DefaultCompression))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Convert(ctx, Request{Source: src, Format: "jpg"}, nil)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", res.Err)
	}
	if res.Reason() != "canceled" {
		t.Errorf("reason = %q", res.Reason())
	}
}

func TestCompressPNG(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	data := encodePNG(t, gradient(64, 64), png.NoCompression)
	src := media.NewFile("chart.png", "", data)

	rec := &recorder{}
	c, err := p.Compress(context.Background(), src, "item-7", rec)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if c.Output.Name != "chart_compressed.png" || c.Output.MimeType != media.MimePNG {
		t.Errorf("output = %s (%s)", c.Output.Name, c.Output.MimeType)
	}
	if c.Attempts != 1 || c.Quality != InitialQuality {
		t.Errorf("attempts=%d quality=%.2f, want one attempt at %.2f", c.Attempts, c.Quality, InitialQuality)
	}
	if c.OriginalSize != int64(len(data)) || c.CompressedSize >= c.OriginalSize {
		t.Errorf("sizes: original=%d compressed=%d", c.OriginalSize, c.CompressedSize)
	}
	if c.SavingsPercent() <= 10 {
		t.Errorf("savings = %.1f%%", c.SavingsPercent())
	}
	if got := rec.percents(); !equalInts(got, []int{20, 60, 100}) {
		t.Errorf("progress = %v", got)
	}
}

func TestCompressJPEGKeepsExtension(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := media.NewFile("holiday.JPG", "", encodeJPEG(t, gradient(128, 128), 100))

	c, err := p.Compress(context.Background(), src, "", nil)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if c.Output.Name != "holiday_compressed.JPG" {
		t.Errorf("name = %s", c.Output.Name)
	}
	if c.Output.MimeType != media.MimeJPEG {
		t.Errorf("mime = %s", c.Output.MimeType)
	}
	if c.CompressedSize >= c.OriginalSize {
		t.Errorf("compressed %d >= original %d", c.CompressedSize, c.OriginalSize)
	}
}

func TestCompressRetriesWhenSavingsAreSmall(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	// already encoded at the first attempt's settings
	data := encodePNG(t, gradient(96, 96), png.DefaultCompression)
	src := media.NewFile("flat.png", "", data)

	rec := &recorder{}
	c, err := p.Compress(context.Background(), src, "", rec)

	sawRetry := false
	for _, e := range rec.snapshot() {
		if e.Stage == StageRetry {
			sawRetry = true
		}
	}
	if !sawRetry {
		t.Fatalf("no retry reported, events %v", rec.snapshot())
	}
	rec.assertMonotonic(t)

	if err != nil {
		if !media.IsKind(err, media.KindEncode) {
			t.Fatalf("unexpected error kind: %v", err)
		}
		return
	}
	if c.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", c.Attempts)
	}
	if c.CompressedSize >= c.OriginalSize {
		t.Errorf("returned a file that is not smaller: %d >= %d", c.CompressedSize, c.OriginalSize)
	}
}

func TestCompressNeverGrowsFile(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	var buf bytes.Buffer
	pal := image.NewPaletted(image.Rect(0, 0, 1, 1), color.Palette{color.Black, color.White})
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	src := media.NewFile("dot.gif", "", buf.Bytes())

	_, err := p.Compress(context.Background(), src, "", nil)
	if !media.IsKind(err, media.KindEncode) {
		t.Fatalf("got %v, want encode error for an output larger than the source", err)
	}
}

func TestCompressRejectsNonImages(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	_, err := p.Compress(context.Background(), media.NewFile("doc.pdf", "", buildPDF(t, 1, 50, 50)), "", nil)
	if !media.IsKind(err, media.KindValidation) {
		t.Fatalf("pdf: got %v, want validation error", err)
	}

	_, err = p.Compress(context.Background(), media.File{Name: "zero.jpg", MimeType: media.MimeJPEG}, "", nil)
	if !media.IsKind(err, media.KindDecode) {
		t.Fatalf("empty jpeg: got %v, want decode error", err)
	}
}

func TestPipelineLifecycle(t *testing.T) {
	p, _ := newTestPipeline(t, func(o *Options) {
		o.Renderer = &fakeRenderer{}
		o.Segmenter = func(context.Context) (segment.Segmenter, error) {
			return nil, errors.New("no model")
		}
	})

	if _, err := os.Stat(p.WorkDir()); err != nil {
		t.Fatalf("scratch dir missing: %v", err)
	}

	caps := p.Warmup(context.Background())
	got := map[string]bool{}
	for _, c := range caps {
		got[c.Name] = c.Available
	}
	if !got["pdf_rasterizer"] || got["background_removal"] {
		t.Errorf("capabilities = %+v", caps)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(p.WorkDir()); !os.IsNotExist(err) {
		t.Errorf("scratch dir still present after close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	src := media.NewFile("a.png", "", encodePNG(t, gradient(4, 4), png.DefaultCompression))
	if res := p.Convert(context.Background(), Request{Source: src, Format: "jpg"}, nil); !errors.Is(res.Err, ErrClosed) {
		t.Errorf("convert after close: %v", res.Err)
	}
	if _, err := p.Compress(context.Background(), src, "", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("compress after close: %v", err)
	}
}

func TestWarmupLogsEachCapabilityOnce(t *testing.T) {
	var logs bytes.Buffer
	p, err := New(Options{
		WorkDir:  t.TempDir(),
		Renderer: &fakeRenderer{},
		Segmenter: func(context.Context) (segment.Segmenter, error) {
			return nil, errors.New("no model")
		},
	}, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	defer p.Close()

	p.Warmup(context.Background())

	tests := []struct {
		line string
		want int
	}{
		{"capability=pdf_rasterizer", 1},
		{"capability=background_removal", 1},
		{`msg="capability ready"`, 1},
		{`msg="capability unavailable"`, 1},
	}
	for _, tt := range tests {
		if got := bytes.Count(logs.Bytes(), []byte(tt.line)); got != tt.want {
			t.Errorf("%s logged %d times, want %d\n%s", tt.line, got, tt.want, logs.String())
		}
	}
}

func TestProbe(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	info, err := p.Probe(context.Background(), media.NewFile("a.png", "", encodePNG(t, gradient(30, 20), png.DefaultCompression)))
	if err != nil {
		t.Fatalf("inspect png: %v", err)
	}
	if info.Width != 30 || info.Height != 20 || info.MimeType != media.MimePNG {
		t.Errorf("png info = %+v", info)
	}

	info, err = p.Probe(context.Background(), media.NewFile("b.pdf", "", buildPDF(t, 2, 300, 200)))
	if err != nil {
		t.Fatalf("inspect pdf: %v", err)
	}
	if info.Pages != 2 {
		t.Errorf("pages = %d, want 2", info.Pages)
	}
}

func TestTrackerDropsRegressions(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker("x", rec)
	tr.Emit(StageDispatch, 10)
	tr.Emit(StageDecode, 5)
	tr.Emit(StageDecode, 10)
	tr.Emit(StageEncode, 140)

	if got := rec.percents(); !equalInts(got, []int{10, 100}) {
		t.Fatalf("progress = %v, want [10 100]", got)
	}
	if tr.Last() != 100 {
		t.Errorf("last = %d", tr.Last())
	}
}

func newTestPipeline(t *testing.T, tweak func(*Options)) (*Pipeline, Options) {
	t.Helper()

	opts := Options{
		WorkDir:  t.TempDir(),
		Renderer: &fakeRenderer{},
	}
	if tweak != nil {
		tweak(&opts)
	}
	p, err := New(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, opts
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnProgress(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) percents() []int {
	var out []int
	for _, e := range r.snapshot() {
		out = append(out, e.Percent)
	}
	return out
}

func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	last := -1
	for _, e := range r.snapshot() {
		if e.Percent < last {
			t.Fatalf("progress went backwards: %v", r.percents())
		}
		last = e.Percent
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeRenderer struct {
	mu     sync.Mutex
	calls  int
	page   int
	width  int
	height int
}

func (f *fakeRenderer) Name() string { return "fake" }

func (f *fakeRenderer) EnsureLoaded(context.Context) error { return nil }

func (f *fakeRenderer) RenderPage(ctx context.Context, pdfPath string, page, width, height int) (image.Image, error) {
	f.mu.Lock()
	f.calls++
	f.page, f.width, f.height = page, width, height
	f.mu.Unlock()
	return imaging.New(width, height, color.White), nil
}

func gradient(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return m
}

func subjectOnBackground(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 250, G: 250, B: 250, A: 255}
			if x > w/4 && x < 3*w/4 && y > h/4 && y < 3*h/4 {
				c = color.NRGBA{R: 30, G: 20, B: 120, A: 255}
			}
			m.SetNRGBA(x, y, c)
		}
	}
	return m
}

func encodePNG(t *testing.T, m image.Image, level png.CompressionLevel) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, m); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, m image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, m, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func buildPDF(t *testing.T, pages int, w, h float64) []byte {
	t.Helper()
	size := gofpdf.SizeType{Wd: w, Ht: h}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	for i := 0; i < pages; i++ {
		pdf.AddPageFormat("P", size)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	return buf.Bytes()
}
