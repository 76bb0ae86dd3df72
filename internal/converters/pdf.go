package converters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/tendant/simple-converter/internal/media"
)

// Poppler renders PDF pages with pdftoppm, falling back to pdftocairo.
type Poppler struct {
	workDir string
	tools   *Lazy[popplerTools]
}

type popplerTools struct {
	pdftoppm   string
	pdftocairo string
}

// NewPoppler creates a renderer using the given binaries (names or paths).
// Rendered pages are written to a scratch directory under workDir.
func NewPoppler(pdftoppmBin, pdftocairoBin, workDir string) *Poppler {
	if pdftoppmBin == "" {
		pdftoppmBin = "pdftoppm"
	}
	if pdftocairoBin == "" {
		pdftocairoBin = "pdftocairo"
	}
	return &Poppler{
		workDir: workDir,
		tools: NewLazy("pdf renderer", func(ctx context.Context) (popplerTools, error) {
			var t popplerTools
			if p, err := exec.LookPath(pdftoppmBin); err == nil {
				t.pdftoppm = p
			}
			if p, err := exec.LookPath(pdftocairoBin); err == nil {
				t.pdftocairo = p
			}
			if t.pdftoppm == "" && t.pdftocairo == "" {
				return t, fmt.Errorf("neither %s nor %s found in PATH (install poppler-utils)", pdftoppmBin, pdftocairoBin)
			}
			return t, nil
		}),
	}
}

func (p *Poppler) Name() string { return "poppler" }

func (p *Poppler) EnsureLoaded(ctx context.Context) error {
	_, err := p.tools.Get(ctx)
	return err
}

// RenderPage renders one page to a PNG in a scratch directory and decodes it.
func (p *Poppler) RenderPage(ctx context.Context, pdfPath string, page, width, height int) (image.Image, error) {
	tools, err := p.tools.Get(ctx)
	if err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp(p.workDir, "render-")
	if err != nil {
		return nil, fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	// -singlefile: no page number suffix on the output name
	// -scale-to-x/-y: exact output size in pixels
	args := []string{
		"-png",
		"-singlefile",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-scale-to-x", strconv.Itoa(width),
		"-scale-to-y", strconv.Itoa(height),
		pdfPath,
		filepath.Join(outDir, "page"),
	}

	var errs []error
	for _, bin := range []string{tools.pdftoppm, tools.pdftocairo} {
		if bin == "" {
			continue
		}
		out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s failed: %w\nOutput: %s", filepath.Base(bin), err, string(out)))
			continue
		}
		rendered, err := imaging.Open(filepath.Join(outDir, "page.png"))
		if err != nil {
			errs = append(errs, fmt.Errorf("load %s output: %w", filepath.Base(bin), err))
			continue
		}
		return rendered, nil
	}
	return nil, media.NewError(media.KindDecode, fmt.Sprintf("render page %d", page), errors.Join(errs...))
}

var disableConfigDir sync.Once

// PDFDocument is a parsed PDF used for page counts and page geometry.
type PDFDocument struct {
	ctx *model.Context
}

// OpenPDF parses data with relaxed validation. Unparseable input is a
// decode error.
func OpenPDF(data []byte) (doc *PDFDocument, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	// pdfcpu can panic on malformed cross-reference data.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, media.Errorf(media.KindDecode, nil, "parse pdf: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, media.NewError(media.KindDecode, "parse pdf", errors.New("input is empty"))
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, media.NewError(media.KindDecode, "parse pdf", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, media.NewError(media.KindDecode, "count pdf pages", err)
	}
	if ctx.PageCount < 1 {
		return nil, media.NewError(media.KindDecode, "parse pdf", errors.New("document has no pages"))
	}
	return &PDFDocument{ctx: ctx}, nil
}

func (d *PDFDocument) PageCount() int { return d.ctx.PageCount }

// CheckPage validates a 1-based page number against the page count.
func (d *PDFDocument) CheckPage(page int) error {
	if page < 1 || page > d.ctx.PageCount {
		return media.Errorf(media.KindValidation, nil, "page %d out of range (1-%d)", page, d.ctx.PageCount)
	}
	return nil
}

// PageSize returns the page's displayed size in points: MediaBox from the
// page, else inherited, else US Letter, swapped for 90° rotations.
// Rotate follows the same page-then-inherited lookup.
func (d *PDFDocument) PageSize(page int) (w, h float64, err error) {
	if err := d.CheckPage(page); err != nil {
		return 0, 0, err
	}

	pageDict, _, inhPAttrs, err := d.ctx.PageDict(page, false)
	if err != nil {
		return 0, 0, media.NewError(media.KindDecode, fmt.Sprintf("read page %d", page), err)
	}
	if pageDict == nil {
		return 0, 0, media.Errorf(media.KindDecode, nil, "read page %d: page dictionary missing", page)
	}

	var mediaBox *types.Rectangle
	if obj, found := pageDict.Find("MediaBox"); found {
		if arr, err := d.ctx.DereferenceArray(obj); err == nil && len(arr) == 4 {
			mediaBox = types.RectForArray(arr)
		}
	}
	if mediaBox == nil && inhPAttrs != nil && inhPAttrs.MediaBox != nil {
		mediaBox = inhPAttrs.MediaBox
	}
	if mediaBox == nil {
		mediaBox = types.NewRectangle(0, 0, 612, 792)
	}

	w, h = mediaBox.Width(), mediaBox.Height()
	if quarterTurn(pageRotation(pageDict, inhPAttrs)) {
		w, h = h, w
	}
	if w <= 0 || h <= 0 {
		return 0, 0, media.Errorf(media.KindDecode, nil, "page %d has an empty media box", page)
	}
	return w, h, nil
}

// pageRotation returns the page's own Rotate entry, falling back to the
// value inherited from the page tree.
func pageRotation(pageDict types.Dict, inh *model.InheritedPageAttrs) int {
	if rot := pageDict.IntEntry("Rotate"); rot != nil {
		return *rot
	}
	if inh != nil {
		return inh.Rotate
	}
	return 0
}

func quarterTurn(rot int) bool {
	return ((rot%360)+360)%180 == 90
}

// ProbePDF reports the page count and the size of page 1 in points.
func ProbePDF(data []byte) (*FileInfo, error) {
	doc, err := OpenPDF(data)
	if err != nil {
		return nil, err
	}
	w, h, err := doc.PageSize(1)
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		MimeType: media.MimePDF,
		Width:    int(w + 0.5),
		Height:   int(h + 0.5),
		Pages:    doc.PageCount(),
		Size:     int64(len(data)),
	}, nil
}
