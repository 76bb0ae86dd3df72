package img

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Surface is an in-memory RGBA drawing surface. Pages and images are drawn
// onto it before being encoded.
type Surface struct {
	canvas *image.NRGBA
}

// NewSurface allocates a transparent w×h surface.
func NewSurface(w, h int) *Surface {
	return &Surface{canvas: imaging.New(w, h, color.Transparent)}
}

func (s *Surface) Width() int  { return s.canvas.Bounds().Dx() }
func (s *Surface) Height() int { return s.canvas.Bounds().Dy() }

// Fill paints the whole surface with c, discarding what was drawn.
func (s *Surface) Fill(c color.Color) {
	s.canvas = imaging.New(s.Width(), s.Height(), c)
}

// Draw composites img over the surface at the origin. An image with a
// different size is stretched to the surface.
func (s *Surface) Draw(img image.Image) {
	b := img.Bounds()
	if b.Dx() != s.Width() || b.Dy() != s.Height() {
		img = imaging.Resize(img, s.Width(), s.Height(), imaging.Lanczos)
	}
	s.canvas = imaging.Overlay(s.canvas, img, image.Pt(0, 0), 1.0)
}

// Image exposes the surface pixels.
func (s *Surface) Image() *image.NRGBA { return s.canvas }

// Encode serializes the surface. JPEG output is flattened onto opaque white
// first since the format has no alpha channel.
func (s *Surface) Encode(mimeType string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, s.canvas, mimeType, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
