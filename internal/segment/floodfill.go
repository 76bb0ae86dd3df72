package segment

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// DefaultTolerance is the RGB distance under which a pixel counts as
// background colour.
const DefaultTolerance = 40

// FloodFill is an in-process segmenter for product shots and scans: it
// estimates the background colour from the image border and clears every
// border-connected region close to it.
type FloodFill struct {
	Tolerance float64
}

// FloodFillLoader returns a Loader for the in-process segmenter.
func FloodFillLoader(tolerance float64) Loader {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Static(&FloodFill{Tolerance: tolerance})
}

func (f *FloodFill) Name() string { return "floodfill" }

func (f *FloodFill) Segment(ctx context.Context, src image.Image) (image.Image, error) {
	px := imaging.Clone(src)
	w, h := px.Bounds().Dx(), px.Bounds().Dy()
	if w == 0 || h == 0 {
		return px, nil
	}

	tol := f.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	bg := borderColor(px)

	background := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	visit := func(x, y int) {
		i := y*w + x
		if background[i] {
			return
		}
		if distance(px, x, y, bg) <= tol {
			background[i] = true
			queue = append(queue, i)
		}
	}

	for x := 0; x < w; x++ {
		visit(x, 0)
		visit(x, h-1)
	}
	for y := 0; y < h; y++ {
		visit(0, y)
		visit(w-1, y)
	}

	for n := 0; len(queue) > 0; n++ {
		if n%65536 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%w, i/w
		if x > 0 {
			visit(x-1, y)
		}
		if x < w-1 {
			visit(x+1, y)
		}
		if y > 0 {
			visit(x, y-1)
		}
		if y < h-1 {
			visit(x, y+1)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			a := px.PixOffset(x, y) + 3
			if background[i] {
				px.Pix[a] = 0
				continue
			}
			// soften the edge next to removed background
			if touchesBackground(background, w, h, x, y) {
				d := distance(px, x, y, bg)
				if d < 2*tol {
					px.Pix[a] = uint8(float64(px.Pix[a]) * (d - tol) / tol)
				}
			}
		}
	}
	return px, nil
}

// borderColor is the per-channel median of the border pixels.
func borderColor(px *image.NRGBA) [3]uint8 {
	w, h := px.Bounds().Dx(), px.Bounds().Dy()
	var ch [3][]int
	add := func(x, y int) {
		o := px.PixOffset(x, y)
		if px.Pix[o+3] == 0 {
			return
		}
		for c := 0; c < 3; c++ {
			ch[c] = append(ch[c], int(px.Pix[o+c]))
		}
	}
	for x := 0; x < w; x++ {
		add(x, 0)
		add(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		add(w-1, y)
	}

	var out [3]uint8
	for c := 0; c < 3; c++ {
		if len(ch[c]) == 0 {
			out = [3]uint8{255, 255, 255}
			break
		}
		sort.Ints(ch[c])
		out[c] = uint8(ch[c][len(ch[c])/2])
	}
	return out
}

// distance is the RGB distance to bg; transparent pixels are always
// background.
func distance(px *image.NRGBA, x, y int, bg [3]uint8) float64 {
	o := px.PixOffset(x, y)
	if px.Pix[o+3] == 0 {
		return 0
	}
	dr := float64(px.Pix[o]) - float64(bg[0])
	dg := float64(px.Pix[o+1]) - float64(bg[1])
	db := float64(px.Pix[o+2]) - float64(bg[2])
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func touchesBackground(background []bool, w, h, x, y int) bool {
	return (x > 0 && background[y*w+x-1]) ||
		(x < w-1 && background[y*w+x+1]) ||
		(y > 0 && background[(y-1)*w+x]) ||
		(y < h-1 && background[(y+1)*w+x])
}
