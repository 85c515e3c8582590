package preprocess

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/swdee/go-opencva"
)

// BT.601 coefficients used to derive luma and chroma from RGB
const (
	yR, yG, yB = 0.299, 0.587, 0.114
	uR, uG, uB = -0.169, -0.331, 0.500
	vR, vG, vB = 0.500, -0.419, -0.081
	chromaBias = 128.0
)

// minParallelRows is the frame height below which conversion runs on the
// calling goroutine only
const minParallelRows = 64

// Converter converts interleaved RGB frames into the packed and semi-planar
// YUV layouts consumed by the accelerator's colour conversion units
type Converter struct {
	// Workers is the number of goroutines rows are split across, zero uses
	// runtime.NumCPU() and one converts serially
	Workers int
}

// PackYUYV converts src to packed 4:2:2 using a Converter with default
// workers
func PackYUYV(src opencva.Frame) (opencva.Frame, error) {
	return Converter{}.PackYUYV(src)
}

// PackNV12 converts src to semi-planar 4:2:0 using a Converter with default
// workers
func PackNV12(src opencva.Frame) (opencva.PlanarFrame, error) {
	return Converter{}.PackNV12(src)
}

// saturate rounds v to the nearest integer and clamps it to [0,255]
func saturate(v float64) uint8 {

	if v > 255 {
		return 255
	}

	if v < 0 {
		return 0
	}

	return uint8(math.Round(v))
}

func luma(r, g, b float64) uint8 {
	return saturate(yR*r + yG*g + yB*b)
}

func chroma(r, g, b float64) (uint8, uint8) {
	u := uR*r + uG*g + uB*b + chromaBias
	v := vR*r + vG*g + vB*b + chromaBias
	return saturate(u), saturate(v)
}

// channelOffsets returns the byte offsets of R, G and B within a pixel of an
// interleaved three channel frame
func channelOffsets(src opencva.Frame) (ri, gi, bi int, err error) {

	switch src.Layout() {
	case opencva.LayoutRGB24:
		return 0, 1, 2, nil
	case opencva.LayoutBGR24:
		return 2, 1, 0, nil
	}

	return 0, 0, 0, fmt.Errorf("%w: colour conversion requires %s or %s input, got %s",
		opencva.ErrShape, opencva.LayoutRGB24, opencva.LayoutBGR24, src.Layout())
}

// PackYUYV converts src to packed 4:2:2.  Each horizontal pixel pair gets its
// own two luma samples and a single U,V pair computed from the mean of the
// two pixels, stored as [Y0 U Y1 V].  The source width must be even.
func (c Converter) PackYUYV(src opencva.Frame) (opencva.Frame, error) {

	ri, gi, bi, err := channelOffsets(src)

	if err != nil {
		return opencva.Frame{}, err
	}

	w, h := src.Width(), src.Height()

	if src.Empty() || w%2 != 0 {
		return opencva.Frame{}, fmt.Errorf("%w: packed 4:2:2 requires an even width, got %dx%d",
			opencva.ErrShape, w, h)
	}

	in := src.Data()
	out := make([]byte, w*h*2)
	inStride := src.Stride()
	outStride := w * 2

	c.rows(h, 1, func(y int) {
		srow := in[y*inStride : (y+1)*inStride]
		drow := out[y*outStride : (y+1)*outStride]

		for x := 0; x < w; x += 2 {
			p0 := srow[x*3 : x*3+3]
			p1 := srow[x*3+3 : x*3+6]

			r0, g0, b0 := float64(p0[ri]), float64(p0[gi]), float64(p0[bi])
			r1, g1, b1 := float64(p1[ri]), float64(p1[gi]), float64(p1[bi])

			u, v := chroma((r0+r1)/2, (g0+g1)/2, (b0+b1)/2)

			d := drow[x*2 : x*2+4]
			d[0] = luma(r0, g0, b0)
			d[1] = u
			d[2] = luma(r1, g1, b1)
			d[3] = v
		}
	})

	return opencva.NewFrame(w, h, opencva.LayoutYUYV, out)
}

// PackNV12 converts src to semi-planar 4:2:0.  Every pixel keeps its own luma
// sample in the full resolution plane and each 2x2 block shares a single U,V
// pair computed from the mean of its four pixels, written once to the half
// resolution chroma plane.  The source width and height must be even.
func (c Converter) PackNV12(src opencva.Frame) (opencva.PlanarFrame, error) {

	ri, gi, bi, err := channelOffsets(src)

	if err != nil {
		return opencva.PlanarFrame{}, err
	}

	w, h := src.Width(), src.Height()

	if src.Empty() || w%2 != 0 || h%2 != 0 {
		return opencva.PlanarFrame{}, fmt.Errorf("%w: semi-planar 4:2:0 requires even dimensions, got %dx%d",
			opencva.ErrShape, w, h)
	}

	in := src.Data()
	yPlane := make([]byte, w*h)
	uvPlane := make([]byte, (w/2)*(h/2)*2)
	stride := src.Stride()

	// work on row pairs, each pair writes two luma rows and one chroma row
	c.rows(h/2, 2, func(by int) {
		y := by * 2
		top := in[y*stride : (y+1)*stride]
		bot := in[(y+1)*stride : (y+2)*stride]
		yTop := yPlane[y*w : (y+1)*w]
		yBot := yPlane[(y+1)*w : (y+2)*w]
		uvRow := uvPlane[by*w : (by+1)*w]

		for x := 0; x < w; x += 2 {
			p00 := top[x*3 : x*3+3]
			p01 := top[x*3+3 : x*3+6]
			p10 := bot[x*3 : x*3+3]
			p11 := bot[x*3+3 : x*3+6]

			yTop[x] = luma(float64(p00[ri]), float64(p00[gi]), float64(p00[bi]))
			yTop[x+1] = luma(float64(p01[ri]), float64(p01[gi]), float64(p01[bi]))
			yBot[x] = luma(float64(p10[ri]), float64(p10[gi]), float64(p10[bi]))
			yBot[x+1] = luma(float64(p11[ri]), float64(p11[gi]), float64(p11[bi]))

			r := float64(int(p00[ri])+int(p01[ri])+int(p10[ri])+int(p11[ri])) / 4
			g := float64(int(p00[gi])+int(p01[gi])+int(p10[gi])+int(p11[gi])) / 4
			b := float64(int(p00[bi])+int(p01[bi])+int(p10[bi])+int(p11[bi])) / 4

			uvRow[x], uvRow[x+1] = chroma(r, g, b)
		}
	})

	lumaFrame, err := opencva.NewFrame(w, h, opencva.LayoutGray8, yPlane)

	if err != nil {
		return opencva.PlanarFrame{}, err
	}

	chromaFrame, err := opencva.NewFrame(w/2, h/2, opencva.LayoutUV, uvPlane)

	if err != nil {
		return opencva.PlanarFrame{}, err
	}

	return opencva.NewPlanarFrame(lumaFrame, chromaFrame)
}

// rows calls fn for each row index in [0,n).  Rows are split into contiguous
// bands across the configured workers, fn must only write to the output rows
// belonging to its index.  rowHeight is the number of source rows each index
// covers and is used to decide if the frame is worth splitting.
func (c Converter) rows(n, rowHeight int, fn func(row int)) {

	workers := c.Workers

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > n {
		workers = n
	}

	if workers <= 1 || n*rowHeight < minParallelRows {
		for y := 0; y < n; y++ {
			fn(y)
		}

		return
	}

	band := (n + workers - 1) / workers
	var wg sync.WaitGroup

	for start := 0; start < n; start += band {
		end := start + band

		if end > n {
			end = n
		}

		wg.Add(1)

		go func(start, end int) {
			defer wg.Done()

			for y := start; y < end; y++ {
				fn(y)
			}
		}(start, end)
	}

	wg.Wait()
}
