package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-opencva"
	"gocv.io/x/gocv"
)

// Resizer normalises source images to the benchmark frame size before the
// operation inputs are built
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// letterbox keeps the source aspect ratio and pads the remainder
	letterbox bool
	// pad is the colour used for letterbox padding
	pad color.RGBA
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a Resizer that stretches a srcWidth x srcHeight image
// to destWidth x destHeight
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int) *Resizer {
	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r
}

// NewLetterBoxResizer returns a Resizer that scales the source to fit within
// destWidth x destHeight whilst keeping its aspect ratio, padding the borders
// with the pad colour
func NewLetterBoxResizer(srcWidth, srcHeight, destWidth, destHeight int, pad color.RGBA) *Resizer {
	r := NewResizer(srcWidth, srcHeight, destWidth, destHeight)
	r.letterbox = true
	r.pad = pad
	return r
}

// preCalc the scaling factors for source and destination sizes
func (r *Resizer) preCalc() {

	r.resizeW = r.destWidth
	r.resizeH = r.destHeight

	scaleW := float32(r.destWidth) / float32(r.srcWidth)
	scaleH := float32(r.destHeight) / float32(r.srcHeight)
	r.scale = scaleH

	if scaleW < scaleH {
		r.scale = scaleW
		r.resizeH = int(float32(r.srcHeight) * r.scale)
	} else {
		r.resizeW = int(float32(r.srcWidth) * r.scale)
	}

	r.yPad = (r.destHeight - r.resizeH) / 2 // padding height / 2
	r.xPad = (r.destWidth - r.resizeW) / 2  // padding width / 2
}

// Resize scales src to the destination size.  The frame is returned as is
// when it already has the destination size.
func (r *Resizer) Resize(src opencva.Frame) (opencva.Frame, error) {

	if src.Width() != r.srcWidth || src.Height() != r.srcHeight {
		return opencva.Frame{}, fmt.Errorf("%w: resizer built for %dx%d, got %dx%d",
			opencva.ErrShape, r.srcWidth, r.srcHeight, src.Width(), src.Height())
	}

	if r.srcWidth == r.destWidth && r.srcHeight == r.destHeight {
		return src, nil
	}

	return withMat(src, func(m gocv.Mat, dst *gocv.Mat) {

		if !r.letterbox {
			gocv.Resize(m, dst, image.Pt(r.destWidth, r.destHeight),
				0, 0, gocv.InterpolationArea)
			return
		}

		tmp := gocv.NewMat()
		defer tmp.Close()

		gocv.Resize(m, &tmp, image.Pt(r.resizeW, r.resizeH),
			0, 0, gocv.InterpolationArea)

		gocv.CopyMakeBorder(tmp, dst, r.yPad, r.destHeight-r.resizeH-r.yPad,
			r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, r.pad)
	})
}

// Normalize resizes src to size, a zero size returns src unchanged
func Normalize(src opencva.Frame, size image.Point, letterbox bool) (opencva.Frame, error) {

	if size.X <= 0 || size.Y <= 0 {
		return src, nil
	}

	var r *Resizer

	if letterbox {
		r = NewLetterBoxResizer(src.Width(), src.Height(), size.X, size.Y,
			color.RGBA{A: 255})
	} else {
		r = NewResizer(src.Width(), src.Height(), size.X, size.Y)
	}

	return r.Resize(src)
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}
