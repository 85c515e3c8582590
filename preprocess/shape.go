package preprocess

import (
	"fmt"
	"image"

	"github.com/swdee/go-opencva"
	"gocv.io/x/gocv"
)

// ReferenceSize is the FHD source size operation parameters were tuned for
var ReferenceSize = image.Pt(1920, 1080)

// Crop returns a copy of the region r of src
func Crop(src opencva.Frame, r image.Rectangle) (opencva.Frame, error) {

	bounds := image.Rect(0, 0, src.Width(), src.Height())

	if r.Empty() || !r.In(bounds) {
		return opencva.Frame{}, fmt.Errorf("%w: crop region %v outside of %dx%d frame",
			opencva.ErrShape, r, src.Width(), src.Height())
	}

	bpp := src.Layout().BytesPerPixel()
	stride := src.Stride()
	rowBytes := r.Dx() * bpp
	in := src.Data()
	out := make([]byte, rowBytes*r.Dy())

	for y := 0; y < r.Dy(); y++ {
		off := (r.Min.Y+y)*stride + r.Min.X*bpp
		copy(out[y*rowBytes:(y+1)*rowBytes], in[off:off+rowBytes])
	}

	return opencva.NewFrame(r.Dx(), r.Dy(), src.Layout(), out)
}

// ScaleRect maps a rectangle defined against ReferenceSize onto a frame of
// the given size, each side is at least one pixel
func ScaleRect(r image.Rectangle, size image.Point) image.Rectangle {

	if size == ReferenceSize {
		return r
	}

	sx := float64(size.X) / float64(ReferenceSize.X)
	sy := float64(size.Y) / float64(ReferenceSize.Y)

	x0 := int(float64(r.Min.X) * sx)
	y0 := int(float64(r.Min.Y) * sy)
	w := max(int(float64(r.Dx())*sx), 1)
	h := max(int(float64(r.Dy())*sy), 1)

	return image.Rect(x0, y0, x0+w, y0+h)
}

// Gray converts a three channel frame to a single channel 8-bit frame
func Gray(src opencva.Frame) (opencva.Frame, error) {

	var code gocv.ColorConversionCode = gocv.ColorBGRToGray

	switch src.Layout() {
	case opencva.LayoutGray8:
		return src, nil
	case opencva.LayoutBGR24:
	case opencva.LayoutRGB24:
		code = gocv.ColorRGBToGray
	default:
		return opencva.Frame{}, fmt.Errorf("%w: can not convert %s to gray",
			opencva.ErrShape, src.Layout())
	}

	return withMat(src, func(m gocv.Mat, dst *gocv.Mat) {
		gocv.CvtColor(m, dst, code)
	})
}

// PyrDown blurs and halves src with a gaussian pyramid step
func PyrDown(src opencva.Frame) (opencva.Frame, error) {
	return withMat(src, func(m gocv.Mat, dst *gocv.Mat) {
		gocv.PyrDown(m, dst, image.Pt((m.Cols()+1)/2, (m.Rows()+1)/2), gocv.BorderDefault)
	})
}

// withMat runs fn over src converted to a Mat and returns the destination as
// a Frame, keeping the layout of src when the destination has the same
// channels
func withMat(src opencva.Frame, fn func(m gocv.Mat, dst *gocv.Mat)) (opencva.Frame, error) {

	m, err := src.ToMat()

	if err != nil {
		return opencva.Frame{}, err
	}

	defer m.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	fn(m, &dst)

	return opencva.FrameFromMatAs(dst, src.Layout())
}
