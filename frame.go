package opencva

import (
	"fmt"
	"image"
	"image/color"
)

// Layout describes how the pixels of a Frame are laid out in its buffer
type Layout int

const (
	// LayoutGray8 is a single 8-bit channel
	LayoutGray8 Layout = iota
	// LayoutBGR24 is three interleaved 8-bit channels in B,G,R order, as
	// decoded by OpenCV
	LayoutBGR24
	// LayoutRGB24 is three interleaved 8-bit channels in R,G,B order
	LayoutRGB24
	// LayoutYUYV is packed 4:2:2, two 8-bit channels per pixel with each
	// horizontal pixel pair stored as [Y0 U Y1 V]
	LayoutYUYV
	// LayoutUV is the half resolution interleaved [U V] chroma plane of a
	// semi-planar 4:2:0 image
	LayoutUV
	// LayoutGrayF32 is a single 32-bit float channel
	LayoutGrayF32
)

// String returns a readable name of the layout
func (l Layout) String() string {
	switch l {
	case LayoutGray8:
		return "gray8"
	case LayoutBGR24:
		return "bgr24"
	case LayoutRGB24:
		return "rgb24"
	case LayoutYUYV:
		return "yuyv"
	case LayoutUV:
		return "uv"
	case LayoutGrayF32:
		return "grayf32"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// BytesPerPixel returns the number of bytes a single pixel of the layout
// occupies
func (l Layout) BytesPerPixel() int {
	switch l {
	case LayoutGray8:
		return 1
	case LayoutYUYV, LayoutUV:
		return 2
	case LayoutBGR24, LayoutRGB24:
		return 3
	case LayoutGrayF32:
		return 4
	}

	return 0
}

// Channels returns the number of channels of the layout
func (l Layout) Channels() int {
	switch l {
	case LayoutGray8, LayoutGrayF32:
		return 1
	case LayoutYUYV, LayoutUV:
		return 2
	case LayoutBGR24, LayoutRGB24:
		return 3
	}

	return 0
}

// Shape is the dimensions and layout of a Frame without its pixel data
type Shape struct {
	Width  int
	Height int
	Layout Layout
}

// Size returns the buffer size in bytes needed to hold the shape
func (s Shape) Size() int {
	return s.Width * s.Height * s.Layout.BytesPerPixel()
}

// String returns the shape as WxH/layout
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d/%s", s.Width, s.Height, s.Layout)
}

// Frame is an image buffer.  The buffer length always matches the width,
// height and layout, which is enforced by NewFrame.  A Frame is treated as
// immutable once constructed.
type Frame struct {
	width  int
	height int
	layout Layout
	data   []byte
}

// NewFrame returns a Frame wrapping data.  The Frame takes ownership of data,
// the caller must not modify it afterwards.
func NewFrame(width, height int, layout Layout, data []byte) (Frame, error) {

	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrShape,
			width, height)
	}

	bpp := layout.BytesPerPixel()

	if bpp == 0 {
		return Frame{}, fmt.Errorf("%w: unknown layout %s", ErrShape, layout)
	}

	if len(data) != width*height*bpp {
		return Frame{}, fmt.Errorf("%w: buffer of %d bytes does not match %dx%d/%s, expected %d",
			ErrShape, len(data), width, height, layout, width*height*bpp)
	}

	return Frame{
		width:  width,
		height: height,
		layout: layout,
		data:   data,
	}, nil
}

// Width returns the width of the frame in pixels
func (f Frame) Width() int {
	return f.width
}

// Height returns the height of the frame in pixels
func (f Frame) Height() int {
	return f.height
}

// Layout returns the pixel layout of the frame
func (f Frame) Layout() Layout {
	return f.layout
}

// Shape returns the dimensions and layout of the frame
func (f Frame) Shape() Shape {
	return Shape{Width: f.width, Height: f.height, Layout: f.layout}
}

// Stride returns the number of bytes in one row
func (f Frame) Stride() int {
	return f.width * f.layout.BytesPerPixel()
}

// Data returns the underlying pixel buffer.  It must be treated as read only.
func (f Frame) Data() []byte {
	return f.data
}

// Empty reports if the frame holds no pixels
func (f Frame) Empty() bool {
	return len(f.data) == 0
}

// Image returns the frame as an image.Image for the 8-bit gray and three
// channel layouts
func (f Frame) Image() (image.Image, error) {

	switch f.layout {
	case LayoutGray8:
		img := image.NewGray(image.Rect(0, 0, f.width, f.height))
		copy(img.Pix, f.data)
		return img, nil

	case LayoutBGR24, LayoutRGB24:
		img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
		ri, bi := 0, 2

		if f.layout == LayoutBGR24 {
			ri, bi = 2, 0
		}

		for i, j := 0, 0; i < len(f.data); i, j = i+3, j+4 {
			img.Pix[j+0] = f.data[i+ri]
			img.Pix[j+1] = f.data[i+1]
			img.Pix[j+2] = f.data[i+bi]
			img.Pix[j+3] = 0xff
		}

		return img, nil
	}

	return nil, fmt.Errorf("%w: layout %s can not be represented as an image",
		ErrShape, f.layout)
}

// FrameFromImage converts img to a LayoutBGR24 Frame, dropping any alpha
// channel the same way OpenCV does when reading an image in color mode
func FrameFromImage(img image.Image) (Frame, error) {

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w <= 0 || h <= 0 {
		return Frame{}, fmt.Errorf("%w: image has no pixels", ErrShape)
	}

	data := make([]byte, w*h*3)
	i := 0

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data[i+0] = c.B
			data[i+1] = c.G
			data[i+2] = c.R
			i += 3
		}
	}

	return NewFrame(w, h, LayoutBGR24, data)
}

// PlanarFrame is a semi-planar 4:2:0 image made of a full resolution luma
// plane and a half resolution interleaved U/V chroma plane
type PlanarFrame struct {
	luma   Frame
	chroma Frame
}

// NewPlanarFrame returns a PlanarFrame from its two planes.  The luma plane
// must be LayoutGray8 with even dimensions and the chroma plane LayoutUV at
// half the width and height.
func NewPlanarFrame(luma, chroma Frame) (PlanarFrame, error) {

	if luma.layout != LayoutGray8 || chroma.layout != LayoutUV {
		return PlanarFrame{}, fmt.Errorf("%w: planes must be %s and %s, got %s and %s",
			ErrShape, LayoutGray8, LayoutUV, luma.layout, chroma.layout)
	}

	if luma.width%2 != 0 || luma.height%2 != 0 {
		return PlanarFrame{}, fmt.Errorf("%w: 4:2:0 luma plane %dx%d must have even dimensions",
			ErrShape, luma.width, luma.height)
	}

	if chroma.width != luma.width/2 || chroma.height != luma.height/2 {
		return PlanarFrame{}, fmt.Errorf("%w: chroma plane %dx%d does not match luma plane %dx%d",
			ErrShape, chroma.width, chroma.height, luma.width, luma.height)
	}

	return PlanarFrame{luma: luma, chroma: chroma}, nil
}

// Width returns the luma width
func (p PlanarFrame) Width() int {
	return p.luma.width
}

// Height returns the luma height
func (p PlanarFrame) Height() int {
	return p.luma.height
}

// Luma returns the full resolution Y plane
func (p PlanarFrame) Luma() Frame {
	return p.luma
}

// Chroma returns the half resolution interleaved U/V plane
func (p PlanarFrame) Chroma() Frame {
	return p.chroma
}

// Packed returns both planes in a single newly allocated NV12 buffer, the
// luma plane followed by the chroma plane, forming a LayoutGray8 frame of
// width x height*3/2 as OpenCV expects for single Mat two plane conversions
func (p PlanarFrame) Packed() Frame {

	buf := make([]byte, len(p.luma.data)+len(p.chroma.data))
	n := copy(buf, p.luma.data)
	copy(buf[n:], p.chroma.data)

	return Frame{
		width:  p.luma.width,
		height: p.luma.height * 3 / 2,
		layout: LayoutGray8,
		data:   buf,
	}
}
