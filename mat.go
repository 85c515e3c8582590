package opencva

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MatType returns the gocv Mat type used to hold a frame of the layout
func (l Layout) MatType() (gocv.MatType, error) {

	switch l {
	case LayoutGray8:
		return gocv.MatTypeCV8UC1, nil
	case LayoutBGR24, LayoutRGB24:
		return gocv.MatTypeCV8UC3, nil
	case LayoutYUYV, LayoutUV:
		return gocv.MatTypeCV8UC2, nil
	case LayoutGrayF32:
		return gocv.MatTypeCV32FC1, nil
	}

	return 0, fmt.Errorf("%w: layout %s has no Mat type", ErrShape, l)
}

// ToMat copies the frame into a newly allocated continuous gocv.Mat.  The
// caller must Close the returned Mat.
func (f Frame) ToMat() (gocv.Mat, error) {

	mt, err := f.layout.MatType()

	if err != nil {
		return gocv.NewMat(), err
	}

	tmp, err := gocv.NewMatFromBytes(f.height, f.width, mt, f.data)

	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: creating Mat from %s frame: %v",
			ErrShape, f.Shape(), err)
	}

	defer tmp.Close()

	// clone so the Mat owns its memory and does not reference the Go buffer
	return tmp.Clone(), nil
}

// FrameFromMat copies the pixels of m into a Frame.  Three channel Mats are
// treated as BGR and two channel Mats as packed YUYV, following OpenCV
// conventions.
func FrameFromMat(m gocv.Mat) (Frame, error) {
	return FrameFromMatAs(m, LayoutBGR24)
}

// FrameFromMatAs copies the pixels of m into a Frame labelled with hint when
// hint is held in the Mat's type, such as RGB24 for a three channel Mat.
// Otherwise the layout follows FrameFromMat.
func FrameFromMatAs(m gocv.Mat, hint Layout) (Frame, error) {

	if m.Empty() {
		return Frame{}, fmt.Errorf("%w: Mat is empty", ErrShape)
	}

	var layout Layout

	switch m.Type() {
	case gocv.MatTypeCV8UC1:
		layout = LayoutGray8
	case gocv.MatTypeCV8UC2:
		layout = LayoutYUYV
	case gocv.MatTypeCV8UC3:
		layout = LayoutBGR24
	case gocv.MatTypeCV32FC1:
		layout = LayoutGrayF32
	default:
		return Frame{}, fmt.Errorf("%w: unsupported Mat type %v", ErrShape, m.Type())
	}

	if mt, err := hint.MatType(); err == nil && mt == m.Type() {
		layout = hint
	}

	if !m.IsContinuous() {
		m = m.Clone()
		defer m.Close()
	}

	return NewFrame(m.Cols(), m.Rows(), layout, m.ToBytes())
}
