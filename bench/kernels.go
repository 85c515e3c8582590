package bench

import (
	"fmt"
	"image"

	"github.com/swdee/go-opencva"
	"github.com/swdee/go-opencva/render"
	"gocv.io/x/gocv"
)

// MatFunc runs an OpenCV operation.  src holds the primary input followed by
// the template if one was given, params holds the Mats built by the kernel's
// parameter constructor.
type MatFunc func(src []gocv.Mat, params []gocv.Mat, dst *gocv.Mat)

// MatKernel is a Kernel backed by gocv
type MatKernel struct {
	// Params builds the constant Mats the operation needs, such as
	// structuring elements or transform matrices.  May be nil.
	Params func() ([]gocv.Mat, error)
	// Call performs the operation
	Call MatFunc
}

// NewMatKernel returns a MatKernel without parameter Mats
func NewMatKernel(call MatFunc) MatKernel {
	return MatKernel{Call: call}
}

// Bind copies the input frames into Mats and allocates the destination Mat
// for the given output shape
func (k MatKernel) Bind(in Input, out opencva.Shape) (Invocation, error) {

	if k.Call == nil {
		return nil, fmt.Errorf("%w: kernel has no call", opencva.ErrKernel)
	}

	frames := make([]opencva.Frame, 0, 2)

	if in.IsPlanar() {
		frames = append(frames, in.Planar.Packed())
	} else {
		frames = append(frames, in.Frame)
	}

	if !in.Template.Empty() {
		frames = append(frames, in.Template)
	}

	inv := &matInvocation{
		call:  k.Call,
		shape: out,
	}

	for _, f := range frames {
		m, err := f.ToMat()

		if err != nil {
			inv.Close()
			return nil, fmt.Errorf("%w: binding input: %w", opencva.ErrKernel, err)
		}

		inv.src = append(inv.src, m)
	}

	if k.Params != nil {
		params, err := k.Params()

		if err != nil {
			inv.Close()
			return nil, fmt.Errorf("%w: building parameters: %w", opencva.ErrKernel, err)
		}

		inv.params = params
	}

	mt, err := out.Layout.MatType()

	if err != nil {
		inv.Close()
		return nil, fmt.Errorf("%w: output: %w", opencva.ErrKernel, err)
	}

	inv.dst = gocv.NewMatWithSize(out.Height, out.Width, mt)
	inv.hasDst = true

	return inv, nil
}

// matInvocation is a MatKernel bound to its Mats
type matInvocation struct {
	call   MatFunc
	shape  opencva.Shape
	src    []gocv.Mat
	params []gocv.Mat
	dst    gocv.Mat
	hasDst bool
	closed bool
}

// Run executes the kernel once
func (m *matInvocation) Run() (err error) {

	if m.closed {
		return fmt.Errorf("%w: invocation is closed", opencva.ErrKernel)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", opencva.ErrKernel, r)
		}
	}()

	m.call(m.src, m.params, &m.dst)

	if m.dst.Empty() {
		return fmt.Errorf("%w: kernel produced no output", opencva.ErrKernel)
	}

	return nil
}

// Output copies the destination Mat into a Frame
func (m *matInvocation) Output() (opencva.Frame, error) {

	if m.closed {
		return opencva.Frame{}, fmt.Errorf("%w: invocation is closed", opencva.ErrKernel)
	}

	out, err := opencva.FrameFromMatAs(m.dst, m.shape.Layout)

	if err != nil {
		return opencva.Frame{}, fmt.Errorf("%w: reading output: %w", opencva.ErrKernel, err)
	}

	return out, nil
}

// Close releases all Mats held by the invocation
func (m *matInvocation) Close() error {

	if m.closed {
		return nil
	}

	m.closed = true

	for _, s := range m.src {
		s.Close()
	}

	for _, p := range m.params {
		p.Close()
	}

	if m.hasDst {
		m.dst.Close()
	}

	return nil
}

// matFromRows builds a CV64F Mat from row values
func matFromRows(rows [][]float64) gocv.Mat {

	m := gocv.NewMatWithSize(len(rows), len(rows[0]), gocv.MatTypeCV64F)

	for r, row := range rows {
		for c, v := range row {
			m.SetDoubleAt(r, c, v)
		}
	}

	return m
}

// float32FromRows builds a CV32F Mat from row values
func float32FromRows(rows [][]float32) gocv.Mat {

	m := gocv.NewMatWithSize(len(rows), len(rows[0]), gocv.MatTypeCV32F)

	for r, row := range rows {
		for c, v := range row {
			m.SetFloatAt(r, c, v)
		}
	}

	return m
}

// rectElement returns a params constructor for a square rectangular
// structuring element
func rectElement(size int) func() ([]gocv.Mat, error) {
	return func() ([]gocv.Mat, error) {
		return []gocv.Mat{
			gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
		}, nil
	}
}

// constMats returns a params constructor building a single Mat
func constMats(fn func() gocv.Mat) func() ([]gocv.Mat, error) {
	return func() ([]gocv.Mat, error) {
		return []gocv.Mat{fn()}, nil
	}
}

// markMatch outlines the search region on a copy of src and draws a
// labelled template sized box at the best SQDIFF match, the minimum of the
// score map
func markMatch(src opencva.Frame, in Input, scores opencva.Frame) (opencva.Frame, error) {

	if scores.Layout() != opencva.LayoutGrayF32 {
		return opencva.Frame{}, fmt.Errorf("%w: score map is %s", opencva.ErrShape, scores.Layout())
	}

	sm, err := scores.ToMat()

	if err != nil {
		return opencva.Frame{}, err
	}

	defer sm.Close()

	minVal, _, minLoc, _ := gocv.MinMaxLoc(sm)

	canvas, err := src.ToMat()

	if err != nil {
		return opencva.Frame{}, err
	}

	defer canvas.Close()

	region := image.Rectangle{Min: in.Origin, Max: in.Origin.Add(image.Pt(in.Frame.Width(), in.Frame.Height()))}
	pt := minLoc.Add(in.Origin)
	box := image.Rectangle{Min: pt, Max: pt.Add(image.Pt(in.Template.Width(), in.Template.Height()))}

	render.Region(&canvas, region, render.Yellow, 1)
	render.LabelledBox(&canvas, box, fmt.Sprintf("sqdiff %.0f", minVal), render.Red,
		render.DefaultFont(), 2)

	return opencva.FrameFromMatAs(canvas, src.Layout())
}
