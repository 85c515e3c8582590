package bench

import (
	"fmt"
	"image"
	"image/color"

	"github.com/swdee/go-opencva"
	"github.com/swdee/go-opencva/preprocess"
	"gocv.io/x/gocv"
)

var (
	// ResizeSize is the XGA output size of the resize operation
	ResizeSize = image.Pt(1024, 768)
	// MatchRegion is the area of the FHD source searched by template matching
	MatchRegion = image.Rect(800, 400, 800+640, 400+360)
	// TemplateRegion is the area of the FHD source used as the template
	TemplateRegion = image.Rect(1200, 560, 1200+16, 560+16)
)

const (
	gaussianKSize     = 7
	dilateIterations  = 200
	erodeIterations   = 100
	openIterations    = 50
	thresholdBlock    = 99
	thresholdMaxValue = 255
)

var (
	// sharpen is the 3x3 unsharp kernel benchmarked by filter2D
	sharpen = [][]float32{
		{-0.2, -0.2, -0.2},
		{-0.2, 2.6, -0.2},
		{-0.2, -0.2, -0.2},
	}
	// laplacian is only used to warm up the filter2D unit
	laplacian = [][]float32{
		{0, 1, 0},
		{1, -4, 1},
		{0, 1, 0},
	}
	// rotation of PI/4 about the FHD image centre
	affine = [][]float64{
		{0.7071, -0.7071, 649},
		{0.7071, 0.7071, 510},
	}
	perspective = [][]float64{
		{0.5, 0.2, 20},
		{-0.1, 0.8, 50},
		{-0.001, 0.001, 1},
	}
)

// frameInput uses the source frame as is
func frameInput(src opencva.Frame) (Input, error) {
	return Input{Frame: src}, nil
}

// grayInput converts the source to a single channel frame
func grayInput(src opencva.Frame) (Input, error) {

	g, err := preprocess.Gray(src)

	if err != nil {
		return Input{}, err
	}

	return Input{Frame: g}, nil
}

// yuyvInput packs the source into 4:2:2 YUYV
func yuyvInput(src opencva.Frame) (Input, error) {

	p, err := preprocess.PackYUYV(src)

	if err != nil {
		return Input{}, err
	}

	return Input{Frame: p}, nil
}

// nv12Input packs the source into semi-planar 4:2:0
func nv12Input(src opencva.Frame) (Input, error) {

	p, err := preprocess.PackNV12(src)

	if err != nil {
		return Input{}, err
	}

	return Input{Planar: p}, nil
}

// templateInput crops the search region and template from the source,
// scaling their FHD coordinates to the source size
func templateInput(src opencva.Frame) (Input, error) {

	size := image.Pt(src.Width(), src.Height())
	region := preprocess.ScaleRect(MatchRegion, size)
	tpl := preprocess.ScaleRect(TemplateRegion, size)

	if tpl.Dx() > region.Dx() || tpl.Dy() > region.Dy() {
		return Input{}, fmt.Errorf("%w: template %v larger than search region %v",
			opencva.ErrShape, tpl, region)
	}

	frame, err := preprocess.Crop(src, region)

	if err != nil {
		return Input{}, err
	}

	template, err := preprocess.Crop(src, tpl)

	if err != nil {
		return Input{}, err
	}

	return Input{Frame: frame, Template: template, Origin: region.Min}, nil
}

// pyrUpInput halves the source so pyrUp restores the original size
func pyrUpInput(src opencva.Frame) (Input, error) {

	half, err := preprocess.PyrDown(src)

	if err != nil {
		return Input{}, err
	}

	return Input{Frame: half}, nil
}

// sameShape outputs the input dimensions and layout
func sameShape(in Input) opencva.Shape {
	return in.Frame.Shape()
}

// bgrShape outputs the input dimensions as BGR
func bgrShape(in Input) opencva.Shape {
	sz := in.Size()
	return opencva.Shape{Width: sz.X, Height: sz.Y, Layout: opencva.LayoutBGR24}
}

// filter2D convolves src with the kernel in params keeping the source depth
func filter2D(src, params []gocv.Mat, dst *gocv.Mat) {
	gocv.Filter2D(src[0], dst, gocv.MatType(-1), params[0], image.Pt(-1, -1), 0, gocv.BorderDefault)
}

// WarmUpFilter returns the laplacian filter2D run once in each mode before
// the benchmark so the first timed operation does not pay for the
// accelerator start up
func WarmUpFilter() Descriptor {
	return Descriptor{
		ID:     OpFilter2D,
		Title:  "FHD(BGR) [laplacian]",
		Mask:   opencva.MaskOf(opencva.UnitFilter2D),
		Input:  frameInput,
		Output: sameShape,
		Kernel: MatKernel{
			Params: constMats(func() gocv.Mat { return float32FromRows(laplacian) }),
			Call:   filter2D,
		},
	}
}

// DefaultRegistry returns the 15 benchmarked operations with the parameters
// used on the RZ/V OpenCV Accelerator
func DefaultRegistry() Registry {
	return Registry{
		{
			ID:    OpResize,
			Title: "FHD(BGR) -> XGA(BGR)",
			Mask:  opencva.MaskOf(opencva.UnitResize),
			Input: frameInput,
			Output: func(in Input) opencva.Shape {
				return opencva.Shape{Width: ResizeSize.X, Height: ResizeSize.Y, Layout: in.Frame.Layout()}
			},
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.Resize(src[0], dst, ResizeSize, 0, 0, gocv.InterpolationLinear)
			}),
		},
		{
			ID:     OpCvtColorYUYV,
			Title:  "FHD(YUV) -> FHD(BGR)",
			Mask:   opencva.MaskOf(opencva.UnitCvtColor),
			Input:  yuyvInput,
			Output: bgrShape,
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.CvtColor(src[0], dst, gocv.ColorYUVToBGRYUY2)
			}),
		},
		{
			ID:     OpCvtColorNV12,
			Title:  "FHD(NV) -> FHD(BGR)",
			Mask:   opencva.MaskOf(opencva.UnitCvtColorTwoPlane),
			Input:  nv12Input,
			Output: bgrShape,
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.CvtColor(src[0], dst, gocv.ColorYUVToBGRNV12)
			}),
		},
		{
			ID:     OpGaussianBlur,
			Title:  "FHD(BGR) [7x7]",
			Mask:   opencva.MaskOf(opencva.UnitGaussianBlur),
			Input:  frameInput,
			Output: sameShape,
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.GaussianBlur(src[0], dst, image.Pt(gaussianKSize, gaussianKSize), 0, 0, gocv.BorderDefault)
			}),
		},
		{
			ID:     OpDilate,
			Title:  "FHD(BGR) [iteration=200]",
			Mask:   opencva.MaskOf(opencva.UnitDilate),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: rectElement(3),
				Call: func(src, params []gocv.Mat, dst *gocv.Mat) {
					gocv.DilateWithParams(src[0], dst, params[0], image.Pt(-1, -1), dilateIterations,
						gocv.BorderConstant, color.RGBA{})
				},
			},
		},
		{
			ID:     OpErode,
			Title:  "FHD(BGR) [iteration=100]",
			Mask:   opencva.MaskOf(opencva.UnitErode),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: rectElement(3),
				Call: func(src, params []gocv.Mat, dst *gocv.Mat) {
					gocv.ErodeWithParams(src[0], dst, params[0], image.Pt(-1, -1), erodeIterations,
						int(gocv.BorderConstant))
				},
			},
		},
		{
			ID:     OpMorphologyOpen,
			Title:  "FHD(BGR) [iteration= 50]",
			Mask:   opencva.MaskOf(opencva.UnitErode, opencva.UnitDilate),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: rectElement(3),
				Call: func(src, params []gocv.Mat, dst *gocv.Mat) {
					gocv.MorphologyExWithParams(src[0], dst, gocv.MorphOpen, params[0], openIterations,
						gocv.BorderConstant)
				},
			},
		},
		{
			ID:     OpFilter2D,
			Title:  "FHD(BGR)",
			Mask:   opencva.MaskOf(opencva.UnitFilter2D),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: constMats(func() gocv.Mat { return float32FromRows(sharpen) }),
				Call:   filter2D,
			},
		},
		{
			ID:     OpSobel,
			Title:  "FHD(BGR)",
			Mask:   opencva.MaskOf(opencva.UnitSobel),
			Input:  frameInput,
			Output: sameShape,
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.Sobel(src[0], dst, gocv.MatType(-1), 1, 0, 3, 1, 0, gocv.BorderDefault)
			}),
		},
		{
			ID:     OpAdaptiveThreshold,
			Title:  "FHD(gray) [kernel= 99x99]",
			Mask:   opencva.MaskOf(opencva.UnitAdaptiveThreshold),
			Input:  grayInput,
			Output: sameShape,
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				gocv.AdaptiveThreshold(src[0], dst, thresholdMaxValue, gocv.AdaptiveThresholdMean,
					gocv.ThresholdBinary, thresholdBlock, 0)
			}),
		},
		{
			ID:    OpMatchTemplate,
			Title: "640x360(BGR) [template 16x16]",
			Mask:  opencva.MaskOf(opencva.UnitMatchTemplate),
			Input: templateInput,
			Output: func(in Input) opencva.Shape {
				return opencva.Shape{
					Width:  in.Frame.Width() - in.Template.Width() + 1,
					Height: in.Frame.Height() - in.Template.Height() + 1,
					Layout: opencva.LayoutGrayF32,
				}
			},
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				mask := gocv.NewMat()
				defer mask.Close()
				gocv.MatchTemplate(src[0], src[1], dst, gocv.TmSqdiff, mask)
			}),
			Visualize: markMatch,
		},
		{
			ID:     OpWarpAffine,
			Title:  "FHD(BGR) [rotate PI/4]",
			Mask:   opencva.MaskOf(opencva.UnitWarpAffine),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: constMats(func() gocv.Mat { return matFromRows(affine) }),
				Call: func(src, params []gocv.Mat, dst *gocv.Mat) {
					gocv.WarpAffine(src[0], dst, params[0], image.Pt(src[0].Cols(), src[0].Rows()))
				},
			},
		},
		{
			ID:     OpWarpPerspective,
			Title:  "FHD(BGR)",
			Mask:   opencva.MaskOf(opencva.UnitWarpPerspective),
			Input:  frameInput,
			Output: sameShape,
			Kernel: MatKernel{
				Params: constMats(func() gocv.Mat { return matFromRows(perspective) }),
				Call: func(src, params []gocv.Mat, dst *gocv.Mat) {
					gocv.WarpPerspective(src[0], dst, params[0], image.Pt(src[0].Cols(), src[0].Rows()))
				},
			},
		},
		{
			ID:    OpPyrDown,
			Title: "FHD(BGR) -> QFHD(BGR)",
			Mask:  opencva.MaskOf(opencva.UnitPyrDown),
			Input: frameInput,
			Output: func(in Input) opencva.Shape {
				return opencva.Shape{
					Width:  (in.Frame.Width() + 1) / 2,
					Height: (in.Frame.Height() + 1) / 2,
					Layout: in.Frame.Layout(),
				}
			},
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				sz := image.Pt((src[0].Cols()+1)/2, (src[0].Rows()+1)/2)
				gocv.PyrDown(src[0], dst, sz, gocv.BorderDefault)
			}),
		},
		{
			ID:    OpPyrUp,
			Title: "QFHD(BGR) -> FHD(BGR)",
			Mask:  opencva.MaskOf(opencva.UnitPyrUp),
			Input: pyrUpInput,
			Output: func(in Input) opencva.Shape {
				return opencva.Shape{
					Width:  in.Frame.Width() * 2,
					Height: in.Frame.Height() * 2,
					Layout: in.Frame.Layout(),
				}
			},
			Kernel: NewMatKernel(func(src, _ []gocv.Mat, dst *gocv.Mat) {
				sz := image.Pt(src[0].Cols()*2, src[0].Rows()*2)
				gocv.PyrUp(src[0], dst, sz, gocv.BorderDefault)
			}),
		},
	}
}
