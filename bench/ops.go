package bench

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/swdee/go-opencva"
)

// OpID identifies one of the benchmarked operations
type OpID int

// operations in the order they are benchmarked
const (
	OpResize OpID = iota + 1
	OpCvtColorYUYV
	OpCvtColorNV12
	OpGaussianBlur
	OpDilate
	OpErode
	OpMorphologyOpen
	OpFilter2D
	OpSobel
	OpAdaptiveThreshold
	OpMatchTemplate
	OpWarpAffine
	OpWarpPerspective
	OpPyrDown
	OpPyrUp
)

// NumOps is the number of operations in the catalogue
const NumOps = int(OpPyrUp)

var opNames = map[OpID]string{
	OpResize:            "resize",
	OpCvtColorYUYV:      "cvtColor",
	OpCvtColorNV12:      "cvtColorTwoPlane",
	OpGaussianBlur:      "GaussianBlur",
	OpDilate:            "dilate",
	OpErode:             "erode",
	OpMorphologyOpen:    "morphologyEx",
	OpFilter2D:          "filter2D",
	OpSobel:             "Sobel",
	OpAdaptiveThreshold: "adaptiveThreshold",
	OpMatchTemplate:     "matchTemplate",
	OpWarpAffine:        "warpAffine",
	OpWarpPerspective:   "warpPerspective",
	OpPyrDown:           "pyrDown",
	OpPyrUp:             "pyrUp",
}

// String returns the OpenCV function name of the operation
func (id OpID) String() string {

	if name, ok := opNames[id]; ok {
		return name
	}

	return fmt.Sprintf("op(%d)", int(id))
}

// Tag returns the prefix used when naming output artifacts, eg: OCA3
func (id OpID) Tag() string {
	return "OCA" + strconv.Itoa(int(id))
}

// Input holds the frames handed to a Kernel.  Exactly one of Frame or Planar
// is set, Template is only used by template matching.
type Input struct {
	// Frame is the primary input image
	Frame opencva.Frame
	// Planar is the semi-planar input for two plane colour conversion
	Planar opencva.PlanarFrame
	// Template is the image searched for in Frame
	Template opencva.Frame
	// Origin is the position of Frame within the decoded source image when
	// the input was cropped from it
	Origin image.Point
}

// IsPlanar reports if the input is a semi-planar frame
func (in Input) IsPlanar() bool {
	return in.Planar.Width() > 0
}

// Size returns the pixel dimensions of the primary input
func (in Input) Size() image.Point {

	if in.IsPlanar() {
		return image.Pt(in.Planar.Width(), in.Planar.Height())
	}

	return image.Pt(in.Frame.Width(), in.Frame.Height())
}

// InputRule builds the kernel input from the decoded source frame
type InputRule func(src opencva.Frame) (Input, error)

// OutputRule returns the shape a kernel produces for the given input
type OutputRule func(in Input) opencva.Shape

// VisualizeRule turns a kernel output that can not be written as an image
// into a frame suitable for saving
type VisualizeRule func(src opencva.Frame, in Input, out opencva.Frame) (opencva.Frame, error)

// Kernel performs an operation.  Bind prepares everything the call needs so
// that only Invocation.Run is timed.
type Kernel interface {
	Bind(in Input, out opencva.Shape) (Invocation, error)
}

// Invocation is a kernel bound to its input and output buffers
type Invocation interface {
	// Run executes the kernel once, overwriting the output buffer
	Run() error
	// Output copies the result of the last Run
	Output() (opencva.Frame, error)
	// Close releases the buffers held by the invocation
	Close() error
}

// Descriptor is the static definition of a benchmarked operation
type Descriptor struct {
	ID OpID
	// Title describes the input and output formats, eg: FHD(BGR) -> XGA(BGR)
	Title string
	// Mask is the set of accelerator units the operation runs on
	Mask opencva.Mask
	// Input builds the kernel input from the decoded source
	Input InputRule
	// Output gives the expected output shape
	Output OutputRule
	// Kernel performs the operation
	Kernel Kernel
	// Visualize is optional, when set it converts the output before saving
	Visualize VisualizeRule
}

// Tag returns the artifact tag of the operation
func (d Descriptor) Tag() string {
	return d.ID.Tag()
}

// Registry is the ordered list of operations to benchmark
type Registry []Descriptor

// Lookup returns the descriptor matching key, which may be the operation
// number, its tag or its function name (case insensitive)
func (r Registry) Lookup(key string) (Descriptor, bool) {

	key = strings.TrimSpace(key)

	for _, d := range r {
		if key == strconv.Itoa(int(d.ID)) ||
			strings.EqualFold(key, d.Tag()) ||
			strings.EqualFold(key, d.ID.String()) {
			return d, true
		}
	}

	return Descriptor{}, false
}

// Select returns the descriptors matching keys in registry order.  No keys
// returns the whole registry.
func (r Registry) Select(keys ...string) (Registry, error) {

	if len(keys) == 0 {
		return r, nil
	}

	want := make(map[OpID]bool, len(keys))

	for _, k := range keys {
		d, ok := r.Lookup(k)

		if !ok {
			return nil, fmt.Errorf("unknown operation %q", k)
		}

		want[d.ID] = true
	}

	out := make(Registry, 0, len(want))

	for _, d := range r {
		if want[d.ID] {
			out = append(out, d)
		}
	}

	return out, nil
}
