package opencva

import "errors"

// Error kinds returned by the benchmark stages.  Errors are wrapped with
// fmt.Errorf("...: %w") so callers test the kind with errors.Is
var (
	// ErrDecode is returned when the source image is missing or can not be
	// decoded
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when a result image can not be written
	ErrEncode = errors.New("encode failed")
	// ErrShape is returned when a frame does not satisfy the dimension, layout
	// or buffer size an operation requires
	ErrShape = errors.New("shape precondition failed")
	// ErrKernel is returned when an operation kernel rejects its input or
	// produces output of an unexpected shape
	ErrKernel = errors.New("kernel failed")
	// ErrDriver is returned when the accelerator driver rejects a state vector
	ErrDriver = errors.New("accelerator driver failed")
	// ErrBusy is returned when a lease is requested on the Controller while
	// another operation still holds one
	ErrBusy = errors.New("accelerator state in use")
	// ErrNoDriver is returned by NewOCADriver when the program was built
	// without the opencva build tag
	ErrNoDriver = errors.New("OCA driver not available, build with -tags opencva")
)
