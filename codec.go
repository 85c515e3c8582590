package opencva

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gocv.io/x/gocv"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// register additional decoders with image.Decode
	_ "golang.org/x/image/webp"
)

// Codec reads and writes image files as Frames
type Codec interface {
	// Decode reads the image at path as a LayoutBGR24 Frame
	Decode(path string) (Frame, error)
	// Encode writes frame to path, the format is chosen by file extension
	Encode(path string, frame Frame) error
}

// checkFile verifies the source exists before handing it to a decoder
func checkFile(path string) error {

	info, err := os.Stat(path)

	if err != nil {
		return fmt.Errorf("%w: image file does not exist at %s, error: %v",
			ErrDecode, path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: image path %s is a directory", ErrDecode, path)
	}

	return nil
}

// GocvCodec reads and writes images with OpenCV's imgcodecs
type GocvCodec struct{}

// Decode wraps gocv.IMRead in color mode
func (GocvCodec) Decode(path string) (Frame, error) {

	if err := checkFile(path); err != nil {
		return Frame{}, err
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()

	if img.Empty() {
		return Frame{}, fmt.Errorf("%w: error reading image from %s", ErrDecode, path)
	}

	f, err := FrameFromMat(img)

	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return f, nil
}

// Encode wraps gocv.IMWrite
func (GocvCodec) Encode(path string, frame Frame) error {

	if frame.Layout() == LayoutRGB24 {
		// OpenCV expects BGR ordering
		var err error

		if frame, err = swapRB(frame); err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
	}

	m, err := frame.ToMat()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	defer m.Close()

	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("%w: failed to write %s frame to %s", ErrEncode,
			frame.Shape(), path)
	}

	return nil
}

// swapRB returns a copy of a three channel frame with the R and B channels
// exchanged and the layout flipped between RGB and BGR
func swapRB(f Frame) (Frame, error) {

	out := make([]byte, len(f.data))

	for i := 0; i < len(f.data); i += 3 {
		out[i+0] = f.data[i+2]
		out[i+1] = f.data[i+1]
		out[i+2] = f.data[i+0]
	}

	layout := LayoutBGR24

	if f.layout == LayoutBGR24 {
		layout = LayoutRGB24
	}

	return NewFrame(f.width, f.height, layout, out)
}

// StdCodec reads and writes images with pure Go codecs, it does not require
// OpenCV.  PNG, JPEG, BMP and TIFF are supported for both reading and writing
// and WebP for reading.
type StdCodec struct {
	// JPEGQuality is the quality used when writing JPEG files, zero selects
	// the jpeg package default
	JPEGQuality int
}

// Decode reads the image at path with image.Decode
func (c StdCodec) Decode(path string) (Frame, error) {

	if err := checkFile(path); err != nil {
		return Frame{}, err
	}

	fh, err := os.Open(path)

	if err != nil {
		return Frame{}, fmt.Errorf("%w: error opening file: %v", ErrDecode, err)
	}

	defer fh.Close()

	img, _, err := image.Decode(fh)

	if err != nil {
		return Frame{}, fmt.Errorf("%w: error decoding %s: %v", ErrDecode, path, err)
	}

	f, err := FrameFromImage(img)

	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return f, nil
}

// Encode writes frame to path in the format given by its extension
func (c StdCodec) Encode(path string, frame Frame) error {

	img, err := frame.Image()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	fh, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("%w: error creating file: %v", ErrEncode, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		err = png.Encode(fh, img)
	case ".jpg", ".jpeg":
		var opts *jpeg.Options

		if c.JPEGQuality > 0 {
			opts = &jpeg.Options{Quality: c.JPEGQuality}
		}

		err = jpeg.Encode(fh, img, opts)
	case ".bmp":
		err = bmp.Encode(fh, img)
	case ".tif", ".tiff":
		err = tiff.Encode(fh, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unsupported image extension %q", ext)
	}

	if cerr := fh.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrEncode, path, err)
	}

	return nil
}

// SyncCodec wraps a Codec and flushes file system buffers to storage after
// each Encode, optionally waiting Delay afterwards so slow storage has
// completed writing before the next measurement starts
type SyncCodec struct {
	Codec
	Delay time.Duration
}

// Encode writes the frame with the wrapped codec then syncs storage
func (s SyncCodec) Encode(path string, frame Frame) error {

	if err := s.Codec.Encode(path, frame); err != nil {
		return err
	}

	syscall.Sync()

	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}

	return nil
}
