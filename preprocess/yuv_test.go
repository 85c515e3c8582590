package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/swdee/go-opencva"
)

// rgbFrame builds an RGB24 frame from a row major list of pixels
func rgbFrame(t testing.TB, w, h int, px [][3]uint8) opencva.Frame {
	t.Helper()

	data := make([]byte, 0, w*h*3)

	for _, p := range px {
		data = append(data, p[0], p[1], p[2])
	}

	f, err := opencva.NewFrame(w, h, opencva.LayoutRGB24, data)

	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	return f
}

// fill returns n copies of p
func fill(n int, p [3]uint8) [][3]uint8 {
	px := make([][3]uint8, n)

	for i := range px {
		px[i] = p
	}

	return px
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestSaturate(t *testing.T) {

	tests := []struct {
		in   float64
		want uint8
	}{
		{-10, 0},
		{-0.4, 0},
		{0.4, 0},
		{0.6, 1},
		{127.5, 128},
		{254.4, 254},
		{254.6, 255},
		{255.5, 255},
		{300, 255},
	}

	for _, tc := range tests {
		if got := saturate(tc.in); got != tc.want {
			t.Errorf("saturate(%v) = %d, expected %d", tc.in, got, tc.want)
		}
	}
}

// TestCornerSaturation converts every combination of 0/255 channel values and
// checks no value escapes [0,255], which with uint8 storage means checking
// the saturated extremes are reached rather than wrapped
func TestCornerSaturation(t *testing.T) {

	corners := []uint8{0, 255}

	for _, r := range corners {
		for _, g := range corners {
			for _, b := range corners {
				p := [3]uint8{r, g, b}
				src := rgbFrame(t, 2, 2, fill(4, p))

				packed, err := PackYUYV(src)

				if err != nil {
					t.Fatalf("PackYUYV(%v): %v", p, err)
				}

				planar, err := PackNV12(src)

				if err != nil {
					t.Fatalf("PackNV12(%v): %v", p, err)
				}

				// reference values from the unclamped formula
				y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
				u := -0.169*float64(r) - 0.331*float64(g) + 0.5*float64(b) + 128
				v := 0.5*float64(r) - 0.419*float64(g) - 0.081*float64(b) + 128

				wantY, wantU, wantV := saturate(y), saturate(u), saturate(v)

				d := packed.Data()

				if d[0] != wantY || d[2] != wantY || d[1] != wantU || d[3] != wantV {
					t.Errorf("YUYV for %v = %v, expected [%d %d %d %d]", p, d[:4],
						wantY, wantU, wantY, wantV)
				}

				uv := planar.Chroma().Data()

				if uv[0] != wantU || uv[1] != wantV {
					t.Errorf("NV12 chroma for %v = %v, expected [%d %d]", p, uv, wantU, wantV)
				}

				// pure blue pushes U over 255 before clamping
				if r == 0 && g == 0 && b == 255 && uv[0] != 255 {
					t.Errorf("blue U = %d, expected clamp to 255", uv[0])
				}
			}
		}
	}
}

func TestSharedChromaBlock(t *testing.T) {

	src := rgbFrame(t, 2, 2, [][3]uint8{
		{255, 0, 0}, {0, 255, 0},
		{0, 0, 255}, {255, 255, 255},
	})

	planar, err := PackNV12(src)

	if err != nil {
		t.Fatalf("PackNV12: %v", err)
	}

	uv := planar.Chroma().Data()

	// mean is (127.5,127.5,127.5), a neutral grey
	if absDiff(uv[0], 128) > 1 || absDiff(uv[1], 128) > 1 {
		t.Errorf("shared chroma = %v, expected [128 128]", uv)
	}

	wantY := []uint8{76, 150, 29, 255}

	if !bytes.Equal(planar.Luma().Data(), wantY) {
		t.Errorf("luma = %v, expected %v", planar.Luma().Data(), wantY)
	}
}

func TestSharedChromaPair(t *testing.T) {

	// red and blue pair, chroma from mean (127.5, 0, 127.5)
	src := rgbFrame(t, 2, 1, [][3]uint8{{255, 0, 0}, {0, 0, 255}})

	packed, err := PackYUYV(src)

	if err != nil {
		t.Fatalf("PackYUYV: %v", err)
	}

	u, v := chroma(127.5, 0, 127.5)
	d := packed.Data()

	if d[1] != u || d[3] != v {
		t.Errorf("pair chroma = [%d %d], expected [%d %d]", d[1], d[3], u, v)
	}
}

func TestLumaIndependence(t *testing.T) {

	a := rgbFrame(t, 2, 1, [][3]uint8{{10, 20, 30}, {40, 50, 60}})
	b := rgbFrame(t, 2, 1, [][3]uint8{{10, 20, 230}, {40, 50, 60}})

	pa, err := PackYUYV(a)

	if err != nil {
		t.Fatalf("PackYUYV: %v", err)
	}

	pb, err := PackYUYV(b)

	if err != nil {
		t.Fatalf("PackYUYV: %v", err)
	}

	if pa.Data()[0] == pb.Data()[0] {
		t.Errorf("changing blue of pixel 0 did not change Y0, got %d", pa.Data()[0])
	}

	if pa.Data()[2] != pb.Data()[2] {
		t.Errorf("changing pixel 0 changed partner Y1 from %d to %d",
			pa.Data()[2], pb.Data()[2])
	}
}

func TestWhitePacked(t *testing.T) {

	src := rgbFrame(t, 4, 2, fill(8, [3]uint8{255, 255, 255}))

	packed, err := PackYUYV(src)

	if err != nil {
		t.Fatalf("PackYUYV: %v", err)
	}

	if packed.Layout() != opencva.LayoutYUYV || packed.Width() != 4 || packed.Height() != 2 {
		t.Fatalf("unexpected output shape %s", packed.Shape())
	}

	d := packed.Data()

	for i := 0; i < len(d); i += 4 {
		if d[i] != 255 || d[i+2] != 255 {
			t.Errorf("pair %d luma = [%d %d], expected 255", i/4, d[i], d[i+2])
		}

		if d[i+1] != 128 || d[i+3] != 128 {
			t.Errorf("pair %d chroma = [%d %d], expected 128", i/4, d[i+1], d[i+3])
		}
	}
}

func TestChannelOrder(t *testing.T) {

	rgb := rgbFrame(t, 2, 2, [][3]uint8{
		{200, 10, 30}, {15, 90, 240},
		{60, 60, 60}, {0, 255, 128},
	})

	// same pixels stored as BGR
	src := rgb.Data()
	swapped := make([]byte, len(src))

	for i := 0; i < len(src); i += 3 {
		swapped[i], swapped[i+1], swapped[i+2] = src[i+2], src[i+1], src[i]
	}

	bgr, err := opencva.NewFrame(2, 2, opencva.LayoutBGR24, swapped)

	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	a, err := PackNV12(rgb)

	if err != nil {
		t.Fatalf("PackNV12(rgb): %v", err)
	}

	b, err := PackNV12(bgr)

	if err != nil {
		t.Fatalf("PackNV12(bgr): %v", err)
	}

	if !bytes.Equal(a.Luma().Data(), b.Luma().Data()) ||
		!bytes.Equal(a.Chroma().Data(), b.Chroma().Data()) {
		t.Errorf("BGR input converted differently to RGB input")
	}
}

func TestPreconditions(t *testing.T) {

	odd := rgbFrame(t, 3, 4, fill(12, [3]uint8{1, 2, 3}))

	if _, err := PackNV12(odd); !errors.Is(err, opencva.ErrShape) {
		t.Errorf("PackNV12 on 3x4 returned %v, expected ErrShape", err)
	}

	if _, err := PackYUYV(odd); !errors.Is(err, opencva.ErrShape) {
		t.Errorf("PackYUYV on 3x4 returned %v, expected ErrShape", err)
	}

	oddHeight := rgbFrame(t, 4, 3, fill(12, [3]uint8{1, 2, 3}))

	if _, err := PackNV12(oddHeight); !errors.Is(err, opencva.ErrShape) {
		t.Errorf("PackNV12 on 4x3 returned %v, expected ErrShape", err)
	}

	// packed 4:2:2 only subsamples horizontally
	if _, err := PackYUYV(oddHeight); err != nil {
		t.Errorf("PackYUYV on 4x3 failed: %v", err)
	}

	gray, _ := opencva.NewFrame(4, 4, opencva.LayoutGray8, make([]byte, 16))

	if _, err := PackNV12(gray); !errors.Is(err, opencva.ErrShape) {
		t.Errorf("PackNV12 on gray returned %v, expected ErrShape", err)
	}

	ok := rgbFrame(t, 4, 4, fill(16, [3]uint8{1, 2, 3}))
	planar, err := PackNV12(ok)

	if err != nil {
		t.Fatalf("PackNV12 on 4x4 failed: %v", err)
	}

	if c := planar.Chroma(); c.Width() != 2 || c.Height() != 2 {
		t.Errorf("chroma plane is %dx%d, expected 2x2", c.Width(), c.Height())
	}
}

// randomFrame returns a frame of deterministic noise
func randomFrame(t testing.TB, w, h int, seed int64) opencva.Frame {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, w*h*3)
	rng.Read(data)

	f, err := opencva.NewFrame(w, h, opencva.LayoutBGR24, data)

	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	return f
}

func TestParallelMatchesSerial(t *testing.T) {

	src := randomFrame(t, 322, 242, 42)

	serial := Converter{Workers: 1}
	parallel := Converter{Workers: 7}

	ps, err := serial.PackYUYV(src)

	if err != nil {
		t.Fatalf("serial PackYUYV: %v", err)
	}

	pp, err := parallel.PackYUYV(src)

	if err != nil {
		t.Fatalf("parallel PackYUYV: %v", err)
	}

	if !bytes.Equal(ps.Data(), pp.Data()) {
		t.Errorf("parallel PackYUYV output differs from serial")
	}

	ns, err := serial.PackNV12(src)

	if err != nil {
		t.Fatalf("serial PackNV12: %v", err)
	}

	np, err := parallel.PackNV12(src)

	if err != nil {
		t.Fatalf("parallel PackNV12: %v", err)
	}

	if !bytes.Equal(ns.Luma().Data(), np.Luma().Data()) ||
		!bytes.Equal(ns.Chroma().Data(), np.Chroma().Data()) {
		t.Errorf("parallel PackNV12 output differs from serial")
	}
}

func BenchmarkPackYUYV(b *testing.B) {

	sizes := []struct {
		width, height int
	}{
		{640, 480},
		{1920, 1080},
	}

	for _, sz := range sizes {
		src := randomFrame(b, sz.width, sz.height, 1)

		b.Run(fmt.Sprintf("%dx%d", sz.width, sz.height), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := PackYUYV(src); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPackNV12(b *testing.B) {

	sizes := []struct {
		width, height int
	}{
		{640, 480},
		{1920, 1080},
	}

	for _, sz := range sizes {
		src := randomFrame(b, sz.width, sz.height, 1)

		b.Run(fmt.Sprintf("%dx%d", sz.width, sz.height), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := PackNV12(src); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
