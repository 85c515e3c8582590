package bench

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-opencva"
)

// memCodec decodes frames from a map and records encoded paths
type memCodec struct {
	frames    map[string]opencva.Frame
	encoded   []string
	encodeErr error
}

func (c *memCodec) Decode(path string) (opencva.Frame, error) {

	f, ok := c.frames[path]

	if !ok {
		return opencva.Frame{}, fmt.Errorf("%w: %s not found", opencva.ErrDecode, path)
	}

	return f, nil
}

func (c *memCodec) Encode(path string, f opencva.Frame) error {

	if c.encodeErr != nil {
		return c.encodeErr
	}

	c.encoded = append(c.encoded, path)
	return nil
}

// recordDriver records every state applied and optionally fails
type recordDriver struct {
	states []opencva.State
	failOn func(opencva.State) error
}

func (d *recordDriver) Apply(s opencva.State) error {

	d.states = append(d.states, s)

	if d.failOn != nil {
		return d.failOn(s)
	}

	return nil
}

// enabled reports if the last applied state switched any unit on
func (d *recordDriver) enabled() bool {

	if len(d.states) == 0 {
		return false
	}

	for _, m := range d.states[len(d.states)-1] {
		if m == opencva.ModeEnable {
			return true
		}
	}

	return false
}

// fakeClock advances only when a fake kernel runs
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

// fakeKernel produces a zeroed output and charges a fixed cost per mode to
// the clock
type fakeKernel struct {
	clock     *fakeClock
	driver    *recordDriver
	refCost   time.Duration
	accCost   time.Duration
	runErr    error
	badOutput bool
	runs      *int
}

func (k fakeKernel) Bind(in Input, out opencva.Shape) (Invocation, error) {
	return &fakeInvocation{k: k, shape: out}, nil
}

type fakeInvocation struct {
	k     fakeKernel
	shape opencva.Shape
}

func (f *fakeInvocation) Run() error {

	if f.k.runs != nil {
		*f.k.runs++
	}

	if f.k.runErr != nil {
		return f.k.runErr
	}

	if f.k.clock != nil {
		cost := f.k.refCost

		if f.k.driver != nil && f.k.driver.enabled() {
			cost = f.k.accCost
		}

		f.k.clock.t = f.k.clock.t.Add(cost)
	}

	return nil
}

func (f *fakeInvocation) Output() (opencva.Frame, error) {

	s := f.shape

	if f.k.badOutput {
		s.Width++
	}

	return opencva.NewFrame(s.Width, s.Height, s.Layout, make([]byte, s.Size()))
}

func (f *fakeInvocation) Close() error {
	return nil
}

const srcPath = "source.png"

// newFixture returns a harness over registry with an in memory codec holding
// a w x h BGR source and a recording driver
func newFixture(t *testing.T, w, h int, registry Registry) (*Harness, *memCodec, *recordDriver) {

	t.Helper()

	src, err := opencva.NewFrame(w, h, opencva.LayoutBGR24, make([]byte, w*h*3))

	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	codec := &memCodec{frames: map[string]opencva.Frame{srcPath: src}}
	driver := &recordDriver{}

	cfg := DefaultConfig()
	cfg.SourceSize = image.Point{}
	cfg.WarmUp = false
	cfg.OutDir = "out"

	hs := NewHarness(registry, codec, opencva.NewController(driver), cfg)

	return hs, codec, driver
}

func fakeOp(id OpID, mask opencva.Mask, k Kernel) Descriptor {
	return Descriptor{
		ID:     id,
		Title:  "test",
		Mask:   mask,
		Input:  frameInput,
		Output: sameShape,
		Kernel: k,
	}
}

func TestHarnessDriverSequence(t *testing.T) {

	mask := opencva.MaskOf(opencva.UnitErode, opencva.UnitDilate)
	h, codec, driver := newFixture(t, 8, 4, Registry{fakeOp(OpMorphologyOpen, mask, fakeKernel{})})

	results := h.Run(srcPath)

	if len(results) != 1 || results[0].Status != StatusOK {
		t.Fatalf("unexpected results %+v", results)
	}

	if len(driver.states) != 2 {
		t.Fatalf("driver called %d times, expected 2", len(driver.states))
	}

	for i, want := range []opencva.Mode{opencva.ModeDisable, opencva.ModeEnable} {
		for u, m := range driver.states[i] {
			expect := opencva.ModeNoChange

			if mask.Has(opencva.Unit(u)) {
				expect = want
			}

			if m != expect {
				t.Errorf("call %d unit %d mode %s, expected %s", i, u, m, expect)
			}
		}
	}

	if !h.Controller.State().IsNeutral() {
		t.Errorf("state %s not neutral after run", h.Controller.State())
	}

	want := []string{
		filepath.Join("out", "OCA7_reference_out.png"),
		filepath.Join("out", "OCA7_accelerated_out.png"),
	}

	if strings.Join(codec.encoded, ",") != strings.Join(want, ",") {
		t.Errorf("encoded %v, expected %v", codec.encoded, want)
	}
}

func TestHarnessFailureContinues(t *testing.T) {

	boom := fmt.Errorf("%w: boom", opencva.ErrKernel)

	h, codec, _ := newFixture(t, 8, 4, Registry{
		fakeOp(OpResize, opencva.MaskOf(opencva.UnitResize), fakeKernel{}),
		fakeOp(OpGaussianBlur, opencva.MaskOf(opencva.UnitGaussianBlur), fakeKernel{runErr: boom}),
		fakeOp(OpSobel, opencva.MaskOf(opencva.UnitSobel), fakeKernel{}),
	})

	results := h.Run(srcPath)

	if len(results) != 3 {
		t.Fatalf("got %d results, expected 3", len(results))
	}

	if results[0].Status != StatusOK || results[2].Status != StatusOK {
		t.Errorf("operations around the failure did not succeed: %v, %v",
			results[0].Err, results[2].Err)
	}

	r := results[1]

	if r.Status != StatusFailed || r.Stage != StageRunReference || !errors.Is(r.Err, opencva.ErrKernel) {
		t.Errorf("failed result = %s at %s (%v)", r.Status, r.Stage, r.Err)
	}

	if r.Speedup().Defined() {
		t.Errorf("failed operation has ratio %s", r.Speedup())
	}

	if !h.Controller.State().IsNeutral() {
		t.Errorf("state %s not neutral after failure", h.Controller.State())
	}

	for _, p := range codec.encoded {
		if strings.Contains(p, "OCA4_") {
			t.Errorf("failed operation saved %s", p)
		}
	}
}

func TestHarnessDriverFailure(t *testing.T) {

	h, _, driver := newFixture(t, 8, 4, Registry{
		fakeOp(OpFilter2D, opencva.MaskOf(opencva.UnitFilter2D), fakeKernel{}),
	})

	driver.failOn = func(s opencva.State) error {
		if s[opencva.UnitFilter2D] == opencva.ModeEnable {
			return errors.New("device busy")
		}
		return nil
	}

	r := h.Run(srcPath)[0]

	if r.Status != StatusFailed || r.Stage != StageEnableAccel || !errors.Is(r.Err, opencva.ErrDriver) {
		t.Errorf("result = %s at %s (%v), expected driver failure at enable", r.Status, r.Stage, r.Err)
	}

	if !r.Reference.Valid() {
		t.Errorf("reference timing lost on enable failure")
	}

	if !h.Controller.State().IsNeutral() {
		t.Errorf("state %s not neutral after driver failure", h.Controller.State())
	}

	// controller must accept a new lease after the failure
	lease, err := h.Controller.Acquire(opencva.MaskOf(opencva.UnitResize))

	if err != nil {
		t.Fatalf("Acquire after failure: %v", err)
	}

	lease.Release()
}

func TestHarnessDecodeFailure(t *testing.T) {

	h, _, driver := newFixture(t, 8, 4, Registry{
		fakeOp(OpResize, opencva.MaskOf(opencva.UnitResize), fakeKernel{}),
	})

	r := h.Run("missing.png")[0]

	if r.Status != StatusFailed || r.Stage != StagePrepareInput || !errors.Is(r.Err, opencva.ErrDecode) {
		t.Errorf("result = %s at %s (%v), expected decode failure", r.Status, r.Stage, r.Err)
	}

	if len(driver.states) != 0 {
		t.Errorf("driver called %d times for an operation that never prepared", len(driver.states))
	}
}

func TestHarnessOddSource(t *testing.T) {

	yuyv := fakeOp(OpCvtColorYUYV, opencva.MaskOf(opencva.UnitCvtColor), fakeKernel{})
	yuyv.Input, yuyv.Output = yuyvInput, bgrShape

	nv12 := fakeOp(OpCvtColorNV12, opencva.MaskOf(opencva.UnitCvtColorTwoPlane), fakeKernel{})
	nv12.Input, nv12.Output = nv12Input, bgrShape

	// even width, odd height: 4:2:2 is fine, 4:2:0 is not
	h, _, _ := newFixture(t, 6, 3, Registry{
		yuyv,
		nv12,
		fakeOp(OpSobel, opencva.MaskOf(opencva.UnitSobel), fakeKernel{}),
	})

	results := h.Run(srcPath)

	if results[0].Status != StatusOK {
		t.Errorf("yuyv failed: %v", results[0].Err)
	}

	if results[1].Status != StatusFailed || results[1].Stage != StagePrepareInput ||
		!errors.Is(results[1].Err, opencva.ErrShape) {
		t.Errorf("nv12 result = %s at %s (%v), expected shape failure", results[1].Status,
			results[1].Stage, results[1].Err)
	}

	if results[2].Status != StatusOK {
		t.Errorf("operation after shape failure failed: %v", results[2].Err)
	}
}

func TestHarnessOutputShapeMismatch(t *testing.T) {

	h, _, _ := newFixture(t, 8, 4, Registry{
		fakeOp(OpWarpAffine, opencva.MaskOf(opencva.UnitWarpAffine), fakeKernel{badOutput: true}),
	})

	r := h.Run(srcPath)[0]

	if r.Status != StatusFailed || r.Stage != StageRunReference || !errors.Is(r.Err, opencva.ErrKernel) {
		t.Errorf("result = %s at %s (%v), expected kernel failure", r.Status, r.Stage, r.Err)
	}
}

func TestHarnessSpeedup(t *testing.T) {

	tests := []struct {
		name    string
		refCost time.Duration
		accCost time.Duration
		want    string
	}{
		{"faster", 30 * time.Millisecond, 10 * time.Millisecond, "3.00"},
		{"slower", 10 * time.Millisecond, 20 * time.Millisecond, "0.50"},
		{"zero accelerated", 10 * time.Millisecond, 0, "undefined"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			clock := &fakeClock{t: time.Unix(0, 0)}
			k := fakeKernel{clock: clock, refCost: tc.refCost, accCost: tc.accCost}

			h, _, driver := newFixture(t, 8, 4, Registry{
				fakeOp(OpPyrDown, opencva.MaskOf(opencva.UnitPyrDown), k),
			})

			k.driver = driver
			h.Registry[0].Kernel = k
			h.now = clock.now

			r := h.Run(srcPath)[0]

			if r.Status != StatusOK {
				t.Fatalf("run failed: %v", r.Err)
			}

			if got := r.Speedup().String(); got != tc.want {
				t.Errorf("speedup %s, expected %s", got, tc.want)
			}

			if !strings.Contains(FormatResult(r), tc.want) {
				t.Errorf("report line %q does not show %s", FormatResult(r), tc.want)
			}
		})
	}
}

func TestHarnessRepeat(t *testing.T) {

	runs := 0
	h, _, _ := newFixture(t, 8, 4, Registry{
		fakeOp(OpErode, opencva.MaskOf(opencva.UnitErode), fakeKernel{runs: &runs}),
	})

	h.Config.Repeat = 3

	r := h.Run(srcPath)[0]

	if len(r.Reference.Samples) != 3 || len(r.Accelerated.Samples) != 3 {
		t.Errorf("samples %d/%d, expected 3/3", len(r.Reference.Samples), len(r.Accelerated.Samples))
	}

	if runs != 6 {
		t.Errorf("kernel ran %d times, expected 6", runs)
	}
}

func TestHarnessPersistWarning(t *testing.T) {

	h, codec, _ := newFixture(t, 8, 4, Registry{
		fakeOp(OpDilate, opencva.MaskOf(opencva.UnitDilate), fakeKernel{}),
	})

	codec.encodeErr = errors.New("disk full")

	r := h.Run(srcPath)[0]

	if r.Status != StatusOK {
		t.Fatalf("encode failure failed the operation: %v", r.Err)
	}

	if len(r.Warnings) != 2 {
		t.Fatalf("got %d warnings, expected 2", len(r.Warnings))
	}

	for _, w := range r.Warnings {
		if !errors.Is(w, opencva.ErrEncode) {
			t.Errorf("warning %v does not wrap ErrEncode", w)
		}
	}
}

func TestHarnessVisualize(t *testing.T) {

	calls := 0
	d := fakeOp(OpMatchTemplate, opencva.MaskOf(opencva.UnitMatchTemplate), fakeKernel{})
	d.Visualize = func(src opencva.Frame, in Input, out opencva.Frame) (opencva.Frame, error) {
		calls++
		return src, nil
	}

	h, codec, _ := newFixture(t, 8, 4, Registry{d})
	h.Run(srcPath)

	if calls != 2 {
		t.Errorf("visualize called %d times, expected 2", calls)
	}

	if len(codec.encoded) != 2 {
		t.Errorf("saved %d outputs, expected 2", len(codec.encoded))
	}
}

func TestHarnessWarmUp(t *testing.T) {

	runs := 0
	h, codec, driver := newFixture(t, 8, 4, Registry{
		fakeOp(OpSobel, opencva.MaskOf(opencva.UnitSobel), fakeKernel{runs: &runs}),
	})

	h.Config.WarmUp = true
	h.WarmUpOp = fakeOp(OpFilter2D, opencva.MaskOf(opencva.UnitFilter2D), fakeKernel{runs: &runs})

	results := h.Run(srcPath)

	if len(results) != 1 {
		t.Fatalf("warm up produced a result, got %d results", len(results))
	}

	if len(driver.states) != 4 {
		t.Errorf("driver called %d times, expected 4", len(driver.states))
	}

	if runs != 4 {
		t.Errorf("kernel ran %d times, expected 4", runs)
	}

	for i, want := range []opencva.Unit{opencva.UnitFilter2D, opencva.UnitFilter2D,
		opencva.UnitSobel, opencva.UnitSobel} {
		if i < len(driver.states) && driver.states[i][want] == opencva.ModeNoChange {
			t.Errorf("driver call %d did not switch unit %d", i, want)
		}
	}

	if len(codec.encoded) != 2 {
		t.Errorf("warm up saved outputs, got %d files", len(codec.encoded))
	}
}

func TestHarnessLiteral(t *testing.T) {

	src, _ := opencva.NewFrame(8, 4, opencva.LayoutBGR24, make([]byte, 8*4*3))
	codec := &memCodec{frames: map[string]opencva.Frame{srcPath: src}}
	driver := &recordDriver{}

	h := &Harness{
		Codec:      codec,
		Controller: opencva.NewController(driver),
		Config:     Config{OutDir: "out", Ext: "png", Persist: true},
		Log:        zerolog.Nop(),
	}

	r := h.RunOne(fakeOp(OpResize, opencva.MaskOf(opencva.UnitResize), fakeKernel{}), srcPath)

	if r.Status != StatusOK {
		t.Fatalf("result = %s at %s (%v)", r.Status, r.Stage, r.Err)
	}

	if len(r.Reference.Samples) != 1 || len(r.Accelerated.Samples) != 1 {
		t.Errorf("samples %d/%d, expected 1/1", len(r.Reference.Samples), len(r.Accelerated.Samples))
	}

	if len(driver.states) != 2 || len(codec.encoded) != 2 {
		t.Errorf("driver calls %d, saved %d, expected 2 and 2", len(driver.states), len(codec.encoded))
	}
}

func TestHarnessBusyController(t *testing.T) {

	h, _, _ := newFixture(t, 8, 4, Registry{
		fakeOp(OpResize, opencva.MaskOf(opencva.UnitResize), fakeKernel{}),
	})

	lease, err := h.Controller.Acquire(opencva.MaskOf(opencva.UnitSobel))

	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	r := h.Run(srcPath)[0]
	lease.Release()

	if r.Status != StatusFailed || !errors.Is(r.Err, opencva.ErrBusy) {
		t.Errorf("result = %s (%v), expected ErrBusy", r.Status, r.Err)
	}
}

func TestArtifactName(t *testing.T) {

	if got := ArtifactName("OCA3", ModeReference, "png"); got != "OCA3_reference_out.png" {
		t.Errorf("ArtifactName = %s", got)
	}

	if got := ArtifactName("OCA12", ModeAccelerated, "jpg"); got != "OCA12_accelerated_out.jpg" {
		t.Errorf("ArtifactName = %s", got)
	}
}
