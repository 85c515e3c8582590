package bench

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/swdee/go-opencva"
	"github.com/swdee/go-opencva/preprocess"
)

// Config holds the harness settings
type Config struct {
	// SourceSize is the size the decoded source is resized to before each
	// operation, a zero size keeps the native size
	SourceSize image.Point
	// Letterbox keeps the source aspect ratio when resizing
	Letterbox bool
	// Repeat is the number of timed runs per mode
	Repeat int
	// OutDir is the directory output artifacts are written to
	OutDir string
	// Ext is the image file extension of the artifacts, eg: png
	Ext string
	// WarmUp runs an untimed disable/enable cycle before the first
	// operation so the first measurement does not pay start up costs
	WarmUp bool
	// Persist writes the output of each mode to OutDir
	Persist bool
}

// DefaultConfig returns the settings of the reference benchmark
func DefaultConfig() Config {
	return Config{
		SourceSize: preprocess.ReferenceSize,
		Repeat:     1,
		OutDir:     ".",
		Ext:        "png",
		WarmUp:     true,
		Persist:    true,
	}
}

// ArtifactName returns the file name an output is saved under
func ArtifactName(tag string, mode Mode, ext string) string {
	return fmt.Sprintf("%s_%s_out.%s", tag, mode, ext)
}

// Harness runs each registry operation through the disable, measure,
// enable, measure and restore cycle
type Harness struct {
	Registry   Registry
	Codec      opencva.Codec
	Controller *opencva.Controller
	Config     Config
	Log        zerolog.Logger
	// WarmUpOp is run untimed in each mode before the benchmark, the
	// laplacian filter2D from WarmUpFilter when unset
	WarmUpOp Descriptor

	// now returns the monotonic time, replaced in tests
	now func() time.Time
	// onResult is called after each operation is reported
	onResult func(Result)
}

// NewHarness returns a Harness over registry using codec for decoding the
// source and saving outputs, and ctrl for switching the accelerator
func NewHarness(registry Registry, codec opencva.Codec, ctrl *opencva.Controller, cfg Config) *Harness {

	if ctrl == nil {
		ctrl = opencva.NewController(nil)
	}

	if cfg.Repeat < 1 {
		cfg.Repeat = 1
	}

	if cfg.Ext == "" {
		cfg.Ext = "png"
	}

	return &Harness{
		Registry:   registry,
		Codec:      codec,
		Controller: ctrl,
		Config:     cfg,
		Log:        zerolog.Nop(),
		WarmUpOp:   WarmUpFilter(),
		now:        time.Now,
	}
}

// OnResult registers fn to be called with each Result as soon as its
// operation completes
func (h *Harness) OnResult(fn func(Result)) {
	h.onResult = fn
}

// Run benchmarks every operation in registry order against the image at
// srcPath.  A failing operation is recorded and the remaining operations
// still run.
func (h *Harness) Run(srcPath string) []Result {

	if h.Config.WarmUp {
		h.warmUp(srcPath)
	}

	results := make([]Result, 0, len(h.Registry))

	for _, d := range h.Registry {
		res := h.RunOne(d, srcPath)
		results = append(results, res)

		if h.onResult != nil {
			h.onResult(res)
		}
	}

	return results
}

// RunOne benchmarks a single operation
func (h *Harness) RunOne(d Descriptor, srcPath string) Result {

	res := Result{
		ID:    d.ID,
		Title: d.Title,
	}

	log := h.Log.With().Str("op", d.ID.String()).Str("tag", d.Tag()).Logger()

	fail := func(stage Stage, err error) Result {
		res.Status = StatusFailed
		res.Stage = stage
		res.Err = err
		log.Error().Err(err).Str("stage", stage.String()).Msg("operation failed")
		return res
	}

	// PREPARE_INPUT
	src, in, err := h.prepare(d, srcPath)

	if err != nil {
		return fail(StagePrepareInput, err)
	}

	want := d.Output(in)

	lease, err := h.Controller.Acquire(d.Mask)

	if err != nil {
		return fail(StageDisableAccel, err)
	}

	// RESTORE_ACCEL_NEUTRAL on every exit path
	defer func() {
		lease.Release()
		log.Debug().Str("stage", StageRestoreNeutral.String()).
			Str("state", h.Controller.State().String()).Msg("accelerator restored")
	}()

	modes := []struct {
		mode    Mode
		toggle  func() error
		set     Stage
		run     Stage
		persist Stage
		timing  *Timing
	}{
		{ModeReference, lease.Disable, StageDisableAccel, StageRunReference, StagePersistReference, &res.Reference},
		{ModeAccelerated, lease.Enable, StageEnableAccel, StageRunAccelerated, StagePersistAccelerated, &res.Accelerated},
	}

	for _, m := range modes {
		if err := m.toggle(); err != nil {
			return fail(m.set, err)
		}

		out, timing, err := h.measure(d, in, want)

		if err != nil {
			return fail(m.run, err)
		}

		*m.timing = timing

		log.Info().Str("stage", m.run.String()).Str("mode", m.mode.String()).
			Float64("ms", timing.Mean).Msg("measured")

		if h.Config.Persist {
			if err := h.persist(d, src, in, out, m.mode); err != nil {
				res.Warnings = append(res.Warnings, err)
				log.Warn().Err(err).Str("stage", m.persist.String()).Msg("could not save output")
			}
		}
	}

	res.Status = StatusOK
	res.Stage = StageReport

	log.Info().Str("stage", StageReport.String()).Float64("reference_ms", res.ReferenceMs()).
		Float64("accelerated_ms", res.AcceleratedMs()).Str("speedup", res.Speedup().String()).
		Msg("operation complete")

	return res
}

// prepare decodes a fresh copy of the source, brings it to the configured
// size and builds the kernel input
func (h *Harness) prepare(d Descriptor, srcPath string) (opencva.Frame, Input, error) {

	if h.Codec == nil {
		return opencva.Frame{}, Input{}, fmt.Errorf("%w: no codec configured", opencva.ErrDecode)
	}

	src, err := h.Codec.Decode(srcPath)

	if err != nil {
		return opencva.Frame{}, Input{}, err
	}

	src, err = preprocess.Normalize(src, h.Config.SourceSize, h.Config.Letterbox)

	if err != nil {
		return opencva.Frame{}, Input{}, err
	}

	in, err := d.Input(src)

	if err != nil {
		return opencva.Frame{}, Input{}, err
	}

	return src, in, nil
}

// measure binds the kernel and times Repeat runs of it, only the kernel call
// is inside the timed region
func (h *Harness) measure(d Descriptor, in Input, want opencva.Shape) (opencva.Frame, Timing, error) {

	inv, err := d.Kernel.Bind(in, want)

	if err != nil {
		return opencva.Frame{}, Timing{}, err
	}

	defer inv.Close()

	now := h.now

	if now == nil {
		now = time.Now
	}

	repeat := max(h.Config.Repeat, 1)
	samples := make([]time.Duration, 0, repeat)

	for i := 0; i < repeat; i++ {
		start := now()
		err := inv.Run()
		elapsed := now().Sub(start)

		if err != nil {
			return opencva.Frame{}, Timing{}, err
		}

		samples = append(samples, elapsed)
	}

	out, err := inv.Output()

	if err != nil {
		return opencva.Frame{}, Timing{}, err
	}

	if out.Shape() != want {
		return opencva.Frame{}, Timing{}, fmt.Errorf("%w: output %s, expected %s",
			opencva.ErrKernel, out.Shape(), want)
	}

	return out, newTiming(samples), nil
}

// persist saves the output of a mode, running the Visualize hook first
func (h *Harness) persist(d Descriptor, src opencva.Frame, in Input, out opencva.Frame, mode Mode) error {

	var err error

	if d.Visualize != nil {
		out, err = d.Visualize(src, in, out)

		if err != nil {
			return fmt.Errorf("%w: visualising %s output: %w", opencva.ErrEncode, d.Tag(), err)
		}
	}

	path := filepath.Join(h.Config.OutDir, ArtifactName(d.Tag(), mode, h.Config.Ext))

	if err := h.Codec.Encode(path, out); err != nil {
		if errors.Is(err, opencva.ErrEncode) {
			return err
		}
		return fmt.Errorf("%w: %w", opencva.ErrEncode, err)
	}

	return nil
}

// warmUp runs WarmUpOp once in each mode without recording the timing or
// saving anything
func (h *Harness) warmUp(srcPath string) {

	d := h.WarmUpOp

	if d.Kernel == nil {
		d = WarmUpFilter()
	}

	_, in, err := h.prepare(d, srcPath)

	if err != nil {
		h.Log.Warn().Err(err).Msg("warm up skipped")
		return
	}

	lease, err := h.Controller.Acquire(d.Mask)

	if err != nil {
		h.Log.Warn().Err(err).Msg("warm up skipped")
		return
	}

	defer lease.Release()

	for _, toggle := range []func() error{lease.Disable, lease.Enable} {
		if err := toggle(); err != nil {
			h.Log.Warn().Err(err).Msg("warm up aborted")
			return
		}

		if _, _, err := h.measure(d, in, d.Output(in)); err != nil {
			h.Log.Warn().Err(err).Msg("warm up aborted")
			return
		}
	}

	h.Log.Debug().Msg("warm up complete")
}
