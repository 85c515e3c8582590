package bench

import (
	"fmt"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mode is the execution mode of a measurement
type Mode int

const (
	// ModeReference runs with the operation's accelerator units disabled
	ModeReference Mode = iota
	// ModeAccelerated runs with the operation's accelerator units enabled
	ModeAccelerated
)

// String returns the mode name used in artifact file names
func (m Mode) String() string {
	if m == ModeAccelerated {
		return "accelerated"
	}
	return "reference"
}

// Stage is a step of the per operation state machine
type Stage int

const (
	StageIdle Stage = iota
	StagePrepareInput
	StageDisableAccel
	StageRunReference
	StagePersistReference
	StageEnableAccel
	StageRunAccelerated
	StagePersistAccelerated
	StageRestoreNeutral
	StageReport
)

var stageNames = [...]string{
	StageIdle:               "idle",
	StagePrepareInput:       "prepare_input",
	StageDisableAccel:       "disable_accel",
	StageRunReference:       "run_reference",
	StagePersistReference:   "persist_reference_output",
	StageEnableAccel:        "enable_accel",
	StageRunAccelerated:     "run_accelerated",
	StagePersistAccelerated: "persist_accelerated_output",
	StageRestoreNeutral:     "restore_accel_neutral",
	StageReport:             "report",
}

// String returns the stage name
func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Status is the outcome of an operation run
type Status int

const (
	StatusOK Status = iota
	StatusFailed
)

// String returns the status name
func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "failed"
}

// Timing summarises the samples measured for one mode, values are in
// milliseconds
type Timing struct {
	Samples []float64
	Mean    float64
	StdDev  float64
	Min     float64
}

// newTiming computes the summary statistics of the duration samples
func newTiming(samples []time.Duration) Timing {

	ms := make([]float64, len(samples))

	for i, d := range samples {
		ms[i] = float64(d.Nanoseconds()) / 1e6
	}

	t := Timing{Samples: ms}

	switch len(ms) {
	case 0:
		return t
	case 1:
		t.Mean, t.Min = ms[0], ms[0]
		return t
	}

	t.Mean, t.StdDev = stat.MeanStdDev(ms, nil)
	t.Min = floats.Min(ms)

	return t
}

// Valid reports if the timing holds at least one sample
func (t Timing) Valid() bool {
	return len(t.Samples) > 0
}

// Ratio is a speed-up ratio which may be undefined, when the accelerated
// time is zero or a measurement is missing
type Ratio struct {
	value   float64
	defined bool
}

// Undefined is the Ratio reported when no ratio can be computed
var Undefined = Ratio{}

// NewRatio returns reference/accelerated or Undefined if accelerated is not
// positive
func NewRatio(reference, accelerated float64) Ratio {

	if accelerated <= 0 || reference < 0 {
		return Undefined
	}

	return Ratio{value: reference / accelerated, defined: true}
}

// Value returns the ratio and whether it is defined
func (r Ratio) Value() (float64, bool) {
	return r.value, r.defined
}

// Defined reports if the ratio holds a value
func (r Ratio) Defined() bool {
	return r.defined
}

// String formats the ratio with two decimals or returns "undefined"
func (r Ratio) String() string {

	if !r.defined {
		return "undefined"
	}

	return strconv.FormatFloat(r.value, 'f', 2, 64)
}

// Result is the immutable record of one operation run
type Result struct {
	ID    OpID
	Title string
	// Status is StatusFailed when a stage returned an error
	Status Status
	// Stage is the stage that failed
	Stage Stage
	// Err is the error that failed the run
	Err error
	// Reference is the timing with the accelerator disabled
	Reference Timing
	// Accelerated is the timing with the accelerator enabled
	Accelerated Timing
	// Warnings holds non fatal errors such as failing to save an output
	Warnings []error
}

// Tag returns the artifact tag of the operation
func (r Result) Tag() string {
	return r.ID.Tag()
}

// ReferenceMs returns the mean reference duration in milliseconds
func (r Result) ReferenceMs() float64 {
	return r.Reference.Mean
}

// AcceleratedMs returns the mean accelerated duration in milliseconds
func (r Result) AcceleratedMs() float64 {
	return r.Accelerated.Mean
}

// Speedup returns reference/accelerated, Undefined when the run failed or
// the accelerated time is zero
func (r Result) Speedup() Ratio {

	if r.Status != StatusOK || !r.Reference.Valid() || !r.Accelerated.Valid() {
		return Undefined
	}

	return NewRatio(r.Reference.Mean, r.Accelerated.Mean)
}

// Summary aggregates the defined speed-ups of a set of results
type Summary struct {
	Total   int
	Failed  int
	Defined int
	// GeoMean is the geometric mean of the defined speed-ups
	GeoMean Ratio
}

// Summarize computes the Summary of results, undefined ratios are left out
// of the aggregate
func Summarize(results []Result) Summary {

	s := Summary{Total: len(results)}
	var ratios []float64

	for _, r := range results {
		if r.Status != StatusOK {
			s.Failed++
			continue
		}

		v, ok := r.Speedup().Value()

		if !ok || v <= 0 {
			continue
		}

		ratios = append(ratios, v)
	}

	s.Defined = len(ratios)

	if len(ratios) > 0 {
		s.GeoMean = Ratio{value: stat.GeometricMean(ratios, nil), defined: true}
	}

	return s
}
