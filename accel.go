package opencva

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// NumUnits is the number of OCA function units addressed by a state vector
const NumUnits = 16

// Unit is the index of an OCA function unit (DRP circuit) in the state vector
type Unit int

// OCA function unit numbers.  The two colour conversions share the same
// circuit.
const (
	UnitResize            Unit = 0
	UnitCvtColor          Unit = 2
	UnitCvtColorTwoPlane  Unit = 2
	UnitGaussianBlur      Unit = 4
	UnitDilate            Unit = 5
	UnitErode             Unit = 6
	UnitFilter2D          Unit = 7
	UnitSobel             Unit = 8
	UnitAdaptiveThreshold Unit = 9
	UnitMatchTemplate     Unit = 10
	UnitWarpAffine        Unit = 11
	UnitPyrDown           Unit = 12
	UnitPyrUp             Unit = 13
	UnitWarpPerspective   Unit = 14
)

// Mode is the requested state of a single function unit
type Mode uint8

// Mode values match those expected by OCA_Activate()
const (
	ModeDisable  Mode = 0
	ModeEnable   Mode = 1
	ModeNoChange Mode = 2
)

// String returns a readable name of the mode
func (m Mode) String() string {
	switch m {
	case ModeDisable:
		return "disabled"
	case ModeEnable:
		return "enabled"
	case ModeNoChange:
		return "unchanged"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Mask is a set of function units, bit n set for Unit n
type Mask uint16

// MaskOf returns a Mask containing the given units
func MaskOf(units ...Unit) Mask {

	var m Mask

	for _, u := range units {
		m |= 1 << uint(u)
	}

	return m
}

// Has reports if unit u is in the mask
func (m Mask) Has(u Unit) bool {
	return u >= 0 && u < NumUnits && m&(1<<uint(u)) != 0
}

// Units returns the units in the mask in ascending order
func (m Mask) Units() []Unit {

	var units []Unit

	for u := Unit(0); u < NumUnits; u++ {
		if m.Has(u) {
			units = append(units, u)
		}
	}

	return units
}

// String returns the mask as a list of unit numbers, eg: {5,6}
func (m Mask) String() string {

	parts := make([]string, 0, NumUnits)

	for _, u := range m.Units() {
		parts = append(parts, fmt.Sprintf("%d", u))
	}

	return "{" + strings.Join(parts, ",") + "}"
}

// State is an immutable snapshot of the mode of every function unit, passed
// in full to the driver on each transition
type State [NumUnits]Mode

// Neutral returns a State with every unit left unchanged
func Neutral() State {

	var s State

	for i := range s {
		s[i] = ModeNoChange
	}

	return s
}

// With returns a copy of s with the units in mask set to mode
func (s State) With(mask Mask, mode Mode) State {

	for _, u := range mask.Units() {
		s[u] = mode
	}

	return s
}

// IsNeutral reports if every unit is left unchanged
func (s State) IsNeutral() bool {
	return s == Neutral()
}

// String returns the modes as a compact digit string, eg: 2222200222222222
func (s State) String() string {

	var b strings.Builder

	for _, m := range s {
		b.WriteByte('0' + byte(m))
	}

	return b.String()
}

// Driver applies a full state vector to the accelerator hardware.  Apply is
// expected to be synchronous and idempotent.
type Driver interface {
	Apply(state State) error
}

// NopDriver accepts every state vector without touching hardware, it is used
// on hosts without the accelerator where both modes run on the CPU
type NopDriver struct{}

// Apply does nothing
func (NopDriver) Apply(State) error {
	return nil
}

// LogDriver wraps another Driver and logs each state vector applied
type LogDriver struct {
	Next Driver
	Log  zerolog.Logger
}

// Apply logs state then forwards it to the wrapped driver
func (d LogDriver) Apply(state State) error {

	d.Log.Debug().Str("state", state.String()).Msg("apply accelerator state")

	if d.Next == nil {
		return nil
	}

	return d.Next.Apply(state)
}

// Controller owns the process wide accelerator State.  Only one operation
// may hold a Lease at a time, so operations can not race on the driver's
// state vector.
type Controller struct {
	mu     sync.Mutex
	driver Driver
	state  State
	leased bool
}

// NewController returns a Controller in the neutral state that pushes state
// vectors through driver
func NewController(driver Driver) *Controller {

	if driver == nil {
		driver = NopDriver{}
	}

	return &Controller{
		driver: driver,
		state:  Neutral(),
	}
}

// State returns the current state snapshot
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Acquire returns a Lease over the units in mask.  The caller must Release
// the lease on every exit path, typically with defer.
func (c *Controller) Acquire(mask Mask) (*Lease, error) {

	if mask == 0 {
		return nil, fmt.Errorf("%w: empty unit mask", ErrDriver)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.leased {
		return nil, ErrBusy
	}

	c.leased = true

	return &Lease{ctrl: c, mask: mask}, nil
}

// apply builds the snapshot for the transition and pushes it through the
// driver in a single call
func (c *Controller) apply(mask Mask, mode Mode) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	next := Neutral().With(mask, mode)

	if err := c.driver.Apply(next); err != nil {
		return fmt.Errorf("%w: setting units %s %s: %v", ErrDriver, mask, mode, err)
	}

	c.state = next
	return nil
}

// release returns the leased units to unchanged
func (c *Controller) release(mask Mask) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = c.state.With(mask, ModeNoChange)
	c.leased = false
}

// Lease is the scoped ownership of a set of units for the duration of one
// operation run
type Lease struct {
	ctrl     *Controller
	mask     Mask
	released bool
}

// Mask returns the units covered by the lease
func (l *Lease) Mask() Mask {
	return l.mask
}

// Disable switches the leased units off, all other units are left unchanged
func (l *Lease) Disable() error {
	return l.set(ModeDisable)
}

// Enable switches the leased units on, all other units are left unchanged
func (l *Lease) Enable() error {
	return l.set(ModeEnable)
}

func (l *Lease) set(mode Mode) error {

	if l.released {
		return fmt.Errorf("%w: lease over units %s already released", ErrDriver, l.mask)
	}

	return l.ctrl.apply(l.mask, mode)
}

// Release restores the leased units to unchanged.  It is safe to call more
// than once.
func (l *Lease) Release() {

	if l.released {
		return
	}

	l.released = true
	l.ctrl.release(l.mask)
}
