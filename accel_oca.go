//go:build opencva

package opencva

/*
#cgo LDFLAGS: -lopencv_core
unsigned long OCA_Activate(unsigned long *OCA_list);
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// OCADriver applies state vectors through OCA_Activate() in the accelerator
// enabled OpenCV build shipped with the RZ/V AI SDK
type OCADriver struct{}

// NewOCADriver returns the hardware driver
func NewOCADriver() (Driver, error) {
	return OCADriver{}, nil
}

// Apply wraps C.OCA_Activate, passing the full 16 unit vector
func (OCADriver) Apply(state State) error {

	var list [NumUnits]C.ulong

	for i, m := range state {
		list[i] = C.ulong(m)
	}

	ret := C.OCA_Activate((*C.ulong)(unsafe.Pointer(&list[0])))

	if ret != 0 {
		return fmt.Errorf("OCA_Activate failed with code %d", uint64(ret))
	}

	return nil
}
