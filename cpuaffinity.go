package opencva

import (
	"fmt"
	"strings"
	"syscall"
	"unsafe"
)

const (
	// RZV2LAllCores is the cpu affinity mask of the cortex A55 cores 0-1
	RZV2LAllCores = uintptr(0b00000011)
	// RZV2LBenchCore is the cpu affinity mask of cortex A55 core 1, leaving
	// core 0 to service interrupts
	RZV2LBenchCore = uintptr(0b00000010)

	// RZV2HAllCores is the cpu affinity mask of the cortex A55 cores 0-3
	RZV2HAllCores = uintptr(0b00001111)
	// RZV2HBenchCore is the cpu affinity mask of cortex A55 core 3
	RZV2HBenchCore = uintptr(0b00001000)

	// RZV2MAllCores is the cpu affinity mask of the cortex A53 cores 0-1
	RZV2MAllCores = uintptr(0b00000011)
	// RZV2MBenchCore is the cpu affinity mask of cortex A53 core 1
	RZV2MBenchCore = uintptr(0b00000010)

	// RZV2MAAllCores is the cpu affinity mask of the cortex A53 cores 0-1
	RZV2MAAllCores = uintptr(0b00000011)
	// RZV2MABenchCore is the cpu affinity mask of cortex A53 core 1
	RZV2MABenchCore = uintptr(0b00000010)
)

// CoreType specifies which CPU cores to pin the benchmark to
type CoreType int

const (
	// BenchCore pins to a single core so timings are not disturbed by
	// scheduler migration
	BenchCore CoreType = 0
	// AllCores lets OpenCV's own thread pool use every core
	AllCores CoreType = 1
)

// coreMaskList defines a list of CPU core masks for lookup by key
var coreMaskList = map[string]map[CoreType]uintptr{
	"rzv2l": {
		BenchCore: RZV2LBenchCore,
		AllCores:  RZV2LAllCores,
	},
	"rzv2h": {
		BenchCore: RZV2HBenchCore,
		AllCores:  RZV2HAllCores,
	},
	"rzv2m": {
		BenchCore: RZV2MBenchCore,
		AllCores:  RZV2MAllCores,
	},
	"rzv2ma": {
		BenchCore: RZV2MABenchCore,
		AllCores:  RZV2MAAllCores,
	},
}

// Platforms returns the platform names accepted by SetCPUAffinityByPlatform
func Platforms() []string {
	return []string{"rzv2l", "rzv2h", "rzv2m", "rzv2ma"}
}

// SetCPUAffinity sets the CPU Affinity mask of the program to run on the specified
// cores
func SetCPUAffinity(mask uintptr) error {

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return fmt.Errorf("failed to set CPU affinity: %w", err)
	}

	return nil
}

// GetCPUAffinity gets the current CPU Affinity mask the program is running on
func GetCPUAffinity() (uintptr, error) {

	var mask uintptr

	_, _, err := syscall.RawSyscall(syscall.SYS_SCHED_GETAFFINITY, 0,
		unsafe.Sizeof(mask), uintptr(unsafe.Pointer(&mask)))

	if err != 0 {
		return 0, fmt.Errorf("failed to get CPU affinity: %w", err)
	}

	return mask, nil
}

// CPUCoreMask calculates the core mask by passing in the CPU core numbers as a
// slice, eg: []int{0,1}
func CPUCoreMask(cores []int) uintptr {

	var mask uintptr

	for _, core := range cores {
		mask |= 1 << core
	}

	return mask
}

// PlatformCoreMask returns the affinity mask for the given platform string of
// rzv2l|rzv2h|rzv2m|rzv2ma and core type
func PlatformCoreMask(platform string, ct CoreType) (uintptr, error) {

	platform = strings.ToLower(strings.TrimSpace(platform))

	if masks, ok := coreMaskList[platform]; ok {
		if mask, ok := masks[ct]; ok {
			return mask, nil
		}
	}

	return 0, fmt.Errorf("unknown platform: %s", platform)
}

// SetCPUAffinityByPlatform sets the CPU Affinity mask of the program to run
// on the specified CPU cores based on the given platform string of
// rzv2l|rzv2h|rzv2m|rzv2ma
func SetCPUAffinityByPlatform(platform string, ct CoreType) error {

	mask, err := PlatformCoreMask(platform, ct)

	if err != nil {
		return err
	}

	return SetCPUAffinity(mask)
}
