//go:build linux

package cycle

import (
	"fmt"
	"syscall"
	"unsafe"
)

// sysSchedSetaffinity is the amd64 syscall number for
// sched_setaffinity(2), hand-rolled rather than pulling in
// golang.org/x/sys/unix for one constant.
const sysSchedSetaffinity = 203

// setAffinity pins the calling thread to the given CPU core via a raw
// sched_setaffinity(2) call.
func setAffinity(core int) error {
	if core < 0 {
		return nil
	}
	var mask uint64
	if core >= 64 {
		return fmt.Errorf("cycle: core %d out of range for a 64-bit affinity mask", core)
	}
	mask = 1 << uint(core)

	_, _, errno := syscall.RawSyscall(
		sysSchedSetaffinity,
		0, // pid 0 = calling thread
		unsafe.Sizeof(mask),
		uintptr(unsafe.Pointer(&mask)),
	)
	if errno != 0 {
		return fmt.Errorf("sched_setaffinity core %d: %w", core, errno)
	}
	return nil
}
