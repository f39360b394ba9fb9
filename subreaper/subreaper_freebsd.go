package subreaper

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	pPID = 0

	procReapAcquire = 2
	procReapStatus  = 4

	reaperStatusOwned = 0x00000001
)

// Set configures the calling process as a reaper via procctl(2).
func Set() error {
	_, _, errno := syscall.Syscall6(
		unix.SYS_PROCCTL,
		pPID,
		0,
		procReapAcquire,
		0,
		0,
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

type reapStatus struct {
	flags       uint
	children    uint
	descendants uint
	reaper      int
	pid         int
	pad0        [15]uint
}

// Get reports whether the calling process currently owns reaper
// status.
func Get() bool {
	status := &reapStatus{}
	_, _, errno := syscall.Syscall6(
		unix.SYS_PROCCTL,
		pPID,
		0,
		procReapStatus,
		uintptr(unsafe.Pointer(status)),
		0,
		0,
	)
	return errno == 0 && status.flags&reaperStatusOwned != 0
}
