// Package subreaper marks the current process as the reaper of
// orphaned descendants, so that grandchildren whose immediate parent
// exits reparent to the supervisor instead of to true PID 1. This is
// what makes the bereavement monitor's process count meaningful in
// survive-bereaving mode: without it, orphans escape to init and the
// supervisor can never observe them draining to zero.
package subreaper

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Set configures the calling process as a child subreaper.
func Set() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

// Get reports whether the calling process is currently a child
// subreaper.
func Get() bool {
	var arg2 int
	err := unix.Prctl(unix.PR_GET_CHILD_SUBREAPER, uintptr(unsafe.Pointer(&arg2)), 0, 0, 0)
	return err == nil && arg2 == 1
}
