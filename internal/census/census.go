// Package census implements the bereavement monitor: it decides
// whether the process population has drained to just the supervisor
// itself, the signal to exit in survive-bereaving mode.
package census

import (
	"os"

	"github.com/cloudboot/initsv/process"
)

// Count scans procfs, counting entries whose names are entirely
// digits, and returns as soon as the count exceeds 1 — the exact
// count beyond that point is never needed. It returns -1 if the
// process directory cannot be enumerated at all, which the caller
// must treat as "still alive" rather than as zero.
func Count(procfs string) int {
	f, err := os.Open(procfs)
	if err != nil {
		return -1
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return -1
	}

	n := 0
	for _, name := range names {
		if !allDigits(name) {
			continue
		}
		n++
		if n > 1 {
			return n
		}
	}
	return n
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Alone reports whether Count(procfs) indicates the supervisor is the
// only process left standing. On enumeration failure it conservatively
// reports false (still alive) rather than risking an early exit.
func Alone(procfs string) bool {
	n := Count(procfs)
	return n >= 0 && n <= 1
}

// AloneOrFallback reports the same thing Alone does, but when procfs
// cannot be enumerated directly it substitutes Fallback's descendant
// walk from pid instead of conservatively assuming the supervisor is
// not alone.
func AloneOrFallback(procfs string, pid int) bool {
	if n := Count(procfs); n >= 0 {
		return n <= 1
	}
	n := Fallback(pid)
	return n >= 0 && n <= 1
}

// Fallback enumerates processes through the process package's
// descendant walk instead of a flat procfs scan, for the rare system
// where the process directory listing above cannot be used directly
// but /proc/[pid]/stat files are still readable. It counts the
// supervisor itself plus its live descendants.
func Fallback(pid int) int {
	p := process.New(process.WithPid(pid))
	children, err := p.Children()
	if err != nil {
		return -1
	}
	return len(children) + 1
}
