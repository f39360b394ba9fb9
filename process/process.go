// Package process enumerates the process table, for a single process's
// descendants or for the whole system, by reading procfs. It backs the
// bereavement monitor's fallback path and is available for verbose
// descendant tracing.
package process

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	// Procfs is the default mount point for procfs filesystems. The
	// default mountpoint can be changed with WithProcfs.
	Procfs = "/proc"

	// ErrSearch is returned when a PID has no corresponding process.
	ErrSearch = unix.ESRCH
)

var (
	ErrInvalid  = fs.ErrInvalid
	ErrNotExist = fs.ErrNotExist
)

// Process enumerates a single process's descendants.
type Process interface {
	Pid() int
	Children() ([]int, error)
}

// PID holds the parsed contents of /proc/<pid>/stat needed to walk
// the process tree.
type PID struct {
	Pid  int
	PPid int
}

// Ps scans the whole procfs tree and walks parent/child links to
// compute descendants. It works on any system with a /proc exposing
// /proc/[0-9]*/stat, and is the fallback strategy when the kernel
// does not export /proc/<pid>/task/<pid>/children.
type Ps struct {
	pid    int
	procfs string
}

type Option func(*psOptions)

type psOptions struct {
	pid    int
	procfs string
}

// WithPid sets the process ID whose descendants are enumerated.
func WithPid(pid int) Option {
	return func(o *psOptions) { o.pid = pid }
}

// WithProcfs overrides the procfs mount point. The path is ignored if
// it does not resolve or is not actually a procfs mount.
func WithProcfs(procfs string) Option {
	return func(o *psOptions) {
		abs, err := filepath.Abs(procfs)
		if err != nil {
			return
		}
		if err := isProcMounted(abs); err != nil {
			return
		}
		o.procfs = abs
	}
}

// New builds a Process using the best available strategy: the
// lightweight /proc/<pid>/task/<pid>/children file when the kernel
// exports it, otherwise a full procfs walk.
func New(opts ...Option) Process {
	o := &psOptions{pid: os.Getpid(), procfs: getenv("PROC", Procfs)}
	for _, opt := range opts {
		opt(o)
	}

	if procChildrenExists(o.procfs, o.pid) {
		return &ProcChildren{pid: o.pid, procfs: o.procfs}
	}

	return &Ps{pid: o.pid, procfs: o.procfs}
}

func getenv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func (p *Ps) Pid() int { return p.pid }

// Children returns a snapshot of the descendants of p's PID, obtained
// by walking the parent/child links in a full procfs scan.
func (p *Ps) Children() ([]int, error) {
	pids, err := Snapshot(p.procfs)
	if err != nil {
		return nil, err
	}
	return descendants(pids, p.pid), nil
}

func descendants(pids []PID, pid int) []int {
	seen := make(map[int]struct{})
	walk(pids, pid, seen)
	cld := make([]int, 0, len(seen))
	for p := range seen {
		cld = append(cld, p)
	}
	return cld
}

func children(pids []PID, pid int) (cld []PID) {
	for _, p := range pids {
		if p.PPid == pid {
			cld = append(cld, p)
		}
	}
	return cld
}

func walk(pids []PID, pid int, seen map[int]struct{}) {
	for _, p := range children(pids, pid) {
		if _, ok := seen[p.Pid]; ok {
			continue
		}
		seen[p.Pid] = struct{}{}
		walk(pids, p.Pid, seen)
	}
}

// Snapshot returns every process in procfs by parsing each
// /proc/[0-9]*/stat entry.
func Snapshot(procfs string) (p []PID, err error) {
	matches, err := filepath.Glob(fmt.Sprintf("%s/[0-9]*/stat", procfs))
	if err != nil {
		return nil, err
	}
	for _, stat := range matches {
		pid, err := readProcStat(stat)
		if err != nil {
			continue
		}
		p = append(p, pid)
	}
	return p, nil
}

func readProcStat(name string) (PID, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return PID{}, err
	}

	// <pid> (<comm>) <state> <ppid> ...
	// comm may itself contain spaces and parentheses, so the PPID
	// field is located relative to the last ')' rather than by
	// naive whitespace splitting.
	stat := string(b)

	var pid int
	if n, err := fmt.Sscanf(stat, "%d ", &pid); err != nil || n != 1 {
		return PID{}, ErrInvalid
	}

	bracket := strings.LastIndexByte(stat, ')')
	if bracket == -1 {
		return PID{}, ErrInvalid
	}

	var state byte
	var ppid int
	if n, err := fmt.Sscanf(stat[bracket+1:], " %c %d", &state, &ppid); err != nil || n != 2 {
		return PID{}, ErrInvalid
	}

	return PID{Pid: pid, PPid: ppid}, nil
}

func procChildrenExists(procfs string, pid int) bool {
	_, err := os.Stat(fmt.Sprintf("%s/%d/task/%d/children", procfs, pid, pid))
	return err == nil
}

func isProcMounted(procfs string) error {
	var buf syscall.Statfs_t
	if err := syscall.Statfs(procfs, &buf); err != nil {
		return err
	}
	if buf.Type != unix.PROC_SUPER_MAGIC {
		return ErrNotExist
	}
	return nil
}
