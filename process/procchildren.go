package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProcChildren reads the kernel-exported list of child tasks directly,
// avoiding a full procfs walk. The file is documented in procfs(5):
//
//	A space-separated list of child tasks of this task. Each child
//	task is represented by its TID.
//
// Available only when the kernel was built with CONFIG_PROC_CHILDREN.
type ProcChildren struct {
	pid    int
	procfs string
}

func (p *ProcChildren) Pid() int { return p.pid }

// Children returns the direct and indirect descendants of p's PID by
// reading /proc/<pid>/task/<pid>/children for the target and then for
// each child found, recursively.
func (p *ProcChildren) Children() ([]int, error) {
	seen := make(map[int]struct{})
	if err := p.walk(p.pid, seen); err != nil {
		return nil, err
	}
	cld := make([]int, 0, len(seen))
	for pid := range seen {
		cld = append(cld, pid)
	}
	return cld, nil
}

func (p *ProcChildren) walk(pid int, seen map[int]struct{}) error {
	path := fmt.Sprintf("%s/%d/task/%d/children", p.procfs, pid, pid)
	b, err := os.ReadFile(path)
	if err != nil {
		if pid == p.pid {
			return err
		}
		// A child may have exited between enumeration steps;
		// that is not an enumeration failure for the walk as a
		// whole.
		return nil
	}

	for _, s := range strings.Fields(string(b)) {
		cpid, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		if _, ok := seen[cpid]; ok {
			continue
		}
		seen[cpid] = struct{}{}
		if err := p.walk(cpid, seen); err != nil {
			return err
		}
	}
	return nil
}
