package process_test

import (
	"os"
	"testing"

	"github.com/cloudboot/initsv/process"
)

func TestNewPid(t *testing.T) {
	p := process.New()
	if pid := os.Getpid(); pid != p.Pid() {
		t.Errorf("Pid() = %d, want %d", p.Pid(), pid)
	}
}

func TestSnapshot(t *testing.T) {
	pids, err := process.Snapshot(process.Procfs)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(pids) == 0 {
		t.Errorf("Snapshot returned no processes")
	}
}

func TestChildrenOfInit(t *testing.T) {
	p := process.New(process.WithPid(1))
	if _, err := p.Children(); err != nil {
		t.Errorf("Children() of pid 1 = %v, want nil error", err)
	}
}
