package sigtable_test

import (
	"runtime"
	"syscall"
	"testing"

	"github.com/cloudboot/initsv/internal/sigtable"
	"golang.org/x/sync/errgroup"
)

func TestRewrite(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.Rewrite(int(syscall.SIGTERM), int(syscall.SIGINT)); err != nil {
		t.Fatalf("%v", err)
	}

	kind, target, _ := tbl.Lookup(int(syscall.SIGTERM))
	if kind != sigtable.Forward || target != int(syscall.SIGINT) {
		t.Errorf("Lookup(SIGTERM) = %v, %d, want Forward, %d", kind, target, syscall.SIGINT)
	}
}

func TestRewriteZeroIsIgnore(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.Rewrite(int(syscall.SIGTERM), 0); err != nil {
		t.Fatalf("%v", err)
	}

	kind, _, _ := tbl.Lookup(int(syscall.SIGTERM))
	if kind != sigtable.Ignore {
		t.Errorf("Lookup(SIGTERM) kind = %v, want Ignore", kind)
	}
}

func TestRewriteOutOfRange(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.Rewrite(0, 1); err == nil {
		t.Errorf("Rewrite(0, 1) = nil, want error")
	}
	if err := tbl.Rewrite(sigtable.MAXSIG+1, 1); err == nil {
		t.Errorf("Rewrite(MAXSIG+1, 1) = nil, want error")
	}
	if err := tbl.Rewrite(1, sigtable.MAXSIG+1); err == nil {
		t.Errorf("Rewrite(1, MAXSIG+1) = nil, want error")
	}
}

func TestMaxsigBoundary(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.Rewrite(sigtable.MAXSIG, int(syscall.SIGSTOP)); err != nil {
		t.Errorf("Rewrite(MAXSIG, ...) = %v, want nil", err)
	}
}

func TestBulkRewrite(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.RewriteAll(0); err != nil {
		t.Fatalf("%v", err)
	}

	for s := 1; s <= sigtable.MAXSIG; s++ {
		kind, _, _ := tbl.Lookup(s)
		if kind != sigtable.Ignore {
			t.Errorf("Lookup(%d) kind = %v, want Ignore", s, kind)
			break
		}
	}
}

// Applying "-r 0:R" followed by "-r S:R'" produces the same table as
// initializing with R and then overwriting slot S with R'.
func TestBulkThenOverrideIdempotence(t *testing.T) {
	a := sigtable.New()
	_ = a.RewriteAll(int(syscall.SIGUSR1))
	_ = a.Rewrite(int(syscall.SIGTERM), int(syscall.SIGINT))

	b := sigtable.New()
	for s := 1; s <= sigtable.MAXSIG; s++ {
		_ = b.Rewrite(s, int(syscall.SIGUSR1))
	}
	_ = b.Rewrite(int(syscall.SIGTERM), int(syscall.SIGINT))

	for s := 1; s <= sigtable.MAXSIG; s++ {
		ka, ta, _ := a.Lookup(s)
		kb, tb, _ := b.Lookup(s)
		if ka != kb || ta != tb {
			t.Errorf("signal %d: a=(%v,%d) b=(%v,%d)", s, ka, ta, kb, tb)
		}
	}
}

func TestAction(t *testing.T) {
	tbl := sigtable.New()

	if err := tbl.SetAction(int(syscall.SIGUSR1), "echo hit"); err != nil {
		t.Fatalf("%v", err)
	}

	kind, _, cmd := tbl.Lookup(int(syscall.SIGUSR1))
	if kind != sigtable.Action || cmd != "echo hit" {
		t.Errorf("Lookup(SIGUSR1) = %v, %q, want Action, %q", kind, cmd, "echo hit")
	}
}

func TestActionEmptyCommand(t *testing.T) {
	tbl := sigtable.New()
	if err := tbl.SetAction(int(syscall.SIGUSR1), ""); err == nil {
		t.Errorf("SetAction with empty command = nil, want error")
	}
}

func TestApplySetsidDefaults(t *testing.T) {
	tbl := sigtable.New()
	tbl.ApplySetsidDefaults()

	for _, s := range []syscall.Signal{syscall.SIGTSTP, syscall.SIGTTOU, syscall.SIGTTIN} {
		kind, target, _ := tbl.Lookup(int(s))
		if kind != sigtable.Forward || target != int(syscall.SIGSTOP) {
			t.Errorf("Lookup(%v) = %v, %d, want Forward, SIGSTOP", s, kind, target)
		}
	}
}

// A table is built once, then read concurrently by every goroutine
// that might dispatch a signal. -race must find nothing wrong here.
func TestConcurrentLookupIsRaceFree(t *testing.T) {
	tbl := sigtable.New()
	_ = tbl.Rewrite(int(syscall.SIGTERM), int(syscall.SIGINT))
	_ = tbl.SetAction(int(syscall.SIGUSR1), "true")
	tbl.ApplySetsidDefaults()

	g := new(errgroup.Group)
	n := runtime.NumCPU() * 2

	for i := 0; i < n; i++ {
		g.Go(func() error {
			for s := 1; s <= sigtable.MAXSIG; s++ {
				tbl.Lookup(s)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Errorf("%v", err)
	}
}

func TestApplySetsidDefaultsDoesNotOverride(t *testing.T) {
	tbl := sigtable.New()
	_ = tbl.Rewrite(int(syscall.SIGTSTP), int(syscall.SIGUSR2))
	tbl.ApplySetsidDefaults()

	kind, target, _ := tbl.Lookup(int(syscall.SIGTSTP))
	if kind != sigtable.Forward || target != int(syscall.SIGUSR2) {
		t.Errorf("Lookup(SIGTSTP) = %v, %d, want Forward, SIGUSR2 (explicit config must win)", kind, target)
	}
}
