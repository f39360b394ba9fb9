// Package sigtable holds the signal-rewrite and signal-action tables
// that decide how the supervisor transforms an inbound signal before
// it is either forwarded, dropped, or turned into an action command.
package sigtable

import (
	"fmt"
	"syscall"
)

// MAXSIG is the highest signal number the tables index, covering the
// standard signals 1-31 and the real-time signal range on Linux.
const MAXSIG = 64

// Kind classifies what a rewrite-table slot means for dispatch.
type Kind int

const (
	// Unset means the slot has never been written: forward the
	// signal unchanged.
	Unset Kind = iota
	// Forward means the slot holds a replacement signal number,
	// including the case where the replacement equals the original.
	Forward
	// Ignore drops the signal silently (rewrite value 0).
	Ignore
	// Action means an action command is registered for this signal
	// and nothing is forwarded.
	Action
)

// Table is the immutable configuration the handler dispatches against.
// It is built once, before the signal pump starts, and never mutated
// afterward; every read from the pump goroutine is therefore race-free
// without locking.
type Table struct {
	rewrite [MAXSIG + 1]int  // value only meaningful when kind == Forward
	kind    [MAXSIG + 1]Kind
	action  [MAXSIG + 1]string
}

// New returns an empty table with every slot Unset.
func New() *Table {
	return &Table{}
}

// Rewrite sets rewrite[s] := r. r == 0 means Ignore. s must be in
// 1..=MAXSIG and r in 0..=MAXSIG.
func (t *Table) Rewrite(s, r int) error {
	if s < 1 || s > MAXSIG {
		return fmt.Errorf("sigtable: signal %d out of range 1..%d", s, MAXSIG)
	}
	if r < 0 || r > MAXSIG {
		return fmt.Errorf("sigtable: rewrite target %d out of range 0..%d", r, MAXSIG)
	}
	if r == 0 {
		t.kind[s] = Ignore
		return nil
	}
	t.kind[s] = Forward
	t.rewrite[s] = r
	return nil
}

// RewriteAll overwrites every slot of the table with the same target,
// the bulk form of "-r 0:R". Slots an earlier -a marked as Action are
// overwritten too; a later per-signal -a still wins because options
// are applied in command-line order and bulk rewrite only ever runs
// once, at the point "0:R" is parsed.
func (t *Table) RewriteAll(r int) error {
	if r < 0 || r > MAXSIG {
		return fmt.Errorf("sigtable: rewrite target %d out of range 0..%d", r, MAXSIG)
	}
	for s := 1; s <= MAXSIG; s++ {
		if r == 0 {
			t.kind[s] = Ignore
			continue
		}
		t.kind[s] = Forward
		t.rewrite[s] = r
	}
	return nil
}

// SetAction registers s to run cmd instead of being forwarded.
func (t *Table) SetAction(s int, cmd string) error {
	if s < 1 || s > MAXSIG {
		return fmt.Errorf("sigtable: signal %d out of range 1..%d", s, MAXSIG)
	}
	if cmd == "" {
		return fmt.Errorf("sigtable: action for signal %d has an empty command", s)
	}
	t.kind[s] = Action
	t.action[s] = cmd
	return nil
}

// Lookup returns the dispatch kind for s, along with the forwarding
// target (only meaningful for Forward) or the action command (only
// meaningful for Action). s outside 1..=MAXSIG returns Unset.
func (t *Table) Lookup(s int) (kind Kind, target int, cmd string) {
	if s < 1 || s > MAXSIG {
		return Unset, 0, ""
	}
	switch t.kind[s] {
	case Forward:
		return Forward, t.rewrite[s], ""
	case Ignore:
		return Ignore, 0, ""
	case Action:
		return Action, 0, t.action[s]
	default:
		return Unset, 0, ""
	}
}

// IsSet reports whether s has ever been written, used to decide
// whether the job-control defaults in ApplySetsidDefaults should
// apply.
func (t *Table) IsSet(s int) bool {
	if s < 1 || s > MAXSIG {
		return false
	}
	return t.kind[s] != Unset
}

// ApplySetsidDefaults rewrites SIGTSTP, SIGTTOU, SIGTTIN to SIGSTOP
// when they have not already been explicitly configured. This matches
// how job-control signals must affect an entire process group reached
// via negative-PID kill: the kernel would otherwise discard the
// default stop disposition for a PID-1-like ancestor, so the
// supervisor raises SIGSTOP on itself instead (see the handler's
// job-control case).
func (t *Table) ApplySetsidDefaults() {
	for _, s := range []syscall.Signal{syscall.SIGTSTP, syscall.SIGTTOU, syscall.SIGTTIN} {
		n := int(s)
		if !t.IsSet(n) {
			_ = t.Rewrite(n, int(syscall.SIGSTOP))
		}
	}
}
