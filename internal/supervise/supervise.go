// Package supervise implements the signal pump and handler: the
// single-threaded loop that dequeues signals delivered to the
// supervisor and turns each into reaping, forwarding, job-control
// self-suspension, or an action command.
package supervise

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/cloudboot/initsv/internal/action"
	"github.com/cloudboot/initsv/internal/census"
	"github.com/cloudboot/initsv/internal/config"
	"github.com/cloudboot/initsv/internal/launch"
	"github.com/cloudboot/initsv/internal/obslog"
	"github.com/cloudboot/initsv/internal/sigtable"
	"github.com/cloudboot/initsv/process"
)

// heartbeat is how often the pump synthesizes a child-exit check even
// if no signal has arrived, the liveness tick that lets
// survive-bereaving notice grandchildren draining away.
const heartbeat = time.Second

// State is the small mutable record the pump owns exclusively: no
// other goroutine reads or writes it.
type State struct {
	ChildPID int
	Bereaved bool
}

// Run drives the pump until the handler decides to exit, and returns
// the process exit code for that exit.
func Run(cfg *config.Config, res *launch.Result, log *obslog.Logger) int {
	state := &State{ChildPID: res.Cmd.Process.Pid}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case sig, ok := <-res.Signals:
			if !ok {
				log.Errorf("bug: signal channel closed unexpectedly")
				return 1
			}
			if code, done := dispatchSignal(sig.(syscall.Signal), cfg, state, log); done {
				return code
			}
		case <-ticker.C:
			// Synthesized heartbeat: run exactly the same
			// child-exit handling a real SIGCHLD would, even
			// though nothing is actually pending. Reaping is
			// non-blocking so this is harmless, and it is the
			// only way survive-bereaving notices a grandchild
			// exit when no further real signal ever arrives.
			if code, done := handleChildExit(cfg, state, log); done {
				return code
			}
		}
	}
}

func dispatchSignal(sig syscall.Signal, cfg *config.Config, state *State, log *obslog.Logger) (code int, done bool) {
	switch sig {
	case syscall.SIGURG:
		// The Go runtime raises SIGURG internally for asynchronous
		// goroutine preemption; signal.Notify with no filter list
		// (like the rest of the pack's forwarders) receives it along
		// with everything actually sent to this process. It was
		// never sent to the supervisor from outside, so it is
		// dropped here rather than forwarded to the child's group.
		return 0, false
	case syscall.SIGCHLD:
		return handleChildExit(cfg, state, log)
	case syscall.SIGTSTP, syscall.SIGTTOU, syscall.SIGTTIN:
		forward(sig, cfg, state, log)
		if err := syscall.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
			log.Errorf("raise SIGSTOP on self: %v", err)
		}
		return 0, false
	default:
		forward(sig, cfg, state, log)
		return 0, false
	}
}

// forward applies the rewrite table to sig and either drops it,
// spawns an action subprocess, or delivers the rewritten signal to
// the child (or its whole process group, under setsid).
func forward(sig syscall.Signal, cfg *config.Config, state *State, log *obslog.Logger) {
	kind, target, cmd := cfg.Table.Lookup(int(sig))

	switch kind {
	case sigtable.Ignore:
		log.Debugf("ignore signal %v", sig)
		return
	case sigtable.Action:
		log.Debugf("signal %v: running action %q", sig, cmd)
		if pid, err := action.Run(cmd); err != nil {
			log.Errorf("action for signal %v: %v", sig, err)
		} else {
			log.Debugf("action for signal %v: started pid %d", sig, pid)
		}
		return
	case sigtable.Forward:
		deliver(cfg, state.ChildPID, syscall.Signal(target), log)
	default: // Unset: forward unchanged
		deliver(cfg, state.ChildPID, sig, log)
	}
}

func deliver(cfg *config.Config, childPID int, sig syscall.Signal, log *obslog.Logger) {
	target := childPID
	if cfg.UseSetsid() {
		target = -childPID
	}
	if err := syscall.Kill(target, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		log.Errorf("kill(%d, %v): %v", target, sig, err)
	}
}

// handleChildExit drains every reapable descendant non-blockingly.
// When the direct child is among them, it either terminates the
// supervisor with the child's own exit code (the common case) or, in
// survive-bereaving mode, keeps running and starts checking whether
// the whole supervised subtree has drained away.
func handleChildExit(cfg *config.Config, state *State, log *obslog.Logger) (code int, done bool) {
	for {
		pid, exitCode, ok := reapOne(log)
		if !ok {
			break
		}

		log.Debugf("reaped pid %d, exit status %d", pid, exitCode)

		if pid != state.ChildPID {
			continue
		}

		state.Bereaved = true

		if !cfg.SurviveBereaving {
			log.Debugf("direct child exited, forwarding SIGTERM to its group and exiting %d", exitCode)
			deliver(cfg, state.ChildPID, syscall.SIGTERM, log)
			return exitCode, true
		}
	}

	if state.Bereaved && cfg.SurviveBereaving {
		if census.AloneOrFallback(process.Procfs, os.Getpid()) {
			log.Debugf("process population drained to the supervisor alone, exiting 0")
			return 0, true
		}
	}
	return 0, false
}

// reapOne performs a single non-blocking wait, looping internally
// only to retry an EINTR. ok is false once there is nothing left to
// reap right now, whether because no descendant has exited (pid == 0)
// or because the supervisor has no children left (ECHILD).
func reapOne(log *obslog.Logger) (pid, exitCode int, ok bool) {
	for {
		var ws syscall.WaitStatus
		p, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		switch {
		case p == 0:
			return 0, 0, false
		case err == nil:
			return p, exitStatusCode(ws), true
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.ECHILD):
			return 0, 0, false
		default:
			log.Errorf("wait4: %v", err)
			return 0, 0, false
		}
	}
}

// exitStatusCode converts a raw wait status into its exit code: the
// low 8 bits of a normal exit, or 128+K for a termination by signal K.
func exitStatusCode(ws syscall.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}
