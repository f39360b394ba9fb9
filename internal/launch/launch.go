// Package launch implements the pre-fork and fork steps that turn a
// parsed Config into a running supervised child: queueing signals
// before the child exists, best-effort controlling-TTY detachment,
// subreaper setup, and the fork/exec itself.
package launch

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/cloudboot/initsv/internal/config"
	"github.com/cloudboot/initsv/internal/obslog"
	"github.com/cloudboot/initsv/subreaper"
	"golang.org/x/sys/unix"
)

// Result is everything the signal pump needs once the child is
// running.
type Result struct {
	Cmd     *exec.Cmd
	Signals chan os.Signal
}

// ExecError wraps a failure to start the requested program image. In
// the classic fork/exec model this is the child exiting 2 after a
// failed exec(); Go's os/exec surfaces the same failure synchronously
// to the parent's Start() call instead, so main maps ExecError to exit
// code 2 to keep the same exec-failure contract visible to callers.
type ExecError struct {
	Err error
}

func (e *ExecError) Error() string { return e.Err.Error() }
func (e *ExecError) Unwrap() error { return e.Err }

// Start performs the launcher sequence, in order:
//
//  1. Register interest in every signal before the child exists, so
//     anything delivered between now and the pump's first iteration
//     is queued in the channel buffer rather than taking the
//     process's default disposition.
//  2. If cfg.UseSetsid(), best-effort detach from the controlling
//     terminal.
//  3. Best-effort mark the supervisor as a child subreaper, so
//     grandchildren orphaned later reparent here.
//  4. Fork and exec the requested command, placing it in its own
//     session when cfg.UseSetsid() so it (and anything it spawns)
//     can be signalled as a group via negative-PID delivery; the
//     child best-effort acquires that session's controlling terminal
//     over its inherited stdin.
func Start(cfg *config.Config, log *obslog.Logger) (*Result, error) {
	sigs := make(chan os.Signal, 128)
	signal.Notify(sigs)

	if cfg.UseSetsid() {
		detachControllingTTY(log)
	}

	if err := subreaper.Set(); err != nil {
		log.Debugf("subreaper: %v (grandchildren may not reparent here in survive-bereaving mode)", err)
	}

	if len(cfg.Command) == 0 {
		signal.Stop(sigs)
		return nil, fmt.Errorf("launch: no command given")
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	cmd.SysProcAttr = sysProcAttr(cfg, log)

	if err := cmd.Start(); err != nil {
		signal.Stop(sigs)
		return nil, &ExecError{Err: err}
	}

	if cfg.UseSetsid() {
		log.Debugf("started %q as pid %d in its own session", cfg.Command[0], cmd.Process.Pid)
	} else {
		log.Debugf("started %q as pid %d", cfg.Command[0], cmd.Process.Pid)
	}

	return &Result{Cmd: cmd, Signals: sigs}, nil
}

// sysProcAttr builds the child's process attributes. Under setsid the
// child also attempts to acquire its new session's controlling
// terminal over fd 0 (TIOCSCTTY), the step that gives the supervised
// job the foreground-process-group semantics job-control relies on.
// Go performs that ioctl as part of the atomic fork+exec itself, so
// unlike the parent's own TIOCNOTTY detach above, a failure there
// would fail Start() outright rather than just being logged; the
// attempt is made only when fd 0 is actually a terminal, so the
// overwhelmingly common case of a supervisor with no controlling tty
// (containers, pipes) never risks that failure.
func sysProcAttr(cfg *config.Config, log *obslog.Logger) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{}
	if !cfg.UseSetsid() {
		return attr
	}
	attr.Setsid = true

	if isTerminal(0) {
		attr.Setctty = true
		attr.Ctty = 0
	} else {
		log.Debugf("stdin is not a terminal, child will not acquire a controlling tty")
	}

	return attr
}

// detachControllingTTY drops the supervisor's own controlling
// terminal so that the child, once it creates its own session, can
// acquire a fresh one. Failure is expected (and harmless) whenever
// the supervisor has no controlling terminal to begin with, e.g.
// under a typical container runtime.
func detachControllingTTY(log *obslog.Logger) {
	fd, err := unix.Open("/dev/tty", unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		log.Debugf("open /dev/tty: %v (no controlling terminal to detach)", err)
		return
	}
	defer unix.Close(fd)

	if err := unix.IoctlSetInt(fd, unix.TIOCNOTTY, 0); err != nil {
		log.Debugf("ioctl TIOCNOTTY: %v", err)
	}
}
