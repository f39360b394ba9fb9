// Package config parses the supervisor's command line and environment
// into an immutable Config, populating the signal-rewrite and
// signal-action tables exactly once before the launcher runs.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/cloudboot/initsv/internal/sigtable"
)

// Version is the supervisor's version string, reported by -V/--version.
const Version = "1.0.0"

// Config is the immutable result of parsing argv and the environment.
// It is built once in Parse and never mutated afterward; the handler
// reads it from a single goroutine so no synchronization is required.
type Config struct {
	Table *sigtable.Table

	SingleChild      bool
	SurviveBereaving bool
	Verbose          bool

	Command []string
}

// UseSetsid reports whether the child should run in its own session
// with signals delivered to the whole process group.
func (c *Config) UseSetsid() bool {
	return !c.SingleChild
}

// exitError is returned by Parse for condition that should terminate
// the process before the launcher runs. main translates it into
// fmt.Fprintln(os.Stderr, ...) + os.Exit(1), or os.Exit(0) for the
// help/version requests.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// ExitCode extracts the process exit code intended for an error
// returned by Parse, if any.
func ExitCode(err error) (int, bool) {
	var e *exitError
	if errors.As(err, &e) {
		return e.code, true
	}
	return 0, false
}

// Parse builds a Config from argv (excluding argv[0]) and the process
// environment. Malformed option syntax, out-of-range signal numbers,
// or a missing command all return a non-nil error before any fork
// happens, so no partial state is ever observable by the launcher.
func Parse(argv []string, environ []string) (*Config, error) {
	fs := flag.NewFlagSet("initsv", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		singleChild      bool
		surviveBereaving bool
		verbose          bool
		showVersion      bool
		opts             []rewriteOrAction
	)

	rewriteFlag := &orderedFlag{isAction: false, opts: &opts}
	actionFlag := &orderedFlag{isAction: true, opts: &opts}

	fs.BoolVar(&singleChild, "single-child", false, "disable setsid; signal only the direct child")
	fs.BoolVar(&singleChild, "c", false, "shorthand for -single-child")
	fs.BoolVar(&surviveBereaving, "survive-bereaving", false, "stay alive after the direct child exits")
	fs.BoolVar(&surviveBereaving, "b", false, "shorthand for -survive-bereaving")
	fs.Var(rewriteFlag, "rewrite", "remap signal S to R (R=0 drops); S=0 remaps all")
	fs.Var(rewriteFlag, "r", "shorthand for -rewrite")
	fs.Var(actionFlag, "action", "run cmd when signal S arrives")
	fs.Var(actionFlag, "a", "shorthand for -action")
	fs.BoolVar(&verbose, "verbose", false, "emit debug traces to standard error")
	fs.BoolVar(&verbose, "v", false, "shorthand for -verbose")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")
	fs.BoolVar(&showVersion, "V", false, "shorthand for -version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `initsv v%s
Usage: %s [options] command [args...]

Options:
`, Version, path.Base(progName(argv)))
		fs.PrintDefaults()
	}

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			return nil, &exitError{code: 0, msg: ""}
		}
		return nil, &exitError{code: 1, msg: err.Error()}
	}

	if showVersion {
		fmt.Fprintf(os.Stderr, "initsv v%s\n", Version)
		return nil, &exitError{code: 0, msg: ""}
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return nil, &exitError{code: 1, msg: ""}
	}

	env := lookupEnv(environ)
	if env["DEBUG"] == "1" {
		verbose = true
	}
	if env["SETSID"] == "0" {
		singleChild = true
	}

	tbl := sigtable.New()

	// Replayed in command-line order, not grouped by flag: a later
	// -r can still override an earlier -a for the same signal, and
	// vice versa, exactly as a single left-to-right option scan would
	// apply them.
	for _, o := range opts {
		if o.isAction {
			if err := applyAction(tbl, o.spec); err != nil {
				return nil, &exitError{code: 1, msg: err.Error()}
			}
			continue
		}
		if err := applyRewrite(tbl, o.spec); err != nil {
			return nil, &exitError{code: 1, msg: err.Error()}
		}
	}

	cfg := &Config{
		Table:            tbl,
		SingleChild:      singleChild,
		SurviveBereaving: surviveBereaving,
		Verbose:          verbose,
		Command:          fs.Args(),
	}

	if cfg.UseSetsid() {
		tbl.ApplySetsidDefaults()
	}

	return cfg, nil
}

func progName(argv []string) string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	if len(argv) > 0 {
		return argv[0]
	}
	return "initsv"
}

func lookupEnv(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

// applyRewrite parses "S:R" and applies it to tbl. "0:R" is the bulk
// form and overwrites every slot.
func applyRewrite(tbl *sigtable.Table, spec string) error {
	s, r, err := splitSignalPair(spec, "rewrite")
	if err != nil {
		return err
	}
	if s == 0 {
		return tbl.RewriteAll(r)
	}
	return tbl.Rewrite(s, r)
}

// applyAction parses "S:cmd" and registers an action for signal S.
func applyAction(tbl *sigtable.Table, spec string) error {
	idx := strings.IndexByte(spec, ':')
	if idx < 0 {
		return fmt.Errorf("config: malformed -action value %q, want S:cmd", spec)
	}
	s, err := strconv.Atoi(spec[:idx])
	if err != nil {
		return fmt.Errorf("config: malformed -action signal in %q: %w", spec, err)
	}
	cmd := spec[idx+1:]
	return tbl.SetAction(s, cmd)
}

func splitSignalPair(spec, flagName string) (s, r int, err error) {
	idx := strings.IndexByte(spec, ':')
	if idx < 0 {
		return 0, 0, fmt.Errorf("config: malformed -%s value %q, want S:R", flagName, spec)
	}
	s, err = strconv.Atoi(spec[:idx])
	if err != nil {
		return 0, 0, fmt.Errorf("config: malformed -%s signal in %q: %w", flagName, spec, err)
	}
	r, err = strconv.Atoi(spec[idx+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("config: malformed -%s target in %q: %w", flagName, spec, err)
	}
	if s < 0 || s > sigtable.MAXSIG {
		return 0, 0, fmt.Errorf("config: -%s signal %d out of range 0..%d", flagName, s, sigtable.MAXSIG)
	}
	if r < 0 || r > sigtable.MAXSIG {
		return 0, 0, fmt.Errorf("config: -%s target %d out of range 0..%d", flagName, r, sigtable.MAXSIG)
	}
	return s, r, nil
}
