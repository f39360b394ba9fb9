// Command initsv is a minimal process supervisor meant to run as PID
// 1 of a container or sandbox: it spawns one direct child, proxies
// signals, reaps zombies, and exits once the supervised subtree is
// gone.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cloudboot/initsv/internal/config"
	"github.com/cloudboot/initsv/internal/launch"
	"github.com/cloudboot/initsv/internal/obslog"
	"github.com/cloudboot/initsv/internal/supervise"
)

func main() {
	os.Exit(run(os.Args[1:], os.Environ()))
}

func run(argv, environ []string) int {
	cfg, err := config.Parse(argv, environ)
	if err != nil {
		if code, ok := config.ExitCode(err); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			return code
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := obslog.New(os.Stderr, cfg.Verbose)

	res, err := launch.Start(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		var execErr *launch.ExecError
		if errors.As(err, &execErr) {
			return 2
		}
		return 1
	}

	return supervise.Run(cfg, res, log)
}
