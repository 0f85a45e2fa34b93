// Command redos detects regular expressions vulnerable to catastrophic
// backtracking.
//
// Usage:
//
//	redos check '(a+)+$' 'ab*c'
//	redos scan patterns.txt --jobs 8 --cache-dir ~/.cache/redos
//	redos gen --config redos.yaml --package vetted --output vetted.go
//	redos serve --addr :8080
//
// check and scan exit 0 when every pattern is safe, 1 when one is
// vulnerable and 2 when an analysis was inconclusive or failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes.
const (
	exitSafe         = 0
	exitVulnerable   = 1
	exitInconclusive = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	a := newApp(os.Stdout, os.Stderr)
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if serr := a.shutdown(); serr != nil {
		a.log.Warn("Telemetry shutdown failed", "error", serr)
	}
	if err == nil {
		return exitSafe
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exit.err)
		}
		return exit.code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitInconclusive
}
