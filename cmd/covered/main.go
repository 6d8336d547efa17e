// Package main provides the covered CLI entrypoint.
//
// Usage:
//
//	covered [options] <port> <entrypoint-uri> <target-script-uri> <verbosity>
//	covered <command> [options]
//
// Exit codes:
//   - 0: all tests passed and the report was written
//   - 1: the page reported failing tests
//   - 2: the page raised a runtime error, or the target script had no coverage
//   - 3: browser communication failed or timed out
//   - 4: the coverage report could not be written
//   - 255: anything else, including invalid arguments
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/covered/cli/cmd"
	"github.com/pithecene-io/covered/runtime"
	"github.com/pithecene-io/covered/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

// exit is replaced in tests.
var exit = os.Exit

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		// ExitErrHandler already exited for every error it sees.
		os.Exit(types.ExitCodeUnhandledError)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:            "covered",
		Usage:           "Run browser tests over DevTools and collect script coverage",
		Version:         fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ArgsUsage:       cmd.RunArgsUsage,
		Flags:           cmd.RunFlags(),
		Action:          cmd.RunAction,
		Writer:          stdout,
		ErrWriter:       stderr,
		ExitErrHandler:  exitErrHandler,
		HideHelpCommand: true,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.SummarizeCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler propagates exit codes from cli.Exit(). Any other error
// (bad flags, read-only command failures) is framed on stderr and exits
// with the unhandled code, never with a code that means "tests failed".
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var stderr io.Writer = os.Stderr
	if c != nil && c.App != nil && c.App.ErrWriter != nil {
		stderr = c.App.ErrWriter
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N) carries no message. An *exec.ExitError is also an
		// ExitCoder and reads "exit status N"; neither is printed.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(stderr, msg)
		}
		exit(code)
		return
	}

	exit(runtime.Finalize(types.UnhandledError(err.Error()), nil, stderr))
}
