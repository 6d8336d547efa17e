package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/covered/coverage"
	"github.com/pithecene-io/covered/iox"
	"github.com/pithecene-io/covered/lode"
	"github.com/pithecene-io/covered/session"
	"github.com/pithecene-io/covered/types"
)

// Diagnostic frame markers. Detail text is written between them on stderr
// so failures are greppable in CI logs.
const (
	DiagnosticOpen  = "==ERROR=="
	DiagnosticClose = "========="
)

// ConfigError is returned for bad or missing run configuration.
// It maps to UnhandledError and never has a session to release.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("invalid configuration: %v", e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

// ClassifyError maps an error to its terminal outcome.
//
// Mapping:
//   - connect, protocol and deadline errors: CommunicationError
//   - script not found, empty script: RuntimeError
//   - storage errors: ReportWriteError
//   - anything else, including ConfigError: UnhandledError
func ClassifyError(err error) *types.RunOutcome {
	if err == nil {
		return nil
	}

	var (
		connErr    *session.ConnectError
		protoErr   *session.ProtocolError
		storageErr *lode.StorageError
		cfgErr     *ConfigError
	)
	switch {
	case errors.As(err, &cfgErr):
		return types.UnhandledError(err.Error())
	case errors.As(err, &connErr), errors.As(err, &protoErr),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.CommunicationError(err.Error())
	case errors.Is(err, coverage.ErrScriptNotFound), errors.Is(err, coverage.ErrEmptyScript):
		return types.RuntimeError(err.Error())
	case errors.As(err, &storageErr):
		return types.ReportWriteError(err.Error())
	default:
		return types.UnhandledError(err.Error())
	}
}

// Finalize performs the terminal steps of a run in fixed order:
//  1. write the outcome's detail, framed, to stderr (if any)
//  2. close the session (if any)
//  3. return the exit code
//
// Step 2 runs even if step 1 panics, and a panicking or failing Close does
// not prevent the exit code from being returned.
func Finalize(outcome *types.RunOutcome, sess session.Session, stderr io.Writer) int {
	code := outcome.ExitCode()
	writeDiagnostic(outcome, stderr)
	_ = closeSession(sess)
	return code
}

// writeDiagnostic frames the detail on w. Panics from w are swallowed.
func writeDiagnostic(outcome *types.RunOutcome, w io.Writer) {
	if !outcome.HasDetail() || w == nil {
		return
	}
	defer func() { _ = recover() }()
	_, _ = fmt.Fprintf(w, "%s\n%s\n%s\n", DiagnosticOpen, outcome.Detail, DiagnosticClose)
}

// closeSession releases sess, converting a panic into an error.
func closeSession(sess session.Session) error {
	if sess == nil {
		return nil
	}
	return iox.SafeClose(sess)
}
