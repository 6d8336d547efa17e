// Package session is the protocol session handle: one negotiated DevTools
// conversation with an already-running browser.
//
// The runtime controller only calls through the Session interface; the
// transport is owned by the implementation (Chrome, backed by chromedp).
package session

import (
	"context"
	"fmt"

	"github.com/pithecene-io/covered/types"
)

// CoverageOptions configures precise coverage recording.
type CoverageOptions struct {
	// CallCount collects exact call counts instead of covered/not covered.
	CallCount bool
	// Detailed collects block-level ranges instead of whole functions.
	Detailed bool
}

// ConsoleHandler receives console events. It is invoked on the session's
// event goroutine and must not block on protocol calls.
type ConsoleHandler func(types.ConsoleEvent)

// Session exposes the Page, Profiler and Runtime capability groups plus
// lifecycle. Close must be idempotent and safe after a failed setup.
type Session interface {
	EnablePage(ctx context.Context) error
	EnableProfiler(ctx context.Context) error
	EnableRuntime(ctx context.Context) error

	// OnConsole registers the console-API-call handler. Register before
	// Navigate; earlier events are not replayed.
	OnConsole(handler ConsoleHandler)

	StartPreciseCoverage(ctx context.Context, opts CoverageOptions) error
	TakePreciseCoverage(ctx context.Context) (types.CoverageSnapshot, error)
	StopPreciseCoverage(ctx context.Context) error

	// Navigate issues navigation and returns once the browser accepted it.
	// Load completion is not awaited.
	Navigate(ctx context.Context, url string) error

	Close() error
}

// Dialer acquires a session for a DevTools endpoint.
type Dialer func(ctx context.Context, host string, port int) (Session, error)

// ConnectError is returned when the browser cannot be reached.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError is returned when a protocol method fails.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
