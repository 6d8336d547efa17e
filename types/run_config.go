// Package types defines core domain types for the covered test runner.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verbosity controls which intercepted console lines are echoed to stdout.
type Verbosity string

// Verbosity levels, from quietest to loudest.
const (
	VerbosityNone    Verbosity = "none"
	VerbosityMinimal Verbosity = "minimal"
	VerbosityShort   Verbosity = "short"
	VerbosityVerbose Verbosity = "verbose"
)

// ParseVerbosity parses a verbosity level. Matching is exact; the page-side
// tooling passes the lowercase names.
func ParseVerbosity(s string) (Verbosity, error) {
	switch v := Verbosity(s); v {
	case VerbosityNone, VerbosityMinimal, VerbosityShort, VerbosityVerbose:
		return v, nil
	default:
		return "", fmt.Errorf("invalid verbosity %q (must be none, minimal, short, or verbose)", s)
	}
}

// DiagnosticsPolicy decides when a page-reported console error value is
// attached to the outcome as diagnostic detail.
type DiagnosticsPolicy string

const (
	// DiagnosticsVerbose attaches page error values only at VerbosityVerbose.
	DiagnosticsVerbose DiagnosticsPolicy = "verbose"
	// DiagnosticsAlways attaches page error values at every verbosity.
	DiagnosticsAlways DiagnosticsPolicy = "always"
)

// ParseDiagnosticsPolicy parses a diagnostics policy. Empty selects the default.
func ParseDiagnosticsPolicy(s string) (DiagnosticsPolicy, error) {
	switch p := DiagnosticsPolicy(strings.ToLower(s)); p {
	case "":
		return DiagnosticsVerbose, nil
	case DiagnosticsVerbose, DiagnosticsAlways:
		return p, nil
	default:
		return "", fmt.Errorf("invalid diagnostics policy %q (must be verbose or always)", s)
	}
}

// DiscloseDetail reports whether page error detail should be surfaced.
func (p DiagnosticsPolicy) DiscloseDetail(v Verbosity) bool {
	return p == DiagnosticsAlways || v == VerbosityVerbose
}

// DefaultTimeout bounds how long a run waits for a terminal console sentinel.
const DefaultTimeout = 60 * time.Second

// RunConfig is constructed once at start and never mutated.
type RunConfig struct {
	// Port is the DevTools port of the already-running browser.
	Port int
	// EntrypointURI is the test page to navigate to.
	EntrypointURI string
	// TargetScriptURI identifies which script's coverage is extracted.
	TargetScriptURI string
	// Verbosity is the console echo level.
	Verbosity Verbosity
	// Host is the DevTools host (default 127.0.0.1).
	Host string
	// Timeout bounds the wait for a terminal sentinel (default DefaultTimeout).
	Timeout time.Duration
	// Diagnostics is the page error disclosure policy.
	Diagnostics DiagnosticsPolicy
}

// Validate reports configuration errors. All four positional fields are
// required.
func (c *RunConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be in 1..65535, got %d", c.Port))
	}
	if c.EntrypointURI == "" {
		errs = append(errs, errors.New("entrypoint uri must be non-empty"))
	}
	if c.TargetScriptURI == "" {
		errs = append(errs, errors.New("target script uri must be non-empty"))
	}
	if _, err := ParseVerbosity(string(c.Verbosity)); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be >= 0, got %s", c.Timeout))
	}
	return errors.Join(errs...)
}

// WithDefaults returns a copy with zero-valued optional fields filled in.
func (c RunConfig) WithDefaults() RunConfig {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Diagnostics == "" {
		c.Diagnostics = DiagnosticsVerbose
	}
	return c
}
