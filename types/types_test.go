package types //nolint:revive // types is a valid package name

import (
	"testing"
	"time"
)

func TestOutcomeStatus_ExitCode(t *testing.T) {
	tests := []struct {
		status OutcomeStatus
		want   int
	}{
		{OutcomeSuccess, 0},
		{OutcomeTestsFailed, 1},
		{OutcomeRuntimeError, 2},
		{OutcomeCommunicationError, 3},
		{OutcomeReportWriteError, 4},
		{OutcomeUnhandledError, 255},
		{OutcomeStatus("bogus"), 255},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.ExitCode(); got != tt.want {
				t.Errorf("OutcomeStatus(%q).ExitCode() = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestRunOutcome_NilIsUnhandled(t *testing.T) {
	var o *RunOutcome
	if o.ExitCode() != ExitCodeUnhandledError {
		t.Errorf("nil outcome exit code = %d, want %d", o.ExitCode(), ExitCodeUnhandledError)
	}
	if o.HasDetail() {
		t.Error("nil outcome should not carry detail")
	}
}

func TestRunOutcome_String(t *testing.T) {
	if got := TestsFailed().String(); got != "tests_failed" {
		t.Errorf("String() = %q", got)
	}
	if got := RuntimeError("boom").String(); got != "runtime_error: boom" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseVerbosity(t *testing.T) {
	for _, s := range []string{"none", "minimal", "short", "verbose"} {
		v, err := ParseVerbosity(s)
		if err != nil {
			t.Errorf("ParseVerbosity(%q) error: %v", s, err)
		}
		if string(v) != s {
			t.Errorf("ParseVerbosity(%q) = %q", s, v)
		}
	}
	for _, s := range []string{"", "VERBOSE", "loud"} {
		if _, err := ParseVerbosity(s); err == nil {
			t.Errorf("ParseVerbosity(%q) expected error", s)
		}
	}
}

func TestDiagnosticsPolicy_DiscloseDetail(t *testing.T) {
	tests := []struct {
		policy DiagnosticsPolicy
		v      Verbosity
		want   bool
	}{
		{DiagnosticsVerbose, VerbosityVerbose, true},
		{DiagnosticsVerbose, VerbosityShort, false},
		{DiagnosticsVerbose, VerbosityNone, false},
		{DiagnosticsAlways, VerbosityNone, true},
		{DiagnosticsAlways, VerbosityMinimal, true},
	}
	for _, tt := range tests {
		if got := tt.policy.DiscloseDetail(tt.v); got != tt.want {
			t.Errorf("%s.DiscloseDetail(%s) = %v, want %v", tt.policy, tt.v, got, tt.want)
		}
	}
}

func TestParseDiagnosticsPolicy(t *testing.T) {
	p, err := ParseDiagnosticsPolicy("")
	if err != nil || p != DiagnosticsVerbose {
		t.Errorf("empty policy = %q, %v; want verbose", p, err)
	}
	if p, err := ParseDiagnosticsPolicy("Always"); err != nil || p != DiagnosticsAlways {
		t.Errorf("Always = %q, %v", p, err)
	}
	if _, err := ParseDiagnosticsPolicy("sometimes"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRunConfig_Validate(t *testing.T) {
	valid := RunConfig{
		Port:            9222,
		EntrypointURI:   "http://localhost/tests.html",
		TargetScriptURI: "http://localhost/tests.js",
		Verbosity:       VerbosityShort,
	}

	tests := []struct {
		name    string
		mutate  func(c *RunConfig)
		wantErr bool
	}{
		{"valid", func(*RunConfig) {}, false},
		{"zero port", func(c *RunConfig) { c.Port = 0 }, true},
		{"port out of range", func(c *RunConfig) { c.Port = 70000 }, true},
		{"missing entrypoint", func(c *RunConfig) { c.EntrypointURI = "" }, true},
		{"missing target", func(c *RunConfig) { c.TargetScriptURI = "" }, true},
		{"missing verbosity", func(c *RunConfig) { c.Verbosity = "" }, true},
		{"negative timeout", func(c *RunConfig) { c.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunConfig_WithDefaults(t *testing.T) {
	c := RunConfig{Port: 9222}.WithDefaults()
	if c.Host != "127.0.0.1" {
		t.Errorf("Host = %q", c.Host)
	}
	if c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s", c.Timeout)
	}
	if c.Diagnostics != DiagnosticsVerbose {
		t.Errorf("Diagnostics = %q", c.Diagnostics)
	}

	c = RunConfig{Host: "chrome", Timeout: time.Second, Diagnostics: DiagnosticsAlways}.WithDefaults()
	if c.Host != "chrome" || c.Timeout != time.Second || c.Diagnostics != DiagnosticsAlways {
		t.Errorf("WithDefaults overwrote explicit values: %+v", c)
	}
}

func TestConsoleType_IsEchoable(t *testing.T) {
	for _, ct := range []ConsoleType{ConsoleLog, ConsoleDebug, ConsoleInfo, ConsoleWarning} {
		if !ct.IsEchoable() {
			t.Errorf("%q should be echoable", ct)
		}
	}
	for _, ct := range []ConsoleType{ConsoleError, "table", "trace", "dir"} {
		if ct.IsEchoable() {
			t.Errorf("%q should not be echoable", ct)
		}
	}
}

func TestConsolePayload_IsText(t *testing.T) {
	if !StringPayload("x").IsText() {
		t.Error("string payload should be text")
	}
	if !(ConsolePayload{}).IsText() {
		t.Error("empty payload should be text")
	}
	if OpaquePayload("{}").IsText() {
		t.Error("opaque payload should not be text")
	}
}

func TestCoverageRange_Len(t *testing.T) {
	if got := (CoverageRange{StartOffset: 10, EndOffset: 25}).Len(); got != 15 {
		t.Errorf("Len() = %d, want 15", got)
	}
	if got := (CoverageRange{StartOffset: 25, EndOffset: 10}).Len(); got != 0 {
		t.Errorf("inverted Len() = %d, want 0", got)
	}
}
