package adapter

import (
	"testing"
	"time"

	"github.com/pithecene-io/covered/metrics"
	"github.com/pithecene-io/covered/types"
)

func testRunConfig() types.RunConfig {
	return types.RunConfig{
		Port:            9222,
		EntrypointURI:   "http://localhost:8080/test.html",
		TargetScriptURI: "http://localhost:8080/app.js",
		Verbosity:       types.VerbosityShort,
	}
}

func TestNewRunCompletedEvent_Success(t *testing.T) {
	cov := 90.9
	outcome := types.Success()
	outcome.Coverage = &cov
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.FixedZone("x", 3600))

	snap := metrics.Snapshot{ConsoleEvents: 7, LinesEmitted: 3, CoveredBytes: 100, TotalBytes: 110}

	ev := NewRunCompletedEvent("run-1", testRunConfig(), outcome, snap, 1500*time.Millisecond, now)

	if ev.EventType != EventTypeRunCompleted {
		t.Errorf("EventType = %q", ev.EventType)
	}
	if ev.Version != types.Version {
		t.Errorf("Version = %q, want %q", ev.Version, types.Version)
	}
	if ev.Outcome != "success" || ev.ExitCode != 0 {
		t.Errorf("outcome = %q/%d, want success/0", ev.Outcome, ev.ExitCode)
	}
	if ev.CoveragePercentage == nil {
		t.Error("CoveragePercentage not set")
	} else if *ev.CoveragePercentage != 90.9 {
		t.Errorf("CoveragePercentage = %v, want 90.9", *ev.CoveragePercentage)
	}
	if ev.CoverageBytes == nil || *ev.CoverageBytes != (CoverageBytes{Covered: 100, Total: 110}) {
		t.Errorf("CoverageBytes = %+v, want 100/110", ev.CoverageBytes)
	}
	if ev.ConsoleEvents != 7 || ev.LinesEmitted != 3 || ev.DurationMs != 1500 {
		t.Errorf("counters = %d/%d/%d", ev.ConsoleEvents, ev.LinesEmitted, ev.DurationMs)
	}
	if ev.Timestamp != "2026-10-17T11:00:00Z" {
		t.Errorf("Timestamp = %q, want UTC RFC 3339", ev.Timestamp)
	}
	if ev.Verbosity != "short" || ev.TargetScript != "http://localhost:8080/app.js" {
		t.Errorf("run config not carried: %+v", ev)
	}
}

func TestNewRunCompletedEvent_OutcomeMapsCorrectly(t *testing.T) {
	tests := []struct {
		outcome  *types.RunOutcome
		want     string
		wantCode int
	}{
		{types.TestsFailed(), "tests_failed", 1},
		{types.RuntimeError("boom"), "runtime_error", 2},
		{types.CommunicationError(""), "communication_error", 3},
		{types.ReportWriteError("disk full"), "report_write_error", 4},
		{types.UnhandledError(""), "unhandled_error", 255},
		{nil, "unhandled_error", 255},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			// Byte tallies without a computed percentage are not reported.
			snap := metrics.Snapshot{CoveredBytes: 5, TotalBytes: 10}
			ev := NewRunCompletedEvent("r", testRunConfig(), tt.outcome, snap, 0, time.Now())
			if ev.Outcome != tt.want || ev.ExitCode != tt.wantCode {
				t.Errorf("got %q/%d, want %q/%d", ev.Outcome, ev.ExitCode, tt.want, tt.wantCode)
			}
			if ev.CoveragePercentage != nil || ev.CoverageBytes != nil {
				t.Error("coverage must be omitted when not computed")
			}
		})
	}
}
