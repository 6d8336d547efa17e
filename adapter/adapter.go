// Package adapter defines the notification boundary for finished runs.
//
// Adapters publish a run-completed event to downstream systems (a CI
// webhook, a Redis channel) after the outcome is known and before the
// session is released. Publishing is best effort: a failed publish is
// logged and never changes the exit code.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/covered/metrics"
	"github.com/pithecene-io/covered/types"
)

// EventTypeRunCompleted is the event_type of every published event.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	Version      string `json:"version"`
	EventType    string `json:"event_type"` // always "run_completed"
	RunID        string `json:"run_id"`
	Outcome      string `json:"outcome"` // success, tests_failed, etc.
	ExitCode     int    `json:"exit_code"`
	Entrypoint   string `json:"entrypoint"`
	TargetScript string `json:"target_script"`
	Verbosity    string `json:"verbosity"`
	// CoveragePercentage is set only when coverage was computed.
	CoveragePercentage *float64 `json:"coverage_percentage,omitempty"`
	// CoverageBytes accompanies CoveragePercentage.
	CoverageBytes *CoverageBytes `json:"coverage_bytes,omitempty"`
	ReportPath    string         `json:"report_path,omitempty"`
	ConsoleEvents int64          `json:"console_events"`
	// LinesEmitted counts echoed test-suite lines.
	LinesEmitted int64  `json:"lines_emitted"`
	DurationMs   int64  `json:"duration_ms"`
	Timestamp    string `json:"timestamp"` // RFC 3339
}

// CoverageBytes is the byte tally behind a coverage percentage.
type CoverageBytes struct {
	Covered int64 `json:"covered"`
	Total   int64 `json:"total"`
}

// NewRunCompletedEvent builds the event for a finished run. Counters and
// byte tallies come from the run's metrics snapshot.
func NewRunCompletedEvent(runID string, rc types.RunConfig, outcome *types.RunOutcome, snap metrics.Snapshot, duration time.Duration, now time.Time) *RunCompletedEvent {
	ev := &RunCompletedEvent{
		Version:       types.Version,
		EventType:     EventTypeRunCompleted,
		RunID:         runID,
		Outcome:       string(types.OutcomeUnhandledError),
		ExitCode:      outcome.ExitCode(),
		Entrypoint:    rc.EntrypointURI,
		TargetScript:  rc.TargetScriptURI,
		Verbosity:     string(rc.Verbosity),
		ConsoleEvents: snap.ConsoleEvents,
		LinesEmitted:  snap.LinesEmitted,
		DurationMs:    duration.Milliseconds(),
		Timestamp:     now.UTC().Format(time.RFC3339),
	}
	if outcome != nil {
		ev.Outcome = string(outcome.Status)
		ev.CoveragePercentage = outcome.Coverage
	}
	if ev.CoveragePercentage != nil && snap.TotalBytes > 0 {
		ev.CoverageBytes = &CoverageBytes{Covered: snap.CoveredBytes, Total: snap.TotalBytes}
	}
	return ev
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
