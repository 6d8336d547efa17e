// Package runtime orchestrates a single test run against a remote browser
// and maps its terminal condition to an exit code.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/covered/classify"
	"github.com/pithecene-io/covered/coverage"
	"github.com/pithecene-io/covered/lode"
	"github.com/pithecene-io/covered/log"
	"github.com/pithecene-io/covered/metrics"
	"github.com/pithecene-io/covered/session"
	"github.com/pithecene-io/covered/types"
)

// Sentinels printed by the page-side test framework.
const (
	SuccessSentinel = "All tests passed!"
	FailureSentinel = "Some tests failed"
)

// reportContentType is the content type of persisted reports.
const reportContentType = "application/json"

// ControllerConfig configures a single run.
type ControllerConfig struct {
	// Run is the run configuration. Defaults are applied by NewController.
	Run types.RunConfig
	// Dialer acquires the protocol session.
	Dialer session.Dialer
	// ReportMode selects what is persisted on success.
	ReportMode coverage.Mode
	// ReportPath is the store-relative report path (default lode.DefaultReportPath).
	ReportPath string
	// Writer persists the report. Required unless ReportMode is none.
	Writer lode.FileWriter
	// Stdout receives echoed test-suite lines verbatim.
	Stdout io.Writer
	// Logger is the operational logger. If nil, logging is discarded.
	Logger *log.Logger
	// Collector records run metrics. If nil, no metrics are recorded
	// (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// Controller drives one run: it enables the session, arms the console
// subscription, starts coverage, navigates, and owns the terminal decision.
type Controller struct {
	config    ControllerConfig
	logger    *log.Logger
	collector *metrics.Collector

	// session is set once dialing succeeds; Finalize closes it.
	session session.Session

	terminal *terminal
	// eventMu serializes console handling.
	eventMu sync.Mutex
}

// NewController validates the configuration and creates a controller.
func NewController(config ControllerConfig) (*Controller, error) {
	config.Run = config.Run.WithDefaults()
	if err := config.Run.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	if config.Dialer == nil {
		return nil, &ConfigError{Err: errors.New("dialer is required")}
	}
	if config.ReportMode == "" {
		config.ReportMode = coverage.ModeRaw
	}
	if config.ReportMode != coverage.ModeNone && config.Writer == nil {
		return nil, &ConfigError{Err: fmt.Errorf("report mode %q requires a writer", config.ReportMode)}
	}
	if config.ReportPath == "" {
		config.ReportPath = lode.DefaultReportPath
	}
	if config.Stdout == nil {
		config.Stdout = io.Discard
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Controller{
		config:    config,
		logger:    logger,
		collector: config.Collector,
		terminal:  newTerminal(),
	}, nil
}

// Session returns the acquired session, or nil if dialing never succeeded.
func (c *Controller) Session() session.Session {
	return c.session
}

// Run executes the run and returns its single terminal outcome. It never
// returns nil and never panics; the session is left open for Finalize.
//
// Execution flow:
//  1. Dial and enable Page, Profiler, Runtime
//  2. Subscribe to console events
//  3. Start precise coverage (no call counts, block detail)
//  4. Navigate to the entrypoint
//  5. Wait for a terminal decision, the timeout, or ctx
//  6. On success, collect coverage and persist the report
func (c *Controller) Run(ctx context.Context) (outcome *types.RunOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("run panicked", map[string]any{"panic": fmt.Sprint(r)})
			outcome = types.UnhandledError(fmt.Sprintf("panic: %v", r))
		}
		c.collector.SetOutcome(string(outcome.Status))
	}()

	if err := c.setup(ctx); err != nil {
		c.logger.Error("run setup failed", map[string]any{"error": err.Error()})
		return ClassifyError(err)
	}

	outcome = c.await(ctx)
	if outcome.Status != types.OutcomeSuccess {
		return outcome
	}
	return c.collectCoverage(ctx)
}

// setup performs steps 1-4.
func (c *Controller) setup(ctx context.Context) error {
	rc := c.config.Run

	dialCtx, cancel := context.WithTimeout(ctx, rc.Timeout)
	sess, err := c.config.Dialer(dialCtx, rc.Host, rc.Port)
	cancel()
	c.collector.ObserveProtocolCall(err)
	if err != nil {
		return err
	}
	c.session = sess
	c.logger.Debug("session acquired", map[string]any{"host": rc.Host, "port": rc.Port})

	enable := []struct {
		method string
		fn     func(context.Context) error
	}{
		{"Page.enable", sess.EnablePage},
		{"Profiler.enable", sess.EnableProfiler},
		{"Runtime.enable", sess.EnableRuntime},
	}
	for _, step := range enable {
		if err := c.call(ctx, step.method, step.fn); err != nil {
			return err
		}
	}

	// Subscribe strictly before navigating; earlier output is unobservable.
	sess.OnConsole(c.handleConsole)

	start := func(ctx context.Context) error {
		return sess.StartPreciseCoverage(ctx, session.CoverageOptions{CallCount: false, Detailed: true})
	}
	if err := c.call(ctx, "Profiler.startPreciseCoverage", start); err != nil {
		return err
	}

	navigate := func(ctx context.Context) error {
		return sess.Navigate(ctx, rc.EntrypointURI)
	}
	if err := c.call(ctx, "Page.navigate", navigate); err != nil {
		return err
	}

	c.logger.Info("navigated", map[string]any{"entrypoint": rc.EntrypointURI})
	return nil
}

// call runs one protocol call bounded by the run timeout.
func (c *Controller) call(ctx context.Context, method string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Run.Timeout)
	defer cancel()

	err := fn(callCtx)
	c.collector.ObserveProtocolCall(err)
	if err == nil {
		return nil
	}
	var protoErr *session.ProtocolError
	if errors.As(err, &protoErr) {
		return err
	}
	return &session.ProtocolError{Method: method, Err: err}
}

// await suspends until the first terminal decision.
func (c *Controller) await(ctx context.Context) *types.RunOutcome {
	timeout := c.config.Run.Timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.terminal.wait():
	case <-timer.C:
		if c.terminal.resolve(types.CommunicationError(
			fmt.Sprintf("timed out after %s waiting for test result", timeout))) {
			c.logger.Warn("run timed out", map[string]any{"timeout": timeout.String()})
		}
	case <-ctx.Done():
		c.terminal.resolve(types.CommunicationError(
			fmt.Sprintf("run canceled: %v", context.Cause(ctx))))
	}
	return c.terminal.result()
}

// handleConsole applies one console event. It runs on the session's event
// goroutine and only resolves the terminal decision; protocol calls happen
// on the Run goroutine.
func (c *Controller) handleConsole(ev types.ConsoleEvent) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	if c.terminal.resolved() {
		c.collector.IncIgnoredEvent()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.terminal.resolve(types.UnhandledError(fmt.Sprintf("console handler panicked: %v", r)))
		}
	}()

	c.collector.IncConsoleEvent(string(ev.Type))

	// An error event is terminal regardless of its content.
	if ev.Type == types.ConsoleError {
		detail := ""
		if c.config.Run.Diagnostics.DiscloseDetail(c.config.Run.Verbosity) {
			detail = ev.Value.Text
		}
		c.terminal.resolve(types.RuntimeError(detail))
		return
	}

	if !ev.Type.IsEchoable() {
		return
	}
	if !ev.Value.IsText() {
		c.collector.IncOpaquePayload()
		return
	}

	line := ev.Value.Text
	c.emit(line)

	switch {
	case strings.Contains(line, SuccessSentinel):
		c.terminal.resolve(types.Success())
	case strings.Contains(line, FailureSentinel):
		c.terminal.resolve(types.TestsFailed())
	}
}

// emit echoes line unmodified if the verbosity admits it.
func (c *Controller) emit(line string) {
	if !classify.ShouldEmit(line, c.config.Run.Verbosity) {
		c.collector.IncLineSuppressed()
		return
	}
	if _, err := fmt.Fprintln(c.config.Stdout, line); err != nil {
		c.logger.Warn("failed to echo console line", map[string]any{"error": err.Error()})
		return
	}
	c.collector.IncLineEmitted()
}

// collectCoverage takes and stops coverage, reduces it and persists the
// report. Only reached on the success path.
func (c *Controller) collectCoverage(ctx context.Context) *types.RunOutcome {
	mode := c.config.ReportMode
	sess := c.session

	var snapshot types.CoverageSnapshot
	if mode != coverage.ModeNone {
		take := func(ctx context.Context) error {
			var err error
			snapshot, err = sess.TakePreciseCoverage(ctx)
			return err
		}
		if err := c.call(ctx, "Profiler.takePreciseCoverage", take); err != nil {
			return ClassifyError(err)
		}
	}
	if err := c.call(ctx, "Profiler.stopPreciseCoverage", sess.StopPreciseCoverage); err != nil {
		return ClassifyError(err)
	}

	if mode == coverage.ModeNone {
		c.logger.Debug("coverage report disabled", nil)
		return types.Success()
	}

	c.collector.SetScriptsInSnapshot(len(snapshot))

	report, err := coverage.Reduce(snapshot, c.config.Run.TargetScriptURI, mode)
	if err != nil {
		c.logger.Error("coverage reduction failed", map[string]any{
			"error":   err.Error(),
			"scripts": len(snapshot),
		})
		return ClassifyError(err)
	}

	outcome := types.Success()
	summary := report.Summary
	if summary == nil {
		// Raw mode persists the entry verbatim; the ratio is informational.
		if s, err := coverage.Aggregate(report.Script); err == nil {
			summary = &s
		}
	}
	if summary != nil {
		pct := summary.Percentage
		outcome.Coverage = &pct
		c.collector.SetCoverage(summary.CoveredBytes, summary.TotalBytes)
		c.logger.Info("coverage computed", map[string]any{
			"covered_bytes": summary.CoveredBytes,
			"total_bytes":   summary.TotalBytes,
			"percentage":    summary.PercentageString(),
		})
	}

	data, err := json.Marshal(report)
	if err != nil {
		return types.UnhandledError(fmt.Sprintf("encode coverage report: %v", err))
	}

	if err := c.config.Writer.PutFile(ctx, c.config.ReportPath, reportContentType, data); err != nil {
		c.collector.IncReportWriteFailure()
		c.logger.Error("report write failed", map[string]any{
			"path":  c.config.ReportPath,
			"error": err.Error(),
		})
		return types.ReportWriteError(err.Error())
	}
	c.collector.IncReportWriteSuccess()
	c.logger.Info("report written", map[string]any{
		"path":  c.config.ReportPath,
		"mode":  string(mode),
		"bytes": len(data),
	})
	return outcome
}
