// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies: console types and outcome statuses are passed
// in as plain strings.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Console
	ConsoleEvents   int64
	EventsByType    map[string]int64
	LinesEmitted    int64
	LinesSuppressed int64
	OpaquePayloads  int64
	IgnoredEvents   int64 // delivered after the terminal decision

	// Protocol
	ProtocolCalls    int64
	ProtocolFailures int64

	// Coverage
	ScriptsInSnapshot int64
	CoveredBytes      int64
	TotalBytes        int64

	// Report storage
	ReportWriteSuccess int64
	ReportWriteFailure int64

	// Outcome
	Outcome string

	// Dimensions (informational, set at construction)
	RunID          string
	Verbosity      string
	StorageBackend string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	consoleEvents   int64
	eventsByType    map[string]int64
	linesEmitted    int64
	linesSuppressed int64
	opaquePayloads  int64
	ignoredEvents   int64

	protocolCalls    int64
	protocolFailures int64

	scriptsInSnapshot int64
	coveredBytes      int64
	totalBytes        int64

	reportWriteSuccess int64
	reportWriteFailure int64

	outcome string

	runID          string
	verbosity      string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(runID, verbosity, storageBackend string) *Collector {
	return &Collector{
		eventsByType:   make(map[string]int64),
		runID:          runID,
		verbosity:      verbosity,
		storageBackend: storageBackend,
	}
}

// --- Console ---

// IncConsoleEvent records a console event of the given type.
func (c *Collector) IncConsoleEvent(eventType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.consoleEvents++
	c.eventsByType[eventType]++
	c.mu.Unlock()
}

// IncLineEmitted records a console line echoed to stdout.
func (c *Collector) IncLineEmitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesEmitted++
	c.mu.Unlock()
}

// IncLineSuppressed records a console line filtered out by verbosity.
func (c *Collector) IncLineSuppressed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesSuppressed++
	c.mu.Unlock()
}

// IncOpaquePayload records a console event whose payload was not a string.
func (c *Collector) IncOpaquePayload() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.opaquePayloads++
	c.mu.Unlock()
}

// IncIgnoredEvent records a console event delivered after the terminal decision.
func (c *Collector) IncIgnoredEvent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ignoredEvents++
	c.mu.Unlock()
}

// --- Protocol ---

// ObserveProtocolCall records a protocol call and whether it failed.
func (c *Collector) ObserveProtocolCall(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.protocolCalls++
	if err != nil {
		c.protocolFailures++
	}
	c.mu.Unlock()
}

// --- Coverage ---

// SetScriptsInSnapshot records how many scripts the coverage snapshot held.
func (c *Collector) SetScriptsInSnapshot(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.scriptsInSnapshot = int64(n)
	c.mu.Unlock()
}

// SetCoverage records the aggregate byte counts of the target script.
func (c *Collector) SetCoverage(covered, total int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.coveredBytes = covered
	c.totalBytes = total
	c.mu.Unlock()
}

// --- Report storage ---

// IncReportWriteSuccess records a successful report write.
func (c *Collector) IncReportWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportWriteSuccess++
	c.mu.Unlock()
}

// IncReportWriteFailure records a failed report write.
func (c *Collector) IncReportWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.reportWriteFailure++
	c.mu.Unlock()
}

// --- Outcome ---

// SetOutcome records the terminal outcome status.
func (c *Collector) SetOutcome(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.outcome = status
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.eventsByType))
	for k, v := range c.eventsByType {
		byType[k] = v
	}

	return Snapshot{
		ConsoleEvents:   c.consoleEvents,
		EventsByType:    byType,
		LinesEmitted:    c.linesEmitted,
		LinesSuppressed: c.linesSuppressed,
		OpaquePayloads:  c.opaquePayloads,
		IgnoredEvents:   c.ignoredEvents,

		ProtocolCalls:    c.protocolCalls,
		ProtocolFailures: c.protocolFailures,

		ScriptsInSnapshot: c.scriptsInSnapshot,
		CoveredBytes:      c.coveredBytes,
		TotalBytes:        c.totalBytes,

		ReportWriteSuccess: c.reportWriteSuccess,
		ReportWriteFailure: c.reportWriteFailure,

		Outcome: c.outcome,

		RunID:          c.runID,
		Verbosity:      c.verbosity,
		StorageBackend: c.storageBackend,
	}
}

// Fields returns the snapshot as log fields.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"console_events":       s.ConsoleEvents,
		"events_by_type":       s.EventsByType,
		"lines_emitted":        s.LinesEmitted,
		"lines_suppressed":     s.LinesSuppressed,
		"opaque_payloads":      s.OpaquePayloads,
		"ignored_events":       s.IgnoredEvents,
		"protocol_calls":       s.ProtocolCalls,
		"protocol_failures":    s.ProtocolFailures,
		"scripts_in_snapshot":  s.ScriptsInSnapshot,
		"covered_bytes":        s.CoveredBytes,
		"total_bytes":          s.TotalBytes,
		"report_write_success": s.ReportWriteSuccess,
		"report_write_failure": s.ReportWriteFailure,
		"outcome":              s.Outcome,
		"verbosity":            s.Verbosity,
		"storage_backend":      s.StorageBackend,
	}
}
