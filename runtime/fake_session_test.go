package runtime

import (
	"context"
	"sync"

	"github.com/pithecene-io/covered/session"
	"github.com/pithecene-io/covered/types"
)

// fakeSession is a test session that replays console events from a
// goroutine once navigation is issued, like a real browser would.
type fakeSession struct {
	mu       sync.Mutex
	events   []types.ConsoleEvent
	snapshot types.CoverageSnapshot
	errs     map[string]error // method name -> error to return
	closeErr error

	handler      session.ConsoleHandler
	calls        []string
	coverageOpts session.CoverageOptions
	navigatedTo  string
	closeCount   int

	// replayed is closed after every event has been delivered.
	replayed chan struct{}
}

func newFakeSession(events ...types.ConsoleEvent) *fakeSession {
	return &fakeSession{
		events:   events,
		errs:     make(map[string]error),
		replayed: make(chan struct{}),
	}
}

func (f *fakeSession) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	return f.errs[method]
}

func (f *fakeSession) EnablePage(context.Context) error { return f.record("Page.enable") }

func (f *fakeSession) EnableProfiler(context.Context) error { return f.record("Profiler.enable") }

func (f *fakeSession) EnableRuntime(context.Context) error { return f.record("Runtime.enable") }

func (f *fakeSession) OnConsole(handler session.ConsoleHandler) {
	_ = f.record("OnConsole")
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
}

func (f *fakeSession) StartPreciseCoverage(_ context.Context, opts session.CoverageOptions) error {
	f.mu.Lock()
	f.coverageOpts = opts
	f.mu.Unlock()
	return f.record("Profiler.startPreciseCoverage")
}

func (f *fakeSession) TakePreciseCoverage(context.Context) (types.CoverageSnapshot, error) {
	if err := f.record("Profiler.takePreciseCoverage"); err != nil {
		return nil, err
	}
	return f.snapshot, nil
}

func (f *fakeSession) StopPreciseCoverage(context.Context) error {
	return f.record("Profiler.stopPreciseCoverage")
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	if err := f.record("Page.navigate"); err != nil {
		return err
	}
	f.mu.Lock()
	f.navigatedTo = url
	handler := f.handler
	events := f.events
	f.mu.Unlock()

	go func() {
		defer close(f.replayed)
		if handler == nil {
			return
		}
		for _, ev := range events {
			handler(ev)
		}
	}()
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return f.closeErr
}

func (f *fakeSession) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeSession) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeSession) indexOf(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == method {
			return i
		}
	}
	return -1
}

// dialer returns a Dialer handing out f.
func (f *fakeSession) dialer() session.Dialer {
	return func(context.Context, string, int) (session.Session, error) {
		return f, nil
	}
}

var _ session.Session = (*fakeSession)(nil)

// Console event helpers.

func logLine(s string) types.ConsoleEvent {
	return types.ConsoleEvent{Type: types.ConsoleLog, Value: types.StringPayload(s)}
}

func errorEvent(s string) types.ConsoleEvent {
	return types.ConsoleEvent{Type: types.ConsoleError, Value: types.StringPayload(s)}
}

// testSnapshot holds the target script plus an unrelated one.
func testSnapshot() types.CoverageSnapshot {
	return types.CoverageSnapshot{
		{
			ScriptID: "11",
			URL:      "http://localhost/vendor.js",
			Functions: []types.FunctionCoverage{
				{Ranges: []types.CoverageRange{{StartOffset: 0, EndOffset: 10, Count: 1}}},
			},
		},
		{
			ScriptID: "12",
			URL:      "http://localhost/tests.js",
			Functions: []types.FunctionCoverage{
				{
					FunctionName:    "main",
					IsBlockCoverage: true,
					Ranges: []types.CoverageRange{
						{StartOffset: 0, EndOffset: 100, Count: 5},
						{StartOffset: 10, EndOffset: 20, Count: 0},
					},
				},
			},
		},
	}
}
