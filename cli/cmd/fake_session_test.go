package cmd

import (
	"context"
	"sync"

	"github.com/pithecene-io/covered/session"
	"github.com/pithecene-io/covered/types"
)

// scriptedSession replays console lines once navigation is issued.
type scriptedSession struct {
	mu       sync.Mutex
	lines    []string
	snapshot types.CoverageSnapshot
	handler  session.ConsoleHandler
	closed   int
}

func (s *scriptedSession) EnablePage(context.Context) error     { return nil }
func (s *scriptedSession) EnableProfiler(context.Context) error { return nil }
func (s *scriptedSession) EnableRuntime(context.Context) error  { return nil }

func (s *scriptedSession) OnConsole(h session.ConsoleHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *scriptedSession) StartPreciseCoverage(context.Context, session.CoverageOptions) error {
	return nil
}

func (s *scriptedSession) TakePreciseCoverage(context.Context) (types.CoverageSnapshot, error) {
	return s.snapshot, nil
}

func (s *scriptedSession) StopPreciseCoverage(context.Context) error { return nil }

func (s *scriptedSession) Navigate(context.Context, string) error {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	go func() {
		for _, line := range s.lines {
			h(types.ConsoleEvent{Type: types.ConsoleLog, Value: types.StringPayload(line)})
		}
	}()
	return nil
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *scriptedSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

const testTarget = "http://localhost:8080/app.js"

func testSnapshot() types.CoverageSnapshot {
	return types.CoverageSnapshot{{
		ScriptID: "7",
		URL:      testTarget,
		Functions: []types.FunctionCoverage{{
			FunctionName: "",
			Ranges: []types.CoverageRange{
				{StartOffset: 0, EndOffset: 100, Count: 1},
				{StartOffset: 10, EndOffset: 20, Count: 0},
			},
			IsBlockCoverage: true,
		}},
	}}
}
