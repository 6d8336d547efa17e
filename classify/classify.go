// Package classify decides which intercepted console lines are echoed.
//
// Classification depends only on the verbosity level and the shape of the
// line; filtering by console type happens in the runtime controller.
package classify

import (
	"regexp"

	"github.com/pithecene-io/covered/types"
)

var (
	// testResultLine matches the test framework's progress lines, e.g.
	// "00:01 +3 -1: group test name" or "1:2 +10ms: description":
	// number(:number)+ groups, optional signed deltas, a colon, then text.
	testResultLine = regexp.MustCompile(`\d+(?::\d+)+(?:\s+[+\-~]\d+[a-zA-Z]*)*\s*:.+`)

	// detailLine matches the labels printed under a failing expectation.
	detailLine = regexp.MustCompile(`^\s*(?:Skip|Expected|Actual):`)

	// colourSequence matches terminal colour escapes such as "\x1b[32m".
	colourSequence = regexp.MustCompile(`.\[[\d;]*m`)
)

// StripColour removes colour escape sequences. Used for matching only;
// emitted lines keep their escapes.
func StripColour(line string) string {
	return colourSequence.ReplaceAllString(line, "")
}

// IsTestResultLine reports whether the colour-stripped line has the
// test-result shape.
func IsTestResultLine(line string) bool {
	return testResultLine.MatchString(StripColour(line))
}

// IsDetailLine reports whether the colour-stripped line starts with
// Skip:, Expected: or Actual:.
func IsDetailLine(line string) bool {
	return detailLine.MatchString(StripColour(line))
}

// ShouldEmit reports whether line is echoed at verbosity v.
// Unknown levels emit nothing.
func ShouldEmit(line string, v types.Verbosity) bool {
	switch v {
	case types.VerbosityVerbose:
		return true
	case types.VerbosityMinimal:
		return IsTestResultLine(line)
	case types.VerbosityShort:
		return IsTestResultLine(line) || IsDetailLine(line)
	default:
		return false
	}
}
