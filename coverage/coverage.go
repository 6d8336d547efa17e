// Package coverage reduces precise coverage snapshots to reports.
//
// Only byte-range aggregation is supported. There is no source-map
// resolution and no per-line attribution.
package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/pithecene-io/covered/types"
)

// ErrScriptNotFound is returned when no snapshot entry has the target URL.
var ErrScriptNotFound = errors.New("coverage: script not found in snapshot")

// ErrEmptyScript is returned when a script has no measurable bytes.
// It is distinct from a script with 0% coverage.
var ErrEmptyScript = errors.New("coverage: script has no coverage ranges")

// Mode selects how a matched entry is reported.
type Mode string

const (
	// ModeRaw reports the matched entry verbatim.
	ModeRaw Mode = "raw"
	// ModeSummary reports the covered/total byte ratio.
	ModeSummary Mode = "summary"
	// ModeNone computes nothing and persists nothing.
	ModeNone Mode = "none"
)

// ParseMode parses a report mode. Empty selects ModeRaw.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "":
		return ModeRaw, nil
	case ModeRaw, ModeSummary, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("invalid report mode %q (must be raw, summary, or none)", s)
	}
}

// Summary is the aggregate ratio of one script.
type Summary struct {
	Version      string  `json:"version" yaml:"version"`
	URL          string  `json:"url" yaml:"url"`
	CoveredBytes int64   `json:"covered_bytes" yaml:"covered_bytes"`
	TotalBytes   int64   `json:"total_bytes" yaml:"total_bytes"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
}

// PercentageString renders the percentage with one decimal place.
func (s Summary) PercentageString() string {
	return fmt.Sprintf("%.1f", s.Percentage)
}

// Report is the reduction of a snapshot for one script.
// Exactly one of Script or Summary is set.
type Report struct {
	Mode    Mode
	Script  *types.ScriptCoverage
	Summary *Summary
}

// MarshalJSON serializes the raw entry or the summary, whichever is set.
func (r *Report) MarshalJSON() ([]byte, error) {
	if r.Script != nil {
		return json.Marshal(r.Script)
	}
	if r.Summary != nil {
		return json.Marshal(r.Summary)
	}
	return nil, errors.New("coverage: empty report")
}

// Select returns the entry whose URL equals target exactly.
func Select(snapshot types.CoverageSnapshot, target string) (*types.ScriptCoverage, error) {
	for i := range snapshot {
		if snapshot[i].URL == target {
			return &snapshot[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, target)
}

// Aggregate sums byte spans across every range of every function.
//
// A range is covered iff its count is nonzero. Nested ranges are not
// de-duplicated: enclosing and enclosed ranges both contribute their full
// span to the total, and to covered when hit.
func Aggregate(script *types.ScriptCoverage) (Summary, error) {
	var covered, total int64
	for _, fn := range script.Functions {
		for _, r := range fn.Ranges {
			n := r.Len()
			total += n
			if r.Count != 0 {
				covered += n
			}
		}
	}
	if total == 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrEmptyScript, script.URL)
	}

	pct := float64(covered) / float64(total) * 100
	return Summary{
		Version:      types.ReportVersion,
		URL:          script.URL,
		CoveredBytes: covered,
		TotalBytes:   total,
		Percentage:   math.Round(pct*10) / 10,
	}, nil
}

// Reduce selects target from snapshot and reduces it in the given mode.
// It never returns a partial report alongside an error.
func Reduce(snapshot types.CoverageSnapshot, target string, mode Mode) (*Report, error) {
	script, err := Select(snapshot, target)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeRaw:
		return &Report{Mode: ModeRaw, Script: script}, nil
	case ModeSummary:
		summary, err := Aggregate(script)
		if err != nil {
			return nil, err
		}
		return &Report{Mode: ModeSummary, Summary: &summary}, nil
	default:
		return nil, fmt.Errorf("coverage: cannot reduce in mode %q", mode)
	}
}
