package types

// CoverageRange is one byte range of a function with its hit count.
// Offsets are relative to the script source.
type CoverageRange struct {
	StartOffset int64 `json:"startOffset" yaml:"startOffset"`
	EndOffset   int64 `json:"endOffset" yaml:"endOffset"`
	Count       int64 `json:"count" yaml:"count"`
}

// Len returns the byte length of the range. Malformed ranges count as zero.
func (r CoverageRange) Len() int64 {
	if r.EndOffset < r.StartOffset {
		return 0
	}
	return r.EndOffset - r.StartOffset
}

// FunctionCoverage holds the ranges of one function. With detailed
// (block) coverage the first range spans the whole function and later
// ranges are nested blocks.
type FunctionCoverage struct {
	FunctionName    string          `json:"functionName" yaml:"functionName"`
	Ranges          []CoverageRange `json:"ranges" yaml:"ranges"`
	IsBlockCoverage bool            `json:"isBlockCoverage" yaml:"isBlockCoverage"`
}

// ScriptCoverage is the precise coverage entry of one loaded script.
// Serialized as-is for raw reports.
type ScriptCoverage struct {
	ScriptID  string             `json:"scriptId" yaml:"scriptId"`
	URL       string             `json:"url" yaml:"url"`
	Functions []FunctionCoverage `json:"functions" yaml:"functions"`
}

// CoverageSnapshot is the precise coverage of all scripts loaded in the page.
type CoverageSnapshot []ScriptCoverage
