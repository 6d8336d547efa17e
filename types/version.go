package types

// Version is the canonical project version.
// The CLI, the persisted report shape and the run-completed notification
// share this version.
const Version = "0.3.0"

// ReportVersion is the version stamped on summary reports and adapter events.
// Kept in lockstep with Version.
const ReportVersion = Version
