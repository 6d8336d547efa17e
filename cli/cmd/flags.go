// Package cmd provides CLI commands for the covered binary.
package cmd

import "github.com/urfave/cli/v2"

// FormatFlag selects output format for read-only commands: json, table, yaml.
var FormatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: json, table, yaml (default: table on a TTY, json otherwise)",
}

// TUIFlag enables the interactive Bubble Tea view (summarize only).
var TUIFlag = &cli.BoolFlag{
	Name:  "tui",
	Usage: "Show an interactive view instead of formatted output",
}

// ReadOnlyFlags returns the shared flags for commands that only render data.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag}
}
