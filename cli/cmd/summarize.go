package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/covered/cli/render"
	"github.com/pithecene-io/covered/cli/tui"
	"github.com/pithecene-io/covered/coverage"
	"github.com/pithecene-io/covered/lode"
	"github.com/pithecene-io/covered/types"
)

// SummaryRow is one summarized report.
type SummaryRow struct {
	Report       string  `json:"report" yaml:"report"`
	URL          string  `json:"url" yaml:"url"`
	CoveredBytes int64   `json:"covered_bytes" yaml:"covered_bytes"`
	TotalBytes   int64   `json:"total_bytes" yaml:"total_bytes"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
}

// SummarizeCommand returns the summarize command. It reads persisted
// reports (raw or summary) and prints their aggregate coverage.
func SummarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Summarize persisted coverage reports",
		ArgsUsage: "<report-path>...",
		Flags: append(ReadOnlyFlags(),
			TUIFlag,
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Report storage backend: fs or s3",
				Value: "fs",
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Storage root (fs: directory, s3: bucket/prefix)",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  "s3-region",
				Usage: "AWS region for the s3 backend",
			},
			&cli.StringFlag{
				Name:  "s3-endpoint",
				Usage: "Custom S3 endpoint (R2, MinIO)",
			},
			&cli.BoolFlag{
				Name:  "s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
		),
		Action: summarizeAction,
	}
}

func summarizeAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("summarize requires at least one report path")
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	storage := storageChoice{
		backend:   c.String("storage-backend"),
		path:      c.String("storage-path"),
		region:    c.String("s3-region"),
		endpoint:  c.String("s3-endpoint"),
		pathStyle: c.Bool("s3-path-style"),
	}
	if err := validateStorageConfig(storage); err != nil {
		return err
	}
	store, err := buildStore(c.Context, storage)
	if err != nil {
		return err
	}

	rows := make([]SummaryRow, 0, c.NArg())
	for _, p := range c.Args().Slice() {
		reader := lode.FileReader(store)
		key := p
		// Absolute local paths are read relative to their own directory.
		if storage.backend == "fs" && filepath.IsAbs(p) {
			reader = lode.NewFSWriter(filepath.Dir(p))
			key = filepath.Base(p)
		}
		row, err := summarizeReport(c.Context, reader, key)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", p, err)
		}
		row.Report = p
		rows = append(rows, row)
	}
	if c.Bool("tui") {
		return tui.RunSummaryTUI(toTUIRows(rows))
	}
	return r.Render(rows)
}

func toTUIRows(rows []SummaryRow) []tui.Row {
	out := make([]tui.Row, len(rows))
	for i, r := range rows {
		out[i] = tui.Row{
			Report:       r.Report,
			URL:          r.URL,
			CoveredBytes: r.CoveredBytes,
			TotalBytes:   r.TotalBytes,
			Percentage:   r.Percentage,
		}
	}
	return out
}

// reportShape distinguishes raw entries from summaries.
type reportShape struct {
	Functions  json.RawMessage `json:"functions"`
	Percentage *float64        `json:"percentage"`
}

// summarizeReport reads one report and reduces it to a row. Raw entries are
// aggregated; summaries are passed through.
func summarizeReport(ctx context.Context, reader lode.FileReader, p string) (SummaryRow, error) {
	data, err := reader.GetFile(ctx, p)
	if err != nil {
		return SummaryRow{}, err
	}

	var shape reportShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return SummaryRow{}, fmt.Errorf("invalid report JSON: %w", err)
	}

	var summary coverage.Summary
	switch {
	case shape.Functions != nil:
		var script types.ScriptCoverage
		if err := json.Unmarshal(data, &script); err != nil {
			return SummaryRow{}, fmt.Errorf("invalid raw report: %w", err)
		}
		summary, err = coverage.Aggregate(&script)
		if err != nil {
			return SummaryRow{}, err
		}
	case shape.Percentage != nil:
		if err := json.Unmarshal(data, &summary); err != nil {
			return SummaryRow{}, fmt.Errorf("invalid summary report: %w", err)
		}
	default:
		return SummaryRow{}, errors.New("not a coverage report: expected raw functions or a summary percentage")
	}

	return SummaryRow{
		URL:          summary.URL,
		CoveredBytes: summary.CoveredBytes,
		TotalBytes:   summary.TotalBytes,
		Percentage:   summary.Percentage,
	}, nil
}
