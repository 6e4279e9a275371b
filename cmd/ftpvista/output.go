package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/ftpvista/internal/config"
	"github.com/nao1215/ftpvista/internal/report"
)

// nopCloser keeps stdout open when the report goes to the terminal.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns where reports are written: cfg.ReportFile, created
// with owner-only permissions, or stdout.
func openOutput(cfg *config.Config, stdout io.Writer) (io.WriteCloser, error) {
	if cfg.ReportFile == "" {
		return nopCloser{stdout}, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Create/overwrite the output file with owner-only permissions (0600)
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// newReportWriter picks the report format requested in cfg.
func newReportWriter(cfg *config.Config, w io.Writer, maxFiles int) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w, report.WithMarkdownMaxFiles(maxFiles))
	default:
		return report.NewSimpleWriter(w, report.WithMaxFiles(maxFiles), report.WithVerbose(cfg.Verbose))
	}
}
