package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/ftpvista/internal/report"
)

// errHostNotFound is returned by report for an address not in the index.
var errHostNotFound = errors.New("host not found in the index")

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <host>",
		Short: "Show the indexed files and scan history of a server",
		Long: `Report prints what the index knows about one FTP server: its status,
the files recorded by its last successful scan grouped by top-level
directory and by type, and its recent scan history.

Examples:
  # Text report on the terminal
  ftpvista report 192.168.1.20

  # Markdown report with at most 200 files listed
  ftpvista report -m --max-files 200 -o 192.168.1.20.md 192.168.1.20`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	addReportFlags(cmd)

	cmd.Flags().Int("max-files", 100, "Maximum files listed in text and Markdown reports (0: all)")
	cmd.Flags().Int("history", 10, "Number of past scans shown")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	maxFiles, err := cmd.Flags().GetInt("max-files")
	if err != nil {
		return err
	}
	history, err := cmd.Flags().GetInt("history")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	addr := args[0]

	host, err := db.GetHost(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to read host: %w", err)
	}
	if host == nil {
		return fmt.Errorf("%w: %s", errHostNotFound, addr)
	}

	detail := &report.HostDetail{Host: *host}
	if detail.Files, err = db.ListFiles(ctx, addr); err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if detail.History, err = db.ScanHistory(ctx, addr, history); err != nil {
		return fmt.Errorf("failed to read scan history: %w", err)
	}

	out, err := openOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = newReportWriter(cfg, out, maxFiles).WriteHost(detail)
	return err
}
