package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/ftpvista/internal/index"
	"github.com/nao1215/ftpvista/internal/model"
	"github.com/nao1215/ftpvista/internal/report"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <host>...",
		Short: "Scan FTP servers once and print what they share",
		Long: `Scan walks the directory tree of each given FTP server and prints the
files it found. Hosts may carry a port (host:port); port 21 is used
otherwise.

With --save the result is also stored in the index exactly as the run
command would, including the per-host history. Per-host settings from
the configuration file apply in both cases.

Examples:
  # Print the files shared by one server
  ftpvista scan 192.168.1.20

  # Scan a server on a non-standard port and store the result
  ftpvista scan --save 192.168.1.20:2121

  # Write a Markdown report
  ftpvista scan -m -o report.md 192.168.1.20 192.168.1.21`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScanCmd,
	}

	addScanFlags(cmd)
	addReportFlags(cmd)

	cmd.Flags().Bool("save", false, "Store the result in the index")
	cmd.Flags().Duration("min-update-interval", 0,
		"With --save, skip hosts scanned more recently than this")
	cmd.Flags().Int("max-files", 0, "Maximum files listed per host in text and Markdown reports (0: all)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	// A one-off scan rescans unless asked otherwise, whatever the file says.
	if !flagChanged(cmd, "min-update-interval") {
		cfg.MinUpdateInterval = 0
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	save, err := cmd.Flags().GetBool("save")
	if err != nil {
		return err
	}
	maxFiles, err := cmd.Flags().GetInt("max-files")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	d, err := newDialer(cfg)
	if err != nil {
		return err
	}

	var scan func(ctx context.Context, addr string) (*model.ScanReport, error)
	if save {
		db, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		scan = newCoordinator(cfg, db, d, logger).UpdateServer
	} else {
		factory := newScannerFactory(cfg, d, logger)
		scan = func(ctx context.Context, addr string) (*model.ScanReport, error) {
			return scanOnce(ctx, factory, addr)
		}
	}

	out, err := openOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer out.Close()

	return scanHosts(ctx, args, scan, newReportWriter(cfg, out, maxFiles), logger)
}

// scanHosts scans every host in turn and writes one report per host. A
// failed host does not stop the others; the failures are returned
// together.
func scanHosts(ctx context.Context, hosts []string, scan func(context.Context, string) (*model.ScanReport, error), w report.Writer, logger *slog.Logger) error {
	var errs []error
	for _, host := range hosts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Info("scanning", "host", host)
		r, err := scan(ctx, host)
		if err != nil {
			logger.Error("scan failed", "host", host, "error", err)
			errs = append(errs, err)
		}
		if r == nil {
			continue
		}
		if _, err := w.WriteScan(r); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return errors.Join(errs...)
}

// scanOnce walks addr without touching the index.
func scanOnce(ctx context.Context, newScanner index.ScannerFactory, addr string) (*model.ScanReport, error) {
	r := model.NewScanReport(addr)

	s, err := newScanner(addr)
	if err != nil {
		r.Finished = time.Now()
		r.Fail(err)
		return r, err
	}

	files, stats, err := s.ScanWithStats(ctx)
	r.Finished = time.Now()
	r.DirsListed = stats.DirsListed
	r.Reconnects = stats.Reconnects
	r.LegacyListings = stats.LegacyListings
	if err != nil {
		r.Fail(err)
		return r, fmt.Errorf("scan of %s failed: %w", addr, err)
	}
	r.Files = files
	return r, nil
}
