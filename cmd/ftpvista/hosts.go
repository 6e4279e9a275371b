package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHostsCmd creates the hosts command.
func NewHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List the FTP servers in the index",
		Long: `Hosts lists every FTP server recorded in the index with its file count,
total size, last scan time and last scan status.

Examples:
  ftpvista hosts
  ftpvista hosts --json`,
		Args: cobra.NoArgs,
		RunE: runHostsCmd,
	}

	addReportFlags(cmd)

	return cmd
}

// runHostsCmd executes the hosts command.
func runHostsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	hosts, err := db.ListHosts(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}

	out, err := openOutput(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = newReportWriter(cfg, out, 0).WriteHosts(hosts)
	return err
}
