package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ftpvista.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ftpvista",
		Short: "Discover and index FTP servers on the local network",
		Long: `ftpvista passively listens to ARP traffic to find hosts on the local
network, checks which of them accept FTP connections, and walks their
directory trees to keep a searchable index of the files they share.

The index is stored in a SQLite file under the XDG data directory.
Settings are read from .ftpvista (see 'ftpvista init'); command-line
flags take precedence over the file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .ftpvista in current, home or XDG config directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory holding the index database (default: XDG data directory)")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHostsCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewCleanCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
