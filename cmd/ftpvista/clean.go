package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errCleanNotForced is returned when clean runs without --force.
var errCleanNotForced = errors.New("refusing to delete the index without --force")

// NewCleanCmd creates the clean command.
func NewCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every host, file and scan record from the index",
		Long: `Clean empties the index. The database file is kept, only its content
is removed. The next discovery run starts from scratch.

Examples:
  ftpvista clean --force`,
		Args: cobra.NoArgs,
		RunE: runCleanCmd,
	}

	cmd.Flags().BoolP("force", "f", false, "Confirm the deletion")

	return cmd
}

// runCleanCmd executes the clean command.
func runCleanCmd(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if !force {
		return errCleanNotForced
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Truncate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clean index: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index cleaned: %s\n", db.Path())
	return nil
}
