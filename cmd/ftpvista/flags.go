package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/ftpvista/internal/config"
	ftplog "github.com/nao1215/ftpvista/internal/log"
)

// addScanFlags registers the flags that control how a single host is
// walked. They are shared by run and scan.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultConnectTimeout,
		"Connection and command timeout for FTP sessions")
	cmd.Flags().IntP("max-depth", "d", config.DefaultMaxDepth,
		"Maximum directory depth walked on a server")
	cmd.Flags().StringSlice("ignore", nil,
		"Absolute directory path to skip (repeatable)")
	cmd.Flags().Int("reconnect-limit", 0,
		"Maximum reconnections per scan (0: unlimited)")
	cmd.Flags().Duration("reconnect-interval", 0,
		"Minimum delay between reconnections")
	cmd.Flags().String("user", config.DefaultUser, "FTP login user")
	cmd.Flags().String("password", config.DefaultPassword, "FTP login password")
	cmd.Flags().String("socks", "",
		"SOCKS5 proxy used for probes and FTP control connections (host:port)")
}

// addReportFlags registers the output format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
}

// lookupFlags returns the flag set that defines name: the command's own,
// or the root persistent set when the command has not been parsed yet.
func lookupFlags(cmd *cobra.Command, name string) *pflag.FlagSet {
	if cmd.Flags().Lookup(name) != nil {
		return cmd.Flags()
	}
	if cmd.Root().PersistentFlags().Lookup(name) != nil {
		return cmd.Root().PersistentFlags()
	}
	return nil
}

// flagChanged reports whether name was given on the command line.
func flagChanged(cmd *cobra.Command, name string) bool {
	fs := lookupFlags(cmd, name)
	if fs == nil {
		return false
	}
	return fs.Changed(name)
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set, in that order of precedence.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	if fs := lookupFlags(cmd, "config"); fs != nil {
		path, err := fs.GetString("config")
		if err != nil {
			return nil, err
		}
		cfg.ConfigFilePath = path
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently keep the defaults.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg. Flags left at
// their default do not override the configuration file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	stringFlags := map[string]*string{
		"db-dir":        &cfg.DBDir,
		"interface":     &cfg.Interface,
		"filter":        &cfg.CaptureFilter,
		"valid-pattern": &cfg.ValidAddressPattern,
		"probe":         &cfg.ProbeMethod,
		"socks":         &cfg.SOCKSProxy,
		"user":          &cfg.User,
		"password":      &cfg.Password,
		"output":        &cfg.ReportFile,
	}
	boolFlags := map[string]*bool{
		"verbose":      &cfg.Verbose,
		"json-logs":    &cfg.JSONLogs,
		"promiscuous":  &cfg.Promiscuous,
		"banner-check": &cfg.BannerCheck,
		"json":         &cfg.JSONReport,
		"markdown":     &cfg.MarkdownReport,
	}
	intFlags := map[string]*int{
		"queue-size":      &cfg.QueueSize,
		"workers":         &cfg.Workers,
		"max-depth":       &cfg.MaxDepth,
		"reconnect-limit": &cfg.ReconnectLimit,
	}
	durationFlags := map[string]*time.Duration{
		"duplicate-window":    &cfg.DuplicateWindow,
		"probe-timeout":       &cfg.ProbeTimeout,
		"timeout":             &cfg.ConnectTimeout,
		"min-update-interval": &cfg.MinUpdateInterval,
		"reconnect-interval":  &cfg.ReconnectInterval,
	}
	sliceFlags := map[string]*[]string{
		"blacklist": &cfg.Blacklist,
		"ignore":    &cfg.Ignores,
	}

	var err error
	for name, dst := range stringFlags {
		if flagChanged(cmd, name) {
			if *dst, err = lookupFlags(cmd, name).GetString(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range boolFlags {
		if flagChanged(cmd, name) {
			if *dst, err = lookupFlags(cmd, name).GetBool(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range intFlags {
		if flagChanged(cmd, name) {
			if *dst, err = lookupFlags(cmd, name).GetInt(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range durationFlags {
		if flagChanged(cmd, name) {
			if *dst, err = lookupFlags(cmd, name).GetDuration(name); err != nil {
				return err
			}
		}
	}
	for name, dst := range sliceFlags {
		if flagChanged(cmd, name) {
			if *dst, err = lookupFlags(cmd, name).GetStringSlice(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// setupLogger creates the redacting logger for cfg and makes it the
// default.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if cfg.JSONLogs {
		logger = ftplog.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
	} else {
		logger = ftplog.NewSecureLogger(os.Stderr, cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}
