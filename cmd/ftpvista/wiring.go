package main

import (
	"fmt"
	"log/slog"

	"golang.org/x/net/proxy"

	"github.com/nao1215/ftpvista/internal/config"
	"github.com/nao1215/ftpvista/internal/database"
	"github.com/nao1215/ftpvista/internal/ftp"
	"github.com/nao1215/ftpvista/internal/index"
	"github.com/nao1215/ftpvista/internal/pipeline"
	"github.com/nao1215/ftpvista/internal/protocol"
	"github.com/nao1215/ftpvista/internal/scanner"
)

// openStore opens the index database in cfg.DBDir.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.IndexDB, error) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// newDialer returns the dialer used for probes and FTP control
// connections, going through cfg.SOCKSProxy when set.
func newDialer(cfg *config.Config) (proxy.Dialer, error) {
	d, err := protocol.NewDialer(cfg.SOCKSProxy, cfg.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}
	return d, nil
}

// newProber returns the FTP port check selected by cfg.ProbeMethod.
func newProber(cfg *config.Config, dialer proxy.Dialer, logger *slog.Logger) pipeline.Prober {
	if cfg.ProbeMethod == config.ProbeNmap {
		return protocol.NewNmapProber(
			protocol.WithNmapTimeout(cfg.ProbeTimeout),
			protocol.WithNmapLogger(logger),
		)
	}
	return protocol.NewFTPProber(dialer,
		protocol.WithProbeTimeout(cfg.ProbeTimeout),
		protocol.WithBannerCheck(cfg.BannerCheck),
		protocol.WithProbeLogger(logger),
	)
}

// newIdentifier returns the banner reader that records server software
// before each scan.
func newIdentifier(cfg *config.Config, dialer proxy.Dialer, logger *slog.Logger) *protocol.FTPProber {
	return protocol.NewFTPProber(dialer,
		protocol.WithProbeTimeout(cfg.ProbeTimeout),
		protocol.WithBannerCheck(true),
		protocol.WithProbeLogger(logger),
	)
}

// newScannerFactory builds one scanner per host, applying the host's
// overrides from the configuration file.
func newScannerFactory(cfg *config.Config, dialer proxy.Dialer, logger *slog.Logger) index.ScannerFactory {
	dial := scanner.DialFTP(
		ftp.WithDialer(dialer),
		ftp.WithTimeout(cfg.ConnectTimeout),
		ftp.WithLogger(logger),
	)

	return func(addr string) (index.FileScanner, error) {
		hc := cfg.ForHost(addr)
		s, err := scanner.New(addr,
			scanner.WithDialer(dial),
			scanner.WithLogger(logger),
			scanner.WithMaxDepth(hc.MaxDepth),
			scanner.WithIgnores(hc.Ignores...),
			scanner.WithCredentials(hc.User, hc.Password),
			scanner.WithReconnectPolicy(cfg.ReconnectLimit, cfg.ReconnectInterval),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// newCoordinator wires the store and scanner factory into an update
// coordinator configured from cfg.
func newCoordinator(cfg *config.Config, db *database.IndexDB, dialer proxy.Dialer, logger *slog.Logger) *index.Coordinator {
	return index.NewCoordinator(db, newScannerFactory(cfg, dialer, logger),
		index.WithMinUpdateInterval(cfg.MinUpdateInterval),
		index.WithWorkers(cfg.Workers),
		index.WithIdentifier(newIdentifier(cfg, dialer, logger)),
		index.WithLogger(logger),
	)
}
