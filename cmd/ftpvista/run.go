package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ftpvista/internal/config"
	"github.com/nao1215/ftpvista/internal/index"
	"github.com/nao1215/ftpvista/internal/pipeline"
	"github.com/nao1215/ftpvista/internal/sniffer"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover FTP servers from ARP traffic and keep the index up to date",
		Long: `Run captures ARP packets on a network interface and feeds every address
it sees through the discovery pipeline:

  blacklist -> valid address -> recent duplicate -> FTP port open -> queue

Queued servers are scanned by the update coordinator. A server is scanned
again only after the minimum update interval has elapsed since its last
scan. Stop with Ctrl+C or SIGTERM; running scans are cancelled.

Capturing packets usually requires root or CAP_NET_RAW.

Examples:
  # Watch eth0 and index servers on 192.168.1.0/24
  ftpvista run -i eth0 --valid-pattern '^192\.168\.1\.'

  # Never scan the gateway, scan two servers at a time
  ftpvista run -i eth0 --blacklist 192.168.1.1 --workers 2

  # Confirm open ports with nmap instead of a TCP connect
  ftpvista run -i eth0 --probe nmap`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	// Capture flags
	cmd.Flags().StringP("interface", "i", "", "Network interface to capture on")
	cmd.Flags().String("filter", config.DefaultCaptureFilter, "BPF capture filter")
	cmd.Flags().Bool("promiscuous", false, "Put the interface in promiscuous mode")

	// Discovery flags
	cmd.Flags().StringSlice("blacklist", nil, "IPv4 address never scanned (repeatable)")
	cmd.Flags().String("valid-pattern", "",
		"Regular expression an address must match at its start (empty: any)")
	cmd.Flags().Duration("duplicate-window", config.DefaultDuplicateWindow,
		"How long an accepted address is ignored afterwards")
	cmd.Flags().String("probe", config.DefaultProbeMethod, "FTP port check: tcp or nmap")
	cmd.Flags().Duration("probe-timeout", config.DefaultProbeTimeout, "FTP port check timeout")
	cmd.Flags().Bool("banner-check", false, "Require a 220 greeting for the port to count as open")
	cmd.Flags().Int("queue-size", config.DefaultQueueSize, "Capacity of the scan queue")

	// Update flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers, "Number of concurrent scans")
	cmd.Flags().Duration("min-update-interval", config.DefaultMinUpdateInterval,
		"Minimum time between two scans of the same server")

	addScanFlags(cmd)

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDiscovery(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	d, err := newDialer(cfg)
	if err != nil {
		return err
	}

	queue := make(chan string, cfg.QueueSize)
	discovery, err := pipeline.BuildDiscoveryPipeline(pipeline.DiscoveryOptions{
		Blacklist:           cfg.Blacklist,
		ValidAddressPattern: cfg.ValidAddressPattern,
		DuplicateWindow:     cfg.DuplicateWindow,
		Prober:              newProber(cfg, d, logger),
		Queue:               queue,
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build discovery pipeline: %w", err)
	}

	packets := make(chan sniffer.Packet)
	source := sniffer.NewARPSource(cfg.Interface, packets,
		sniffer.WithFilter(cfg.CaptureFilter),
		sniffer.WithPromiscuous(cfg.Promiscuous),
		sniffer.WithSourceLogger(logger),
	)
	adapter := sniffer.NewAdapter(packets, discovery, sniffer.WithAdapterLogger(logger))
	coordinator := newCoordinator(cfg, db, d, logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, stopping...")
			source.Stop()
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("ftpvista started",
		"interface", cfg.Interface,
		"filter", cfg.CaptureFilter,
		"probe", cfg.ProbeMethod,
		"workers", cfg.Workers,
		"db", db.Path(),
	)

	err = runDiscovery(ctx, source, adapter, coordinator, queue)
	logger.Info("ftpvista stopped",
		"packets", adapter.Packets(),
		"accepted", adapter.Accepted(),
	)
	return err
}

// runDiscovery runs capture, discovery and updates until the capture ends
// or ctx is cancelled. The queue is closed once nothing can enqueue to it
// anymore so the coordinator drains it and returns.
func runDiscovery(ctx context.Context, source sniffer.Source, adapter *sniffer.Adapter, coordinator *index.Coordinator, queue chan string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return source.Run(gctx)
	})
	g.Go(func() error {
		defer close(queue)
		return adapter.Run(gctx)
	})
	g.Go(func() error {
		return coordinator.Run(gctx, queue)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
