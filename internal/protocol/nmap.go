package protocol

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
)

// DefaultNmapTimeout bounds a single nmap run.
const DefaultNmapTimeout = 10 * time.Second

// NmapProber checks the FTP port by running nmap against the host.
// It requires the nmap binary in PATH; when it is missing every host is
// reported closed and the failure is logged.
type NmapProber struct {
	timeout time.Duration
	port    int
	logger  *slog.Logger

	// run executes a configured scan. Tests replace it.
	run func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error)
}

// NmapProberOption configures an NmapProber.
type NmapProberOption func(*NmapProber)

// WithNmapTimeout sets the timeout for one nmap run.
func WithNmapTimeout(d time.Duration) NmapProberOption {
	return func(n *NmapProber) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithNmapLogger sets the logger.
func WithNmapLogger(logger *slog.Logger) NmapProberOption {
	return func(n *NmapProber) {
		n.logger = logger
	}
}

// NewNmapProber creates an NmapProber for the FTP port.
func NewNmapProber(opts ...NmapProberOption) *NmapProber {
	n := &NmapProber{
		timeout: DefaultNmapTimeout,
		port:    FTPPort,
		logger:  slog.Default(),
		run:     runNmap,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// runNmap builds a scanner and runs it.
func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, err
	}

	result, _, err := scanner.Run()
	return result, err
}

// IsFTPOpen implements Prober.
func (n *NmapProber) IsFTPOpen(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	result, err := n.run(ctx,
		nmap.WithTargets(addr),
		nmap.WithPorts(strconv.Itoa(n.port)),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		n.logger.Debug("nmap probe failed", "address", addr, "error", err)
		return false
	}

	return portOpen(result, n.port)
}

// portOpen reports whether any host in result has port in state "open".
func portOpen(result *nmap.Run, port int) bool {
	if result == nil {
		return false
	}

	for _, host := range result.Hosts {
		for _, p := range host.Ports {
			if int(p.ID) == port && p.State.State == "open" {
				return true
			}
		}
	}

	return false
}
