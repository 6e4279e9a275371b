package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ftpvista/internal/model"
	"github.com/nao1215/ftpvista/internal/protocol"
	"github.com/nao1215/ftpvista/internal/scanner"
)

// DefaultMinUpdateInterval is the minimum time between two scans of the
// same host.
const DefaultMinUpdateInterval = time.Hour

// Store is the persistence used by the Coordinator. *database.IndexDB
// implements it.
type Store interface {
	MarkSeen(ctx context.Context, addr string, when time.Time) error
	GetHost(ctx context.Context, addr string) (*model.Host, error)
	UpsertHost(ctx context.Context, h *model.Host) error
	ReplaceFiles(ctx context.Context, addr string, files []model.FileRecord) error
	SaveScanReport(ctx context.Context, r *model.ScanReport) error
}

// FileScanner walks one server.
type FileScanner interface {
	ScanWithStats(ctx context.Context) ([]model.FileRecord, scanner.Stats, error)
}

// ScannerFactory builds the scanner for addr.
type ScannerFactory func(addr string) (FileScanner, error)

// Identifier reads the server greeting. *protocol.FTPProber implements it.
type Identifier interface {
	Probe(ctx context.Context, addr string) *protocol.ProbeResult
}

// Coordinator decides when hosts are scanned and stores the results.
type Coordinator struct {
	store       Store
	newScanner  ScannerFactory
	identifier  Identifier
	minInterval time.Duration
	workers     int
	now         func() time.Time
	logger      *slog.Logger

	// mu guards active, the hosts being scanned right now.
	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMinUpdateInterval sets the minimum time between two scans of a host.
func WithMinUpdateInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.minInterval = d
		}
	}
}

// WithWorkers sets how many hosts may be scanned at once.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithIdentifier makes the coordinator record the server software from
// the greeting before each scan.
func WithIdentifier(id Identifier) Option {
	return func(c *Coordinator) {
		c.identifier = id
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, newScanner ScannerFactory, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		newScanner:  newScanner,
		minInterval: DefaultMinUpdateInterval,
		workers:     1,
		now:         time.Now,
		logger:      slog.Default(),
		active:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// acquire marks addr as being scanned. It returns false if it already is.
func (c *Coordinator) acquire(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.active[addr]; busy {
		return false
	}
	c.active[addr] = struct{}{}
	return true
}

func (c *Coordinator) release(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, addr)
}

// UpdateServer brings the stored view of addr up to date.
//
// The returned report describes what happened; Skipped is set when the
// host was scanned recently or is being scanned by another worker. A scan
// failure is recorded on the host and returned. Store failures are
// returned as well.
func (c *Coordinator) UpdateServer(ctx context.Context, addr string) (*model.ScanReport, error) {
	report := model.NewScanReport(addr)
	report.Started = c.now()
	log := c.logger.With("host", addr)

	if !c.acquire(addr) {
		log.Debug("scan already in progress")
		report.Skipped = true
		report.Finished = report.Started
		return report, nil
	}
	defer c.release(addr)

	if err := c.store.MarkSeen(ctx, addr, report.Started); err != nil {
		return report, err
	}

	host, err := c.store.GetHost(ctx, addr)
	if err != nil {
		return report, err
	}
	if host == nil {
		host = &model.Host{Address: addr, FirstSeen: report.Started, LastSeen: report.Started}
	}

	if !host.NeedsUpdate(report.Started, c.minInterval) {
		log.Info("scanned recently, skipping", "last_scanned", host.LastScanned)
		report.Skipped = true
		report.Finished = report.Started
		return report, nil
	}

	if c.identifier != nil {
		if res := c.identifier.Probe(ctx, addr); res != nil && res.Server != "" {
			host.Server = res.Server
		}
	}

	scanErr := c.scan(ctx, addr, report)
	report.Finished = c.now()
	host.LastScanned = report.Finished

	if scanErr != nil {
		report.Fail(scanErr)
		host.LastError = scanErr.Error()
	} else {
		digest := Digest(report.Files)
		if digest == host.Digest {
			report.Unchanged = true
			log.Info("file set unchanged", "files", len(report.Files))
		} else {
			if err := c.store.ReplaceFiles(ctx, addr, report.Files); err != nil {
				return report, err
			}
			log.Info("file set updated", "files", len(report.Files), "size", report.TotalSize())
		}
		host.Digest = digest
		host.FileCount = len(report.Files)
		host.TotalSize = report.TotalSize()
		host.LastError = ""
	}

	if err := c.store.UpsertHost(ctx, host); err != nil {
		return report, err
	}
	if err := c.store.SaveScanReport(ctx, report); err != nil {
		return report, err
	}

	if scanErr != nil {
		return report, fmt.Errorf("scan of %s failed: %w", addr, scanErr)
	}
	return report, nil
}

func (c *Coordinator) scan(ctx context.Context, addr string, report *model.ScanReport) error {
	s, err := c.newScanner(addr)
	if err != nil {
		return err
	}

	files, stats, err := s.ScanWithStats(ctx)
	report.DirsListed = stats.DirsListed
	report.Reconnects = stats.Reconnects
	report.LegacyListings = stats.LegacyListings
	if err != nil {
		return err
	}
	report.Files = files
	return nil
}

// Run consumes addresses from queue until it is closed or ctx is done.
// At most the configured number of workers scan at the same time; while
// they are all busy no address is taken from the queue.
func (c *Coordinator) Run(ctx context.Context, queue <-chan string) error {
	c.logger.Info("update coordinator running", "workers", c.workers, "min_update_interval", c.minInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case addr, ok := <-queue:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				if _, err := c.UpdateServer(gctx, addr); err != nil {
					c.logger.Warn("update failed", "host", addr, "error", err)
				}
				return nil
			})
		}
	}
}
