package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/ftpvista/internal/timedcache"
)

// ErrNoProber is returned when the discovery pipeline is built without a
// port prober.
var ErrNoProber = errors.New("discovery pipeline requires a port prober")

// DiscoveryOptions holds what BuildDiscoveryPipeline needs.
type DiscoveryOptions struct {
	// Blacklist lists addresses that are never scanned.
	Blacklist []string

	// ValidAddressPattern is a regular expression matched at the start of
	// each address, typically restricting discovery to the local subnet.
	ValidAddressPattern string

	// DuplicateWindow is how long an accepted address is ignored.
	DuplicateWindow time.Duration

	// Prober checks the FTP port.
	Prober Prober

	// Queue receives accepted addresses. When nil no sink is appended and
	// the caller is expected to add one.
	Queue chan<- string

	// Logger is used by the pipeline and its stages.
	Logger *slog.Logger

	// CacheOptions configures the duplicate cache, mostly for tests.
	CacheOptions []timedcache.Option
}

// BuildDiscoveryPipeline constructs the discovery pipeline in its fixed
// order: blacklist, valid-address, recent-duplicate, FTP-port-open and,
// when a queue is given, the enqueue sink.
func BuildDiscoveryPipeline(opts DiscoveryOptions) (*Pipeline, error) {
	if opts.Prober == nil {
		return nil, ErrNoProber
	}

	valid, err := NewValidAddressFilter(opts.ValidAddressPattern)
	if err != nil {
		return nil, err
	}

	p := New(WithLogger(opts.Logger))
	p.AppendStages(
		NewBlacklistFilter(opts.Blacklist),
		valid,
		NewDropRecentDuplicateFilter(opts.DuplicateWindow, opts.CacheOptions...),
		NewFTPServerFilter(opts.Prober, opts.Logger),
	)
	if opts.Queue != nil {
		p.AppendStage(NewQueueStage(opts.Queue))
	}

	return p, nil
}
