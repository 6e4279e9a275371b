package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/nao1215/ftpvista/internal/timedcache"
)

// BlacklistFilter drops addresses that belong to a fixed set.
type BlacklistFilter struct {
	blacklist map[string]struct{}
}

// NewBlacklistFilter creates a BlacklistFilter from addrs.
// Empty strings are ignored, so a config value like "a,,b" is harmless.
func NewBlacklistFilter(addrs []string) *BlacklistFilter {
	f := &BlacklistFilter{blacklist: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		if a == "" {
			continue
		}
		f.blacklist[a] = struct{}{}
	}
	return f
}

// Name returns the stage name.
func (f *BlacklistFilter) Name() string {
	return "blacklist"
}

// Execute passes addr iff it is not blacklisted.
func (f *BlacklistFilter) Execute(_ context.Context, addr string) bool {
	_, listed := f.blacklist[addr]
	return !listed
}

// ValidAddressFilter drops addresses that do not match a pattern.
// The pattern must match at the start of the address; it does not have to
// cover the whole string.
type ValidAddressFilter struct {
	pattern *regexp.Regexp
}

// NewValidAddressFilter compiles pattern anchored at the start of input.
func NewValidAddressFilter(pattern string) (*ValidAddressFilter, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid address pattern %q: %w", pattern, err)
	}
	return &ValidAddressFilter{pattern: re}, nil
}

// Name returns the stage name.
func (f *ValidAddressFilter) Name() string {
	return "valid_address"
}

// Execute passes addr iff the pattern matches at its start.
func (f *ValidAddressFilter) Execute(_ context.Context, addr string) bool {
	return f.pattern.MatchString(addr)
}

// DropRecentDuplicateFilter drops addresses seen within a time window.
// The first sighting passes and is recorded; repeats inside the window
// are dropped. The filter is safe for concurrent use.
type DropRecentDuplicateFilter struct {
	cache *timedcache.Cache
}

// NewDropRecentDuplicateFilter creates a filter with the given window.
func NewDropRecentDuplicateFilter(window time.Duration, opts ...timedcache.Option) *DropRecentDuplicateFilter {
	return &DropRecentDuplicateFilter{cache: timedcache.New(window, opts...)}
}

// Name returns the stage name.
func (f *DropRecentDuplicateFilter) Name() string {
	return "drop_recent_duplicate"
}

// Execute passes addr iff it was not seen in the window, recording it.
func (f *DropRecentDuplicateFilter) Execute(_ context.Context, addr string) bool {
	return f.cache.AddIfAbsent(addr)
}

// Prober reports whether a host accepts connections on the FTP port.
// Implementations treat timeouts and errors as closed.
type Prober interface {
	IsFTPOpen(ctx context.Context, addr string) bool
}

// FTPServerFilter drops hosts that do not listen on the FTP port.
// It performs a network probe and must run after the cheaper filters.
type FTPServerFilter struct {
	prober Prober
	logger *slog.Logger
}

// NewFTPServerFilter creates a filter backed by prober.
func NewFTPServerFilter(prober Prober, logger *slog.Logger) *FTPServerFilter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FTPServerFilter{prober: prober, logger: logger}
}

// Name returns the stage name.
func (f *FTPServerFilter) Name() string {
	return "ftp_server"
}

// Execute passes addr iff the FTP port is open.
func (f *FTPServerFilter) Execute(ctx context.Context, addr string) bool {
	open := f.prober.IsFTPOpen(ctx, addr)
	if open {
		f.logger.Info("FTP server found", "address", addr)
	}
	return open
}

// QueueStage pushes accepted addresses into a bounded queue.
//
// When the queue is full Execute blocks until the consumer makes room,
// which stalls the pipeline and therefore discovery. It only gives up
// when ctx is cancelled.
type QueueStage struct {
	queue chan<- string
}

// NewQueueStage creates a sink that sends to queue.
func NewQueueStage(queue chan<- string) *QueueStage {
	return &QueueStage{queue: queue}
}

// Name returns the stage name.
func (s *QueueStage) Name() string {
	return "enqueue"
}

// Execute enqueues addr.
func (s *QueueStage) Execute(ctx context.Context, addr string) bool {
	select {
	case s.queue <- addr:
		return true
	case <-ctx.Done():
		return false
	}
}
