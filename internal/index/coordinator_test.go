package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/ftpvista/internal/model"
	"github.com/nao1215/ftpvista/internal/protocol"
	"github.com/nao1215/ftpvista/internal/scanner"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	hosts    map[string]model.Host
	files    map[string][]model.FileRecord
	reports  []*model.ScanReport
	replaces int
	seen     map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		hosts: make(map[string]model.Host),
		files: make(map[string][]model.FileRecord),
		seen:  make(map[string]int),
	}
}

func (m *memStore) MarkSeen(_ context.Context, addr string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[addr]
	if !ok {
		h = model.Host{Address: addr, FirstSeen: when}
	}
	h.LastSeen = when
	m.hosts[addr] = h
	m.seen[addr]++
	return nil
}

func (m *memStore) GetHost(_ context.Context, addr string) (*model.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[addr]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (m *memStore) UpsertHost(_ context.Context, h *model.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[h.Address] = *h
	return nil
}

func (m *memStore) ReplaceFiles(_ context.Context, addr string, files []model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[addr] = append([]model.FileRecord(nil), files...)
	m.replaces++
	return nil
}

func (m *memStore) SaveScanReport(_ context.Context, r *model.ScanReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// stubScanner returns canned results.
type stubScanner struct {
	files []model.FileRecord
	stats scanner.Stats
	err   error
	block chan struct{}
}

func (s *stubScanner) ScanWithStats(ctx context.Context) ([]model.FileRecord, scanner.Stats, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, s.stats, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.stats, s.err
	}
	return s.files, s.stats, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var sample = []model.FileRecord{
	model.NewFileRecord("/pub/a.iso", 100, time.Date(2015, 9, 20, 0, 0, 0, 0, time.UTC)),
	model.NewFileRecord("/pub/b.txt", 7, time.Time{}),
}

func TestUpdateServer(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	clock := &fakeClock{now: time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)}

	var calls atomic.Int32
	current := &stubScanner{files: sample, stats: scanner.Stats{DirsListed: 2, Reconnects: 1}}
	factory := func(addr string) (FileScanner, error) {
		calls.Add(1)
		return current, nil
	}

	c := NewCoordinator(store, factory, WithClock(clock.Now), WithMinUpdateInterval(time.Hour))
	ctx := context.Background()

	t.Run("first scan stores the file set", func(t *testing.T) {
		report, err := c.UpdateServer(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("UpdateServer() error = %v", err)
		}
		if report.Skipped || report.Unchanged {
			t.Errorf("report = %+v, want a fresh scan", report)
		}
		if report.DirsListed != 2 || report.Reconnects != 1 {
			t.Errorf("stats not copied: %+v", report)
		}
		if len(store.files["10.0.0.1"]) != 2 {
			t.Errorf("stored %d files, want 2", len(store.files["10.0.0.1"]))
		}
		h := store.hosts["10.0.0.1"]
		if h.FileCount != 2 || h.TotalSize != 107 || h.Digest != Digest(sample) {
			t.Errorf("host = %+v", h)
		}
		if !h.LastScanned.Equal(clock.Now()) {
			t.Errorf("LastScanned = %v", h.LastScanned)
		}
		if len(store.reports) != 1 {
			t.Errorf("saved %d reports, want 1", len(store.reports))
		}
	})

	t.Run("recent host is skipped without scanning", func(t *testing.T) {
		clock.Advance(30 * time.Minute)
		before := calls.Load()

		report, err := c.UpdateServer(ctx, "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if !report.Skipped {
			t.Error("report.Skipped = false, want true")
		}
		if calls.Load() != before {
			t.Error("scanner was built for a recently scanned host")
		}
		if store.seen["10.0.0.1"] != 2 {
			t.Errorf("seen = %d, want 2", store.seen["10.0.0.1"])
		}
	})

	t.Run("unchanged tree is not rewritten", func(t *testing.T) {
		clock.Advance(time.Hour)

		report, err := c.UpdateServer(ctx, "10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if !report.Unchanged {
			t.Error("report.Unchanged = false, want true")
		}
		if store.replaces != 1 {
			t.Errorf("replaces = %d, want 1", store.replaces)
		}
	})

	t.Run("changed tree is replaced", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		current = &stubScanner{files: sample[:1]}

		if _, err := c.UpdateServer(ctx, "10.0.0.1"); err != nil {
			t.Fatal(err)
		}
		if store.replaces != 2 {
			t.Errorf("replaces = %d, want 2", store.replaces)
		}
		if h := store.hosts["10.0.0.1"]; h.FileCount != 1 {
			t.Errorf("FileCount = %d, want 1", h.FileCount)
		}
	})

	t.Run("failed scan keeps the stored files", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		current = &stubScanner{err: &scanner.TooDeepError{Depth: 50, Path: "/loop"}}

		report, err := c.UpdateServer(ctx, "10.0.0.1")
		if !errors.Is(err, scanner.ErrTooDeep) {
			t.Fatalf("UpdateServer() error = %v, want ErrTooDeep", err)
		}
		if report.ErrorMessage == "" || len(report.Files) != 0 {
			t.Errorf("report = %+v", report)
		}
		if store.replaces != 2 {
			t.Error("failed scan replaced the file set")
		}
		h := store.hosts["10.0.0.1"]
		if h.LastError == "" || h.FileCount != 1 {
			t.Errorf("host = %+v", h)
		}
	})
}

func TestUpdateServerFactoryError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	factory := func(string) (FileScanner, error) { return nil, scanner.ErrNoHost }
	c := NewCoordinator(store, factory)

	if _, err := c.UpdateServer(context.Background(), "10.0.0.1"); !errors.Is(err, scanner.ErrNoHost) {
		t.Errorf("UpdateServer() error = %v", err)
	}
	if store.hosts["10.0.0.1"].LastError == "" {
		t.Error("factory error not recorded on the host")
	}
}

type stubIdentifier struct{}

func (stubIdentifier) Probe(_ context.Context, addr string) *protocol.ProbeResult {
	return &protocol.ProbeResult{Address: addr, Open: true, Server: "vsFTPd"}
}

func TestUpdateServerIdentifiesServer(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	factory := func(string) (FileScanner, error) { return &stubScanner{files: sample}, nil }
	c := NewCoordinator(store, factory, WithIdentifier(stubIdentifier{}))

	if _, err := c.UpdateServer(context.Background(), "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if got := store.hosts["10.0.0.1"].Server; got != "vsFTPd" {
		t.Errorf("Server = %q, want vsFTPd", got)
	}
}

func TestUpdateServerSameHostNotConcurrent(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	block := make(chan struct{})
	factory := func(string) (FileScanner, error) { return &stubScanner{files: sample, block: block}, nil }
	c := NewCoordinator(store, factory)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.UpdateServer(context.Background(), "10.0.0.1")
	}()

	// Wait until the first update holds the host.
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.mu.Lock()
		_, busy := c.active["10.0.0.1"]
		c.mu.Unlock()
		if busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first update never started")
		}
		time.Sleep(time.Millisecond)
	}

	report, err := c.UpdateServer(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped {
		t.Error("second concurrent update of the same host was not skipped")
	}

	close(block)
	<-done
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("drains the queue with bounded concurrency", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		store := newMemStore()
		factory := func(string) (FileScanner, error) {
			return scanFunc(func(context.Context) ([]model.FileRecord, scanner.Stats, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return sample, scanner.Stats{}, nil
			}), nil
		}
		c := NewCoordinator(store, factory, WithWorkers(2))

		queue := make(chan string, 6)
		for _, addr := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"} {
			queue <- addr
		}
		close(queue)

		if err := c.Run(context.Background(), queue); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(store.reports) != 6 {
			t.Errorf("saved %d reports, want 6", len(store.reports))
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
		}
	})

	t.Run("returns on cancellation", func(t *testing.T) {
		t.Parallel()

		c := NewCoordinator(newMemStore(), func(string) (FileScanner, error) { return &stubScanner{}, nil })
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := c.Run(ctx, make(chan string)); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
}

type scanFunc func(context.Context) ([]model.FileRecord, scanner.Stats, error)

func (f scanFunc) ScanWithStats(ctx context.Context) ([]model.FileRecord, scanner.Stats, error) {
	return f(ctx)
}

func TestDigest(t *testing.T) {
	t.Parallel()

	reversed := []model.FileRecord{sample[1], sample[0]}
	if Digest(sample) != Digest(reversed) {
		t.Error("digest depends on file order")
	}

	resized := []model.FileRecord{sample[0], model.NewFileRecord("/pub/b.txt", 8, time.Time{})}
	if Digest(sample) == Digest(resized) {
		t.Error("digest ignores sizes")
	}

	if Digest(nil) == Digest(sample) {
		t.Error("empty set digests like a non-empty one")
	}
	if len(Digest(nil)) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(Digest(nil)))
	}
}
