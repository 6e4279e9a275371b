package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nao1215/ftpvista/internal/config"
	"github.com/nao1215/ftpvista/internal/database"
	"github.com/nao1215/ftpvista/internal/index"
	"github.com/nao1215/ftpvista/internal/model"
	"github.com/nao1215/ftpvista/internal/pipeline"
	"github.com/nao1215/ftpvista/internal/scanner"
	"github.com/nao1215/ftpvista/internal/sniffer"
)

// fakeSource publishes a fixed list of packets, then returns err.
type fakeSource struct {
	out     chan<- sniffer.Packet
	packets []sniffer.Packet
	err     error
}

func (s *fakeSource) Run(ctx context.Context) error {
	defer close(s.out)
	for _, p := range s.packets {
		select {
		case s.out <- p:
		case <-ctx.Done():
			return nil
		}
	}
	return s.err
}

func (s *fakeSource) Stop() {}

type openProber struct{}

func (openProber) IsFTPOpen(context.Context, string) bool { return true }

type fixedScanner struct {
	files []model.FileRecord
}

func (s fixedScanner) ScanWithStats(context.Context) ([]model.FileRecord, scanner.Stats, error) {
	return s.files, scanner.Stats{DirsListed: 1}, nil
}

func packet(src, dst string) sniffer.Packet {
	return sniffer.Packet{Source: model.MustNewAddress(src), Dest: model.MustNewAddress(dst)}
}

// startDiscovery wires a fake source into the real pipeline, adapter,
// coordinator and store, and runs them until the source is exhausted.
func startDiscovery(t *testing.T, src *fakeSource, packets chan sniffer.Packet) (*database.IndexDB, error) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	queue := make(chan string, config.DefaultQueueSize)
	discovery, err := pipeline.BuildDiscoveryPipeline(pipeline.DiscoveryOptions{
		Blacklist:       []string{"192.168.1.1"},
		DuplicateWindow: config.DefaultDuplicateWindow,
		Prober:          openProber{},
		Queue:           queue,
		Logger:          logger,
	})
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	adapter := sniffer.NewAdapter(packets, discovery, sniffer.WithAdapterLogger(logger))
	coordinator := index.NewCoordinator(db,
		func(string) (index.FileScanner, error) {
			return fixedScanner{files: []model.FileRecord{
				model.NewFileRecord("/pub/a.iso", 1024, day),
				model.NewFileRecord("/pub/b.iso", 2048, day),
			}}, nil
		},
		index.WithWorkers(2),
		index.WithLogger(logger),
	)

	return db, runDiscovery(context.Background(), src, adapter, coordinator, queue)
}

func TestRunDiscovery(t *testing.T) {
	t.Parallel()

	t.Run("indexes discovered servers", func(t *testing.T) {
		t.Parallel()

		packets := make(chan sniffer.Packet)
		src := &fakeSource{out: packets, packets: []sniffer.Packet{
			packet("192.168.1.20", "192.168.1.1"),
			packet("192.168.1.20", "192.168.1.30"),
			packet("0.0.0.0", "192.168.1.20"),
		}}

		db, err := startDiscovery(t, src, packets)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		hosts, err := db.ListHosts(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(hosts) != 2 {
			t.Fatalf("expected 2 hosts, got %+v", hosts)
		}
		for _, h := range hosts {
			if h.Address == "192.168.1.1" {
				t.Error("blacklisted address must not be indexed")
			}
			if h.FileCount != 2 {
				t.Errorf("%s: expected 2 files, got %d", h.Address, h.FileCount)
			}
		}
	})

	t.Run("capture failure is returned", func(t *testing.T) {
		t.Parallel()

		errCapture := errors.New("capture failed")
		packets := make(chan sniffer.Packet)
		src := &fakeSource{out: packets, err: errCapture}

		if _, err := startDiscovery(t, src, packets); !errors.Is(err, errCapture) {
			t.Errorf("expected capture error, got %v", err)
		}
	})
}

func TestRunCmdRequiresInterface(t *testing.T) {
	t.Parallel()

	_, err := execute(t, t.TempDir(), "run")
	if !errors.Is(err, config.ErrNoInterface) {
		t.Errorf("expected ErrNoInterface, got %v", err)
	}
}
