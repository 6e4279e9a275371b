package sniffer

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/nao1215/ftpvista/internal/model"
)

func arpFrame(t *testing.T, src, dst string) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       layers.EthernetBroadcast,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0x02, 0, 0, 0, 0, 1},
		SourceProtAddress: net.ParseIP(src).To4(),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    net.ParseIP(dst).To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp); err != nil {
		t.Fatalf("failed to serialize ARP frame: %v", err)
	}
	return buf.Bytes()
}

// fakeHandle replays frames, then reports timeouts until closed or
// returns io.EOF when eof is set.
type fakeHandle struct {
	mu      sync.Mutex
	frames  [][]byte
	eof     bool
	filter  string
	closed  bool
	readErr error
}

func (h *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.readErr != nil {
		return nil, gopacket.CaptureInfo{}, h.readErr
	}
	if len(h.frames) > 0 {
		f := h.frames[0]
		h.frames = h.frames[1:]
		return f, gopacket.CaptureInfo{Length: len(f), CaptureLength: len(f)}, nil
	}
	if h.eof {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	time.Sleep(time.Millisecond)
	return nil, gopacket.CaptureInfo{}, pcap.NextErrorTimeoutExpired
}

func (h *fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (h *fakeHandle) SetBPFFilter(expr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filter = expr
	return nil
}

func (h *fakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func opener(h *fakeHandle) OpenFunc {
	return func(string, int32, bool, time.Duration) (Handle, error) {
		return h, nil
	}
}

func TestDecodeARP(t *testing.T) {
	t.Parallel()

	t.Run("arp request", func(t *testing.T) {
		t.Parallel()

		frame := arpFrame(t, "192.168.1.10", "192.168.1.20")
		p, ok := DecodeARP(gopacket.NewPacket(frame, layers.LinkTypeEthernet, gopacket.Default))
		if !ok {
			t.Fatal("DecodeARP() failed on a valid ARP frame")
		}
		if p.Source.String() != "192.168.1.10" || p.Dest.String() != "192.168.1.20" {
			t.Errorf("DecodeARP() = %s -> %s", p.Source, p.Dest)
		}
	})

	t.Run("non arp frame", func(t *testing.T) {
		t.Parallel()

		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		}
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		if err := gopacket.SerializeLayers(buf, opts, eth, ip); err != nil {
			t.Fatal(err)
		}

		if _, ok := DecodeARP(gopacket.NewPacket(buf.Bytes(), layers.LinkTypeEthernet, gopacket.Default)); ok {
			t.Error("DecodeARP() accepted an IPv4 frame")
		}
	})
}

func TestARPSourceRun(t *testing.T) {
	t.Parallel()

	t.Run("publishes packets and closes the channel at end of capture", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandle{
			frames: [][]byte{
				arpFrame(t, "192.168.1.10", "192.168.1.20"),
				{0xde, 0xad},
				arpFrame(t, "192.168.1.30", "192.168.1.40"),
			},
			eof: true,
		}
		out := make(chan Packet, 10)
		src := NewARPSource("eth0", out, WithOpener(opener(h)))

		if err := src.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		var got []Packet
		for p := range out {
			got = append(got, p)
		}
		if len(got) != 2 {
			t.Fatalf("got %d packets, want 2", len(got))
		}
		if got[1].Source.String() != "192.168.1.30" {
			t.Errorf("second packet source = %s", got[1].Source)
		}
		if h.filter != DefaultFilter {
			t.Errorf("filter = %q, want %q", h.filter, DefaultFilter)
		}
		if !h.closed {
			t.Error("handle not closed")
		}
	})

	t.Run("stop is cooperative and idempotent", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandle{}
		out := make(chan Packet)
		src := NewARPSource("eth0", out, WithOpener(opener(h)), WithFilter("arp and vlan"))

		done := make(chan error, 1)
		go func() { done <- src.Run(context.Background()) }()

		src.Stop()
		src.Stop()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run() did not return after Stop()")
		}
		if _, ok := <-out; ok {
			t.Error("output channel not closed")
		}
	})

	t.Run("stop unblocks a pending publish", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandle{frames: [][]byte{arpFrame(t, "10.0.0.1", "10.0.0.2")}}
		out := make(chan Packet)
		src := NewARPSource("eth0", out, WithOpener(opener(h)))

		done := make(chan error, 1)
		go func() { done <- src.Run(context.Background()) }()

		time.Sleep(20 * time.Millisecond)
		src.Stop()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Run() blocked on a full channel after Stop()")
		}
	})

	t.Run("read errors are returned", func(t *testing.T) {
		t.Parallel()

		h := &fakeHandle{readErr: errors.New("interface went down")}
		src := NewARPSource("eth0", make(chan Packet, 1), WithOpener(opener(h)))

		if err := src.Run(context.Background()); err == nil {
			t.Error("Run() should fail on a read error")
		}
	})

	t.Run("missing interface", func(t *testing.T) {
		t.Parallel()

		src := NewARPSource("", make(chan Packet, 1))
		if err := src.Run(context.Background()); !errors.Is(err, ErrNoInterface) {
			t.Errorf("Run() error = %v, want ErrNoInterface", err)
		}
	})
}

// recordingExecutor records the addresses it sees.
type recordingExecutor struct {
	mu    sync.Mutex
	seen  []string
	allow map[string]bool
}

func (e *recordingExecutor) Execute(_ context.Context, addr string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, addr)
	return e.allow[addr]
}

func TestAdapter(t *testing.T) {
	t.Parallel()

	t.Run("source then destination in packet order", func(t *testing.T) {
		t.Parallel()

		in := make(chan Packet, 3)
		in <- Packet{Source: model.MustNewAddress("10.0.0.1"), Dest: model.MustNewAddress("10.0.0.2")}
		in <- Packet{Source: model.MustNewAddress("0.0.0.0"), Dest: model.MustNewAddress("10.0.0.3")}
		in <- Packet{Source: model.MustNewAddress("10.0.0.4")}
		close(in)

		exec := &recordingExecutor{allow: map[string]bool{"10.0.0.2": true}}
		a := NewAdapter(in, exec)

		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}
		if len(exec.seen) != len(want) {
			t.Fatalf("seen = %v, want %v", exec.seen, want)
		}
		for i := range want {
			if exec.seen[i] != want[i] {
				t.Errorf("seen[%d] = %s, want %s", i, exec.seen[i], want[i])
			}
		}
		if a.Packets() != 3 {
			t.Errorf("Packets() = %d, want 3", a.Packets())
		}
		if a.Accepted() != 1 {
			t.Errorf("Accepted() = %d, want 1", a.Accepted())
		}
	})

	t.Run("returns when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		a := NewAdapter(make(chan Packet), &recordingExecutor{})
		if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
}
