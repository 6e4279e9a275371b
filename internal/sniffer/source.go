package sniffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/nao1215/ftpvista/internal/model"
)

// DefaultFilter is the BPF expression applied to the capture.
const DefaultFilter = "arp"

// Capture defaults.
const (
	DefaultSnapLen     = 128
	DefaultReadTimeout = time.Second
)

// ErrNoInterface is returned when no capture interface is configured.
var ErrNoInterface = errors.New("no capture interface")

// Packet is the address pair carried by one ARP packet.
type Packet struct {
	// Source is the sender protocol address.
	Source model.Address

	// Dest is the target protocol address.
	Dest model.Address
}

// Source captures packets until stopped.
type Source interface {
	// Run captures until Stop is called, ctx is done or the capture ends.
	// It closes the output channel before returning.
	Run(ctx context.Context) error

	// Stop asks Run to return. It may be called any number of times.
	Stop()
}

// Handle is the capture handle read by ARPSource. *pcap.Handle
// implements it.
type Handle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
	SetBPFFilter(expr string) error
	Close()
}

// OpenFunc opens a capture handle on an interface.
type OpenFunc func(iface string, snaplen int32, promisc bool, timeout time.Duration) (Handle, error)

// OpenLive opens a live pcap capture.
func OpenLive(iface string, snaplen int32, promisc bool, timeout time.Duration) (Handle, error) {
	h, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ARPSource reads ARP packets from a network interface.
type ARPSource struct {
	iface   string
	filter  string
	snaplen int32
	promisc bool
	timeout time.Duration
	open    OpenFunc
	logger  *slog.Logger

	out chan<- Packet

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// ARPOption configures an ARPSource.
type ARPOption func(*ARPSource)

// WithFilter replaces the BPF filter.
func WithFilter(expr string) ARPOption {
	return func(s *ARPSource) {
		if expr != "" {
			s.filter = expr
		}
	}
}

// WithPromiscuous enables promiscuous mode.
func WithPromiscuous(enabled bool) ARPOption {
	return func(s *ARPSource) {
		s.promisc = enabled
	}
}

// WithReadTimeout sets how long a read may block before the stop flag is
// checked again.
func WithReadTimeout(timeout time.Duration) ARPOption {
	return func(s *ARPSource) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithOpener replaces pcap.OpenLive.
func WithOpener(open OpenFunc) ARPOption {
	return func(s *ARPSource) {
		if open != nil {
			s.open = open
		}
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *slog.Logger) ARPOption {
	return func(s *ARPSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewARPSource creates a source capturing on iface and publishing to out.
func NewARPSource(iface string, out chan<- Packet, opts ...ARPOption) *ARPSource {
	s := &ARPSource{
		iface:   iface,
		filter:  DefaultFilter,
		snaplen: DefaultSnapLen,
		promisc: true,
		timeout: DefaultReadTimeout,
		open:    OpenLive,
		logger:  slog.Default(),
		out:     out,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stop implements Source.
func (s *ARPSource) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

// Run implements Source.
func (s *ARPSource) Run(ctx context.Context) error {
	defer close(s.out)

	if s.iface == "" {
		return ErrNoInterface
	}

	handle, err := s.open(s.iface, s.snaplen, s.promisc, s.timeout)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.iface, err)
	}
	defer handle.Close()

	if err := handle.SetBPFFilter(s.filter); err != nil {
		return fmt.Errorf("failed to set filter %q: %w", s.filter, err)
	}

	s.logger.Info("capture started", "interface", s.iface, "filter", s.filter)
	defer s.logger.Info("capture stopped", "interface", s.iface)

	linkType := handle.LinkType()
	for !s.stopped.Load() {
		if ctx.Err() != nil {
			return nil
		}

		data, _, err := handle.ReadPacketData()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
			return nil
		default:
			return fmt.Errorf("capture on %s failed: %w", s.iface, err)
		}

		pkt, ok := DecodeARP(gopacket.NewPacket(data, linkType, gopacket.NoCopy))
		if !ok {
			continue
		}

		select {
		case s.out <- pkt:
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// DecodeARP extracts the protocol addresses of an IPv4 ARP packet.
func DecodeARP(p gopacket.Packet) (Packet, bool) {
	layer := p.Layer(layers.LayerTypeARP)
	if layer == nil {
		return Packet{}, false
	}
	arp, ok := layer.(*layers.ARP)
	if !ok || arp.Protocol != layers.EthernetTypeIPv4 {
		return Packet{}, false
	}

	src, ok := model.AddressFromBytes(arp.SourceProtAddress)
	if !ok {
		return Packet{}, false
	}
	dst, ok := model.AddressFromBytes(arp.DstProtAddress)
	if !ok {
		return Packet{}, false
	}
	return Packet{Source: src, Dest: dst}, true
}
