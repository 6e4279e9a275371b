package protocol

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ErrNotFTP is reported when a port is open but does not greet like FTP.
var ErrNotFTP = errors.New("service did not send an FTP greeting")

// FTPProber checks the FTP port with a TCP connect.
type FTPProber struct {
	// dialer is used to establish connections.
	dialer proxy.Dialer

	// timeout bounds connect and greeting read.
	timeout time.Duration

	// port is the port to probe.
	port int

	// bannerCheck requires a 220 greeting before reporting the port open.
	bannerCheck bool

	logger *slog.Logger
}

// FTPProberOption configures an FTPProber.
type FTPProberOption func(*FTPProber)

// WithProbeTimeout sets the probe timeout.
func WithProbeTimeout(timeout time.Duration) FTPProberOption {
	return func(p *FTPProber) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPort overrides the probed port.
func WithPort(port int) FTPProberOption {
	return func(p *FTPProber) {
		p.port = port
	}
}

// WithBannerCheck makes the prober read the greeting and only report hosts
// that answer with a 220 reply.
func WithBannerCheck(enabled bool) FTPProberOption {
	return func(p *FTPProber) {
		p.bannerCheck = enabled
	}
}

// WithProbeLogger sets the logger.
func WithProbeLogger(logger *slog.Logger) FTPProberOption {
	return func(p *FTPProber) {
		p.logger = logger
	}
}

// NewFTPProber creates a prober. A nil dialer dials directly.
func NewFTPProber(dialer proxy.Dialer, opts ...FTPProberOption) *FTPProber {
	p := &FTPProber{
		dialer:  dialer,
		timeout: DefaultProbeTimeout,
		port:    FTPPort,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.dialer == nil {
		p.dialer = &net.Dialer{Timeout: p.timeout}
	}

	return p
}

// IsFTPOpen implements Prober.
func (p *FTPProber) IsFTPOpen(ctx context.Context, addr string) bool {
	return p.Probe(ctx, addr).Open
}

// Probe connects to the FTP port of addr and reports what it found. An
// addr that already names a port is dialed as is.
func (p *FTPProber) Probe(ctx context.Context, addr string) *ProbeResult {
	result := &ProbeResult{Address: addr, Port: p.port}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		target = net.JoinHostPort(addr, strconv.Itoa(p.port))
	}
	start := time.Now()
	conn, err := DialContext(ctx, p.dialer, "tcp", target)
	result.RTT = time.Since(start)
	if err != nil {
		result.Err = err
		p.logger.Debug("probe failed", "address", addr, "error", err)
		return result
	}
	defer conn.Close()

	if !p.bannerCheck {
		result.Open = true
		return result
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		result.Err = err
		return result
	}

	banner, err := readGreeting(bufio.NewReader(conn))
	result.Banner = banner
	if err != nil {
		result.Err = err
		return result
	}

	if !strings.HasPrefix(banner, "220") {
		result.Err = ErrNotFTP
		return result
	}

	result.Open = true
	result.Server = DetectServer(banner)
	return result
}

// readGreeting reads a possibly multi-line FTP greeting ("220-" ... "220 ").
func readGreeting(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return strings.TrimSpace(line), err
	}

	var full strings.Builder
	full.WriteString(strings.TrimSpace(line))

	if len(line) < 4 || line[3] != '-' {
		return full.String(), nil
	}

	code := line[:3]
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			break
		}
		full.WriteString("\n")
		full.WriteString(strings.TrimSpace(line))
		if strings.HasPrefix(line, code+" ") {
			break
		}
	}

	return full.String(), nil
}

// DetectServer guesses the FTP server software from its greeting.
// It returns an empty string when nothing is recognised.
func DetectServer(banner string) string {
	lower := strings.ToLower(banner)

	switch {
	case strings.Contains(lower, "vsftpd"):
		return "vsFTPd"
	case strings.Contains(lower, "proftpd"):
		return "ProFTPD"
	case strings.Contains(lower, "pure-ftpd"):
		return "Pure-FTPd"
	case strings.Contains(lower, "filezilla"):
		return "FileZilla Server"
	case strings.Contains(lower, "microsoft ftp"):
		return "Microsoft IIS FTP"
	case strings.Contains(lower, "bftpd"):
		return "bftpd"
	}

	return ""
}
