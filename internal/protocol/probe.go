package protocol

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// FTPPort is the control port probed by default.
const FTPPort = 21

// DefaultProbeTimeout bounds a single probe.
const DefaultProbeTimeout = 2 * time.Second

// Prober reports whether a host accepts FTP connections.
type Prober interface {
	// IsFTPOpen reports whether the FTP port of addr is open.
	IsFTPOpen(ctx context.Context, addr string) bool
}

// ProbeResult is the detailed outcome of a probe.
type ProbeResult struct {
	// Address is the probed host.
	Address string

	// Port is the probed port.
	Port int

	// Open is true when the port accepted a connection (and, if banner
	// checking is enabled, answered with an FTP greeting).
	Open bool

	// Banner is the greeting sent by the server, if it was read.
	Banner string

	// Server is the server software guessed from Banner.
	Server string

	// RTT is the time taken to establish the connection.
	RTT time.Duration

	// Err is the reason the port is considered closed, if any.
	Err error
}

// NewDialer returns proxy.Direct, or a SOCKS5 dialer when socksAddr is set.
// The same dialer is shared by the probe and the FTP client so both follow
// the same route.
func NewDialer(socksAddr string, timeout time.Duration) (proxy.Dialer, error) {
	forward := &net.Dialer{Timeout: timeout}
	if socksAddr == "" {
		return forward, nil
	}

	d, err := proxy.SOCKS5("tcp", socksAddr, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", socksAddr, err)
	}
	return d, nil
}

// DialContext dials through d, honouring ctx cancellation.
// Dialers implementing proxy.ContextDialer are used directly.
func DialContext(ctx context.Context, d proxy.Dialer, network, address string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}

	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := d.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.conn, result.err
	}
}
