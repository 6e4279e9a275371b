package ftp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/ftpvista/internal/protocol"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding/charmap"
)

// DefaultTimeout bounds every control exchange and every idle period on a
// data connection.
const DefaultTimeout = 30 * time.Second

// mlstFacts are the facts requested from MLSD.
const mlstFacts = "type;size;modify;perm;"

// Client is a single FTP control connection.
// A Client is not safe for concurrent use.
type Client struct {
	conn net.Conn
	text *textproto.Conn

	// host is the control connection host; data connections always go
	// there, whatever address a PASV reply advertises.
	host string

	dialer  proxy.Dialer
	timeout time.Duration
	logger  *slog.Logger

	passive   bool
	utf8      bool
	noEPSV    bool
	factsSent bool
	greeting  string
}

// Option configures a Client.
type Option func(*Client)

// WithDialer sets the dialer used for control and data connections.
func WithDialer(d proxy.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Dial connects to addr ("host" or "host:port") and reads the greeting.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: c.timeout}
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, strconv.Itoa(protocol.FTPPort)
	}
	c.host = host

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := protocol.DialContext(dialCtx, c.dialer, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.conn = conn
	c.text = textproto.NewConn(conn)

	c.touch()
	_, msg, err := c.text.ReadResponse(220)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to read greeting from %s: %w", addr, err)
	}
	c.greeting = msg

	return c, nil
}

// Greeting returns the text of the server's 220 greeting.
func (c *Client) Greeting() string {
	return c.greeting
}

// UTF8 reports whether the server accepted OPTS UTF8 ON.
func (c *Client) UTF8() bool {
	return c.utf8
}

// touch extends the connection deadline by one timeout.
func (c *Client) touch() {
	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
}

// cmd sends a command and reads its reply, which must match expect (see
// textproto.Reader.ReadResponse for the meaning of expect).
func (c *Client) cmd(expect int, format string, args ...any) (int, string, error) {
	c.touch()
	if _, err := c.text.Cmd(format, args...); err != nil {
		return 0, "", err
	}
	return c.text.ReadResponse(expect)
}

// Login authenticates with USER and, if asked for, PASS.
func (c *Client) Login(user, password string) error {
	code, msg, err := c.cmd(0, "USER %s", user)
	if err != nil {
		return fmt.Errorf("USER: %w", err)
	}

	switch code {
	case 230:
		return nil
	case 331:
	default:
		return fmt.Errorf("USER: %w", &textproto.Error{Code: code, Msg: msg})
	}

	if _, _, err := c.cmd(2, "PASS %s", password); err != nil {
		return fmt.Errorf("PASS: %w", err)
	}
	return nil
}

// EnablePassive switches data transfers to passive mode. It is the only
// mode supported; listing commands fail with ErrActiveMode until it is
// called.
func (c *Client) EnablePassive() error {
	c.passive = true
	return nil
}

// EnableUTF8 asks the server to use UTF-8 for path names.
func (c *Client) EnableUTF8() error {
	if _, _, err := c.cmd(2, "OPTS UTF8 ON"); err != nil {
		return fmt.Errorf("OPTS UTF8: %w", err)
	}
	c.utf8 = true
	return nil
}

// ChangeDir changes the working directory.
func (c *Client) ChangeDir(path string) error {
	if _, _, err := c.cmd(250, "CWD %s", path); err != nil {
		return fmt.Errorf("CWD %s: %w", path, err)
	}
	return nil
}

// MLSD returns the machine-readable listing of path.
func (c *Client) MLSD(path string) ([]Entry, error) {
	if !c.factsSent {
		if _, _, err := c.cmd(2, "OPTS MLST %s", mlstFacts); err != nil {
			// The server's default fact set usually covers what we need.
			c.logger.Debug("OPTS MLST rejected", "error", err)
		}
		c.factsSent = true
	}

	lines, err := c.dataCmd("MLSD %s", path)
	if err != nil {
		return nil, fmt.Errorf("MLSD %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		e, ok := ParseMLSDLine(line)
		if !ok {
			c.logger.Debug("dropping malformed MLSD line", "line", line)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// List returns the raw LIST output lines for path.
func (c *Client) List(path string) ([]string, error) {
	lines, err := c.dataCmd("LIST %s", path)
	if err != nil {
		return nil, fmt.Errorf("LIST %s: %w", path, err)
	}
	return lines, nil
}

// Quit sends QUIT and closes the connection.
func (c *Client) Quit() error {
	_, _, err := c.cmd(221, "QUIT")
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close closes the control connection without QUIT.
func (c *Client) Close() error {
	return c.text.Close()
}

// dataCmd runs a command whose output arrives on a data connection and
// returns it line by line.
func (c *Client) dataCmd(format string, args ...any) ([]string, error) {
	if !c.passive {
		return nil, ErrActiveMode
	}

	dc, err := c.openDataConn()
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	if _, _, err := c.cmd(1, format, args...); err != nil {
		return nil, err
	}

	lines, readErr := readLines(&idleConn{Conn: dc, timeout: c.timeout})
	_ = dc.Close()

	c.touch()
	if _, _, err := c.text.ReadResponse(2); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}
	return lines, nil
}

// openDataConn negotiates a passive port (EPSV, then PASV) and dials it.
func (c *Client) openDataConn() (net.Conn, error) {
	port, err := c.passivePort()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	conn, err := protocol.DialContext(ctx, c.dialer, "tcp", net.JoinHostPort(c.host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to open data connection: %w", err)
	}
	return conn, nil
}

func (c *Client) passivePort() (int, error) {
	if !c.noEPSV {
		_, msg, err := c.cmd(229, "EPSV")
		if err == nil {
			return parseEPSV(msg)
		}
		if !IsNotImplemented(err) {
			return 0, fmt.Errorf("EPSV: %w", err)
		}
		c.noEPSV = true
	}

	_, msg, err := c.cmd(227, "PASV")
	if err != nil {
		return 0, fmt.Errorf("PASV: %w", err)
	}
	return parsePASV(msg)
}

// parseEPSV parses "Entering Extended Passive Mode (|||6446|)".
func parseEPSV(msg string) (int, error) {
	start := strings.IndexByte(msg, '(')
	end := strings.LastIndexByte(msg, ')')
	if start < 0 || end < start+5 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}

	inner := msg[start+1 : end]
	delim := inner[:1]
	parts := strings.Split(inner, delim)
	if len(parts) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}

	port, err := strconv.Atoi(parts[3])
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}
	return port, nil
}

// parsePASV parses "Entering Passive Mode (h1,h2,h3,h4,p1,p2)". The
// advertised host is ignored.
func parsePASV(msg string) (int, error) {
	start := strings.IndexByte(msg, '(')
	end := strings.LastIndexByte(msg, ')')
	if start < 0 || end < start {
		// Some servers omit the parentheses.
		start = strings.IndexFunc(msg, func(r rune) bool { return r >= '0' && r <= '9' }) - 1
		end = len(msg)
		if start < -1 {
			return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
		}
	}

	parts := strings.Split(strings.TrimSpace(msg[start+1:end]), ",")
	if len(parts) != 6 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}

	hi, err1 := strconv.Atoi(strings.TrimSpace(parts[4]))
	lo, err2 := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err1 != nil || err2 != nil || hi < 0 || hi > 255 || lo < 0 || lo > 255 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}

	port := hi<<8 | lo
	if port == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPassiveReply, msg)
	}
	return port, nil
}

// idleConn pushes the read deadline forward before every Read, so a
// transfer only fails once the peer stays silent for timeout.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

// readLines reads CRLF or LF terminated lines until EOF.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadBytes('\n')
		if len(raw) > 0 {
			raw = bytes.TrimRight(raw, "\r\n")
			if len(raw) > 0 {
				lines = append(lines, decodeLine(raw))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
	}
}

// decodeLine returns raw as a string, reading it as ISO-8859-1 when it is
// not valid UTF-8.
func decodeLine(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(decoded)
}
