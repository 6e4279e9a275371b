// Package ftptest provides an in-process FTP server for tests.
//
// The server serves a fixed, read-only directory tree over the subset of
// the protocol the ftp client speaks. Behaviours of real-world servers
// (no MLSD, rejected logins, dropped connections) are switched on with
// options.
package ftptest

import (
	"bufio"
	"fmt"
	"net"
	"net/textproto"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Node is a file or directory in the served tree.
type Node struct {
	Name     string
	Dir      bool
	Size     int64
	Modified time.Time

	// Perm overrides the MLSD perm fact. Empty means "el" for
	// directories and "r" for files.
	Perm string
}

// File returns a file node.
func File(name string, size int64, modified time.Time) Node {
	return Node{Name: name, Size: size, Modified: modified}
}

// Dir returns a directory node.
func Dir(name string) Node {
	return Node{Name: name, Dir: true, Modified: time.Date(2015, time.September, 20, 0, 0, 0, 0, time.UTC)}
}

// Tree maps absolute directory paths to their children.
type Tree map[string][]Node

// Server is a running fake FTP server.
type Server struct {
	ln   net.Listener
	tree Tree

	disableMLSD bool
	disableEPSV bool
	rejectLogin bool
	rejectUTF8  bool
	latin1      bool
	lineDelay   time.Duration

	mu          sync.Mutex
	dropOnce    map[string]bool
	forbidden   map[string]bool
	connections int
	commands    []string

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithoutMLSD makes MLSD answer 500, as servers that predate RFC 3659 do.
func WithoutMLSD() Option {
	return func(s *Server) { s.disableMLSD = true }
}

// WithoutEPSV makes EPSV answer 502 so clients fall back to PASV.
func WithoutEPSV() Option {
	return func(s *Server) { s.disableEPSV = true }
}

// WithRejectedLogin makes every login fail with 530.
func WithRejectedLogin() Option {
	return func(s *Server) { s.rejectLogin = true }
}

// WithRejectedUTF8 makes OPTS UTF8 ON fail with 501.
func WithRejectedUTF8() Option {
	return func(s *Server) { s.rejectUTF8 = true }
}

// WithLatin1Listing encodes LIST output as ISO-8859-1.
func WithLatin1Listing() Option {
	return func(s *Server) { s.latin1 = true }
}

// WithListingDelay makes the server pause for d before sending each
// listing line.
func WithListingDelay(d time.Duration) Option {
	return func(s *Server) { s.lineDelay = d }
}

// WithDroppedListing closes the control connection, without a reply, the
// first time dir is listed.
func WithDroppedListing(dir string) Option {
	return func(s *Server) { s.dropOnce[dir] = true }
}

// WithForbidden makes listings of dir fail with 550.
func WithForbidden(dir string) Option {
	return func(s *Server) { s.forbidden[dir] = true }
}

// NewServer starts a server on a loopback port.
func NewServer(tree Tree, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:        ln,
		tree:      tree,
		dropOnce:  make(map[string]bool),
		forbidden: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Connections returns how many control connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Commands returns every command verb received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Close stops the listener and waits for the accept loop.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.connections++
		s.mu.Unlock()

		go s.handle(conn)
	}
}

type session struct {
	srv  *Server
	conn net.Conn
	text *textproto.Conn
	cwd  string
	pasv net.Listener
}

func (s *Server) handle(conn net.Conn) {
	sess := &session{
		srv:  s,
		conn: conn,
		text: textproto.NewConn(conn),
		cwd:  "/",
	}
	defer sess.close()

	sess.reply(220, "ftptest ready")

	for {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
		line, err := sess.text.ReadLine()
		if err != nil {
			return
		}

		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		s.mu.Lock()
		s.commands = append(s.commands, verb)
		s.mu.Unlock()

		if !sess.dispatch(verb, arg) {
			return
		}
	}
}

func (sess *session) close() {
	if sess.pasv != nil {
		_ = sess.pasv.Close()
	}
	_ = sess.conn.Close()
}

func (sess *session) reply(code int, format string, args ...any) {
	_ = sess.text.PrintfLine("%d %s", code, fmt.Sprintf(format, args...))
}

// dispatch handles one command and reports whether the session continues.
func (sess *session) dispatch(verb, arg string) bool {
	s := sess.srv

	switch verb {
	case "USER":
		if s.rejectLogin {
			sess.reply(530, "Login incorrect.")
			return true
		}
		sess.reply(331, "Please specify the password.")
	case "PASS":
		sess.reply(230, "Login successful.")
	case "OPTS":
		if strings.EqualFold(arg, "UTF8 ON") && s.rejectUTF8 {
			sess.reply(501, "Option not understood.")
			return true
		}
		sess.reply(200, "OK")
	case "PWD":
		sess.reply(257, "%q is the current directory", sess.cwd)
	case "CWD":
		p := sess.resolve(arg)
		if _, ok := s.tree[p]; !ok {
			sess.reply(550, "Failed to change directory.")
			return true
		}
		sess.cwd = p
		sess.reply(250, "Directory successfully changed.")
	case "EPSV":
		if s.disableEPSV {
			sess.reply(502, "EPSV not implemented.")
			return true
		}
		port, err := sess.listenData()
		if err != nil {
			sess.reply(425, "Cannot open data connection.")
			return true
		}
		sess.reply(229, "Entering Extended Passive Mode (|||%d|)", port)
	case "PASV":
		port, err := sess.listenData()
		if err != nil {
			sess.reply(425, "Cannot open data connection.")
			return true
		}
		sess.reply(227, "Entering Passive Mode (127,0,0,1,%d,%d)", port>>8, port&0xff)
	case "MLSD":
		if s.disableMLSD {
			sess.reply(500, "Unknown command.")
			return true
		}
		return sess.listing(arg, mlsdLines)
	case "LIST":
		return sess.listing(arg, sess.listLines)
	case "QUIT":
		sess.reply(221, "Goodbye.")
		return false
	default:
		sess.reply(502, "Command not implemented.")
	}
	return true
}

func (sess *session) resolve(arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return sess.cwd
	}
	if !strings.HasPrefix(arg, "/") {
		arg = path.Join(sess.cwd, arg)
	}
	return path.Clean(arg)
}

func (sess *session) listenData() (int, error) {
	if sess.pasv != nil {
		_ = sess.pasv.Close()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	sess.pasv = ln
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func (sess *session) listing(arg string, render func(string, []Node) [][]byte) bool {
	s := sess.srv
	dir := sess.resolve(arg)

	s.mu.Lock()
	drop := s.dropOnce[dir]
	delete(s.dropOnce, dir)
	forbidden := s.forbidden[dir]
	s.mu.Unlock()

	if drop {
		return false
	}

	nodes, ok := s.tree[dir]
	if !ok || forbidden {
		sess.reply(550, "Permission denied.")
		return true
	}

	if sess.pasv == nil {
		sess.reply(425, "Use PASV or EPSV first.")
		return true
	}
	ln := sess.pasv
	sess.pasv = nil
	defer ln.Close()

	sess.reply(150, "Here comes the directory listing.")

	_ = ln.(*net.TCPListener).SetDeadline(time.Now().Add(5 * time.Second))
	dc, err := ln.Accept()
	if err != nil {
		sess.reply(425, "Data connection failed.")
		return true
	}

	w := bufio.NewWriter(dc)
	for _, line := range render(dir, nodes) {
		if s.lineDelay > 0 {
			time.Sleep(s.lineDelay)
		}
		_, _ = w.Write(line)
		_, _ = w.WriteString("\r\n")
		if s.lineDelay > 0 {
			_ = w.Flush()
		}
	}
	_ = w.Flush()
	_ = dc.Close()

	sess.reply(226, "Directory send OK.")
	return true
}

func sortedNodes(nodes []Node) []Node {
	out := append([]Node(nil), nodes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func mlsdLines(_ string, nodes []Node) [][]byte {
	lines := [][]byte{
		[]byte("type=cdir;perm=el;modify=20150920000000; ."),
		[]byte("type=pdir;perm=el;modify=20150920000000; .."),
	}
	for _, n := range sortedNodes(nodes) {
		typ, perm := "file", n.Perm
		if n.Dir {
			typ = "dir"
			if perm == "" {
				perm = "el"
			}
		} else if perm == "" {
			perm = "r"
		}
		lines = append(lines, fmt.Appendf(nil, "type=%s;size=%d;modify=%s;perm=%s; %s",
			typ, n.Size, n.Modified.UTC().Format("20060102150405"), perm, n.Name))
	}
	return lines
}

func (sess *session) listLines(_ string, nodes []Node) [][]byte {
	lines := [][]byte{
		[]byte("total 0"),
		[]byte("drwxr-xr-x   2 ftp      ftp          4096 Sep 20  2015 ."),
		[]byte("drwxr-xr-x   2 ftp      ftp          4096 Sep 20  2015 .."),
	}
	for _, n := range sortedNodes(nodes) {
		mode := "-rw-r--r--"
		if n.Dir {
			mode = "drwxr-xr-x"
		}
		m := n.Modified.UTC()
		line := fmt.Sprintf("%s   1 ftp      ftp      %8d %s %2d  %d %s",
			mode, n.Size, m.Format("Jan"), m.Day(), m.Year(), n.Name)
		lines = append(lines, sess.encode(line))
	}
	return lines
}

// encode renders line as ISO-8859-1 when the server is configured to.
func (sess *session) encode(line string) []byte {
	if !sess.srv.latin1 {
		return []byte(line)
	}
	out, err := charmap.ISO8859_1.NewEncoder().String(line)
	if err != nil {
		return []byte(line)
	}
	return []byte(out)
}
