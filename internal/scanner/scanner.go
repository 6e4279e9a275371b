package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/ftpvista/internal/ftp"
	"github.com/nao1215/ftpvista/internal/model"
)

// DefaultMaxDepth is the deepest directory level expanded by default.
const DefaultMaxDepth = 50

// DefaultConnectAttempts is how many times a lost session is redialed
// before the scan gives up.
const DefaultConnectAttempts = 3

// Anonymous credentials used when none are configured.
const (
	AnonymousUser     = "anonymous"
	AnonymousPassword = "anonymous@"
)

// Conn is the part of an FTP session the scanner needs.
// *ftp.Client implements it.
type Conn interface {
	Login(user, password string) error
	EnablePassive() error
	EnableUTF8() error
	ChangeDir(path string) error
	MLSD(path string) ([]ftp.Entry, error)
	List(path string) ([]string, error)
	Quit() error
	Close() error
}

// DialFunc opens a control connection to addr.
type DialFunc func(ctx context.Context, addr string) (Conn, error)

// Stats describes the work done by one scan.
type Stats struct {
	// DirsListed counts successful directory listings.
	DirsListed int

	// Reconnects counts re-established sessions.
	Reconnects int

	// LegacyListings counts directories listed through LIST.
	LegacyListings int

	// Skipped counts directories left out: ignored, unreadable, or
	// without list permission.
	Skipped int

	// Loops counts directories reached twice.
	Loops int
}

// Scanner walks one FTP server.
type Scanner struct {
	host     string
	dial     DialFunc
	logger   *slog.Logger
	maxDepth int
	ignores  map[string]struct{}
	user     string
	password string
	now      func() time.Time

	// reconnectLimit caps reconnects per scan; 0 means unlimited.
	reconnectLimit int

	// reconnectInterval is the minimum spacing between reconnects.
	reconnectInterval time.Duration

	connectAttempts int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithDialer replaces the connection factory.
func WithDialer(dial DialFunc) Option {
	return func(s *Scanner) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// WithLogger sets the logger. The host is added to every record.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxDepth sets the maximum depth. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(s *Scanner) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithIgnores sets directory paths that are never listed.
func WithIgnores(paths ...string) Option {
	return func(s *Scanner) {
		for _, p := range paths {
			if p = strings.TrimSpace(p); p != "" {
				s.ignores[path.Clean(p)] = struct{}{}
			}
		}
	}
}

// WithCredentials sets the login. An empty user keeps anonymous.
func WithCredentials(user, password string) Option {
	return func(s *Scanner) {
		if user != "" {
			s.user = user
			s.password = password
		}
	}
}

// WithClock sets the time source used to correct future dates and to fill
// in missing years in legacy listings.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReconnectPolicy bounds reconnects: at most limit per scan (0 means
// unlimited) and at least interval apart (0 means immediately).
func WithReconnectPolicy(limit int, interval time.Duration) Option {
	return func(s *Scanner) {
		if limit >= 0 {
			s.reconnectLimit = limit
		}
		if interval >= 0 {
			s.reconnectInterval = interval
		}
	}
}

// WithConnectAttempts sets how many dials a reconnect may use.
func WithConnectAttempts(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.connectAttempts = n
		}
	}
}

// New creates a Scanner for host. Without WithDialer, connections use
// ftp.Dial with default settings.
func New(host string, opts ...Option) (*Scanner, error) {
	if host == "" {
		return nil, ErrNoHost
	}

	s := &Scanner{
		host:            host,
		logger:          slog.Default(),
		maxDepth:        DefaultMaxDepth,
		ignores:         make(map[string]struct{}),
		user:            AnonymousUser,
		password:        AnonymousPassword,
		now:             time.Now,
		connectAttempts: DefaultConnectAttempts,
	}
	s.dial = DialFTP()

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("host", host)

	return s, nil
}

// DialFTP returns a DialFunc backed by ftp.Dial.
func DialFTP(opts ...ftp.Option) DialFunc {
	return func(ctx context.Context, addr string) (Conn, error) {
		c, err := ftp.Dial(ctx, addr, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Host returns the scanned host.
func (s *Scanner) Host() string {
	return s.host
}

// Scan walks the server and returns every readable file.
func (s *Scanner) Scan(ctx context.Context) ([]model.FileRecord, error) {
	files, _, err := s.ScanWithStats(ctx)
	return files, err
}

// frontierEntry is a directory waiting to be listed.
type frontierEntry struct {
	path  string
	depth int
}

// session is the mutable state of one scan.
type session struct {
	*Scanner

	conn     Conn
	frontier []frontierEntry
	visited  map[string]struct{}
	retried  map[string]struct{}
	files    []model.FileRecord
	stats    Stats
	limiter  *rate.Limiter
}

// ScanWithStats is Scan plus counters describing the walk.
func (s *Scanner) ScanWithStats(ctx context.Context) ([]model.FileRecord, Stats, error) {
	s.logger.Info("starting FTP scan")

	sess := &session{
		Scanner:  s,
		frontier: []frontierEntry{{path: "/", depth: 0}},
		visited:  make(map[string]struct{}),
		retried:  make(map[string]struct{}),
		limiter:  newLimiter(s.reconnectInterval),
	}

	files, err := sess.run(ctx)
	if err != nil {
		s.logger.Error("scan terminated", "error", err)
		return nil, sess.stats, err
	}

	s.logger.Info("scan complete",
		"files", len(files),
		"dirs", sess.stats.DirsListed,
		"reconnects", sess.stats.Reconnects)
	return files, sess.stats, nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (s *session) run(ctx context.Context) ([]model.FileRecord, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	defer func() {
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}()

	for len(s.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := s.frontier[len(s.frontier)-1]
		s.frontier = s.frontier[:len(s.frontier)-1]

		if err := s.step(entry); err != nil {
			var tooDeep *TooDeepError
			if errors.As(err, &tooDeep) {
				return nil, err
			}

			s.logger.Warn("lost session, reconnecting", "path", entry.path, "error", err)
			s.requeue(entry)
			if err := s.reconnect(ctx); err != nil {
				return nil, err
			}
		}
	}

	if err := s.conn.Quit(); err != nil {
		s.logger.Debug("QUIT failed", "error", err)
	}
	s.conn = nil

	return s.files, nil
}

// requeue puts a directory whose listing was interrupted back on the
// frontier, once.
func (s *session) requeue(entry frontierEntry) {
	if _, ok := s.retried[entry.path]; ok {
		s.logger.Warn("giving up on directory", "path", entry.path)
		return
	}
	s.retried[entry.path] = struct{}{}
	s.frontier = append(s.frontier, entry)
}

// step lists one directory. A returned error other than *TooDeepError
// means the session must be re-established.
func (s *session) step(entry frontierEntry) error {
	log := s.logger.With("path", entry.path)

	if _, ok := s.ignores[entry.path]; ok {
		log.Info("skipping ignored directory")
		s.stats.Skipped++
		return nil
	}

	if _, ok := s.visited[entry.path]; ok {
		log.Warn("loop detected, directory already visited")
		s.stats.Loops++
		return nil
	}

	entries, err := s.list(entry.path)
	if err != nil {
		if ftp.IsPermanent(err) {
			log.Warn("directory not readable", "error", err)
			s.stats.Skipped++
			s.visited[entry.path] = struct{}{}
			return nil
		}
		return err
	}
	s.stats.DirsListed++

	files, dirs := s.classify(entry.path, entries)

	if len(dirs) > 0 {
		if entry.depth >= s.maxDepth {
			log.Error("path is too deep, probably an ill-configured server", "depth", entry.depth)
			return &TooDeepError{Depth: entry.depth, Path: entry.path}
		}
		for _, d := range dirs {
			s.frontier = append(s.frontier, frontierEntry{path: d, depth: entry.depth + 1})
		}
	}

	s.files = append(s.files, files...)
	s.visited[entry.path] = struct{}{}

	log.Debug("directory listed", "files", len(files), "pending", len(s.frontier))
	return nil
}

// list returns the entries of dir, through MLSD or, when the server does
// not implement it, LIST.
func (s *session) list(dir string) ([]ftp.Entry, error) {
	if err := s.conn.ChangeDir(dir); err != nil {
		return nil, err
	}

	entries, err := s.conn.MLSD(dir)
	if err == nil {
		return entries, nil
	}
	if !ftp.IsNotImplemented(err) {
		return nil, err
	}

	s.logger.Debug("MLSD not implemented, using LIST", "path", dir, "error", err)
	lines, err := s.conn.List(dir)
	if err != nil {
		return nil, err
	}
	s.stats.LegacyListings++

	return ftp.ParseLegacyListing(lines, s.now()), nil
}

// classify splits entries into readable files and listable directories.
func (s *session) classify(dir string, entries []ftp.Entry) ([]model.FileRecord, []string) {
	var (
		files []model.FileRecord
		dirs  []string
		now   = s.now()
	)

	for _, e := range entries {
		full := path.Join(dir, e.Name)

		switch e.Facts.Type() {
		case ftp.TypeCDir, ftp.TypePDir:
			continue
		case ftp.TypeDir:
			if !e.Facts.HasPerm("el") {
				s.stats.Skipped++
				continue
			}
			dirs = append(dirs, full)
			continue
		}

		size, err := e.Facts.Size()
		if err != nil {
			continue
		}
		modified, err := parseModify(e.Facts.Modify(), now)
		if err != nil {
			continue
		}
		files = append(files, model.NewFileRecord(full, size, modified))
	}

	return files, dirs
}

// parseModify parses a modify fact as UTC, ignoring fractional seconds.
// Dates after now are moved back one year.
func parseModify(fact string, now time.Time) (time.Time, error) {
	fact, _, _ = strings.Cut(fact, ".")

	t, err := time.ParseInLocation(ftp.ModifyLayout, fact, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		t = t.AddDate(-1, 0, 0)
	}
	return t, nil
}

// connect dials and prepares a session.
func (s *session) connect(ctx context.Context) (Conn, error) {
	conn, err := s.dial(ctx, s.host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.host, err)
	}

	if err := conn.Login(s.user, s.password); err != nil {
		_ = conn.Close()
		if ftp.IsPermanent(err) {
			return nil, fmt.Errorf("%w: %w", ErrLogin, err)
		}
		return nil, fmt.Errorf("failed to log in to %s: %w", s.host, err)
	}

	if err := conn.EnablePassive(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enter passive mode: %w", err)
	}

	if err := conn.EnableUTF8(); err != nil {
		s.logger.Warn("server refused UTF-8, listings may use another charset", "error", err)
	}

	return conn, nil
}

// reconnect replaces the current session after a transient failure.
func (s *session) reconnect(ctx context.Context) error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	if s.reconnectLimit > 0 && s.stats.Reconnects >= s.reconnectLimit {
		return fmt.Errorf("%w (%d)", ErrReconnectLimit, s.reconnectLimit)
	}

	var lastErr error
	for attempt := 1; attempt <= s.connectAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		conn, err := s.connect(ctx)
		if err == nil {
			s.conn = conn
			s.stats.Reconnects++
			return nil
		}
		if errors.Is(err, ErrLogin) {
			return err
		}

		lastErr = err
		s.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrReconnect, s.connectAttempts, lastErr)
}
