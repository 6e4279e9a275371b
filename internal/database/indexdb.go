package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ftpvista/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "ftpvista.db"

// IndexDB is the SQLite store for hosts, file records and scan reports.
// It is safe for concurrent use; writes are serialized by the single
// connection.
type IndexDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures IndexDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*IndexDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create the file, mode=rwc allows it. The pragma
	// is applied to every new connection.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idb := &IndexDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return idb, nil
}

// Path returns the database file path.
func (idb *IndexDB) Path() string {
	return idb.dbPath
}

// Close closes the database connection.
func (idb *IndexDB) Close() error {
	return idb.db.Close()
}

func (idb *IndexDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		address TEXT PRIMARY KEY,
		server TEXT NOT NULL DEFAULT '',
		first_seen TEXT NOT NULL DEFAULT '',
		last_seen TEXT NOT NULL DEFAULT '',
		last_scanned TEXT NOT NULL DEFAULT '',
		file_count INTEGER NOT NULL DEFAULT 0,
		total_size INTEGER NOT NULL DEFAULT 0,
		digest TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL REFERENCES hosts(address) ON DELETE CASCADE,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		modified TEXT,
		UNIQUE(host, path)
	);

	CREATE INDEX IF NOT EXISTS idx_files_host ON files(host);

	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		started TEXT NOT NULL,
		finished TEXT NOT NULL,
		file_count INTEGER NOT NULL DEFAULT 0,
		total_size INTEGER NOT NULL DEFAULT 0,
		dirs_listed INTEGER NOT NULL DEFAULT 0,
		reconnects INTEGER NOT NULL DEFAULT 0,
		legacy_listings INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		unchanged INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_reports_host ON scan_reports(host);
	CREATE INDEX IF NOT EXISTS idx_reports_started ON scan_reports(started);
	`

	_, err := idb.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertHost inserts h or replaces every column of the existing row.
func (idb *IndexDB) UpsertHost(ctx context.Context, h *model.Host) error {
	query := `
	INSERT INTO hosts (address, server, first_seen, last_seen, last_scanned, file_count, total_size, digest, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		server = excluded.server,
		first_seen = excluded.first_seen,
		last_seen = excluded.last_seen,
		last_scanned = excluded.last_scanned,
		file_count = excluded.file_count,
		total_size = excluded.total_size,
		digest = excluded.digest,
		last_error = excluded.last_error
	`

	_, err := idb.db.ExecContext(ctx, query,
		h.Address,
		h.Server,
		formatTimestamp(h.FirstSeen),
		formatTimestamp(h.LastSeen),
		formatTimestamp(h.LastScanned),
		h.FileCount,
		h.TotalSize,
		h.Digest,
		h.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert host %s: %w", h.Address, err)
	}
	return nil
}

// MarkSeen records that discovery accepted addr at when. The host is
// created if unknown.
func (idb *IndexDB) MarkSeen(ctx context.Context, addr string, when time.Time) error {
	query := `
	INSERT INTO hosts (address, first_seen, last_seen)
	VALUES (?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		last_seen = excluded.last_seen,
		first_seen = CASE WHEN hosts.first_seen = '' THEN excluded.first_seen ELSE hosts.first_seen END
	`

	ts := formatTimestamp(when)
	if _, err := idb.db.ExecContext(ctx, query, addr, ts, ts); err != nil {
		return fmt.Errorf("failed to mark %s as seen: %w", addr, err)
	}
	return nil
}

const hostColumns = `address, server, first_seen, last_seen, last_scanned, file_count, total_size, digest, last_error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHost(row rowScanner) (*model.Host, error) {
	var h model.Host
	var firstSeen, lastSeen, lastScanned string
	err := row.Scan(
		&h.Address,
		&h.Server,
		&firstSeen,
		&lastSeen,
		&lastScanned,
		&h.FileCount,
		&h.TotalSize,
		&h.Digest,
		&h.LastError,
	)
	if err != nil {
		return nil, err
	}

	h.FirstSeen = parseTimestamp(firstSeen)
	h.LastSeen = parseTimestamp(lastSeen)
	h.LastScanned = parseTimestamp(lastScanned)
	return &h, nil
}

// GetHost returns the host with the given address, or nil if unknown.
func (idb *IndexDB) GetHost(ctx context.Context, addr string) (*model.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE address = ?`

	h, err := scanHost(idb.db.QueryRowContext(ctx, query, addr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host %s: %w", addr, err)
	}
	return h, nil
}

// ListHosts returns every known host ordered by address.
func (idb *IndexDB) ListHosts(ctx context.Context) ([]model.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts ORDER BY address`

	rows, err := idb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, *h)
	}

	return hosts, rows.Err()
}

// ReplaceFiles swaps the stored file set of addr for files in a single
// transaction. The host row must exist.
func (idb *IndexDB) ReplaceFiles(ctx context.Context, addr string, files []model.FileRecord) (err error) {
	tx, err := idb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM files WHERE host = ?`, addr); err != nil {
		return fmt.Errorf("failed to delete files of %s: %w", addr, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO files (host, path, size, modified) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		var modified sql.NullString
		if f.Modified != nil {
			modified = sql.NullString{String: formatTimestamp(*f.Modified), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, addr, f.Path, f.Size, modified); err != nil {
			return fmt.Errorf("failed to insert %s: %w", f.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit files of %s: %w", addr, err)
	}
	return nil
}

// ListFiles returns the stored files of addr ordered by path.
func (idb *IndexDB) ListFiles(ctx context.Context, addr string) ([]model.FileRecord, error) {
	query := `SELECT path, size, modified FROM files WHERE host = ? ORDER BY path`

	rows, err := idb.db.QueryContext(ctx, query, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", addr, err)
	}
	defer rows.Close()

	files := make([]model.FileRecord, 0)
	for rows.Next() {
		var (
			f        model.FileRecord
			modified sql.NullString
		)
		if err := rows.Scan(&f.Path, &f.Size, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if modified.Valid {
			if t := parseTimestamp(modified.String); !t.IsZero() {
				f.Modified = &t
			}
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// SaveScanReport records the outcome of a scan. File lists are not
// stored here; see ReplaceFiles.
func (idb *IndexDB) SaveScanReport(ctx context.Context, r *model.ScanReport) error {
	query := `
	INSERT INTO scan_reports (host, started, finished, file_count, total_size, dirs_listed,
		reconnects, legacy_listings, skipped, unchanged, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := idb.db.ExecContext(ctx, query,
		r.Host,
		formatTimestamp(r.Started),
		formatTimestamp(r.Finished),
		len(r.Files),
		r.TotalSize(),
		r.DirsListed,
		r.Reconnects,
		r.LegacyListings,
		r.Skipped,
		r.Unchanged,
		r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}
	return nil
}

// ScanReportMetadata summarizes one stored scan.
type ScanReportMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64 `json:"id"`

	Host      string    `json:"host"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	FileCount int       `json:"file_count"`
	TotalSize int64     `json:"total_size"`
	Unchanged bool      `json:"unchanged,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`

	// Error is the fatal error message, empty on success.
	Error string `json:"error,omitempty"`
}

// ScanHistory returns the stored scans of addr, newest first. limit <= 0
// returns all of them.
func (idb *IndexDB) ScanHistory(ctx context.Context, addr string, limit int) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, host, started, finished, file_count, total_size, unchanged, skipped, error
	FROM scan_reports
	WHERE host = ?
	ORDER BY started DESC, id DESC
	`
	args := []any{addr}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var (
			meta              ScanReportMetadata
			started, finished string
		)
		err := rows.Scan(&meta.ID, &meta.Host, &started, &finished,
			&meta.FileCount, &meta.TotalSize, &meta.Unchanged, &meta.Skipped, &meta.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Started = parseTimestamp(started)
		meta.Finished = parseTimestamp(finished)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// Truncate deletes every stored row.
func (idb *IndexDB) Truncate(ctx context.Context) error {
	for _, table := range []string{"files", "scan_reports", "hosts"} {
		if _, err := idb.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// formatTimestamp stores t as RFC 3339 in UTC. The zero time is stored as
// the empty string.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp parses s with the accepted formats, returning the zero
// time when none matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
