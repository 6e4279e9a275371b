package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/ftpvista/internal/model"
)

// timeLayout is used for absolute timestamps in text and markdown reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// maxFiles caps the file listing of WriteHost; 0 lists every file.
	maxFiles int

	// verbose adds the scan counters to WriteScan.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithMaxFiles limits how many files WriteHost lists.
func WithMaxFiles(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n >= 0 {
			w.maxFiles = n
		}
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteHosts outputs the host list as an aligned table.
func (w *SimpleWriter) WriteHosts(hosts []model.Host) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "FTPVISTA HOSTS")

	if len(hosts) == 0 {
		sb.WriteString("No hosts recorded yet.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-15s  %-16s  %8s  %10s  %-14s  %s\n",
		"ADDRESS", "SERVER", "FILES", "SIZE", "LAST SCANNED", "STATUS")

	var files int
	var size int64
	for i := range hosts {
		h := &hosts[i]
		files += h.FileCount
		size += h.TotalSize

		server := h.Server
		if server == "" {
			server = "-"
		}
		fmt.Fprintf(&sb, "%-15s  %-16s  %8d  %10s  %-14s  %s\n",
			h.Address,
			truncateString(server, 16),
			h.FileCount,
			formatSize(h.TotalSize),
			relative(h.LastScanned),
			truncateString(hostStatus(h), 40),
		)
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%d host(s), %d file(s), %s\n", len(hosts), files, formatSize(size))

	return w.output.Write([]byte(sb.String()))
}

// WriteHost outputs one host: metadata, size per top-level directory,
// the file list and the scan history.
func (w *SimpleWriter) WriteHost(detail *HostDetail) (int, error) {
	var sb strings.Builder
	h := &detail.Host

	writeBanner(&sb, "FTPVISTA HOST REPORT")

	fmt.Fprintf(&sb, "Address:       %s\n", h.Address)
	if h.Server != "" {
		fmt.Fprintf(&sb, "Server:        %s\n", h.Server)
	}
	fmt.Fprintf(&sb, "First seen:    %s\n", absolute(h.FirstSeen))
	fmt.Fprintf(&sb, "Last seen:     %s\n", absolute(h.LastSeen))
	fmt.Fprintf(&sb, "Last scanned:  %s\n", absolute(h.LastScanned))
	fmt.Fprintf(&sb, "Files:         %d (%s)\n", h.FileCount, formatSize(h.TotalSize))
	fmt.Fprintf(&sb, "Status:        %s\n\n", hostStatus(h))

	if dirs := ByTopDir(detail.Files); len(dirs) > 0 {
		writeSection(&sb, "DIRECTORIES")
		for _, b := range dirs {
			fmt.Fprintf(&sb, "  %-40s  %8d  %10s\n", truncateString(b.Name, 40), b.Files, formatSize(b.Size))
		}
		sb.WriteString("\n")
	}

	writeSection(&sb, "FILES")
	if len(detail.Files) == 0 {
		sb.WriteString("  No files recorded\n")
	}
	for i, f := range detail.Files {
		if w.maxFiles > 0 && i == w.maxFiles {
			fmt.Fprintf(&sb, "  ... %d more\n", len(detail.Files)-w.maxFiles)
			break
		}
		fmt.Fprintf(&sb, "  %10s  %-16s  %s\n", formatSize(f.Size), modified(f), f.Path)
	}
	sb.WriteString("\n")

	if len(detail.History) > 0 {
		writeSection(&sb, "SCAN HISTORY")
		for i := range detail.History {
			m := &detail.History[i]
			fmt.Fprintf(&sb, "  %s  %8s  %8d files  %s\n",
				absolute(m.Started),
				m.Finished.Sub(m.Started).Round(time.Millisecond),
				m.FileCount,
				scanStatus(m),
			)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteScan outputs the result of a scan: a summary line and the files.
func (w *SimpleWriter) WriteScan(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "FTPVISTA SCAN")

	fmt.Fprintf(&sb, "Host:      %s\n", report.Host)
	fmt.Fprintf(&sb, "Started:   %s\n", absolute(report.Started))
	fmt.Fprintf(&sb, "Duration:  %s\n", report.Duration().Round(time.Millisecond))

	switch {
	case report.ErrorMessage != "":
		fmt.Fprintf(&sb, "Status:    ERROR - %s\n", report.ErrorMessage)
	case report.Skipped:
		sb.WriteString("Status:    skipped (scanned recently)\n")
	case report.Unchanged:
		sb.WriteString("Status:    unchanged\n")
	default:
		sb.WriteString("Status:    complete\n")
	}
	fmt.Fprintf(&sb, "Files:     %d (%s)\n", len(report.Files), formatSize(report.TotalSize()))

	if w.verbose {
		fmt.Fprintf(&sb, "Listed:    %d directories (%d with LIST)\n", report.DirsListed, report.LegacyListings)
		fmt.Fprintf(&sb, "Reconnect: %d\n", report.Reconnects)
	}
	sb.WriteString("\n")

	for i, f := range report.Files {
		if w.maxFiles > 0 && i == w.maxFiles {
			fmt.Fprintf(&sb, "  ... %d more\n", len(report.Files)-w.maxFiles)
			break
		}
		fmt.Fprintf(&sb, "  %10s  %-16s  %s\n", formatSize(f.Size), modified(f), f.Path)
	}

	return w.output.Write([]byte(sb.String()))
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
}

// modified renders a file's modification time, "-" when unknown.
func modified(f model.FileRecord) string {
	if f.Modified == nil {
		return "-"
	}
	return f.Modified.Format("2006-01-02 15:04")
}

func absolute(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(timeLayout)
}

// relative renders t as "3 hours ago".
func relative(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
