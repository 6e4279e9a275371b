package report

import (
	"io"
	"path"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/ftpvista/internal/database"
	"github.com/nao1215/ftpvista/internal/model"
)

// HostDetail is everything stored about one host.
type HostDetail struct {
	Host    model.Host                    `json:"host"`
	Files   []model.FileRecord            `json:"files"`
	History []database.ScanReportMetadata `json:"history,omitempty"`
}

// Writer renders reports.
type Writer interface {
	// WriteHosts renders the list of known hosts.
	WriteHosts(hosts []model.Host) (int, error)

	// WriteHost renders one host with its files and scan history.
	WriteHost(detail *HostDetail) (int, error)

	// WriteScan renders the outcome of a single scan.
	WriteScan(report *model.ScanReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteHosts renders the host list with every writer.
// Stops on first error encountered.
func (m *MultiWriter) WriteHosts(hosts []model.Host) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHosts(hosts) })
}

// WriteHost renders one host with every writer.
func (m *MultiWriter) WriteHost(detail *HostDetail) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteHost(detail) })
}

// WriteScan renders a scan with every writer.
func (m *MultiWriter) WriteScan(report *model.ScanReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteScan(report) })
}

func (m *MultiWriter) each(fn func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := fn(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Bucket is a group of files sharing a directory or an extension.
type Bucket struct {
	Name  string
	Files int
	Size  int64
}

// ByTopDir groups files by their first path element. Files at the root
// are grouped under "/". Buckets are sorted by size, largest first.
func ByTopDir(files []model.FileRecord) []Bucket {
	return group(files, func(f model.FileRecord) string {
		rest := strings.TrimPrefix(f.Path, "/")
		top, _, found := strings.Cut(rest, "/")
		if !found {
			return "/"
		}
		return "/" + top
	})
}

// ByExtension groups files by lowercased extension; files without one
// are grouped under "(none)".
func ByExtension(files []model.FileRecord) []Bucket {
	return group(files, func(f model.FileRecord) string {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(f.Path), "."))
		if ext == "" {
			return "(none)"
		}
		return ext
	})
}

func group(files []model.FileRecord, key func(model.FileRecord) string) []Bucket {
	idx := make(map[string]int)
	var buckets []Bucket
	for _, f := range files {
		k := key(f)
		i, ok := idx[k]
		if !ok {
			i = len(buckets)
			idx[k] = i
			buckets = append(buckets, Bucket{Name: k})
		}
		buckets[i].Files++
		buckets[i].Size += f.Size
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Size != buckets[j].Size {
			return buckets[i].Size > buckets[j].Size
		}
		return buckets[i].Name < buckets[j].Name
	})
	return buckets
}

// formatSize renders a byte count for humans ("4.2 GB").
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// hostStatus summarises the last scan of h.
func hostStatus(h *model.Host) string {
	switch {
	case h.LastScanned.IsZero():
		return "never scanned"
	case h.LastError != "":
		return "failed: " + h.LastError
	default:
		return "ok"
	}
}

// scanStatus summarises a stored scan outcome.
func scanStatus(m *database.ScanReportMetadata) string {
	switch {
	case m.Error != "":
		return "failed: " + m.Error
	case m.Skipped:
		return "skipped"
	case m.Unchanged:
		return "unchanged"
	default:
		return "updated"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
