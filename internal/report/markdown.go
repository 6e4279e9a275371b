package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ftpvista/internal/model"
)

// maxChartSlices bounds the pie chart; smaller buckets are merged.
const maxChartSlices = 8

// MarkdownWriter outputs reports in GitHub flavored markdown, for
// documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	// maxFiles caps file tables; 0 lists every file.
	maxFiles int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownMaxFiles limits how many files are listed per table.
func WithMarkdownMaxFiles(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		if n >= 0 {
			w.maxFiles = n
		}
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteHosts outputs the host list as a table.
func (w *MarkdownWriter) WriteHosts(hosts []model.Host) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("FTP Servers")
	md.PlainText("")

	if len(hosts) == 0 {
		md.Note("No hosts recorded yet. Run `ftpvista run` to start discovery.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	var files int
	var size int64
	var failed int
	rows := make([][]string, len(hosts))
	for i := range hosts {
		h := &hosts[i]
		files += h.FileCount
		size += h.TotalSize
		if h.LastError != "" {
			failed++
		}

		server := h.Server
		if server == "" {
			server = "-"
		}
		rows[i] = []string{
			"`" + h.Address + "`",
			server,
			strconv.Itoa(h.FileCount),
			formatSize(h.TotalSize),
			relative(h.LastScanned),
			statusIcon(h) + " " + truncateString(hostStatus(h), 50),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Address", "Server", "Files", "Size", "Last Scanned", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainTextf("**%d** host(s), **%d** file(s), **%s** in total.", len(hosts), files, formatSize(size))
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d host(s) failed their last scan.", failed)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteHost outputs one host with a file-type chart, directory sizes,
// files and scan history.
func (w *MarkdownWriter) WriteHost(detail *HostDetail) (int, error) {
	md := markdown.NewMarkdown(w.output)
	h := &detail.Host

	md.H1("FTP Server " + h.Address)
	md.PlainText("")

	server := h.Server
	if server == "" {
		server = "unknown"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Address", "`" + h.Address + "`"},
			{"Server", server},
			{"First Seen", absolute(h.FirstSeen)},
			{"Last Seen", absolute(h.LastSeen)},
			{"Last Scanned", absolute(h.LastScanned)},
			{"Files", strconv.Itoa(h.FileCount)},
			{"Total Size", formatSize(h.TotalSize)},
			{"Status", statusIcon(h) + " " + hostStatus(h)},
		},
	})
	md.PlainText("")

	if h.LastError != "" {
		md.Cautionf("The last scan failed: %s. The files below come from the last successful scan.", h.LastError)
		md.PlainText("")
	}

	if len(detail.Files) > 0 {
		w.writeFileMix(md, detail.Files)

		md.H2("Directories")
		md.PlainText("")
		dirs := ByTopDir(detail.Files)
		rows := make([][]string, len(dirs))
		for i, b := range dirs {
			rows[i] = []string{"`" + b.Name + "`", strconv.Itoa(b.Files), formatSize(b.Size)}
		}
		md.Table(markdown.TableSet{Header: []string{"Directory", "Files", "Size"}, Rows: rows})
		md.PlainText("")
	}

	md.H2("Files")
	md.PlainText("")
	w.writeFiles(md, detail.Files)

	if len(detail.History) > 0 {
		md.H2("Scan History")
		md.PlainText("")
		rows := make([][]string, len(detail.History))
		for i := range detail.History {
			m := &detail.History[i]
			rows[i] = []string{
				absolute(m.Started),
				m.Finished.Sub(m.Started).Round(time.Millisecond).String(),
				strconv.Itoa(m.FileCount),
				formatSize(m.TotalSize),
				truncateString(scanStatus(m), 60),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Started", "Duration", "Files", "Size", "Outcome"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteScan outputs the result of a single scan.
func (w *MarkdownWriter) WriteScan(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Scan of " + report.Host)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Host", "`" + report.Host + "`"},
			{"Started", absolute(report.Started)},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Files", strconv.Itoa(len(report.Files))},
			{"Total Size", formatSize(report.TotalSize())},
			{"Directories Listed", strconv.Itoa(report.DirsListed)},
			{"LIST Fallbacks", strconv.Itoa(report.LegacyListings)},
			{"Reconnects", strconv.Itoa(report.Reconnects)},
		},
	})
	md.PlainText("")

	switch {
	case report.ErrorMessage != "":
		md.Cautionf("Scan failed: %s", report.ErrorMessage)
	case report.Skipped:
		md.Note("Scan skipped: the host was scanned recently.")
	case report.Unchanged:
		md.Tip("No change since the previous scan.")
	default:
		md.Tip("Scan complete.")
	}
	md.PlainText("")

	if len(report.Files) > 0 {
		w.writeFileMix(md, report.Files)
		md.H2("Files")
		md.PlainText("")
		w.writeFiles(md, report.Files)
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// writeFileMix writes a mermaid pie chart of total size per extension.
func (w *MarkdownWriter) writeFileMix(md *markdown.Markdown, files []model.FileRecord) {
	buckets := ByExtension(files)

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Size by File Type"),
		piechart.WithShowData(true),
	)

	var other int64
	for i, b := range buckets {
		if i >= maxChartSlices-1 && len(buckets) > maxChartSlices {
			other += b.Size
			continue
		}
		if b.Size > 0 {
			chart.LabelAndIntValue(b.Name, uint64(b.Size))
		}
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other))
	}

	md.H2("File Mix")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, files []model.FileRecord) {
	if len(files) == 0 {
		md.PlainText("No files recorded.")
		md.PlainText("")
		return
	}

	shown := files
	if w.maxFiles > 0 && len(shown) > w.maxFiles {
		shown = shown[:w.maxFiles]
	}

	rows := make([][]string, len(shown))
	for i, f := range shown {
		rows[i] = []string{"`" + f.Path + "`", formatSize(f.Size), modified(f)}
	}
	md.Table(markdown.TableSet{Header: []string{"Path", "Size", "Modified"}, Rows: rows})
	md.PlainText("")

	if len(shown) < len(files) {
		md.Note(strconv.Itoa(len(files)-len(shown)) + " more file(s) not shown.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by ftpvista*")
}

func statusIcon(h *model.Host) string {
	switch {
	case h.LastScanned.IsZero():
		return "⏳"
	case h.LastError != "":
		return "❌"
	default:
		return "✅"
	}
}
