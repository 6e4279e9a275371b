package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/ftpvista/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteHosts outputs the host list as a JSON array.
func (w *JSONWriter) WriteHosts(hosts []model.Host) (int, error) {
	if hosts == nil {
		hosts = []model.Host{}
	}
	return w.writeJSON(hosts)
}

// WriteHost outputs one host with its files and history.
func (w *JSONWriter) WriteHost(detail *HostDetail) (int, error) {
	return w.writeJSON(detail)
}

// WriteScan outputs a scan report.
func (w *JSONWriter) WriteScan(report *model.ScanReport) (int, error) {
	return w.writeJSON(report)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
