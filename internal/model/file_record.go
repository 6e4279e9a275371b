package model

import (
	"path"
	"time"
)

// FileRecord is a single regular file found on an FTP server.
// Directories are never recorded; they only feed the scanner's frontier.
type FileRecord struct {
	// Path is the absolute path of the file on the server.
	Path string `json:"path"`

	// Size is the file size in bytes as reported by the server.
	Size int64 `json:"size"`

	// Modified is the last modification time, nil when unknown.
	Modified *time.Time `json:"modified,omitempty"`
}

// NewFileRecord creates a FileRecord. A zero modified time is stored as nil.
func NewFileRecord(p string, size int64, modified time.Time) FileRecord {
	r := FileRecord{Path: p, Size: size}
	if !modified.IsZero() {
		m := modified
		r.Modified = &m
	}
	return r
}

// Name returns the final path element.
func (r FileRecord) Name() string {
	return path.Base(r.Path)
}

// Dir returns the directory holding the file.
func (r FileRecord) Dir() string {
	return path.Dir(r.Path)
}

// TotalSize sums the sizes of records.
func TotalSize(records []FileRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}
