package model

import "time"

// Host is an FTP server known to the store.
type Host struct {
	// Address is the IPv4 address of the server.
	Address string `json:"address"`

	// Server is the FTP server software guessed from the greeting, if any.
	Server string `json:"server,omitempty"`

	// FirstSeen is when discovery first accepted the address.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when discovery last accepted the address.
	LastSeen time.Time `json:"last_seen"`

	// LastScanned is when the last scan finished, zero if never scanned.
	LastScanned time.Time `json:"last_scanned"`

	// FileCount is the number of files recorded by the last successful scan.
	FileCount int `json:"file_count"`

	// TotalSize is the sum of file sizes recorded by the last successful scan.
	TotalSize int64 `json:"total_size"`

	// Digest identifies the file set of the last successful scan.
	// It is used to skip rewriting unchanged trees.
	Digest string `json:"digest,omitempty"`

	// LastError is the error message of the last failed scan, if any.
	LastError string `json:"last_error,omitempty"`
}

// NeedsUpdate reports whether the host should be rescanned given the
// minimum interval between two scans.
func (h *Host) NeedsUpdate(now time.Time, minInterval time.Duration) bool {
	if h == nil || h.LastScanned.IsZero() {
		return true
	}
	return now.Sub(h.LastScanned) >= minInterval
}
