package model

import "time"

// ScanReport is the outcome of scanning one host.
type ScanReport struct {
	// Host is the scanned address.
	Host string `json:"host"`

	// Started is when the scan began.
	Started time.Time `json:"started"`

	// Finished is when the scan ended, successfully or not.
	Finished time.Time `json:"finished"`

	// Files holds the records found. It is empty when the scan failed.
	Files []FileRecord `json:"files"`

	// DirsListed is the number of directories that were listed.
	DirsListed int `json:"dirs_listed"`

	// Reconnects is how many times the connection was re-established.
	Reconnects int `json:"reconnects"`

	// LegacyListings counts directories that needed the LIST fallback.
	LegacyListings int `json:"legacy_listings"`

	// Skipped is true when the host was not scanned because its last scan
	// is more recent than the minimum update interval.
	Skipped bool `json:"skipped,omitempty"`

	// Unchanged is true when the scan produced the same file set as before.
	Unchanged bool `json:"unchanged,omitempty"`

	// Error holds the fatal error, if any. Not serialized directly.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error, for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates a ScanReport for host stamped with the current time.
func NewScanReport(host string) *ScanReport {
	return &ScanReport{
		Host:    host,
		Started: time.Now(),
		Files:   make([]FileRecord, 0),
	}
}

// Fail records err as the fatal outcome and drops any partial results.
func (r *ScanReport) Fail(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	r.Files = make([]FileRecord, 0)
}

// Duration returns how long the scan took.
func (r *ScanReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// TotalSize sums the sizes of the recorded files.
func (r *ScanReport) TotalSize() int64 {
	return TotalSize(r.Files)
}
