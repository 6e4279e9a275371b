package model

import (
	"errors"
	"testing"
	"time"
)

func TestHostNeedsUpdate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		host *Host
		want bool
	}{
		{name: "nil host", host: nil, want: true},
		{name: "never scanned", host: &Host{Address: "10.0.0.1"}, want: true},
		{name: "scanned recently", host: &Host{LastScanned: now.Add(-30 * time.Minute)}, want: false},
		{name: "scanned exactly one interval ago", host: &Host{LastScanned: now.Add(-time.Hour)}, want: true},
		{name: "scanned long ago", host: &Host{LastScanned: now.Add(-48 * time.Hour)}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.host.NeedsUpdate(now, time.Hour); got != tt.want {
				t.Errorf("NeedsUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanReportFail(t *testing.T) {
	t.Parallel()

	r := NewScanReport("10.0.0.1")
	r.Files = append(r.Files, NewFileRecord("/pub/a.txt", 10, time.Time{}))

	r.Fail(errors.New("login refused"))

	if len(r.Files) != 0 {
		t.Errorf("expected partial files to be dropped, got %d", len(r.Files))
	}
	if r.ErrorMessage != "login refused" {
		t.Errorf("unexpected error message %q", r.ErrorMessage)
	}
}

func TestFileRecord(t *testing.T) {
	t.Parallel()

	mod := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewFileRecord("/pub/music/song.mp3", 4096, mod)

	if r.Name() != "song.mp3" {
		t.Errorf("Name() = %q", r.Name())
	}
	if r.Dir() != "/pub/music" {
		t.Errorf("Dir() = %q", r.Dir())
	}
	if r.Modified == nil || !r.Modified.Equal(mod) {
		t.Errorf("Modified = %v", r.Modified)
	}

	noDate := NewFileRecord("/x", 1, time.Time{})
	if noDate.Modified != nil {
		t.Error("expected zero time to be stored as nil")
	}

	if got := TotalSize([]FileRecord{r, noDate}); got != 4097 {
		t.Errorf("TotalSize = %d", got)
	}
}
