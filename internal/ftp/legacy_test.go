package ftp

import (
	"testing"
	"time"
)

func TestParseLegacyLine(t *testing.T) {
	t.Parallel()

	now := time.Date(2016, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		line       string
		wantOK     bool
		wantName   string
		wantType   string
		wantSize   string
		wantModify string
		wantPerm   string
	}{
		{
			name:       "unix file with year",
			line:       "-rw-r--r--   1 owner    group          77 Jan  3  2014 readme.txt",
			wantOK:     true,
			wantName:   "readme.txt",
			wantType:   TypeFile,
			wantSize:   "77",
			wantModify: "20140103000000",
			wantPerm:   "adfrw",
		},
		{
			name:       "unix directory with time uses current year",
			line:       "drwxr-xr-x   2 owner    group        4096 Sep 20 07:05 movies",
			wantOK:     true,
			wantName:   "movies",
			wantType:   TypeDir,
			wantSize:   "4096",
			wantModify: "20160920070500",
			wantPerm:   "flcdmpe",
		},
		{
			name:       "name with spaces is kept whole",
			line:       "-rw-r--r--   1 owner    group          10 Feb 14  2015 my  file.mp3",
			wantOK:     true,
			wantName:   "my  file.mp3",
			wantType:   TypeFile,
			wantSize:   "10",
			wantModify: "20150214000000",
			wantPerm:   "adfrw",
		},
		{
			name:       "missing group column",
			line:       "-rw-r--r--   1 owner   512 Dec 31  2013 a.bin",
			wantOK:     true,
			wantName:   "a.bin",
			wantType:   TypeFile,
			wantSize:   "512",
			wantModify: "20131231000000",
			wantPerm:   "adfrw",
		},
		{
			name:       "symlink target is stripped",
			line:       "lrwxrwxrwx   1 owner    group           7 Jan  3  2014 latest -> v1.2.3",
			wantOK:     true,
			wantName:   "latest",
			wantType:   TypeFile,
			wantSize:   "7",
			wantModify: "20140103000000",
			wantPerm:   "adfrw",
		},
		{
			name:       "dot is the current directory",
			line:       "drwxr-xr-x   2 owner    group        4096 Jan  3  2014 .",
			wantOK:     true,
			wantName:   ".",
			wantType:   TypeCDir,
			wantSize:   "4096",
			wantModify: "20140103000000",
			wantPerm:   "flcdmpe",
		},
		{
			name:       "dot dot is the parent directory",
			line:       "drwxr-xr-x   2 owner    group        4096 Jan  3  2014 ..",
			wantOK:     true,
			wantName:   "..",
			wantType:   TypePDir,
			wantSize:   "4096",
			wantModify: "20140103000000",
			wantPerm:   "flcdmpe",
		},
		{
			name:       "dos directory",
			line:       "09-20-15  05:25PM       <DIR>          Shared Docs",
			wantOK:     true,
			wantName:   "Shared Docs",
			wantType:   TypeDir,
			wantSize:   "0",
			wantModify: "20150920172500",
			wantPerm:   "flcdmpe",
		},
		{
			name:       "dos file",
			line:       "01-03-14  10:00AM                  77 readme.txt",
			wantOK:     true,
			wantName:   "readme.txt",
			wantType:   TypeFile,
			wantSize:   "77",
			wantModify: "20140103100000",
			wantPerm:   "adfrw",
		},
		{
			name:   "total line is dropped",
			line:   "total 42",
			wantOK: false,
		},
		{
			name:   "garbage is dropped",
			line:   "this is not a listing line at all",
			wantOK: false,
		},
		{
			name:   "bad day is dropped",
			line:   "-rw-r--r--   1 owner    group          77 Jan 42  2014 x",
			wantOK: false,
		},
		{
			name:   "empty line is dropped",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseLegacyLine(tt.line, now)
			if ok != tt.wantOK {
				t.Fatalf("ParseLegacyLine(%q) ok = %v, want %v (%+v)", tt.line, ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Facts.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", got.Facts.Type(), tt.wantType)
			}
			if got.Facts["size"] != tt.wantSize {
				t.Errorf("size = %q, want %q", got.Facts["size"], tt.wantSize)
			}
			if got.Facts.Modify() != tt.wantModify {
				t.Errorf("Modify() = %q, want %q", got.Facts.Modify(), tt.wantModify)
			}
			if got.Facts.Perm() != tt.wantPerm {
				t.Errorf("Perm() = %q, want %q", got.Facts.Perm(), tt.wantPerm)
			}
		})
	}
}

func TestParseLegacyListingDropsMalformedLines(t *testing.T) {
	t.Parallel()

	lines := []string{
		"total 8",
		"drwxr-xr-x   2 owner    group        4096 Jan  3  2014 .",
		"drwxr-xr-x   2 owner    group        4096 Jan  3  2014 ..",
		"drwxr-xr-x   2 owner    group        4096 Jan  3  2014 music",
		"-rw-r--r--   1 owner    group          77 Jan  3  2014 readme.txt",
		"???",
	}

	entries := ParseLegacyListing(lines, time.Now())
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4: %+v", len(entries), entries)
	}
	if entries[2].Name != "music" || entries[2].Facts.Type() != TypeDir {
		t.Errorf("entries[2] = %+v, want dir music", entries[2])
	}
	if !entries[2].Facts.HasPerm("el") {
		t.Error("legacy directories must be listable")
	}
}
