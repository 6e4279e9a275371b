package ftp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNegativeSize is returned by Facts.Size for a size fact below zero.
var ErrNegativeSize = errors.New("negative size fact")

// Entry types as defined by RFC 3659.
const (
	TypeFile = "file"
	TypeDir  = "dir"
	TypeCDir = "cdir"
	TypePDir = "pdir"
)

// ModifyLayout is the layout of the "modify" fact (YYYYMMDDHHMMSS).
const ModifyLayout = "20060102150405"

// Facts holds the per-entry facts of a listing, keyed by lower-case name.
type Facts map[string]string

// Type returns the "type" fact, lower-cased.
func (f Facts) Type() string {
	return strings.ToLower(f["type"])
}

// Perm returns the "perm" fact.
func (f Facts) Perm() string {
	return f["perm"]
}

// Size returns the "size" fact parsed as an integer.
func (f Facts) Size() (int64, error) {
	n, err := strconv.ParseInt(f["size"], 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeSize, n)
	}
	return n, nil
}

// Modify returns the raw "modify" fact.
func (f Facts) Modify() string {
	return f["modify"]
}

// HasPerm reports whether every flag in flags is present in the perm fact.
func (f Facts) HasPerm(flags string) bool {
	perm := f.Perm()
	for _, c := range flags {
		if !strings.ContainsRune(perm, c) {
			return false
		}
	}
	return true
}

// Entry is one line of a directory listing.
type Entry struct {
	Name  string
	Facts Facts
}

// ParseMLSDLine parses one MLSD/MLST line:
//
//	type=file;size=77;modify=20150920172522;perm=adfrw; name with spaces
//
// Fact names are case-insensitive; the name follows the first space.
func ParseMLSDLine(line string) (Entry, bool) {
	line = strings.TrimRight(line, "\r\n")

	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return Entry{}, false
	}

	name := line[idx+1:]
	if name == "" {
		return Entry{}, false
	}

	facts := make(Facts)
	for _, fact := range strings.Split(line[:idx], ";") {
		if fact == "" {
			continue
		}
		key, value, ok := strings.Cut(fact, "=")
		if !ok {
			continue
		}
		facts[strings.ToLower(key)] = value
	}

	return Entry{Name: name, Facts: facts}, true
}
