package ftp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Permission strings assigned to entries reconstructed from LIST output.
// LIST carries no usable permission facts for the logged-in user, so files
// get the usual file flags and directories are assumed listable.
const (
	legacyFilePerm = "adfrw"
	legacyDirPerm  = "flcdmpe"
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseLegacyListing rebuilds MLSD-style entries from LIST output.
//
// Unix "ls -l" lines and MS-DOS style lines are understood. Lines that
// match neither (such as "total 42") are dropped. now supplies the year for
// dates that omit it.
func ParseLegacyListing(lines []string, now time.Time) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if e, ok := ParseLegacyLine(line, now); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// ParseLegacyLine parses a single LIST line.
func ParseLegacyLine(line string, now time.Time) (Entry, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Entry{}, false
	}

	if e, ok := parseUnixLine(line, now); ok {
		return e, true
	}
	return parseDOSLine(line)
}

// field is a whitespace-separated token and its offset in the line.
type field struct {
	text  string
	start int
}

func splitFields(line string) []field {
	var fields []field
	start := -1
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, field{line[start:i], start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, field{line[start:], start})
	}
	return fields
}

// parseUnixLine handles
//
//	drwxr-xr-x   2 owner group  4096 Sep 20 17:25 name
//	-rw-r--r--   1 owner        77 Jan  3  2014 name
func parseUnixLine(line string, now time.Time) (Entry, bool) {
	fields := splitFields(line)
	if len(fields) < 6 {
		return Entry{}, false
	}

	perms := fields[0].text
	if len(perms) < 10 || !strings.ContainsRune("-dlbcps", rune(perms[0])) {
		return Entry{}, false
	}

	// Locate the month: the group column is optional on some servers.
	m := -1
	for i := 3; i+3 < len(fields); i++ {
		if _, ok := months[strings.ToLower(fields[i].text)]; !ok {
			continue
		}
		if _, err := strconv.ParseInt(fields[i-1].text, 10, 64); err == nil {
			m = i
			break
		}
	}
	if m < 0 {
		return Entry{}, false
	}

	modify, ok := synthesizeModify(fields[m].text, fields[m+1].text, fields[m+2].text, now)
	if !ok {
		return Entry{}, false
	}

	name := line[fields[m+3].start:]
	if perms[0] == 'l' {
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[:idx]
		}
	}

	facts := Facts{
		"size":   fields[m-1].text,
		"modify": modify,
	}
	switch {
	case name == ".":
		facts["type"] = TypeCDir
	case name == "..":
		facts["type"] = TypePDir
	case perms[0] == 'd':
		facts["type"] = TypeDir
	default:
		facts["type"] = TypeFile
	}
	if facts["type"] == TypeFile {
		facts["perm"] = legacyFilePerm
	} else {
		facts["perm"] = legacyDirPerm
	}

	return Entry{Name: name, Facts: facts}, true
}

// synthesizeModify turns "Sep" "20" "17:25" or "Jan" "3" "2014" into a
// modify fact. A time of day means the current year; a year means 00:00.
func synthesizeModify(month, day, timeOrYear string, now time.Time) (string, bool) {
	mon, ok := months[strings.ToLower(month)]
	if !ok {
		return "", false
	}

	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}

	year := now.Year()
	hour, minute := 0, 0
	if h, mm, found := strings.Cut(timeOrYear, ":"); found {
		if hour, err = strconv.Atoi(h); err != nil || hour > 23 {
			return "", false
		}
		if minute, err = strconv.Atoi(mm); err != nil || minute > 59 {
			return "", false
		}
	} else {
		if year, err = strconv.Atoi(timeOrYear); err != nil {
			return "", false
		}
	}

	return fmt.Sprintf("%04d%02d%02d%02d%02d00", year, int(mon), d, hour, minute), true
}

// parseDOSLine handles IIS style listings:
//
//	09-20-15  05:25PM       <DIR>          name
//	01-03-14  10:00AM                  77 name
func parseDOSLine(line string) (Entry, bool) {
	fields := splitFields(line)
	if len(fields) < 4 {
		return Entry{}, false
	}

	t, err := time.Parse("01-02-06 03:04PM", fields[0].text+" "+fields[1].text)
	if err != nil {
		t, err = time.Parse("01-02-2006 03:04PM", fields[0].text+" "+fields[1].text)
		if err != nil {
			return Entry{}, false
		}
	}

	name := line[fields[3].start:]
	facts := Facts{"modify": t.Format(ModifyLayout)}

	if strings.EqualFold(fields[2].text, "<DIR>") {
		facts["type"] = TypeDir
		facts["perm"] = legacyDirPerm
		facts["size"] = "0"
	} else {
		if _, err := strconv.ParseInt(fields[2].text, 10, 64); err != nil {
			return Entry{}, false
		}
		facts["type"] = TypeFile
		facts["perm"] = legacyFilePerm
		facts["size"] = fields[2].text
	}

	switch name {
	case ".":
		facts["type"] = TypeCDir
	case "..":
		facts["type"] = TypePDir
	}

	return Entry{Name: name, Facts: facts}, true
}
