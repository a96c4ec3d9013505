package file

import (
	"bufio"
	"os"
	"strings"
)

// ListEntry is one line of a source list: a location (path or URL) and an
// optional charset label.
type ListEntry struct {
	Location string
	Charset  string
}

// ReadList reads a source list file line by line.
//
// Each non-empty line holds a location optionally followed by whitespace and
// a charset label:
//
//	data/prices.csv.gz
//	https://example.com/export.csv windows-1250
//
// Lines that are empty or start with '#' (after trimming) are skipped. Order
// is preserved. On I/O error, a non-nil error is returned.
func ReadList(path string) ([]ListEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []ListEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		e := ListEntry{Location: fields[0]}
		if len(fields) > 1 {
			e.Charset = fields[1]
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
