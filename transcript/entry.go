// Package transcript reads and edits JSON-lines conversation transcripts
// without re-serializing them.
//
// Each line is kept as the exact bytes that were read. Lookups go through
// gjson and edits through sjson, so a line that is never edited is written
// back byte for byte.
package transcript

import (
	"bytes"

	"github.com/tidwall/gjson"
)

var newline = []byte("\n")

// Entry is one line of a transcript.
type Entry struct {
	// Index is the 0-based line number.
	Index int

	// Raw is the line content without its trailing newline.
	Raw []byte

	// Valid reports whether Raw parsed as JSON when the entry was split.
	// Invalid lines are passed through untouched.
	Valid bool
}

// Result returns the parsed form of the entry.
func (e *Entry) Result() gjson.Result {
	if !e.Valid {
		return gjson.Result{}
	}
	return gjson.ParseBytes(e.Raw)
}

// Type returns the top-level "type" field ("user", "assistant", ...).
func (e *Entry) Type() string {
	if !e.Valid {
		return ""
	}
	return gjson.GetBytes(e.Raw, "type").String()
}

// Role returns message.role, or "" when absent.
func (e *Entry) Role() string {
	if !e.Valid {
		return ""
	}
	return gjson.GetBytes(e.Raw, "message.role").String()
}

// Images returns every image payload found at the known locations.
func (e *Entry) Images() []ImageRef {
	if !e.Valid {
		return nil
	}
	return Images(e.Raw)
}

// Split breaks data into entries, one per "\n"-separated line. A trailing
// newline produces a final empty entry so Join(Split(data)) == data.
// Lines are not copied; entries alias data.
func Split(data []byte) []*Entry {
	lines := bytes.Split(data, newline)
	entries := make([]*Entry, len(lines))
	for i, line := range lines {
		entries[i] = &Entry{
			Index: i,
			Raw:   line,
			Valid: isRecord(line),
		}
	}
	return entries
}

// Join reassembles entries into transcript bytes.
func Join(entries []*Entry) []byte {
	size := 0
	for _, e := range entries {
		size += len(e.Raw) + 1
	}
	out := make([]byte, 0, size)
	for i, e := range entries {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, e.Raw...)
	}
	return out
}

// isRecord reports whether line holds a single well-formed JSON value.
// Blank lines are not records.
func isRecord(line []byte) bool {
	if len(bytes.TrimSpace(line)) == 0 {
		return false
	}
	return gjson.ValidBytes(line)
}
