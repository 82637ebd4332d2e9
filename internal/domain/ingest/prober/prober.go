// Package prober detects the text encoding and field delimiter of raw
// spreadsheet exports. Club software produces CSV files in whatever encoding
// the operator's workstation happened to use, so nothing here trusts the file.
package prober

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Candidate delimiters, in declaration order. When two candidates tie on
// occurrence count the earlier one wins, so the order is part of the contract.
var delimiters = []rune{',', ';', '\t', '|'}

// encodingCandidate pairs a name with its decoder. UTF-8 is handled separately
// via utf8.Valid since it has no x/text decoder step worth paying for.
type encodingCandidate struct {
	name    string
	decoder *encoding.Decoder
}

func candidates() []encodingCandidate {
	return []encodingCandidate{
		{"windows-1252", charmap.Windows1252.NewDecoder()},
		{"iso-8859-1", charmap.ISO8859_1.NewDecoder()},
		{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()},
		{"latin-1", charmap.ISO8859_1.NewDecoder()},
	}
}

// UnreadableFileError is terminal: no encoding/delimiter combination produced a
// usable table. It carries enough diagnostics to reproduce the failure.
type UnreadableFileError struct {
	Preview    []byte
	Encodings  []string
	Delimiters []rune
	Reason     string
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file: %s (tried encodings %v, delimiters %q, first %d bytes: %q)",
		e.Reason, e.Encodings, string(e.Delimiters), len(e.Preview), e.Preview)
}

// NewUnreadableFileError captures the first ~1KB of the input for diagnostics.
func NewUnreadableFileError(data []byte, reason string) *UnreadableFileError {
	preview := data
	if len(preview) > 1024 {
		preview = preview[:1024]
	}
	names := []string{"utf-8"}
	for _, c := range candidates() {
		names = append(names, c.name)
	}
	return &UnreadableFileError{
		Preview:    append([]byte(nil), preview...),
		Encodings:  names,
		Delimiters: append([]rune(nil), delimiters...),
		Reason:     reason,
	}
}

// Probe decodes raw bytes into text, trying each candidate encoding in
// priority order and accepting the first that decodes cleanly. Accepting the
// first success is a heuristic: Windows-1252 bytes can decode "successfully"
// as ISO-8859-1 with mangled accents. That risk is accepted; the priority
// order must not be reordered to "fix" individual files.
func Probe(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", NewUnreadableFileError(data, "empty input")
	}

	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	for _, c := range candidates() {
		out, err := c.decoder.Bytes(data)
		if err != nil {
			continue
		}
		// A decoder that substitutes replacement runes did not really decode.
		if strings.ContainsRune(string(out), utf8.RuneError) {
			continue
		}
		return string(out), c.name, nil
	}

	return "", "", NewUnreadableFileError(data, "no candidate encoding decoded the buffer")
}

// DetectDelimiter counts candidate delimiters in the designated header line
// and returns the first strictly-greater maximum, plus its count. A count of
// zero means the line cannot be split into at least two columns.
func DetectDelimiter(headerLine string) (rune, int) {
	best := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		if n := strings.Count(headerLine, string(d)); n > bestCount {
			bestCount = n
			best = d
		}
	}
	return best, bestCount
}
