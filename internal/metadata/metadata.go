// Package metadata derives protocol identity from corpus filenames.
//
// Nothing here reads file contents. A protocol's year, chamber and sequence
// number are inferred from the shape of its name alone, so every function is
// total: a name that carries no year or number yields empty fields, never an
// error.
package metadata

import (
	"path"
	"strconv"
	"strings"
)

// Year tokens must fall strictly inside this window.
const (
	minYear = 1800
	maxYear = 2100
)

// ProtocolMetadata is the identity of one protocol as encoded in its filename.
type ProtocolMetadata struct {
	ProtocolID string  `json:"protocol_id"`
	Year       *int    `json:"year,omitempty"`
	Chamber    Chamber `json:"chamber"`
	Number     *int    `json:"number,omitempty"`
}

// HasYear reports whether a year was found in the filename.
func (m ProtocolMetadata) HasYear() bool { return m.Year != nil }

// HasNumber reports whether the last filename token parsed as a sequence number.
func (m ProtocolMetadata) HasNumber() bool { return m.Number != nil }

// Infer derives ProtocolMetadata from a filename or path.
//
// Dashes are treated as underscores throughout, including in the returned
// ProtocolID, which is the base name up to its first dot. Tokens are the
// underscore-separated parts of the base name with its extension removed.
// The year is the last token whose first four characters form an integer
// strictly between 1800 and 2100. The chamber markers "_ak_" and "_fk_" are
// matched against the whole normalized input. The sequence number is the
// final token when it parses as an integer.
func Infer(filename string) ProtocolMetadata {
	normalized := strings.ReplaceAll(filename, "-", "_")

	// Only forward slashes separate path segments in corpus listings.
	base := path.Base(normalized)
	id, _, _ := strings.Cut(base, ".")

	meta := ProtocolMetadata{
		ProtocolID: id,
		Chamber:    Unicameral,
	}

	// Dots before the extension belong to the tokens.
	tokens := strings.Split(strings.TrimSuffix(base, path.Ext(base)), "_")
	for _, tok := range tokens {
		if year, ok := yearToken(tok); ok {
			meta.Year = &year
		}
	}

	switch {
	case strings.Contains(normalized, "_ak_"):
		meta.Chamber = SecondChamber
	case strings.Contains(normalized, "_fk_"):
		meta.Chamber = FirstChamber
	}

	if n, err := strconv.Atoi(tokens[len(tokens)-1]); err == nil {
		meta.Number = &n
	}

	return meta
}

func yearToken(tok string) (int, bool) {
	if len(tok) > 4 {
		tok = tok[:4]
	}
	if tok == "" || !isDigits(tok) {
		return 0, false
	}
	year, err := strconv.Atoi(tok)
	if err != nil || year <= minYear || year >= maxYear {
		return 0, false
	}
	return year, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
