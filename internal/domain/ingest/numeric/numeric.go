// Package numeric converts locale-formatted amount strings ("1 234,56",
// "650,00 MAD") into floats. Unparseable cells become an explicit missing
// marker rather than an error; batch cleanup never aborts.
package numeric

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
)

// Value is a float with a validity marker. A missing Value is excluded from
// sums; the exclusion count is surfaced by CleanColumn for auditing.
type Value struct {
	Float64 float64
	Valid   bool
}

// Of wraps a present float.
func Of(f float64) Value { return Value{Float64: f, Valid: true} }

// Missing is the absent-value marker.
func Missing() Value { return Value{} }

// Currency tokens stripped before parsing. Order does not matter: tokens are
// removed wherever they appear.
var currencyTokens = []string{"MAD", "DH"}

var signedDecimal = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Normalize applies the cleanup pipeline in fixed order: strip narrow
// no-break and ordinary whitespace, comma to decimal point, currency token
// removal, then extract the longest signed-decimal substring and parse it.
// The whitespace strip must come before the comma replacement so "1 234,56"
// survives intact.
func Normalize(cell string) Value {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, cell)
	s = strings.ReplaceAll(s, ",", ".")
	upper := strings.ToUpper(s)
	for _, tok := range currencyTokens {
		if idx := strings.Index(upper, tok); idx >= 0 {
			s = s[:idx] + s[idx+len(tok):]
			upper = upper[:idx] + upper[idx+len(tok):]
		}
	}

	candidates := signedDecimal.FindAllString(s, -1)
	if len(candidates) == 0 {
		return Missing()
	}
	longest := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) > len(longest) {
			longest = c
		}
	}
	f, err := strconv.ParseFloat(longest, 64)
	if err != nil {
		return Missing()
	}
	return Of(f)
}

// CleanColumn normalizes one column of a raw table and reports how many cells
// came out missing.
func CleanColumn(t *table.RawTable, col int) ([]Value, int) {
	values := make([]Value, len(t.Rows))
	missing := 0
	for i := range t.Rows {
		values[i] = Normalize(t.Cell(i, col))
		if !values[i].Valid {
			missing++
		}
	}
	return values, missing
}
