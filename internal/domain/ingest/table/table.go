// Package table loads loosely structured spreadsheet exports into rectangular
// raw tables. It handles the two layouts the club software produces: a flat
// layout with the header on the first row, and the accounting-balance layout
// where two stacked header rows sit above the data.
package table

import (
	"fmt"
	"strings"
)

// Layout selects how the header region of a source file is interpreted.
type Layout int

const (
	// LayoutFlat: row 0 is the header, everything after is data.
	LayoutFlat Layout = iota
	// LayoutStackedHeader: rows 3 and 4 (zero-based) are the group-label and
	// sub-label header rows; data starts at row 5. This is the fixed shape of
	// the accounting balance export.
	LayoutStackedHeader
)

// Header row offsets for LayoutStackedHeader.
const (
	stackedGroupRow = 3
	stackedSubRow   = 4
	stackedDataRow  = 5
)

// RawTable is a rectangular table of raw cell strings. Every row has exactly
// len(Columns) cells; short source rows are padded with empty cells and long
// ones truncated, never dropped or shifted.
type RawTable struct {
	// Columns are the canonical column labels, trimmed and de-duplicated by
	// positional suffixing ("Label", "Label_1", ...).
	Columns []string
	// SubHeader is the aligned sub-label row for stacked layouts ("Débit",
	// "Crédit", ...). Empty for flat layouts. It is kept as a parallel array
	// rather than merged into Columns so callers can consult it positionally.
	SubHeader []string
	Rows      [][]string
	// PaddedRows counts source rows whose width did not match the header.
	PaddedRows int

	index map[string]int
}

// ColumnIndex returns the position of a column label, or -1.
func (t *RawTable) ColumnIndex(label string) int {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	if i, ok := t.index[label]; ok {
		return i
	}
	return -1
}

// Cell returns the raw cell at (row, col), or "" when out of range.
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Column returns every cell of one column, in row order.
func (t *RawTable) Column(col int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, col)
	}
	return out
}

// MakeUnique disambiguates duplicated labels by suffixing repeats with their
// occurrence number, preserving first-seen order: A, A -> A, A_1.
func MakeUnique(labels []string) []string {
	seen := make(map[string]int, len(labels))
	out := make([]string, len(labels))
	for i, l := range labels {
		if n, dup := seen[l]; dup {
			seen[l] = n + 1
			out[i] = fmt.Sprintf("%s_%d", l, n+1)
		} else {
			seen[l] = 0
			out[i] = l
		}
	}
	return out
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// fit pads or truncates a row to the header width. Returns the adjusted row
// and whether an adjustment happened.
func fit(row []string, width int) ([]string, bool) {
	if len(row) == width {
		return row, false
	}
	out := make([]string, width)
	copy(out, row)
	return out, true
}
