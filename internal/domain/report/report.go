// Package report holds the output side of every analysis: ordered named
// tables, segment-by-period aggregates, month-over-month trend flags and the
// computed-versus-declared reconciliation check.
package report

import (
	"fmt"

	"github.com/google/uuid"
)

// Cell is a single table cell: either a number (kept raw for machine-readable
// export) or text.
type Cell struct {
	Text     string
	Number   float64
	IsNumber bool
}

// Num builds a numeric cell.
func Num(f float64) Cell { return Cell{Number: f, IsNumber: true} }

// Str builds a text cell.
func Str(s string) Cell { return Cell{Text: s} }

// Table is an ordered named grid. Row order is semantic (declaration order of
// segments, chronological order of periods) and survives export bit-for-bit.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell
}

// NewTable creates an empty table with fixed columns.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// AddRow appends one row. Short rows are padded with empty text cells so the
// grid stays rectangular.
func (t *Table) AddRow(cells ...Cell) {
	for len(cells) < len(t.Columns) {
		cells = append(cells, Str(""))
	}
	t.Rows = append(t.Rows, cells)
}

// Report is a named collection of tables produced by one analysis run,
// together with non-fatal warnings (reconciliation mismatches and the like).
type Report struct {
	ID       uuid.UUID
	Name     string
	Tables   []*Table
	Warnings []string
}

// NewReport allocates a report with a fresh identifier.
func NewReport(name string) *Report {
	return &Report{ID: uuid.New(), Name: name}
}

// Add appends a table, keeping insertion order.
func (r *Report) Add(t *Table) { r.Tables = append(r.Tables, t) }

// Warnf records a user-visible warning without failing the run.
func (r *Report) Warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
