package expenses

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// groupHeaderPrefix marks a balance column; only the Débit sub-column of each
// balance pair carries the net period amounts.
const (
	groupHeaderPrefix = "Solde au"
	debitSubLabel     = "Débit"
)

var balanceHeaderRe = regexp.MustCompile(`Solde au (\d{2})[/-](\d{2})[/-](\d{4})`)

// MonthColumn identifies one monthly debit column of the balance file.
type MonthColumn struct {
	Column  string // canonical (suffixed) column label
	Index   int
	Header  string // original group label, e.g. "Solde au 31/07/2025"
	Display string // e.g. "July 2025"
}

// MonthColumns scans the stacked header for "Solde au ..." / "Débit" pairs,
// in file order. The Crédit twins are deliberately excluded.
func MonthColumns(t *table.RawTable) []MonthColumn {
	var out []MonthColumn
	for i, col := range t.Columns {
		if i >= len(t.SubHeader) {
			break
		}
		if !strings.HasPrefix(col, groupHeaderPrefix) || t.SubHeader[i] != debitSubLabel {
			continue
		}
		out = append(out, MonthColumn{
			Column:  col,
			Index:   i,
			Header:  col,
			Display: monthDisplayName(col),
		})
	}
	return out
}

// monthDisplayName turns "Solde au 31/07/2025" into "July 2025". Headers that
// do not match the pattern pass through unchanged.
func monthDisplayName(header string) string {
	m := balanceHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return header
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return header
	}
	return fmt.Sprintf("%s %s", time.Month(month).String(), m[3])
}

// DetectLabelColumn finds the ledger-line label column: the first column, in
// file order, containing any curated label. Returns -1 when none qualifies.
func DetectLabelColumn(t *table.RawTable) int {
	for col := range t.Columns {
		for row := range t.Rows {
			if KnownLabel(t.Cell(row, col)) {
				return col
			}
		}
	}
	return -1
}

// Result is the full expense analysis for one balance upload.
type Result struct {
	Aggregate     *report.PeriodAggregate
	Months        []MonthColumn
	Annual        *report.Table
	Trends        [][]report.Trend
	Detail        map[string]*report.Table
	LabelColumn   string
	ExcludedCells int
	DroppedRows   int
}

// Report flattens the result into exportable tables.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("charges")
	rep.Add(r.Annual)
	for _, seg := range r.Aggregate.Segments {
		if det, ok := r.Detail[seg]; ok {
			rep.Add(det)
		}
	}
	return rep
}

// Service runs the balance analysis.
type Service struct {
	logger *slog.Logger
}

// NewService wires the expense analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze classifies every ledger line, sums amounts per (segment, month) and
// flags month-over-month moves. The input must be a stacked-header table.
func (s *Service) Analyze(t *table.RawTable) (*Result, error) {
	months := MonthColumns(t)
	if len(months) == 0 {
		return nil, fmt.Errorf("no %q/%q column pairs found in the stacked header", groupHeaderPrefix, debitSubLabel)
	}

	labelCol := DetectLabelColumn(t)
	if labelCol < 0 {
		return nil, fmt.Errorf("ledger label column not detected: %w",
			&resolver.UnresolvedColumnError{Role: resolver.RoleLineLabel})
	}

	// Clean every month column in place semantics: missing cells are excluded
	// from sums and counted for the audit trail.
	cleaned := make([][]numeric.Value, len(months))
	excluded := 0
	for i, mc := range months {
		vals, miss := numeric.CleanColumn(t, mc.Index)
		cleaned[i] = vals
		excluded += miss
	}

	// Declared segments first, the interest override as the trailing row: it
	// lives outside the declared list but classified rows are never dropped
	// silently.
	segments := append(SegmentOrder(), SegmentInterest)
	periods := make([]string, len(months))
	for i, mc := range months {
		periods[i] = mc.Display
	}
	agg := report.NewPeriodAggregate(segments, periods)

	detailRows := make(map[string][][]report.Cell)
	dropped := 0
	for row := range t.Rows {
		label := t.Cell(row, labelCol)
		seg, ok := Classify(label)
		if !ok {
			dropped++
			continue
		}
		cells := []report.Cell{report.Str(strings.TrimSpace(label))}
		for i, mc := range months {
			v := cleaned[i][row]
			if v.Valid {
				agg.Add(seg, mc.Display, v.Float64)
				cells = append(cells, report.Num(v.Float64))
			} else {
				cells = append(cells, report.Str(""))
			}
		}
		detailRows[seg] = append(detailRows[seg], cells)
	}

	annual := report.NewTable("Charges", append([]string{"Segment"}, append(periods, "Total Année")...)...)
	totals := agg.RowTotals()
	for i, seg := range agg.Segments {
		row := []report.Cell{report.Str(seg)}
		for _, v := range agg.Row(seg) {
			row = append(row, report.Num(v))
		}
		row = append(row, report.Num(totals[i]))
		annual.AddRow(row...)
	}

	detail := make(map[string]*report.Table, len(detailRows))
	for _, seg := range segments {
		rows, ok := detailRows[seg]
		if !ok {
			continue
		}
		dt := report.NewTable("Détail "+seg, append([]string{"Intitulé"}, periods...)...)
		dt.Rows = rows
		detail[seg] = dt
	}

	s.logger.Info("balance analyzed",
		slog.Int("months", len(months)),
		slog.Int("rows", len(t.Rows)),
		slog.Int("dropped_rows", dropped),
		slog.Int("excluded_cells", excluded),
	)

	return &Result{
		Aggregate:     agg,
		Months:        months,
		Annual:        annual,
		Trends:        agg.Trends(),
		Detail:        detail,
		LabelColumn:   t.Columns[labelCol],
		ExcludedCells: excluded,
		DroppedRows:   dropped,
	}, nil
}
