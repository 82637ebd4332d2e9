// Package recovery analyzes payment-incident exports: which rejected payments
// were recovered (settled or credited), for how much, by whom, and how the
// recovered amount evolves month by month.
package recovery

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/dates"
	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
	"github.com/sbnpy/clubsight/pkg/money"
)

// Roles the recovery export must resolve. Substring matching tolerates the
// qualified header spellings the club software emits. Older exports carry
// neither a credit-note nor a commercial column: a missing credit column
// means no incident was ever credited, and without a commercial column the
// per-salesperson table is skipped.
var Roles = []resolver.Spec{
	{Role: resolver.RoleAmount, Aliases: []string{"montant de l'incident"}, Required: true},
	{Role: resolver.RoleSettlementAmount, Aliases: []string{"règlement de l'incident"}, Required: true},
	{Role: resolver.RoleCreditNoteAmount, Aliases: []string{"règlement avoir de l'incident"}},
	{Role: resolver.RoleSalesperson, Aliases: []string{"prénom du commercial initial", "commercial"}},
}

// Summary is the club-level recovery picture.
type Summary struct {
	TotalIncidents    int
	Recovered         int
	Outstanding       int
	TotalAmount       float64
	RecoveredAmount   float64
	OutstandingAmount float64
}

// salespersonStats accumulates per-salesperson figures.
type salespersonStats struct {
	incidents         int
	recovered         int
	totalAmount       float64
	recoveredAmount   float64
	outstandingAmount float64
}

// Result is the full recovery analysis. PerSalesperson is nil when the
// export has no commercial column.
type Result struct {
	Summary         Summary
	PerSalesperson  *report.Table
	Evolution       *report.Table
	CoercedAmounts  int // amount cells that failed numeric cleanup (treated as 0)
	UndatedSettled  int // recovered rows whose settlement date did not parse
}

// Report flattens the result into exportable tables.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("recouvrement")

	club := report.NewTable("Tableau Club Recouvrement",
		"Total rejets (quantité)", "Recouvert (quantité)", "À recouvrir (quantité)",
		"Total rejets (valeur)", "Recouvert (valeur)", "À recouvrir (valeur)")
	club.AddRow(
		report.Num(float64(r.Summary.TotalIncidents)),
		report.Num(float64(r.Summary.Recovered)),
		report.Num(float64(r.Summary.Outstanding)),
		report.Num(r.Summary.TotalAmount),
		report.Num(r.Summary.RecoveredAmount),
		report.Num(r.Summary.OutstandingAmount),
	)
	rep.Add(club)
	if r.PerSalesperson != nil {
		rep.Add(r.PerSalesperson)
	}
	rep.Add(r.Evolution)
	return rep
}

// Service runs recovery analyses.
type Service struct {
	logger *slog.Logger
}

// NewService wires the recovery analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze computes the club summary, the per-salesperson table and the
// monthly recovered-amount evolution. An incident counts as recovered when
// its settlement or credit-note cell is non-empty.
func (s *Service) Analyze(t *table.RawTable, roles *resolver.RoleMap) (*Result, error) {
	amountCol, err := columnIndex(t, roles, resolver.RoleAmount)
	if err != nil {
		return nil, err
	}
	settleCol, err := columnIndex(t, roles, resolver.RoleSettlementAmount)
	if err != nil {
		return nil, err
	}
	creditCol := optionalColumn(t, roles, resolver.RoleCreditNoteAmount)
	salesCol := optionalColumn(t, roles, resolver.RoleSalesperson)

	amounts, coerced := numeric.CleanColumn(t, amountCol)

	res := &Result{CoercedAmounts: coerced}
	perSales := make(map[string]*salespersonStats)
	monthly := make(map[string]float64)

	for row := range t.Rows {
		amount := 0.0
		if amounts[row].Valid {
			amount = amounts[row].Float64
		}
		settlement := strings.TrimSpace(t.Cell(row, settleCol))
		credit := ""
		if creditCol >= 0 {
			credit = strings.TrimSpace(t.Cell(row, creditCol))
		}
		recovered := settlement != "" || credit != ""

		res.Summary.TotalIncidents++
		res.Summary.TotalAmount += amount
		if recovered {
			res.Summary.Recovered++
			res.Summary.RecoveredAmount += amount
			// Evolution is keyed on the settlement date month.
			if ts, err := dates.Parse(settlement); err == nil {
				monthly[dates.Month(ts)] += amount
			} else {
				res.UndatedSettled++
			}
		}

		if salesCol < 0 {
			continue
		}
		sp := strings.TrimSpace(t.Cell(row, salesCol))
		st, ok := perSales[sp]
		if !ok {
			st = &salespersonStats{}
			perSales[sp] = st
		}
		st.incidents++
		st.totalAmount += amount
		if recovered {
			st.recovered++
			st.recoveredAmount += amount
		} else {
			st.outstandingAmount += amount
		}
	}

	res.Summary.Outstanding = res.Summary.TotalIncidents - res.Summary.Recovered
	res.Summary.OutstandingAmount = res.Summary.TotalAmount - res.Summary.RecoveredAmount

	if salesCol >= 0 {
		res.PerSalesperson = salespersonTable(perSales)
	}
	res.Evolution = evolutionTable(monthly)

	s.logger.Info("recovery analyzed",
		slog.Int("incidents", res.Summary.TotalIncidents),
		slog.Int("recovered", res.Summary.Recovered),
		slog.String("recovered_amount", money.Format(res.Summary.RecoveredAmount)),
		slog.String("outstanding_amount", money.Format(res.Summary.OutstandingAmount)),
		slog.Int("coerced_amounts", coerced),
		slog.Int("undated_settlements", res.UndatedSettled),
	)
	return res, nil
}

func columnIndex(t *table.RawTable, roles *resolver.RoleMap, role resolver.Role) (int, error) {
	col, err := roles.Column(role)
	if err != nil {
		return -1, err
	}
	return t.ColumnIndex(col), nil
}

// optionalColumn is -1 when the role did not resolve.
func optionalColumn(t *table.RawTable, roles *resolver.RoleMap, role resolver.Role) int {
	col, err := roles.Column(role)
	if err != nil {
		return -1
	}
	return t.ColumnIndex(col)
}

func salespersonTable(stats map[string]*salespersonStats) *report.Table {
	names := make([]string, 0, len(stats))
	for n := range stats {
		names = append(names, n)
	}
	sort.Strings(names)

	tbl := report.NewTable("Tableau Commerciaux Recouvrement",
		"Commercial", "Total rejets", "Recouvert", "À recouvrir",
		"Montant total", "Montant recouvert", "Montant impayé")
	for _, n := range names {
		st := stats[n]
		tbl.AddRow(
			report.Str(n),
			report.Num(float64(st.incidents)),
			report.Num(float64(st.recovered)),
			report.Num(float64(st.incidents-st.recovered)),
			report.Num(st.totalAmount),
			report.Num(st.recoveredAmount),
			report.Num(st.outstandingAmount),
		)
	}
	return tbl
}

func evolutionTable(monthly map[string]float64) *report.Table {
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	tbl := report.NewTable("Evolution recouvrement", "Mois", "Montant Recouvert")
	for _, m := range months {
		tbl.AddRow(report.Str(m), report.Num(monthly[m]))
	}
	return tbl
}
