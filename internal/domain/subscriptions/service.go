// Package subscriptions analyzes membership sales exports: quantities per
// offer, per salesperson and per ISO week, at club and salesperson level.
package subscriptions

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/dates"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// Roles the sales export must resolve.
var Roles = []resolver.Spec{
	{Role: resolver.RoleOfferName, Aliases: []string{"offre"}, Required: true},
	{Role: resolver.RoleCreationDate, Aliases: []string{"date de création", "date creation"}, Required: true},
	{Role: resolver.RoleSalesperson, Aliases: []string{"commercial"}, Required: true},
}

// Filter restricts the analysis to subsets of offers and salespersons. Nil
// slices mean "keep everything".
type Filter struct {
	Offers       []string
	Salespersons []string
}

func (f Filter) keepOffer(o string) bool       { return keep(f.Offers, o) }
func (f Filter) keepSalesperson(s string) bool { return keep(f.Salespersons, s) }

func keep(allowed []string, v string) bool {
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Result is the full subscriptions analysis.
type Result struct {
	PerOffer          *report.Table
	PerSalesperson    *report.Table
	WeeklyClub        *report.Table
	WeeklySalesperson *report.Table
	RowsKept          int
	UndatedRows       int
}

// Report flattens the result into exportable tables.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("abonnements")
	rep.Add(r.PerOffer)
	rep.Add(r.PerSalesperson)
	rep.Add(r.WeeklyClub)
	rep.Add(r.WeeklySalesperson)
	return rep
}

// Service runs subscription-sales analyses.
type Service struct {
	logger *slog.Logger
}

// NewService wires the subscriptions analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze counts sales per offer, per salesperson and per ISO week. Rows with
// unparseable creation dates still count in the offer/salesperson tables but
// are excluded from the weekly breakdowns and counted for auditing.
func (s *Service) Analyze(t *table.RawTable, roles *resolver.RoleMap, filter Filter) (*Result, error) {
	offerCol, err := roles.Column(resolver.RoleOfferName)
	if err != nil {
		return nil, err
	}
	dateCol, err := roles.Column(resolver.RoleCreationDate)
	if err != nil {
		return nil, err
	}
	salesCol, err := roles.Column(resolver.RoleSalesperson)
	if err != nil {
		return nil, err
	}
	oi, di, si := t.ColumnIndex(offerCol), t.ColumnIndex(dateCol), t.ColumnIndex(salesCol)

	perOffer := make(map[string]int)
	perSales := make(map[string]map[string]int)
	weeklyOffer := make(map[string]map[string]int)
	weeklySales := make(map[string]map[string]int)

	res := &Result{}
	for row := range t.Rows {
		offer := strings.TrimSpace(t.Cell(row, oi))
		sales := strings.TrimSpace(t.Cell(row, si))
		if offer == "" || !filter.keepOffer(offer) || !filter.keepSalesperson(sales) {
			continue
		}
		res.RowsKept++
		perOffer[offer]++
		bump(perSales, sales, offer)

		ts, err := dates.Parse(t.Cell(row, di))
		if err != nil {
			res.UndatedRows++
			continue
		}
		week := dates.ISOWeek(ts)
		bump(weeklyOffer, week, offer)
		bump(weeklySales, week, sales)
	}

	offers := sortedKeys(perOffer)
	res.PerOffer = offerTable(perOffer, offers)
	res.PerSalesperson = matrixTable("Tableau Commercial", "Commercial", offers, perSales)
	res.WeeklyClub = matrixTable("Par Semaine Club", "Semaine", offers, weeklyOffer)
	res.WeeklySalesperson = matrixTable("Par Semaine Com", "Semaine", sortedInnerKeys(weeklySales), weeklySales)

	s.logger.Info("subscriptions analyzed",
		slog.Int("rows_kept", res.RowsKept),
		slog.Int("undated_rows", res.UndatedRows),
		slog.Int("offers", len(offers)),
	)
	return res, nil
}

func bump(m map[string]map[string]int, outer, inner string) {
	if m[outer] == nil {
		m[outer] = make(map[string]int)
	}
	m[outer][inner]++
}

// offerTable lists offers by quantity descending, ties in label order, so
// reruns are bit-for-bit identical.
func offerTable(counts map[string]int, offers []string) *report.Table {
	ordered := append([]string(nil), offers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if counts[ordered[i]] != counts[ordered[j]] {
			return counts[ordered[i]] > counts[ordered[j]]
		}
		return ordered[i] < ordered[j]
	})
	tbl := report.NewTable("Tableau Club", "Offre", "Quantité")
	for _, o := range ordered {
		tbl.AddRow(report.Str(o), report.Num(float64(counts[o])))
	}
	return tbl
}

// matrixTable renders outer keys as rows and the given inner keys as columns.
func matrixTable(name, rowLabel string, columns []string, m map[string]map[string]int) *report.Table {
	rows := make([]string, 0, len(m))
	for k := range m {
		rows = append(rows, k)
	}
	sort.Strings(rows)

	tbl := report.NewTable(name, append([]string{rowLabel}, columns...)...)
	for _, r := range rows {
		cells := []report.Cell{report.Str(r)}
		for _, c := range columns {
			cells = append(cells, report.Num(float64(m[r][c])))
		}
		tbl.AddRow(cells...)
	}
	return tbl
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInnerKeys(m map[string]map[string]int) []string {
	set := make(map[string]struct{})
	for _, inner := range m {
		for k := range inner {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
