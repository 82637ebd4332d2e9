package tbo

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
	"github.com/sbnpy/clubsight/pkg/money"
)

// anchorFragments locate the club's value row inside the turnover sheet; the
// product-label row sits directly above it.
var anchorFragments = []string{"Fitness Park", "Casablanca"}

// declaredTotalLabel is the workbook's own grand-total column.
const declaredTotalLabel = "Total"

// firstProductColumn: the three leading columns of the turnover sheet are
// club metadata, products start at the fourth.
const firstProductColumn = 3

// ProductValue is one classified revenue cell.
type ProductValue struct {
	Group   string
	Product string
	Value   float64
}

// Result is the turnover-breakdown analysis for one workbook.
type Result struct {
	GroupTotals    map[string]float64
	Details        map[string][]ProductValue
	All            []ProductValue
	Reconciliation report.Reconciliation
}

// Report renders the exportable tables: group summary sorted by revenue
// descending, then the flat classified detail.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("tbo")

	type gt struct {
		name  string
		total float64
	}
	ordered := make([]gt, 0, len(Groups))
	for _, g := range Groups {
		ordered = append(ordered, gt{g.Name, r.GroupTotals[g.Name]})
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].total > ordered[j].total })

	summary := report.NewTable("Résumé Groupes", "Groupe", "Total (DH)")
	for _, g := range ordered {
		summary.AddRow(report.Str(g.name), report.Num(g.total))
	}
	rep.Add(summary)

	detail := report.NewTable("Détail", "Groupe", "Produit", "Valeur")
	for _, pv := range r.All {
		detail.AddRow(report.Str(pv.Group), report.Str(pv.Product), report.Num(pv.Value))
	}
	rep.Add(detail)

	if w := r.Reconciliation.Check(); w != nil {
		rep.Warnf("écart de %s entre la somme des groupes (%s) et le total du fichier (%s)",
			money.Format(w.Diff()), money.Format(w.Computed), money.Format(w.Declared))
	}
	return rep
}

// Service analyzes turnover sheets.
type Service struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewService wires the TBO analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{classifier: NewClassifier(), logger: logger}
}

// Analyze locates the product/value row pair, classifies every product cell
// and reconciles the computed sum against the sheet's declared total.
func (s *Service) Analyze(t *table.RawTable) (*Result, error) {
	products, values, err := locateRows(t)
	if err != nil {
		return nil, err
	}

	// Pair product labels with parseable values; the declared total is the
	// "Total" entry when present, else the last value cell.
	turnover := make([]ProductValue, 0, len(products))
	declared := 0.0
	declaredFound := false
	for i := range products {
		name := strings.TrimSpace(products[i])
		v := numeric.Normalize(values[i])
		if name == "" || !v.Valid {
			continue
		}
		if name == declaredTotalLabel {
			declared = v.Float64
			declaredFound = true
			continue
		}
		turnover = append(turnover, ProductValue{Product: name, Value: v.Float64})
	}
	if !declaredFound && len(turnover) > 0 {
		last := turnover[len(turnover)-1]
		declared = last.Value
	}

	res := &Result{
		GroupTotals: make(map[string]float64, len(Groups)),
		Details:     make(map[string][]ProductValue, len(Groups)),
	}
	for _, g := range Groups {
		res.GroupTotals[g.Name] = 0
	}

	computed := 0.0
	for _, pv := range turnover {
		if strings.Contains(pv.Product, declaredTotalLabel) {
			continue
		}
		pv.Group = s.classifier.Classify(pv.Product)
		res.GroupTotals[pv.Group] += pv.Value
		res.Details[pv.Group] = append(res.Details[pv.Group], pv)
		res.All = append(res.All, pv)
		computed += pv.Value
	}

	res.Reconciliation = report.Reconciliation{
		Computed:  computed,
		Declared:  declared,
		Tolerance: report.DefaultTolerance,
	}
	if w := res.Reconciliation.Check(); w != nil {
		s.logger.Warn("turnover reconciliation mismatch", slog.Any("warning", w))
	}
	s.logger.Info("tbo analyzed",
		slog.Int("products", len(res.All)),
		slog.Float64("computed_total", computed),
		slog.Float64("declared_total", declared),
	)
	return res, nil
}

// locateRows finds the anchor value row and the product-label row above it.
// When the anchor is the first data row, the labels come from the header.
func locateRows(t *table.RawTable) (products, values []string, err error) {
	anchor := -1
	for row := range t.Rows {
		for _, cell := range t.Rows[row] {
			if containsAnyFragment(cell) {
				anchor = row
				break
			}
		}
		if anchor >= 0 {
			break
		}
	}
	if anchor < 0 {
		return nil, nil, fmt.Errorf("turnover data rows not found: no cell matches %v", anchorFragments)
	}

	values = t.Rows[anchor]
	if anchor == 0 {
		products = t.Columns
	} else {
		products = t.Rows[anchor-1]
	}
	if len(products) <= firstProductColumn || len(values) <= firstProductColumn {
		return nil, nil, fmt.Errorf("turnover sheet too narrow: product columns start at index %d", firstProductColumn)
	}
	return products[firstProductColumn:], values[firstProductColumn:], nil
}

func containsAnyFragment(cell string) bool {
	for _, f := range anchorFragments {
		if strings.Contains(cell, f) {
			return true
		}
	}
	return false
}
