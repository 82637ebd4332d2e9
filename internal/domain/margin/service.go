// Package margin computes real product margins for the goodies and boutique
// lines by joining sold quantities, turnover and purchase-price catalogs.
package margin

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/sbnpy/clubsight/internal/domain/report"
)

// CatalogEntry is one purchase-price line. The CSV headers are the canonical
// catalog format ("Produit;PrixAchat" or comma-separated equivalents).
type CatalogEntry struct {
	Product       string  `csv:"Produit"`
	PurchasePrice float64 `csv:"PrixAchat"`
}

// LoadCatalog reads a purchase-price catalog CSV.
func LoadCatalog(r io.Reader) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	if err := gocsv.Unmarshal(r, &entries); err != nil {
		return nil, fmt.Errorf("parse price catalog: %w", err)
	}
	return entries, nil
}

// SoldProduct pairs a product with either a quantity or a turnover figure,
// pre-extracted by the caller from the TBO workbook pages.
type SoldProduct struct {
	Product string
	Value   float64
}

// Line is one computed margin row.
type Line struct {
	Product       string
	Quantity      float64
	Turnover      float64
	PurchasePrice float64
	AvgSalePrice  float64
	UnitMargin    float64
	TotalMargin   float64
}

// Result is the margin analysis.
type Result struct {
	Lines       []Line
	TotalMargin float64
	Unmatched   int // sold products without a purchase price
}

// Report renders the exportable margin table.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("marge")
	tbl := report.NewTable("Marge Produits",
		"Produit", "Quantité", "CA", "PrixAchat", "PrixVenteMoyen", "MargeUnitaire", "MargeTotale")
	for _, l := range r.Lines {
		tbl.AddRow(
			report.Str(l.Product),
			report.Num(l.Quantity),
			report.Num(l.Turnover),
			report.Num(l.PurchasePrice),
			report.Num(l.AvgSalePrice),
			report.Num(l.UnitMargin),
			report.Num(l.TotalMargin),
		)
	}
	rep.Add(tbl)
	return rep
}

// Service computes product margins.
type Service struct {
	logger *slog.Logger
}

// NewService wires the margin analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze inner-joins quantities and turnover on the uppercased product name,
// left-joins the purchase price and keeps complete rows with positive
// quantities. The money math runs on decimals; the result carries floats for
// the report layer.
func (s *Service) Analyze(quantities, turnover []SoldProduct, catalogs ...[]CatalogEntry) (*Result, error) {
	prices := make(map[string]float64)
	for _, cat := range catalogs {
		for _, e := range cat {
			prices[normalizeProduct(e.Product)] = e.PurchasePrice
		}
	}

	ca := make(map[string]float64, len(turnover))
	for _, t := range turnover {
		ca[normalizeProduct(t.Product)] = t.Value
	}

	res := &Result{}
	total := decimal.Zero
	for _, q := range quantities {
		product := normalizeProduct(q.Product)
		revenue, sold := ca[product]
		if !sold || q.Value <= 0 {
			continue
		}
		price, ok := prices[product]
		if !ok {
			res.Unmatched++
			continue
		}

		qty := decimal.NewFromFloat(q.Value)
		rev := decimal.NewFromFloat(revenue)
		buy := decimal.NewFromFloat(price)

		avg := rev.Div(qty)
		unit := avg.Sub(buy)
		lineTotal := unit.Mul(qty)
		total = total.Add(lineTotal)

		res.Lines = append(res.Lines, Line{
			Product:       product,
			Quantity:      q.Value,
			Turnover:      revenue,
			PurchasePrice: price,
			AvgSalePrice:  avg.InexactFloat64(),
			UnitMargin:    unit.InexactFloat64(),
			TotalMargin:   lineTotal.InexactFloat64(),
		})
	}
	sort.SliceStable(res.Lines, func(i, j int) bool {
		return res.Lines[i].Product < res.Lines[j].Product
	})
	res.TotalMargin = total.InexactFloat64()

	s.logger.Info("margins computed",
		slog.Int("lines", len(res.Lines)),
		slog.Int("unmatched", res.Unmatched),
		slog.Float64("total_margin", res.TotalMargin),
	)
	return res, nil
}

func normalizeProduct(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}
