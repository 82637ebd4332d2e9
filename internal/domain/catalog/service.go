// Package catalog builds the boutique product catalog: per-product sales
// figures plus a best-effort product image lookup.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// Fixed export layout of the sales journal: product code in column P,
// amount in column Q, order state in column F.
const (
	productColumn = 15
	amountColumn  = 16
	stateColumn   = 5
)

var excludedStates = []string{"annul", "incident"}

// Product is one catalog entry with its aggregated sales.
type Product struct {
	Code     string
	Turnover float64
	Quantity int
	ImageURL string
}

// Result is the catalog analysis.
type Result struct {
	Products    []Product
	DroppedRows int // cancelled, incident or unparseable amounts
	ImageMisses int
}

// Report renders the podium table, turnover descending.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("catalogue")
	tbl := report.NewTable("Podium des ventes", "Produit", "Quantité", "CA")
	for _, p := range r.Products {
		tbl.AddRow(report.Str(p.Code), report.Num(float64(p.Quantity)), report.Num(p.Turnover))
	}
	rep.Add(tbl)
	return rep
}

// Service aggregates boutique sales and resolves product images.
type Service struct {
	images *ImageFinder
	logger *slog.Logger
}

// NewService wires the catalog analyzer. images may be nil to skip lookups.
func NewService(images *ImageFinder, logger *slog.Logger) *Service {
	return &Service{images: images, logger: logger}
}

// Analyze sums turnover and counts sales per product, skipping cancelled and
// incident rows, then attaches image URLs when a finder is configured. Image
// failures never fail the analysis.
func (s *Service) Analyze(ctx context.Context, t *table.RawTable) (*Result, error) {
	res := &Result{}
	turnover := make(map[string]float64)
	quantity := make(map[string]int)
	var order []string

	if len(t.Columns) <= amountColumn {
		return nil, fmt.Errorf("sales journal too narrow: %d columns", len(t.Columns))
	}
	for i := range t.Rows {
		state := strings.ToLower(t.Cell(i, stateColumn))
		if containsAny(state, excludedStates) {
			res.DroppedRows++
			continue
		}
		code := strings.TrimSpace(t.Cell(i, productColumn))
		amount := numeric.Normalize(t.Cell(i, amountColumn))
		if code == "" || !amount.Valid || amount.Float64 <= 0 {
			res.DroppedRows++
			continue
		}
		if _, seen := turnover[code]; !seen {
			order = append(order, code)
		}
		turnover[code] += amount.Float64
		quantity[code]++
	}

	for _, code := range order {
		res.Products = append(res.Products, Product{
			Code:     code,
			Turnover: turnover[code],
			Quantity: quantity[code],
		})
	}
	sort.SliceStable(res.Products, func(i, j int) bool {
		return res.Products[i].Turnover > res.Products[j].Turnover
	})

	if s.images != nil {
		for i := range res.Products {
			url, err := s.images.Find(ctx, res.Products[i].Code)
			if err != nil || url == "" {
				res.ImageMisses++
				continue
			}
			res.Products[i].ImageURL = url
		}
	}

	s.logger.Info("catalog built",
		slog.Int("products", len(res.Products)),
		slog.Int("dropped_rows", res.DroppedRows),
		slog.Int("image_misses", res.ImageMisses),
	)
	return res, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
