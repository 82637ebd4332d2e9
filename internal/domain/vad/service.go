// Package vad analyzes the remote/bundled sales channel: Access+ passes and
// Waterstation subscriptions, deduplicated to unique clients per salesperson.
package vad

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/clients"
	"github.com/sbnpy/clubsight/internal/domain/ingest/numeric"
	"github.com/sbnpy/clubsight/internal/domain/ingest/resolver"
	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

// Roles the VAD export must resolve. The name roles match exactly: "nom" as a
// substring would also hit "Prénom", so fuzzy containment is wrong for them.
var Roles = []resolver.Spec{
	{Role: resolver.RoleClientLastName, Aliases: []string{"nom"}, Exact: true, Required: true},
	{Role: resolver.RoleClientFirstName, Aliases: []string{"prénom", "prenom"}, Exact: true, Required: true},
	{Role: resolver.RoleAmount, Aliases: []string{"montant ttc", "ttc"}, Required: true},
	{Role: resolver.RoleAmountExclTax, Aliases: []string{"montant ht"}, Required: true},
	{Role: resolver.RoleProductCode, Aliases: []string{"code produit"}, Required: true},
	{Role: resolver.RoleSalesperson, Aliases: []string{"commercial"}, Required: true},
}

// Product-code prefixes identifying each channel. Case conventions follow the
// club software: Access+ codes are uppercase, waterstation codes lowercase.
const (
	accessPrefix       = "ALLACCESS+"
	waterstationPrefix = "waterstation"

	// promoTTC is the discounted Access+ price whose rows can optionally be
	// excluded from the unique-sales count.
	promoTTC = 650
)

// Options tunes the analysis.
type Options struct {
	ExcludePromo bool
}

// ChannelResult is the per-channel outcome.
type ChannelResult struct {
	UniqueClients  int
	PerSalesperson *report.Table
}

// Result is the full VAD analysis.
type Result struct {
	Access          ChannelResult
	Waterstation    ChannelResult
	ExcludedAmounts int // rows dropped because the HT amount was missing or <= 0
}

// Report flattens the result into exportable tables.
func (r *Result) Report() *report.Report {
	rep := report.NewReport("vad")
	rep.Add(r.Access.PerSalesperson)
	rep.Add(r.Waterstation.PerSalesperson)
	return rep
}

// Service runs VAD analyses.
type Service struct {
	logger *slog.Logger
}

// NewService wires the VAD analyzer.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Analyze filters to positive HT amounts, splits rows by product-code prefix
// and collapses each channel to unique clients (normalized LAST FIRST key,
// first occurrence wins).
func (s *Service) Analyze(t *table.RawTable, roles *resolver.RoleMap, opts Options) (*Result, error) {
	cols, err := resolveAll(t, roles)
	if err != nil {
		return nil, err
	}

	htValues, _ := numeric.CleanColumn(t, cols.amountHT)

	res := &Result{}
	accessSeen := make(map[string]struct{})
	waterSeen := make(map[string]struct{})
	accessSales := make(map[string]int)
	waterSales := make(map[string]int)

	for row := range t.Rows {
		ht := htValues[row]
		if !ht.Valid || ht.Float64 <= 0 {
			res.ExcludedAmounts++
			continue
		}

		code := strings.TrimSpace(t.Cell(row, cols.productCode))
		key := clients.NormalizeKey(t.Cell(row, cols.lastName), t.Cell(row, cols.firstName))
		sales := strings.TrimSpace(t.Cell(row, cols.salesperson))

		switch {
		case strings.HasPrefix(strings.ToUpper(code), accessPrefix):
			if opts.ExcludePromo {
				if ttc := numeric.Normalize(t.Cell(row, cols.amountTTC)); ttc.Valid && ttc.Float64 == promoTTC {
					continue
				}
			}
			if _, dup := accessSeen[key]; dup {
				continue
			}
			accessSeen[key] = struct{}{}
			accessSales[sales]++
		case strings.HasPrefix(strings.ToLower(code), waterstationPrefix):
			if _, dup := waterSeen[key]; dup {
				continue
			}
			waterSeen[key] = struct{}{}
			waterSales[sales]++
		}
	}

	res.Access = ChannelResult{
		UniqueClients:  len(accessSeen),
		PerSalesperson: salesTable("Access+ par Commercial", accessSales),
	}
	res.Waterstation = ChannelResult{
		UniqueClients:  len(waterSeen),
		PerSalesperson: salesTable("Waterstation par Commercial", waterSales),
	}

	s.logger.Info("vad analyzed",
		slog.Int("access_unique", res.Access.UniqueClients),
		slog.Int("waterstation_unique", res.Waterstation.UniqueClients),
		slog.Int("excluded_amounts", res.ExcludedAmounts),
	)
	return res, nil
}

type columns struct {
	lastName, firstName, amountTTC, amountHT, productCode, salesperson int
}

func resolveAll(t *table.RawTable, roles *resolver.RoleMap) (*columns, error) {
	c := &columns{}
	for _, bind := range []struct {
		role resolver.Role
		dst  *int
	}{
		{resolver.RoleClientLastName, &c.lastName},
		{resolver.RoleClientFirstName, &c.firstName},
		{resolver.RoleAmount, &c.amountTTC},
		{resolver.RoleAmountExclTax, &c.amountHT},
		{resolver.RoleProductCode, &c.productCode},
		{resolver.RoleSalesperson, &c.salesperson},
	} {
		col, err := roles.Column(bind.role)
		if err != nil {
			return nil, err
		}
		*bind.dst = t.ColumnIndex(col)
	}
	return c, nil
}

// salesTable orders salespersons by unique sales descending, ties by name.
func salesTable(name string, counts map[string]int) *report.Table {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	tbl := report.NewTable(name, "Commercial", "Nb ventes unique")
	for _, n := range names {
		tbl.AddRow(report.Str(n), report.Num(float64(counts[n])))
	}
	return tbl
}
