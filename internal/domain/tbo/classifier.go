// Package tbo analyzes the turnover-breakdown workbook: per-product revenue
// cells are classified into product groups and reconciled against the total
// the workbook itself declares.
package tbo

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Group names, in declaration order. GroupBoutique is the catch-all for
// unmatched product codes; unlike the expense segmentation, nothing is
// dropped here.
const (
	GroupSubscriptions = "ABONNEMENTS"
	GroupAccessPlus    = "ACCESS+"
	GroupCoaching      = "COACHING"
	GroupGoodies       = "GOODIES"
	GroupWaterstation  = "WATERSTATION"
	GroupBoutique      = "BOUTIQUE"
)

// ProductGroup owns the curated product codes of one group.
type ProductGroup struct {
	Name  string
	Codes []string
}

// Groups is the fixed ordered product-group table.
var Groups = []ProductGroup{
	{Name: GroupSubscriptions, Codes: []string{
		"CDD", "CDD1", "CDD12", "CDIAENG", "CDISENG",
		"SEANCEESSAI", "seancedessaie", "VIP", "OffreSummerBody25",
		"ULTIMATEEMPLOYE", "HOMEPARK", "1MOFFERT", "EMPLOYE",
		"OFFRERENTREE2025", "REGISTRATION-FEE",
	}},
	{Name: GroupAccessPlus, Codes: []string{
		"ALLACCESS+", "ALLACCESS+BF", "ALLACCESS+YS-cc",
	}},
	{Name: GroupCoaching, Codes: []string{
		"10PT", "15PT", "10PTPREMIUM", "1PT",
		"DUO15PT", "20PT", "DUO10PT", "SMALLGROUP", "15PTPREMIUM",
	}},
	{Name: GroupGoodies, Codes: []string{
		"CADENAS", "CEINTUREMUSCU", "cordeasauterfpk",
		"gantmusculation", "GOURDEFP", "SAC",
		"SERVIETTEGRISE", "SERVIETTENOIRE", "SHAKER",
		"sanglecheville",
	}},
	{Name: GroupWaterstation, Codes: []string{
		"waterstation",
	}},
	{Name: GroupBoutique, Codes: nil},
}

// subscriptionPrefixes short-circuit the scan: any product starting with one
// of these is a subscription product regardless of the code lists.
var subscriptionPrefixes = []string{"CDD", "CDI", "SEANCE"}

// Classifier matches product codes to groups. The subscription containment
// scan uses an Aho-Corasick matcher over the lowercased code list so one pass
// covers every keyword.
type Classifier struct {
	subMatcher *ahocorasick.Matcher
	exact      []map[string]struct{}
}

// NewClassifier precomputes the matchers for the fixed group table.
func NewClassifier() *Classifier {
	subCodes := make([]string, 0, len(Groups[0].Codes))
	for _, c := range Groups[0].Codes {
		subCodes = append(subCodes, strings.ToLower(c))
	}
	exact := make([]map[string]struct{}, len(Groups))
	for i, g := range Groups {
		exact[i] = make(map[string]struct{}, len(g.Codes))
		for _, c := range g.Codes {
			exact[i][c] = struct{}{}
		}
	}
	return &Classifier{
		subMatcher: ahocorasick.NewStringMatcher(subCodes),
		exact:      exact,
	}
}

// Classify maps one product code to its group. Groups are scanned in
// declaration order; subscriptions additionally match by prefix and by
// case-insensitive containment of any subscription code. Everything else
// lands in BOUTIQUE.
func (c *Classifier) Classify(product string) string {
	for i, g := range Groups {
		if g.Name == GroupSubscriptions {
			for _, p := range subscriptionPrefixes {
				if strings.HasPrefix(product, p) {
					return g.Name
				}
			}
			if len(c.subMatcher.Match([]byte(strings.ToLower(product)))) > 0 {
				return g.Name
			}
		}
		if _, ok := c.exact[i][product]; ok {
			return g.Name
		}
	}
	return GroupBoutique
}
