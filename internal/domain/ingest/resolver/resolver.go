// Package resolver maps the actual column labels of an upload to canonical
// semantic roles. Matching is fuzzy on purpose: the club software renames and
// qualifies columns between releases, so aliases are matched by normalized
// substring containment, except for short codes which require equality.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Role is a canonical semantic column role.
type Role string

const (
	RoleOfferName        Role = "offer_name"
	RoleCreationDate     Role = "creation_date"
	RoleSalesperson      Role = "salesperson"
	RoleClientLastName   Role = "client_last_name"
	RoleClientFirstName  Role = "client_first_name"
	RoleAmount           Role = "amount"
	RoleAmountExclTax    Role = "amount_excl_tax"
	RoleSettlementAmount Role = "settlement_amount"
	RoleCreditNoteAmount Role = "credit_note_amount"
	RoleProductCode      Role = "product_code"
	RoleBirthDate        Role = "birth_date"
	RoleSubscription     Role = "subscription"
	RoleLineLabel        Role = "line_label"
)

// Spec declares how one role is matched. Exact forces whole-label equality
// after normalization; it is set for roles whose aliases are short codes that
// would cross-match inside longer labels.
type Spec struct {
	Role     Role
	Aliases  []string
	Exact    bool
	Required bool
}

// UnresolvedRole reports a role that could not be matched, with fuzzy-ranked
// column suggestions for a manual-selection prompt.
type UnresolvedRole struct {
	Role        Role
	Suggestions []string
}

// UnresolvedColumnError is raised when a required role is consumed without a
// resolution. The resolver itself never guesses silently.
type UnresolvedColumnError struct {
	Role Role
}

func (e *UnresolvedColumnError) Error() string {
	return fmt.Sprintf("column for role %q was not resolved", e.Role)
}

// UnresolvedRolesError reports every required role that stayed unmatched in
// one resolution pass, suggestions included, so a caller can offer the manual
// column selection in a single round trip.
type UnresolvedRolesError struct {
	Roles []UnresolvedRole
}

func (e *UnresolvedRolesError) Error() string {
	names := make([]string, len(e.Roles))
	for i, r := range e.Roles {
		names[i] = string(r.Role)
	}
	return fmt.Sprintf("required columns not resolved: %s", strings.Join(names, ", "))
}

// RoleMap is the read-only outcome of resolution: role to concrete label.
type RoleMap struct {
	columns map[Role]string
}

// Column returns the resolved label for a role, or an UnresolvedColumnError.
func (m *RoleMap) Column(role Role) (string, error) {
	if m != nil {
		if c, ok := m.columns[role]; ok {
			return c, nil
		}
	}
	return "", &UnresolvedColumnError{Role: role}
}

// Override records a caller-supplied manual selection for a role.
func (m *RoleMap) Override(role Role, column string) {
	if m.columns == nil {
		m.columns = make(map[Role]string)
	}
	m.columns[role] = column
}

// Resolution is the full outcome: resolved roles plus everything that needs a
// manual fallback.
type Resolution struct {
	Roles      *RoleMap
	Unresolved []UnresolvedRole
}

// MissingRequired reports whether any required role stayed unresolved.
func (r *Resolution) MissingRequired(specs []Spec) []Role {
	var missing []Role
	for _, s := range specs {
		if !s.Required {
			continue
		}
		if _, err := r.Roles.Column(s.Role); err != nil {
			missing = append(missing, s.Role)
		}
	}
	return missing
}

// Resolve matches each spec against the columns in file order. The first
// column whose normalized label contains (or equals, for Exact specs) any
// normalized alias wins for that role.
func Resolve(columns []string, specs []Spec) *Resolution {
	normCols := make([]string, len(columns))
	for i, c := range columns {
		normCols[i] = Normalize(c)
	}

	res := &Resolution{Roles: &RoleMap{columns: make(map[Role]string)}}
	for _, spec := range specs {
		col, ok := match(columns, normCols, spec)
		if ok {
			res.Roles.columns[spec.Role] = col
			continue
		}
		res.Unresolved = append(res.Unresolved, UnresolvedRole{
			Role:        spec.Role,
			Suggestions: suggest(columns, spec.Aliases),
		})
	}
	return res
}

func match(columns, normCols []string, spec Spec) (string, bool) {
	for i, nc := range normCols {
		for _, alias := range spec.Aliases {
			na := Normalize(alias)
			if na == "" {
				continue
			}
			if spec.Exact {
				if nc == na {
					return columns[i], true
				}
			} else if strings.Contains(nc, na) {
				return columns[i], true
			}
		}
	}
	return "", false
}

// suggest ranks columns against the spec aliases and returns the three best.
func suggest(columns []string, aliases []string) []string {
	type scored struct {
		col  string
		dist int
	}
	best := make(map[string]int)
	for _, alias := range aliases {
		for _, r := range fuzzy.RankFindNormalizedFold(Normalize(alias), columns) {
			if d, ok := best[r.Target]; !ok || r.Distance < d {
				best[r.Target] = r.Distance
			}
		}
	}
	ranked := make([]scored, 0, len(best))
	for c, d := range best {
		ranked = append(ranked, scored{c, d})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].col < ranked[j].col
	})
	out := make([]string, 0, 3)
	for _, s := range ranked {
		out = append(out, s.col)
		if len(out) == 3 {
			break
		}
	}
	return out
}

var accentReplacer = strings.NewReplacer(
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a",
	"î", "i", "ï", "i",
	"ô", "o",
	"û", "u", "ù", "u",
	"ç", "c",
	"’", "'",
	"_", " ", "-", " ",
)

// Normalize lowers, trims and folds the accented characters the French
// exports actually use. Not a general Unicode fold on purpose: the alias
// lists are curated against this exact table.
func Normalize(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	return accentReplacer.Replace(s)
}
