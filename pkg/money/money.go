// Package money provides dirham-safe arithmetic (integer centimes via the
// Fowler Money pattern) and the fixed on-screen display convention: grouped
// thousands, no decimals, " MAD" suffix. Raw floats stay untouched in any
// machine-readable export; only display strings go through Format.
package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyMAD is the only currency the club reports in.
const CurrencyMAD = "MAD"

// Money is an amount in centimes.
type Money struct {
	m *gomoney.Money
}

// New creates Money from centimes.
func New(centimes int64) *Money {
	return &Money{m: gomoney.New(centimes, CurrencyMAD)}
}

// FromFloat converts a float amount in dirhams, rounding to the centime via
// decimal to dodge binary-float drift.
func FromFloat(amount float64) *Money {
	cents := decimal.NewFromFloat(amount).Mul(decimal.New(1, 2)).Round(0).IntPart()
	return New(cents)
}

// Centimes returns the amount in minor units.
func (m *Money) Centimes() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Float64 returns the amount in dirhams.
func (m *Money) Float64() float64 {
	return float64(m.Centimes()) / 100
}

// Add returns m + other.
func (m *Money) Add(other *Money) (*Money, error) {
	sum, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: sum}, nil
}

// Format renders the display convention for a raw float amount:
// 12345.6 -> "12 346 MAD". Decimals are rounded away, thousands grouped with
// spaces.
func Format(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(0)
	s := d.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)

	out := strings.Join(groups, " ") + " " + CurrencyMAD
	if neg {
		out = "-" + out
	}
	return out
}

// FormatMoney renders a Money value with the display convention.
func FormatMoney(m *Money) string {
	return Format(m.Float64())
}
