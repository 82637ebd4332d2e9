package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		cell string
		want Value
	}{
		{"plain integer", "1234", Of(1234)},
		{"comma decimal", "12,5", Of(12.5)},
		{"narrow no-break space grouping", "1 234,56", Of(1234.56)},
		{"regular space grouping", "1 234", Of(1234)},
		{"currency suffix", "650,00 MAD", Of(650)},
		{"lowercase dh token", "100 dh", Of(100)},
		{"negative amount", "-1 500,25", Of(-1500.25)},
		{"text around the amount", "total: 42", Of(42)},
		{"longest run wins", "v2 facture 1234,50", Of(1234.50)},
		{"empty cell is missing", "", Missing()},
		{"pure text is missing", "n/a", Missing()},
		{"dash only is missing", "-", Missing()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.cell))
		})
	}
}

func TestCleanColumn(t *testing.T) {
	tbl := &table.RawTable{
		Columns: []string{"Libellé", "Montant"},
		Rows: [][]string{
			{"a", "100"},
			{"b", ""},
			{"c", "1 250,75"},
			{"d", "abc"},
		},
	}

	values, missing := CleanColumn(tbl, 1)
	assert.Equal(t, 2, missing)
	assert.Equal(t, []Value{Of(100), Missing(), Of(1250.75), Missing()}, values)
}
