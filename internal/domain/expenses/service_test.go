package expenses

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
	"github.com/sbnpy/clubsight/internal/domain/report"
)

func TestClassify(t *testing.T) {
	t.Run("exact label maps to its segment", func(t *testing.T) {
		seg, ok := Classify("GARDIENNAGE ET MENAGE")
		require.True(t, ok)
		assert.Equal(t, "Nettoyage", seg)
	})

	t.Run("case and whitespace folded", func(t *testing.T) {
		seg, ok := Classify("  gardiennage et menage  ")
		require.True(t, ok)
		assert.Equal(t, "Nettoyage", seg)
	})

	t.Run("interest override beats the Autres membership", func(t *testing.T) {
		seg, ok := Classify("INTERETS DES EMPRUNTS ET DETTES")
		require.True(t, ok)
		assert.Equal(t, SegmentInterest, seg)
	})

	t.Run("substring is not membership", func(t *testing.T) {
		_, ok := Classify("GARDIENNAGE")
		assert.False(t, ok)
	})

	t.Run("unknown label is dropped", func(t *testing.T) {
		_, ok := Classify("LIGNE INCONNUE")
		assert.False(t, ok)
	})
}

func TestSegmentOrder(t *testing.T) {
	order := SegmentOrder()
	require.NotEmpty(t, order)
	assert.Equal(t, "Nettoyage", order[0])
	assert.Equal(t, "Autres", order[len(order)-1])
	assert.NotContains(t, order, SegmentInterest)
}

func balanceFixture() *table.RawTable {
	return &table.RawTable{
		Columns: []string{
			"Libellé",
			"Solde au 30/06/2025", "Solde au 30/06/2025_1",
			"Solde au 31/07/2025", "Solde au 31/07/2025_1",
		},
		SubHeader: []string{"", "Débit", "Crédit", "Débit", "Crédit"},
		Rows: [][]string{
			{"GARDIENNAGE ET MENAGE", "1 000,00", "0", "1 250,00", "0"},
			{"BLANCHISSERIE", "200", "0", "", "0"},
			{"ELECTRICITE", "3 000", "0", "2 500", "0"},
			{"INTERETS DES EMPRUNTS ET DETTES", "400", "0", "400", "0"},
			{"LIGNE HORS REFERENTIEL", "999", "0", "999", "0"},
		},
	}
}

func TestService_Analyze(t *testing.T) {
	svc := NewService(slog.New(slog.DiscardHandler))

	t.Run("months detected from debit columns only", func(t *testing.T) {
		months := MonthColumns(balanceFixture())
		require.Len(t, months, 2)
		assert.Equal(t, "June 2025", months[0].Display)
		assert.Equal(t, "July 2025", months[1].Display)
	})

	t.Run("segment sums and audit counters", func(t *testing.T) {
		res, err := svc.Analyze(balanceFixture())
		require.NoError(t, err)

		assert.Equal(t, "Libellé", res.LabelColumn)
		assert.Equal(t, 1200.0, res.Aggregate.Sum("Nettoyage", "June 2025"))
		assert.Equal(t, 1250.0, res.Aggregate.Sum("Nettoyage", "July 2025"))
		assert.Equal(t, 3000.0, res.Aggregate.Sum("Fournitures", "June 2025"))
		assert.Equal(t, 400.0, res.Aggregate.Sum(SegmentInterest, "July 2025"))

		// One BLANCHISSERIE cell was empty, one line is outside the referential.
		assert.Equal(t, 1, res.ExcludedCells)
		assert.Equal(t, 1, res.DroppedRows)
	})

	t.Run("annual table lists every segment even without data", func(t *testing.T) {
		res, err := svc.Analyze(balanceFixture())
		require.NoError(t, err)

		wantRows := len(SegmentOrder()) + 1 // trailing interest row
		assert.Len(t, res.Annual.Rows, wantRows)
		assert.Equal(t, []string{"Segment", "June 2025", "July 2025", "Total Année"}, res.Annual.Columns)

		// Zero-filled rows keep declared order stable across runs.
		assert.Equal(t, report.Str("Leasing"), res.Annual.Rows[2][0])
		assert.Equal(t, report.Num(0), res.Annual.Rows[2][1])
	})

	t.Run("trends flag the month-over-month move", func(t *testing.T) {
		res, err := svc.Analyze(balanceFixture())
		require.NoError(t, err)

		// Nettoyage is segment row 0: 1200 -> 1250 is under ten percent.
		assert.Equal(t, report.TrendNone, res.Trends[0][0])
		assert.Equal(t, report.TrendStable, res.Trends[0][1])
		// Fournitures: 3000 -> 2500 is a drop beyond the threshold.
		fi := indexOf(res.Aggregate.Segments, "Fournitures")
		assert.Equal(t, report.TrendDecrease, res.Trends[fi][1])
	})

	t.Run("missing debit columns fail", func(t *testing.T) {
		_, err := svc.Analyze(&table.RawTable{
			Columns:   []string{"Libellé", "Montant"},
			SubHeader: []string{"", ""},
		})
		assert.Error(t, err)
	})

	t.Run("missing label column fails", func(t *testing.T) {
		bad := balanceFixture()
		for i := range bad.Rows {
			bad.Rows[i][0] = "x"
		}
		_, err := svc.Analyze(bad)
		assert.Error(t, err)
	})
}

func indexOf(ss []string, want string) int {
	for i, s := range ss {
		if s == want {
			return i
		}
	}
	return -1
}
