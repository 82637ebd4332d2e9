package tbo

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbnpy/clubsight/internal/domain/ingest/table"
)

func TestClassifier(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		product string
		want    string
	}{
		{"CDD12", GroupSubscriptions},
		{"CDIAENG", GroupSubscriptions},
		{"SEANCEESSAI", GroupSubscriptions},
		{"PROMO-VIP-2025", GroupSubscriptions}, // containment on the code list
		{"ALLACCESS+", GroupAccessPlus},
		{"ALLACCESS+BF", GroupAccessPlus},
		{"10PT", GroupCoaching},
		{"SHAKER", GroupGoodies},
		{"waterstation", GroupWaterstation},
		{"TSHIRT-COLLECTOR", GroupBoutique}, // catch-all
		{"", GroupBoutique},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.product))
		})
	}
}

func turnoverFixture() *table.RawTable {
	return &table.RawTable{
		Columns: []string{"Région", "Ville", "Club", "CDD12", "10PT", "SHAKER", "MYSTERY", "Total"},
		Rows: [][]string{
			{"", "", "", "", "", "", "", ""},
			{"", "", "", "CDD12", "10PT", "SHAKER", "MYSTERY", "Total"},
			{"Maroc", "Casablanca", "Fitness Park Casablanca", "1 000", "500", "50", "25", "1575"},
		},
	}
}

func TestService_Analyze(t *testing.T) {
	svc := NewService(slog.New(slog.DiscardHandler))

	t.Run("groups summed and reconciled", func(t *testing.T) {
		res, err := svc.Analyze(turnoverFixture())
		require.NoError(t, err)

		assert.Equal(t, 1000.0, res.GroupTotals[GroupSubscriptions])
		assert.Equal(t, 500.0, res.GroupTotals[GroupCoaching])
		assert.Equal(t, 50.0, res.GroupTotals[GroupGoodies])
		assert.Equal(t, 25.0, res.GroupTotals[GroupBoutique])
		assert.Equal(t, 0.0, res.GroupTotals[GroupWaterstation])

		assert.Equal(t, 1575.0, res.Reconciliation.Computed)
		assert.Equal(t, 1575.0, res.Reconciliation.Declared)
		assert.False(t, res.Reconciliation.Mismatch())
	})

	t.Run("one dirham off stays within tolerance", func(t *testing.T) {
		fix := turnoverFixture()
		fix.Rows[2][7] = "1576"
		res, err := svc.Analyze(fix)
		require.NoError(t, err)
		assert.False(t, res.Reconciliation.Mismatch())
	})

	t.Run("larger gap downgrades to a warning", func(t *testing.T) {
		fix := turnoverFixture()
		fix.Rows[2][7] = "1600"
		res, err := svc.Analyze(fix)
		require.NoError(t, err)
		assert.True(t, res.Reconciliation.Mismatch())

		rep := res.Report()
		require.NotEmpty(t, rep.Warnings)
		assert.Contains(t, rep.Warnings[0], "écart")
	})

	t.Run("anchor on first row reads labels from the header", func(t *testing.T) {
		fix := &table.RawTable{
			Columns: []string{"Région", "Ville", "Club", "CDD12", "Total"},
			Rows: [][]string{
				{"Maroc", "Casablanca", "Fitness Park Casablanca", "100", "100"},
			},
		}
		res, err := svc.Analyze(fix)
		require.NoError(t, err)
		assert.Equal(t, 100.0, res.GroupTotals[GroupSubscriptions])
		assert.Equal(t, 100.0, res.Reconciliation.Declared)
	})

	t.Run("missing anchor fails", func(t *testing.T) {
		_, err := svc.Analyze(&table.RawTable{
			Columns: []string{"A", "B", "C", "D"},
			Rows:    [][]string{{"w", "x", "y", "z"}},
		})
		assert.Error(t, err)
	})

	t.Run("summary table is sorted by revenue descending", func(t *testing.T) {
		res, err := svc.Analyze(turnoverFixture())
		require.NoError(t, err)

		rep := res.Report()
		summary := rep.Tables[0]
		require.Len(t, summary.Rows, len(Groups))
		assert.Equal(t, GroupSubscriptions, summary.Rows[0][0].Text)
		assert.Equal(t, GroupCoaching, summary.Rows[1][0].Text)
	})
}
