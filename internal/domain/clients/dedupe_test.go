package clients

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "BENALI AÏCHA", NormalizeKey("  benali ", "Aïcha"))
	assert.Equal(t, "TAZI OMAR", NormalizeKey("TAZI", "omar"))
}

func TestDedupeLatest(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }

	t.Run("latest transaction wins", func(t *testing.T) {
		records := DedupeLatest([]TxRow{
			{Key: "BENALI AÏCHA", Timestamp: day(1), Salesperson: "Sara", Index: 0},
			{Key: "BENALI AÏCHA", Timestamp: day(10), Salesperson: "Omar", Index: 1},
			{Key: "BENALI AÏCHA", Timestamp: day(5), Salesperson: "Nadia", Index: 2},
		})
		require.Len(t, records, 1)
		assert.Equal(t, day(10), records[0].LastSeen)
		assert.Equal(t, "Omar", records[0].Salesperson)
		assert.Equal(t, 3, records[0].Transactions)
	})

	t.Run("equal timestamps resolve to later input row", func(t *testing.T) {
		records := DedupeLatest([]TxRow{
			{Key: "TAZI OMAR", Timestamp: day(1), Salesperson: "Sara", Index: 0},
			{Key: "TAZI OMAR", Timestamp: day(1), Salesperson: "Omar", Index: 1},
		})
		require.Len(t, records, 1)
		assert.Equal(t, "Omar", records[0].Salesperson)
	})

	t.Run("output preserves first-seen key order", func(t *testing.T) {
		records := DedupeLatest([]TxRow{
			{Key: "B", Timestamp: day(9)},
			{Key: "A", Timestamp: day(1)},
			{Key: "B", Timestamp: day(2)},
		})
		require.Len(t, records, 2)
		assert.Equal(t, "B", records[0].Key)
		assert.Equal(t, "A", records[1].Key)
	})

	t.Run("generated client base collapses to its key count", func(t *testing.T) {
		gofakeit.Seed(11)
		var rows []TxRow
		for i := 0; i < 50; i++ {
			key := NormalizeKey(gofakeit.LastName(), fmt.Sprintf("client%d", i%20))
			rows = append(rows, TxRow{
				Key:       key,
				Timestamp: gofakeit.DateRange(day(1), day(28)),
				Index:     i,
			})
		}
		keys := make(map[string]struct{})
		for _, r := range rows {
			keys[r.Key] = struct{}{}
		}
		records := DedupeLatest(rows)
		assert.Len(t, records, len(keys))
	})
}

func TestInactivity(t *testing.T) {
	reference := time.Date(2025, 8, 30, 0, 0, 0, 0, time.UTC)
	day := func(d time.Duration) time.Time { return reference.Add(-d * 24 * time.Hour) }

	records := []Record{
		{Key: "RECENT", LastSeen: day(5)},
		{Key: "EDGE", LastSeen: day(30)},
		{Key: "GONE", LastSeen: day(31)},
	}

	t.Run("default threshold splits on strictly more days", func(t *testing.T) {
		rep, err := Inactivity(records, reference, DefaultInactivityThreshold, 2)
		require.NoError(t, err)

		assert.Len(t, rep.Active, 2) // exactly 30 days is still active
		assert.Len(t, rep.Inactive, 1)
		assert.Equal(t, "GONE", rep.Inactive[0].Key)
		assert.Equal(t, 2, rep.Unparseable)
	})

	t.Run("threshold bounds enforced", func(t *testing.T) {
		_, err := Inactivity(records, reference, MinInactivityThreshold-1, 0)
		assert.Error(t, err)
		_, err = Inactivity(records, reference, MaxInactivityThreshold+1, 0)
		assert.Error(t, err)

		_, err = Inactivity(records, reference, MinInactivityThreshold, 0)
		assert.NoError(t, err)
		_, err = Inactivity(records, reference, MaxInactivityThreshold, 0)
		assert.NoError(t, err)
	})
}
