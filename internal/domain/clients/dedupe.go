// Package clients collapses transaction rows into unique client records and
// computes activity windows from last-visit timestamps.
package clients

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NormalizeKey builds the client uniqueness key: trimmed, uppercased
// "LASTNAME FIRSTNAME".
func NormalizeKey(lastName, firstName string) string {
	return strings.ToUpper(strings.TrimSpace(lastName)) + " " + strings.ToUpper(strings.TrimSpace(firstName))
}

// TxRow is one transaction attributed to a client key.
type TxRow struct {
	Key         string
	Timestamp   time.Time
	Salesperson string
	// Index is the source row position; it makes the equal-timestamp
	// tie-break ("last seen in input order wins") observable in tests.
	Index int
}

// Record is the collapsed view of one client: the most recent transaction's
// timestamp and originating salesperson.
type Record struct {
	Key          string
	LastSeen     time.Time
	Salesperson  string
	Transactions int
}

// DedupeLatest reduces rows to one record per key via last-write-wins over a
// stable ascending sort by timestamp: equal timestamps resolve to the row
// seen later in input order, which decides which salesperson gets credited.
// Output preserves first-seen key order.
func DedupeLatest(rows []TxRow) []Record {
	sorted := append([]TxRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	latest := make(map[string]TxRow, len(sorted))
	counts := make(map[string]int, len(sorted))
	for _, r := range sorted {
		latest[r.Key] = r
		counts[r.Key]++
	}

	var keyOrder []string
	seen := make(map[string]struct{}, len(latest))
	for _, r := range rows {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		keyOrder = append(keyOrder, r.Key)
	}

	out := make([]Record, 0, len(keyOrder))
	for _, k := range keyOrder {
		r := latest[k]
		out = append(out, Record{
			Key:          k,
			LastSeen:     r.Timestamp,
			Salesperson:  r.Salesperson,
			Transactions: counts[k],
		})
	}
	return out
}

// Inactivity threshold bounds; the threshold is caller-supplied, never a
// hard-coded constant.
const (
	MinInactivityThreshold     = 7
	MaxInactivityThreshold     = 180
	DefaultInactivityThreshold = 30
)

// InactivityReport splits clients by activity. Clients whose last-seen date
// could not be parsed are neither active nor inactive; they are counted
// separately for auditability.
type InactivityReport struct {
	Active      []Record
	Inactive    []Record
	Unparseable int
	Threshold   int
}

// Inactivity classifies records against a reference date. A client is
// inactive when strictly more than threshold days have passed since the last
// visit. The unparseable count must be provided by the caller that built the
// records (rows it failed to timestamp).
func Inactivity(records []Record, reference time.Time, threshold int, unparseable int) (*InactivityReport, error) {
	if threshold < MinInactivityThreshold || threshold > MaxInactivityThreshold {
		return nil, fmt.Errorf("inactivity threshold %d outside allowed range [%d, %d]",
			threshold, MinInactivityThreshold, MaxInactivityThreshold)
	}
	rep := &InactivityReport{Threshold: threshold, Unparseable: unparseable}
	for _, r := range records {
		days := int(reference.Sub(r.LastSeen).Hours() / 24)
		if days > threshold {
			rep.Inactive = append(rep.Inactive, r)
		} else {
			rep.Active = append(rep.Active, r)
		}
	}
	return rep, nil
}
