package report

import "fmt"

// Trend classifies a month-over-month move.
type Trend int

const (
	// TrendNone: no prior period, or the prior value was zero or missing.
	TrendNone Trend = iota
	TrendStable
	TrendIncrease
	TrendDecrease
)

func (t Trend) String() string {
	switch t {
	case TrendIncrease:
		return "increase"
	case TrendDecrease:
		return "decrease"
	case TrendStable:
		return "stable"
	}
	return "none"
}

// deltaThreshold separates stable from flagged moves. A delta of exactly the
// threshold is stable: the comparison is strict.
const deltaThreshold = 0.10

// ClassifyDelta flags the move from prev to curr. prevValid is false for the
// first period column.
func ClassifyDelta(prev float64, prevValid bool, curr float64) Trend {
	if !prevValid || prev == 0 {
		return TrendNone
	}
	delta := (curr - prev) / abs(prev)
	switch {
	case delta > deltaThreshold:
		return TrendIncrease
	case delta < -deltaThreshold:
		return TrendDecrease
	}
	return TrendStable
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// PeriodAggregate is a (segment x period) sum grid. Every declared segment is
// present as a row even with no matching source data, and row order always
// follows the declared segment order, never map iteration order.
type PeriodAggregate struct {
	Segments []string
	Periods  []string
	sums     [][]float64
	segIdx   map[string]int
	perIdx   map[string]int
}

// NewPeriodAggregate builds a zero-filled grid over the declared segments and
// periods.
func NewPeriodAggregate(segments, periods []string) *PeriodAggregate {
	a := &PeriodAggregate{
		Segments: append([]string(nil), segments...),
		Periods:  append([]string(nil), periods...),
		sums:     make([][]float64, len(segments)),
		segIdx:   make(map[string]int, len(segments)),
		perIdx:   make(map[string]int, len(periods)),
	}
	for i, s := range a.Segments {
		a.sums[i] = make([]float64, len(periods))
		a.segIdx[s] = i
	}
	for i, p := range a.Periods {
		a.perIdx[p] = i
	}
	return a
}

// Add accumulates an amount into a (segment, period) cell. Unknown segments
// or periods are ignored: classification upstream decides what belongs here.
func (a *PeriodAggregate) Add(segment, period string, amount float64) {
	si, ok := a.segIdx[segment]
	if !ok {
		return
	}
	pi, ok := a.perIdx[period]
	if !ok {
		return
	}
	a.sums[si][pi] += amount
}

// Sum returns one cell.
func (a *PeriodAggregate) Sum(segment, period string) float64 {
	si, ok := a.segIdx[segment]
	if !ok {
		return 0
	}
	pi, ok := a.perIdx[period]
	if !ok {
		return 0
	}
	return a.sums[si][pi]
}

// Row returns the period sums of one segment, in period order.
func (a *PeriodAggregate) Row(segment string) []float64 {
	si, ok := a.segIdx[segment]
	if !ok {
		return make([]float64, len(a.Periods))
	}
	return append([]float64(nil), a.sums[si]...)
}

// RowTotals sums each segment across all periods, in segment order.
func (a *PeriodAggregate) RowTotals() []float64 {
	totals := make([]float64, len(a.Segments))
	for i := range a.sums {
		for _, v := range a.sums[i] {
			totals[i] += v
		}
	}
	return totals
}

// RangeTotals sums each segment over a contiguous period range [from, to],
// given as period labels. Reversed bounds are swapped.
func (a *PeriodAggregate) RangeTotals(from, to string) ([]float64, error) {
	fi, ok := a.perIdx[from]
	if !ok {
		return nil, fmt.Errorf("unknown period %q", from)
	}
	ti, ok := a.perIdx[to]
	if !ok {
		return nil, fmt.Errorf("unknown period %q", to)
	}
	if fi > ti {
		fi, ti = ti, fi
	}
	totals := make([]float64, len(a.Segments))
	for i := range a.sums {
		for pi := fi; pi <= ti; pi++ {
			totals[i] += a.sums[i][pi]
		}
	}
	return totals, nil
}

// Trends flags every cell against its predecessor period. The first period
// column is always TrendNone.
func (a *PeriodAggregate) Trends() [][]Trend {
	out := make([][]Trend, len(a.Segments))
	for i := range a.sums {
		out[i] = make([]Trend, len(a.Periods))
		for j := range a.sums[i] {
			if j == 0 {
				out[i][j] = TrendNone
				continue
			}
			out[i][j] = ClassifyDelta(a.sums[i][j-1], true, a.sums[i][j])
		}
	}
	return out
}
