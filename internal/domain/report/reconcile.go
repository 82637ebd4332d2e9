package report

import "fmt"

// DefaultTolerance is one unit of currency, matching the accounting rule that
// a dirham of rounding drift is noise, not an anomaly.
const DefaultTolerance = 1.0

// Reconciliation compares a computed group-total sum against the total the
// source file itself declares.
type Reconciliation struct {
	Computed  float64
	Declared  float64
	Tolerance float64
}

// Diff is computed minus declared.
func (r Reconciliation) Diff() float64 { return r.Computed - r.Declared }

// Mismatch reports whether the discrepancy exceeds the tolerance.
func (r Reconciliation) Mismatch() bool {
	tol := r.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	return abs(r.Diff()) > tol
}

// MismatchWarning is the user-visible downgrade of a reconciliation failure.
// It implements error for logging convenience but never blocks the report.
type MismatchWarning struct {
	Reconciliation
}

func (w *MismatchWarning) Error() string {
	return fmt.Sprintf("computed total %.2f differs from declared total %.2f by %.2f (tolerance %.2f)",
		w.Computed, w.Declared, w.Diff(), w.Tolerance)
}

// Check returns a MismatchWarning when the reconciliation fails, else nil.
func (r Reconciliation) Check() *MismatchWarning {
	if r.Mismatch() {
		return &MismatchWarning{Reconciliation: r}
	}
	return nil
}
