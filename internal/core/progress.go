package core

import "github.com/shopspring/decimal"

// ProgressLevel buckets budget usage for display.
type ProgressLevel string

const (
	ProgressOK      ProgressLevel = "ok"
	ProgressWarning ProgressLevel = "warning"
	ProgressOver    ProgressLevel = "over"
)

var (
	capPercent     = decimal.NewFromInt(100)
	warningPercent = decimal.NewFromInt(90)
)

// BudgetPercent returns min(spent/budgeted*100, 100), rounded to one decimal.
// It is 0 when nothing was budgeted and never negative.
func BudgetPercent(spent, budgeted Money) decimal.Decimal {
	if !budgeted.IsPositive() {
		return decimal.Zero
	}
	pct := spent.Decimal.Div(budgeted.Decimal).Mul(hundred)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(capPercent) {
		return capPercent
	}
	return pct.Round(1)
}

// Level classifies a percentage: over at 100, warning from 90.
func Level(pct decimal.Decimal) ProgressLevel {
	switch {
	case pct.GreaterThanOrEqual(capPercent):
		return ProgressOver
	case pct.GreaterThanOrEqual(warningPercent):
		return ProgressWarning
	default:
		return ProgressOK
	}
}

// ProgressView is a budget progress row with its derived display values.
type ProgressView struct {
	BudgetProgress
	Percent   decimal.Decimal
	Remaining Money
	Level     ProgressLevel
}

// NewProgressView derives the display values for p. The percentage is
// recomputed locally rather than trusted from the backend.
func NewProgressView(p BudgetProgress) ProgressView {
	pct := BudgetPercent(p.CurrentSpending, p.BudgetedAmount)
	return ProgressView{
		BudgetProgress: p,
		Percent:        pct,
		Remaining:      p.BudgetedAmount.Sub(p.CurrentSpending),
		Level:          Level(pct),
	}
}

// ProgressViews maps NewProgressView over ps.
func ProgressViews(ps []BudgetProgress) []ProgressView {
	out := make([]ProgressView, 0, len(ps))
	for _, p := range ps {
		out = append(out, NewProgressView(p))
	}
	return out
}
