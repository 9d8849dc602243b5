package http

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"

	"golang.org/x/sync/errgroup"

	"expensia/internal/core"
	"expensia/internal/forms"
)

const (
	msgSummaryFailed   = "Failed to fetch monthly summary"
	msgBreakdownFailed = "Failed to fetch category breakdown"

	summaryMonths = 12
)

type summaryRow struct {
	Label string
	core.MonthlySummary
}

type statisticsView struct {
	Period    forms.Period
	Summary   []summaryRow
	Breakdown []core.CategoryExpense
	Total     core.Money
}

// lastMonths orders the summary chronologically and keeps the latest n
// months, each labelled "Mon YYYY".
func lastMonths(items []core.MonthlySummary, n int) []summaryRow {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b core.MonthlySummary) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Month, b.Month)
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	out := make([]summaryRow, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, summaryRow{
			Label:          fmt.Sprintf("%s %d", core.ShortMonthName(m.Month), m.Year),
			MonthlySummary: m,
		})
	}
	return out
}

// positiveExpenses drops categories without spending.
func positiveExpenses(items []core.CategoryExpense) []core.CategoryExpense {
	out := make([]core.CategoryExpense, 0, len(items))
	for _, it := range items {
		if it.TotalAmount.IsPositive() {
			out = append(out, it)
		}
	}
	return out
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := currentUser(r).Email
	p := s.newPage(r, "Statistics", "statistics")
	view := &statisticsView{Period: s.ParsePeriodParams(r), Total: core.Zero()}
	period := view.Period

	var g errgroup.Group
	g.Go(func() error {
		summary, err := s.backend.GetMonthlySummary(ctx, email)
		if err != nil {
			s.listFailed(ctx, p, err, msgSummaryFailed)
			return nil
		}
		view.Summary = lastMonths(summary, summaryMonths)
		return nil
	})
	g.Go(func() error {
		breakdown, err := s.backend.GetCategoryExpenseBreakdown(ctx, email, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgBreakdownFailed)
			return nil
		}
		view.Breakdown = positiveExpenses(breakdown)
		for _, b := range view.Breakdown {
			view.Total = view.Total.Add(b.TotalAmount)
		}
		return nil
	})
	_ = g.Wait()

	if s.sessionEnded(w, r) {
		return
	}
	p.Data = view
	s.render(w, r, "statistics", p)
}
