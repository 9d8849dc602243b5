package http

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
)

const (
	msgBudgetCreated      = "Budget created successfully"
	msgBudgetCreateFailed = "Failed to create budget"
	msgDashboardFailed    = "Failed to load dashboard data"
	msgBudgetProgress     = "Failed to fetch budget progress"
)

// categoryTotal is the spending of one expense category in the period.
type categoryTotal struct {
	Category core.Category
	Total    core.Money
}

type dashboardView struct {
	Period       forms.Period
	Income       core.Money
	Expense      core.Money
	CashInHand   core.Money
	Transactions int64
	Budget       *core.MonthlyBudget
	Progress     []core.ProgressView
	Summary      *core.DashboardSummary
	Categories   []categoryTotal
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ctx := r.Context()
	p := s.newPage(r, "Dashboard", "dashboard")
	view := &dashboardView{
		Period:  s.ParsePeriodParams(r),
		Income:  core.Zero(),
		Expense: core.Zero(),
	}
	period := view.Period

	// Every card loads independently; a failing card leaves the rest intact.
	var g errgroup.Group
	g.Go(func() error {
		total, err := s.backend.GetTotalIncomeOrExpense(ctx, user.ID, core.TransactionTypeIncome, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Income = total
		return nil
	})
	g.Go(func() error {
		total, err := s.backend.GetTotalIncomeOrExpense(ctx, user.ID, core.TransactionTypeExpense, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Expense = total
		return nil
	})
	g.Go(func() error {
		n, err := s.backend.GetTotalNoOfTransactions(ctx, user.ID, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Transactions = n
		return nil
	})
	g.Go(func() error {
		budget, err := s.backend.GetMonthlyBudget(ctx, user.ID, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Budget = budget
		return nil
	})
	g.Go(func() error {
		progress, err := s.backend.GetBudgetProgress(ctx, user.Email, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgBudgetProgress)
			return nil
		}
		view.Progress = core.ProgressViews(progress)
		return nil
	})
	g.Go(func() error {
		summary, err := s.backend.GetDashboardSummary(ctx, user.Email)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Summary = summary
		return nil
	})
	g.Go(func() error {
		cats, err := s.backend.GetCategories(ctx)
		if err != nil {
			s.listFailed(ctx, p, err, msgDashboardFailed)
			return nil
		}
		view.Categories = s.categoryTotals(ctx, p, user.Email, core.EnabledCategories(cats, core.TransactionTypeExpense), period)
		return nil
	})
	_ = g.Wait()

	if s.sessionEnded(w, r) {
		return
	}
	view.CashInHand = view.Income.Sub(view.Expense)
	p.Data = view
	s.render(w, r, "dashboard", p)
}

// categoryTotals fetches the period total of every category concurrently.
// Categories whose total cannot be fetched show zero.
func (s *Server) categoryTotals(ctx context.Context, p *page, email string, cats []core.Category, period forms.Period) []categoryTotal {
	out := make([]categoryTotal, len(cats))
	var (
		g        errgroup.Group
		failOnce sync.Once
	)
	g.SetLimit(4)
	for i, c := range cats {
		out[i] = categoryTotal{Category: c, Total: core.Zero()}
		g.Go(func() error {
			total, err := s.backend.GetTotalByCategory(ctx, email, c.ID, period.Month, period.Year)
			if err != nil {
				failOnce.Do(func() { s.listFailed(ctx, p, err, msgDashboardFailed) })
				return nil
			}
			out[i].Total = total
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Server) handleCreateMonthlyBudget(w http.ResponseWriter, r *http.Request) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseMonthlyBudget(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgBudgetCreateFailed)
		return
	}
	period := forms.ParsePeriod(r.PostForm, forms.CurrentPeriod(s.userNow(r)))
	req, err := form.ToRequest(currentUser(r).ID, period)
	if err != nil {
		s.mutationFailed(w, r, log.OpCreate, &forms.Error{Message: forms.MsgInvalidAmount, Field: "amount"}, msgBudgetCreateFailed)
		return
	}
	if err := s.backend.CreateMonthlyBudget(r.Context(), req); err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgBudgetCreateFailed)
		return
	}
	s.mutated(w, msgBudgetCreated)
}
