package http

import (
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"expensia/internal/api"
	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
)

const (
	msgCategoryBudgetCreated      = "Budget created successfully"
	msgCategoryBudgetUpdated      = "Budget updated successfully"
	msgCategoryBudgetDeleted      = "Budget deleted successfully"
	msgCategoryBudgetsFailed      = "Failed to fetch budgets"
	msgCategoryBudgetSaveFailed   = "Failed to save budget"
	msgCategoryBudgetDeleteFailed = "Failed to delete budget"
	msgCategoryBudgetNotFound     = "Budget not found"
)

type budgetsView struct {
	Period     forms.Period
	Budgets    []core.CategoryBudget
	Progress   []core.ProgressView
	Categories []core.Category
}

type budgetForm struct {
	ID         int64
	Form       forms.CategoryBudget
	Categories []core.Category
}

// expenseCategories lists the enabled expense categories a budget can target.
func (s *Server) expenseCategories(r *http.Request, p *page) []core.Category {
	cats, err := s.backend.GetCategories(r.Context())
	if err != nil {
		s.listFailed(r.Context(), p, err, msgCategoriesFailed)
		return nil
	}
	return core.EnabledCategories(cats, core.TransactionTypeExpense)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := currentUser(r).Email
	p := s.newPage(r, "Budgets", "budgets")
	view := &budgetsView{Period: s.ParsePeriodParams(r)}
	period := view.Period

	var g errgroup.Group
	g.Go(func() error {
		budgets, err := s.backend.GetCategoryBudgets(ctx, email, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgCategoryBudgetsFailed)
			return nil
		}
		view.Budgets = budgets
		return nil
	})
	g.Go(func() error {
		progress, err := s.backend.GetBudgetProgress(ctx, email, period.Month, period.Year)
		if err != nil {
			s.listFailed(ctx, p, err, msgBudgetProgress)
			return nil
		}
		view.Progress = core.ProgressViews(progress)
		return nil
	})
	g.Go(func() error {
		view.Categories = s.expenseCategories(r, p)
		return nil
	})
	_ = g.Wait()

	if s.sessionEnded(w, r) {
		return
	}
	p.Data = view
	s.render(w, r, "budgets", p)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	s.saveBudget(w, r, 0)
}

// handleEditBudget looks the budget up in its month's list, as the backend
// has no single-budget read.
func (s *Server) handleEditBudget(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	period := s.ParsePeriodParams(r)
	p := s.newPage(r, "Edit budget", "budgets")

	var (
		g       errgroup.Group
		budgets []core.CategoryBudget
		fErr    error
		view    = budgetForm{ID: id}
	)
	g.Go(func() error {
		budgets, fErr = s.backend.GetCategoryBudgets(r.Context(), currentUser(r).Email, period.Month, period.Year)
		return nil
	})
	g.Go(func() error {
		view.Categories = s.expenseCategories(r, p)
		return nil
	})
	_ = g.Wait()

	if fErr != nil {
		s.mutationFailed(w, r, log.OpRead, fErr, msgCategoryBudgetsFailed)
		return
	}
	for _, b := range budgets {
		if b.ID != id {
			continue
		}
		view.Form = forms.CategoryBudget{
			CategoryID: strconv.FormatInt(b.CategoryID, 10),
			Amount:     b.Amount.FormValue(),
			Month:      strconv.Itoa(b.Month),
			Year:       strconv.Itoa(b.Year),
		}
		s.execute(w, r, http.StatusOK, "budget_form", view)
		return
	}
	NotFoundError(msgCategoryBudgetNotFound).TriggerErrorNotification(msgCategoryBudgetNotFound).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	s.saveBudget(w, r, id)
}

func (s *Server) saveBudget(w http.ResponseWriter, r *http.Request, id int64) {
	op, success := log.OpCreate, msgCategoryBudgetCreated
	if id != 0 {
		op, success = log.OpUpdate, msgCategoryBudgetUpdated
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseCategoryBudget(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, op, err, msgCategoryBudgetSaveFailed)
		return
	}
	var req api.CategoryBudgetRequest
	if req, err = form.ToRequest(currentUser(r).Email); err != nil {
		s.mutationFailed(w, r, op, &forms.Error{Message: forms.MsgInvalidAmount, Field: "amount"}, msgCategoryBudgetSaveFailed)
		return
	}

	if id == 0 {
		err = s.backend.CreateCategoryBudget(r.Context(), req)
	} else {
		err = s.backend.UpdateCategoryBudget(r.Context(), id, req)
	}
	if err != nil {
		s.mutationFailed(w, r, op, err, msgCategoryBudgetSaveFailed)
		return
	}
	s.mutated(w, success)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := s.backend.DeleteCategoryBudget(r.Context(), id, currentUser(r).Email); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err, msgCategoryBudgetDeleteFailed)
		return
	}
	s.mutated(w, msgCategoryBudgetDeleted)
}
