package http

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"

	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
	"expensia/internal/services"
)

const (
	msgSavedCreated       = "Saved transaction created successfully"
	msgSavedUpdated       = "Saved transaction updated successfully"
	msgSavedDeleted       = "Saved transaction deleted successfully"
	msgSavedSkipped       = "Transaction skipped"
	msgSavedFailed        = "Failed to fetch saved transactions"
	msgSavedFetchFailed   = "Failed to fetch saved transaction"
	msgSavedSaveFailed    = "Failed to save transaction"
	msgSavedDeleteFailed  = "Failed to delete saved transaction"
	msgSavedConfirmFailed = "Failed to add transaction"
	msgSavedSkipFailed    = "Failed to skip transaction"
)

type savedView struct {
	Due []services.SavedTransactionView
	All []services.SavedTransactionView
	New savedForm
}

type savedForm struct {
	ID          int64
	Form        forms.SavedTransaction
	Categories  []core.Category
	Accounts    []core.Account
	Frequencies []string
	// Preview lists the next occurrences of the template being edited.
	Preview     []core.Date
}

func (s *Server) handleSavedTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r).ID
	p := s.newPage(r, "Saved transactions", "saved")
	view := &savedView{
		New: savedForm{
			Form:        forms.SavedTransaction{UpcomingDate: core.DateOf(p.Now).String(), Frequency: core.FrequencyOptions[0]},
			Frequencies: core.FrequencyOptions,
		},
	}

	var g errgroup.Group
	g.Go(func() error {
		due, err := s.backend.GetDueSavedTransactions(ctx, userID)
		if err != nil {
			s.listFailed(ctx, p, err, msgSavedFailed)
			return nil
		}
		view.Due = services.BuildSavedTransactionViews(due, p.Now)
		return nil
	})
	g.Go(func() error {
		all, err := s.backend.GetSavedTransactions(ctx, userID)
		if err != nil {
			s.listFailed(ctx, p, err, msgSavedFailed)
			return nil
		}
		view.All = services.BuildSavedTransactionViews(all, p.Now)
		return nil
	})
	g.Go(func() error {
		view.New.Categories, view.New.Accounts = s.selectors(r, p, 0)
		return nil
	})
	_ = g.Wait()

	if s.sessionEnded(w, r) {
		return
	}
	p.Data = view
	s.render(w, r, "saved_transactions", p)
}

func (s *Server) handleCreateSaved(w http.ResponseWriter, r *http.Request) {
	s.saveSaved(w, r, 0)
}

func (s *Server) handleEditSaved(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	p := s.newPage(r, "Edit saved transaction", "saved")

	var (
		g    errgroup.Group
		st   *core.SavedTransaction
		fErr error
		view = savedForm{ID: id, Frequencies: core.FrequencyOptions}
	)
	g.Go(func() error {
		st, fErr = s.backend.GetSavedTransaction(r.Context(), id)
		return nil
	})
	g.Go(func() error {
		view.Categories, view.Accounts = s.selectors(r, p, 0)
		return nil
	})
	_ = g.Wait()

	if fErr != nil {
		s.mutationFailed(w, r, log.OpRead, fErr, msgSavedFetchFailed)
		return
	}
	view.Form = forms.SavedTransactionFromCore(*st)
	view.Preview = services.UpcomingOccurrences(*st, 3)
	s.execute(w, r, http.StatusOK, "saved_form", view)
}

func (s *Server) handleUpdateSaved(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	s.saveSaved(w, r, id)
}

func (s *Server) saveSaved(w http.ResponseWriter, r *http.Request, id int64) {
	op, success := log.OpCreate, msgSavedCreated
	if id != 0 {
		op, success = log.OpUpdate, msgSavedUpdated
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseSavedTransaction(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, op, err, msgSavedSaveFailed)
		return
	}
	req, err := form.ToRequest(currentUser(r).ID)
	if err != nil {
		s.mutationFailed(w, r, op, &forms.Error{Message: forms.MsgSelectFrequency, Field: "frequency"}, msgSavedSaveFailed)
		return
	}

	if id == 0 {
		err = s.backend.CreateSavedTransaction(r.Context(), req)
	} else {
		err = s.backend.UpdateSavedTransaction(r.Context(), id, req)
	}
	if err != nil {
		s.mutationFailed(w, r, op, err, msgSavedSaveFailed)
		return
	}
	s.mutated(w, success)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	s.savedAction(w, r, log.OpDelete, s.backend.DeleteSavedTransaction, msgSavedDeleted, msgSavedDeleteFailed)
}

func (s *Server) handleConfirmSaved(w http.ResponseWriter, r *http.Request) {
	s.savedAction(w, r, log.OpConfirm, s.backend.ConfirmSavedTransaction, msgTransactionAdded, msgSavedConfirmFailed)
}

func (s *Server) handleSkipSaved(w http.ResponseWriter, r *http.Request) {
	s.savedAction(w, r, log.OpSkip, s.backend.SkipSavedTransaction, msgSavedSkipped, msgSavedSkipFailed)
}

// savedAction runs a single-id backend call and refreshes both lists on
// success.
func (s *Server) savedAction(w http.ResponseWriter, r *http.Request, op string, call func(context.Context, int64) error, success, fallback string) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := call(r.Context(), id); err != nil {
		s.mutationFailed(w, r, op, err, fallback)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Saved transaction action",
		log.FieldOperation, op,
		"saved_id", id)
	s.mutated(w, success)
}
