package http

import (
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"expensia/internal/api"
	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
)

const (
	msgTransactionAdded        = "Transaction added successfully"
	msgTransactionUpdated      = "Transaction updated successfully"
	msgTransactionDeleted      = "Transaction deleted successfully"
	msgTransactionsFailed      = "Failed to fetch transactions"
	msgTransactionFailed       = "Failed to fetch transaction"
	msgTransactionSaveFailed   = "Failed to save transaction"
	msgTransactionDeleteFailed = "Failed to delete transaction"
	msgCategoriesFailed        = "Failed to fetch categories"
	msgAccountsFailed          = "Failed to fetch accounts"
)

// transactionForm is the data every transaction form shares: the selector
// options and, when editing, the current values.
type transactionForm struct {
	ID         int64
	Form       forms.Transaction
	Categories []core.Category
	Accounts   []core.Account
}

type transactionsView struct {
	Params     PageParams
	Type       string
	Groups     []core.DateGroup
	TotalPages int
	Total      int64
	Prev, Next string
	New        transactionForm
}

// transactionTypeFilter keeps only the filters the backend understands.
func transactionTypeFilter(v string) string {
	switch v {
	case core.TypeNameIncome, core.TypeNameExpense:
		return v
	}
	return ""
}

// selectors loads the category and account options of a transaction form.
func (s *Server) selectors(r *http.Request, p *page, typeID int) ([]core.Category, []core.Account) {
	ctx := r.Context()
	user := currentUser(r)

	var (
		g        errgroup.Group
		cats     []core.Category
		accounts []core.Account
	)
	g.Go(func() error {
		all, err := s.backend.GetCategories(ctx)
		if err != nil {
			s.listFailed(ctx, p, err, msgCategoriesFailed)
			return nil
		}
		cats = core.EnabledCategories(all, typeID)
		return nil
	})
	g.Go(func() error {
		list, err := s.backend.GetAccounts(ctx, user.Email)
		if err != nil {
			s.listFailed(ctx, p, err, msgAccountsFailed)
			return nil
		}
		accounts = list
		return nil
	})
	_ = g.Wait()
	return cats, accounts
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)
	p := s.newPage(r, "Transactions", "transactions")

	params := ParsePageParams(r.URL.Query())
	view := &transactionsView{
		Params: params,
		Type:   transactionTypeFilter(r.URL.Query().Get("type")),
		New: transactionForm{
			Form: forms.Transaction{Date: core.DateOf(p.Now).String()},
		},
	}

	var g errgroup.Group
	g.Go(func() error {
		res, err := s.backend.GetTransactionsByUser(ctx, api.TransactionQuery{
			Email:           user.Email,
			PageNumber:      params.Page,
			PageSize:        params.Size,
			SearchKey:       params.Search,
			SortField:       "date",
			SortDirection:   "desc",
			TransactionType: view.Type,
		})
		if err != nil {
			s.listFailed(ctx, p, err, msgTransactionsFailed)
			return nil
		}
		view.Groups = core.GroupByRelativeDate(res.Data, p.Now)
		view.TotalPages = res.TotalPages
		view.Total = res.TotalRecords
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

	extra := url.Values{}
	if view.Type != "" {
		extra.Set("type", view.Type)
	}
	if params.Page > 0 {
		prev := params
		prev.Page--
		view.Prev = "/transactions?" + prev.Values(extra).Encode()
	}
	if params.Page+1 < view.TotalPages {
		next := params
		next.Page++
		view.Next = "/transactions?" + next.Values(extra).Encode()
	}

	p.Data = view
	s.render(w, r, "transactions", p)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := s.transactionRequest(w, r, log.OpCreate)
	if !ok {
		return
	}
	if err := s.backend.CreateTransaction(r.Context(), req); err != nil {
		s.mutationFailed(w, r, log.OpCreate, err, msgTransactionSaveFailed)
		return
	}
	s.mutated(w, msgTransactionAdded)
}

// transactionRequest parses and converts the submitted form, answering the
// request itself when the form is invalid.
func (s *Server) transactionRequest(w http.ResponseWriter, r *http.Request, op string) (api.TransactionRequest, bool) {
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return api.TransactionRequest{}, false
	}
	form, err := forms.ParseTransaction(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, op, err, msgTransactionSaveFailed)
		return api.TransactionRequest{}, false
	}
	req, err := form.ToRequest(currentUser(r).Email)
	if err != nil {
		s.mutationFailed(w, r, op, &forms.Error{Message: forms.MsgInvalidAmount, Field: "amount"}, msgTransactionSaveFailed)
		return api.TransactionRequest{}, false
	}
	return req, true
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	p := s.newPage(r, "Edit transaction", "transactions")

	var (
		g    errgroup.Group
		tx   *core.Transaction
		fErr error
		view = transactionForm{ID: id}
	)
	g.Go(func() error {
		tx, fErr = s.backend.GetTransaction(r.Context(), id)
		return nil
	})
	g.Go(func() error {
		view.Categories, view.Accounts = s.selectors(r, p, 0)
		return nil
	})
	_ = g.Wait()

	if fErr != nil {
		s.mutationFailed(w, r, log.OpRead, fErr, msgTransactionFailed)
		return
	}
	view.Form = forms.TransactionFromCore(*tx)
	s.execute(w, r, http.StatusOK, "transaction_form", view)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	req, ok := s.transactionRequest(w, r, log.OpUpdate)
	if !ok {
		return
	}
	if err := s.backend.UpdateTransaction(r.Context(), id, req); err != nil {
		s.mutationFailed(w, r, log.OpUpdate, err, msgTransactionSaveFailed)
		return
	}
	s.mutated(w, msgTransactionUpdated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := s.backend.DeleteTransaction(r.Context(), id); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err, msgTransactionDeleteFailed)
		return
	}
	s.mutated(w, msgTransactionDeleted)
}
