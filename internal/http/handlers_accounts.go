package http

import (
	"net/http"

	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
)

const (
	msgAccountCreated      = "Account created successfully"
	msgAccountUpdated      = "Account updated successfully"
	msgAccountDeleted      = "Account deleted successfully"
	msgAccountFailed       = "Failed to fetch account"
	msgAccountSaveFailed   = "Failed to save account"
	msgAccountDeleteFailed = "Failed to delete account"
)

// accountTypes are the choices of the account type select.
var accountTypes = []core.AccountType{core.AccountCash, core.AccountBank, core.AccountCreditCard}

type accountsView struct {
	Accounts []core.Account
	Total    core.Money
	Types    []core.AccountType
}

type accountForm struct {
	ID    int64
	Form  forms.Account
	Types []core.AccountType
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Accounts", "accounts")
	view := &accountsView{Total: core.Zero(), Types: accountTypes}

	accounts, err := s.backend.GetAccounts(r.Context(), currentUser(r).Email)
	if err != nil {
		s.listFailed(r.Context(), p, err, msgAccountsFailed)
	}
	if s.sessionEnded(w, r) {
		return
	}
	view.Accounts = accounts
	view.Total = core.TotalBalance(accounts)

	p.Data = view
	s.render(w, r, "accounts", p)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	s.saveAccount(w, r, 0)
}

func (s *Server) handleEditAccount(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	account, err := s.backend.GetAccount(r.Context(), id, currentUser(r).Email)
	if err != nil {
		s.mutationFailed(w, r, log.OpRead, err, msgAccountFailed)
		return
	}
	s.execute(w, r, http.StatusOK, "account_form", accountForm{
		ID: id,
		Form: forms.Account{
			Name:    account.AccountName,
			Type:    string(account.AccountType),
			Balance: account.Balance.FormValue(),
		},
		Types: accountTypes,
	})
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	s.saveAccount(w, r, id)
}

// saveAccount creates an account when id is zero and updates it otherwise.
func (s *Server) saveAccount(w http.ResponseWriter, r *http.Request, id int64) {
	op, success := log.OpCreate, msgAccountCreated
	if id != 0 {
		op, success = log.OpUpdate, msgAccountUpdated
	}

	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseAccount(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, op, err, msgAccountSaveFailed)
		return
	}
	req, err := form.ToRequest(currentUser(r).Email)
	if err != nil {
		s.mutationFailed(w, r, op, &forms.Error{Message: forms.MsgInvalidAmount, Field: "balance"}, msgAccountSaveFailed)
		return
	}

	if id == 0 {
		err = s.backend.CreateAccount(r.Context(), req)
	} else {
		err = s.backend.UpdateAccount(r.Context(), id, req)
	}
	if err != nil {
		s.mutationFailed(w, r, op, err, msgAccountSaveFailed)
		return
	}
	s.mutated(w, success)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := s.backend.DeleteAccount(r.Context(), id, currentUser(r).Email); err != nil {
		s.mutationFailed(w, r, log.OpDelete, err, msgAccountDeleteFailed)
		return
	}
	s.mutated(w, msgAccountDeleted)
}
