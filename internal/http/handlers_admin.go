package http

import (
	"net/http"
	"strconv"

	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/log"
)

const (
	msgOverviewFailed     = "Failed to fetch system overview"
	msgUsersFailed        = "Failed to fetch users"
	msgUserEnabled        = "User enabled successfully"
	msgUserDisabled       = "User disabled successfully"
	msgUserToggleFailed   = "Failed to update user status"
	msgCategoryCreated    = "Category created successfully"
	msgCategoryUpdated    = "Category updated successfully"
	msgCategoryToggled    = "Category status updated successfully"
	msgCategorySaveFailed = "Failed to save category"
	msgCategoryToggleFail = "Failed to update category status"
	msgCategoryNotFound   = "Category not found"
	msgAdminTxFailed      = "Failed to fetch transactions"
)

// pager links the previous and next page of a listing.
type pager struct {
	Params     PageParams
	TotalPages int
	Total      int64
	Prev, Next string
}

func newPager(path string, params PageParams, totalPages int, total int64) pager {
	pg := pager{Params: params, TotalPages: totalPages, Total: total}
	if params.Page > 0 {
		prev := params
		prev.Page--
		pg.Prev = path + "?" + prev.Values(nil).Encode()
	}
	if params.Page+1 < totalPages {
		next := params
		next.Page++
		pg.Next = path + "?" + next.Values(nil).Encode()
	}
	return pg
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Admin dashboard", "admin-dashboard")
	overview, err := s.backend.GetSystemOverview(r.Context())
	if err != nil {
		s.listFailed(r.Context(), p, err, msgOverviewFailed)
	}
	if s.sessionEnded(w, r) {
		return
	}
	if overview == nil {
		overview = &core.SystemOverview{}
	}
	p.Data = overview
	s.render(w, r, "admin_dashboard", p)
}

type adminUsersView struct {
	Users []core.AdminUser
	Pager pager
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Users", "admin-users")
	params := ParsePageParams(r.URL.Query())
	view := &adminUsersView{}

	res, err := s.backend.GetUsers(r.Context(), params.Page, params.Size, params.Search)
	if err != nil {
		s.listFailed(r.Context(), p, err, msgUsersFailed)
		res = &core.Page[core.AdminUser]{}
	}
	if s.sessionEnded(w, r) {
		return
	}
	view.Users = res.Data
	view.Pager = newPager("/admin/users", params, res.TotalPages, res.TotalRecords)

	p.Data = view
	s.render(w, r, "admin_users", p)
}

func (s *Server) handleEnableUser(w http.ResponseWriter, r *http.Request) {
	s.toggleUser(w, r, true)
}

func (s *Server) handleDisableUser(w http.ResponseWriter, r *http.Request) {
	s.toggleUser(w, r, false)
}

func (s *Server) toggleUser(w http.ResponseWriter, r *http.Request, enable bool) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	var err error
	msg := msgUserDisabled
	if enable {
		err = s.backend.EnableUser(r.Context(), id)
		msg = msgUserEnabled
	} else {
		err = s.backend.DisableUser(r.Context(), id)
	}
	if err != nil {
		s.mutationFailed(w, r, log.OpToggle, err, msgUserToggleFailed)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "User status changed",
		log.FieldOperation, log.OpToggle,
		"target_user_id", id,
		"enabled", enable)
	NewHTMXResponse().
		TriggerPageRefresh().
		TriggerSuccessNotification(msg).
		Write(w)
}

type adminTransactionsView struct {
	Transactions []core.AdminTransaction
	Pager        pager
}

func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "All transactions", "admin-transactions")
	params := ParsePageParams(r.URL.Query())

	res, err := s.backend.GetAllTransactions(r.Context(), params.Page, params.Size, params.Search)
	if err != nil {
		s.listFailed(r.Context(), p, err, msgAdminTxFailed)
		res = &core.Page[core.AdminTransaction]{}
	}
	if s.sessionEnded(w, r) {
		return
	}
	p.Data = &adminTransactionsView{
		Transactions: res.Data,
		Pager:        newPager("/admin/transactions", params, res.TotalPages, res.TotalRecords),
	}
	s.render(w, r, "admin_transactions", p)
}

type categoryForm struct {
	ID   int64
	Form forms.Category
}

type adminCategoriesView struct {
	Categories []core.Category
	New        categoryForm
}

func (s *Server) handleAdminCategories(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Categories", "admin-categories")
	cats, err := s.backend.GetCategories(r.Context())
	if err != nil {
		s.listFailed(r.Context(), p, err, msgCategoriesFailed)
	}
	if s.sessionEnded(w, r) {
		return
	}
	p.Data = &adminCategoriesView{
		Categories: cats,
		New:        categoryForm{Form: forms.Category{TypeID: strconv.Itoa(core.TransactionTypeExpense)}},
	}
	s.render(w, r, "admin_categories", p)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	s.saveCategory(w, r, 0)
}

// handleEditCategory finds the category in the full list; the backend has
// no single-category read.
func (s *Server) handleEditCategory(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	cats, err := s.backend.GetCategories(r.Context())
	if err != nil {
		s.mutationFailed(w, r, log.OpRead, err, msgCategoriesFailed)
		return
	}
	for _, c := range cats {
		if c.ID == id {
			s.execute(w, r, http.StatusOK, "category_form", categoryForm{
				ID:   id,
				Form: forms.Category{Name: c.Name, TypeID: strconv.Itoa(c.TransactionType.ID)},
			})
			return
		}
	}
	NotFoundError(msgCategoryNotFound).TriggerErrorNotification(msgCategoryNotFound).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	s.saveCategory(w, r, id)
}

func (s *Server) saveCategory(w http.ResponseWriter, r *http.Request, id int64) {
	op, success := log.OpCreate, msgCategoryCreated
	if id != 0 {
		op, success = log.OpUpdate, msgCategoryUpdated
	}
	if errResp := ParseFormOrFail(r); errResp != nil {
		errResp.Write(w)
		return
	}
	form, err := forms.ParseCategory(r.PostForm)
	if err != nil {
		s.mutationFailed(w, r, op, err, msgCategorySaveFailed)
		return
	}
	if id == 0 {
		err = s.backend.CreateCategory(r.Context(), form.ToRequest())
	} else {
		err = s.backend.UpdateCategory(r.Context(), id, form.ToRequest())
	}
	if err != nil {
		s.mutationFailed(w, r, op, err, msgCategorySaveFailed)
		return
	}
	s.mutated(w, success)
}

func (s *Server) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	id, errResp := PathID(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	if err := s.backend.ToggleCategory(r.Context(), id); err != nil {
		s.mutationFailed(w, r, log.OpToggle, err, msgCategoryToggleFail)
		return
	}
	NewHTMXResponse().
		TriggerPageRefresh().
		TriggerSuccessNotification(msgCategoryToggled).
		Write(w)
}
