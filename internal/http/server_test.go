package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensia/internal/api"
	"expensia/internal/core"
	"expensia/internal/forms"
	"expensia/internal/guard"
	"expensia/internal/log"
	"expensia/internal/session"
	"expensia/internal/verify"
)

const cookieName = "expensia_session"

var (
	testNow = time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	regularUser = &core.User{ID: 7, Username: "ann", Email: "ann@example.com", Roles: []string{core.RoleUser}}
	tokyoUser   = &core.User{ID: 8, Username: "kei", Email: "kei@example.com", Roles: []string{core.RoleUser}, Timezone: "Asia/Tokyo"}
	adminUser   = &core.User{ID: 1, Username: "root", Email: "root@example.com", Roles: []string{core.RoleUser, core.RoleAdmin}}
)

// fakeBackend implements the calls a test needs; any other call panics
// through the nil embedded interface.
type fakeBackend struct {
	Backend

	transactions   func(q api.TransactionQuery) (*core.Page[core.Transaction], error)
	createTx       func(req api.TransactionRequest) error
	deleteAccount  func(id int64) error
	totals         map[int]core.Money
	resend         func(email string) error
	verifyEmail    func(code string) error
	createdTxCount int

	// unauthorized stands in for the client's 401 hook.
	unauthorized api.UnauthorizedHook

	due, saved    []core.SavedTransaction
	savedErr      error
	progress      []core.BudgetProgress
	budgets       []core.CategoryBudget
	summary       []core.MonthlySummary
	breakdown     []core.CategoryExpense
	profileImage  string
	mutationErr   error
	createdBudget *api.CategoryBudgetRequest
	prefs         *core.Preferences
	password      string
	upload        *uploadedImage

	mu            sync.Mutex
	calls         []string
	budgetPeriods [][2]int
}

type uploadedImage struct {
	fileName    string
	contentType string
	size        int
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// settle mirrors the api client: a 401 runs the hook before the error is
// returned.
func (f *fakeBackend) settle(ctx context.Context, err error) error {
	if errors.Is(err, api.ErrUnauthorized) && f.unauthorized != nil {
		f.unauthorized(ctx)
	}
	return err
}

func (f *fakeBackend) GetTransactionsByUser(ctx context.Context, q api.TransactionQuery) (*core.Page[core.Transaction], error) {
	page, err := f.transactions(q)
	return page, f.settle(ctx, err)
}

func (f *fakeBackend) GetDueSavedTransactions(ctx context.Context, _ int64) ([]core.SavedTransaction, error) {
	return f.due, f.settle(ctx, f.savedErr)
}

func (f *fakeBackend) GetSavedTransactions(ctx context.Context, _ int64) ([]core.SavedTransaction, error) {
	return f.saved, f.settle(ctx, f.savedErr)
}

func (f *fakeBackend) ConfirmSavedTransaction(_ context.Context, id int64) error {
	f.record("confirm:" + strconv.FormatInt(id, 10))
	return f.mutationErr
}

func (f *fakeBackend) SkipSavedTransaction(_ context.Context, id int64) error {
	f.record("skip:" + strconv.FormatInt(id, 10))
	return f.mutationErr
}

func (f *fakeBackend) CreateCategoryBudget(_ context.Context, req api.CategoryBudgetRequest) error {
	f.createdBudget = &req
	return f.mutationErr
}

func (f *fakeBackend) GetCategoryBudgets(_ context.Context, _ string, month, year int) ([]core.CategoryBudget, error) {
	f.mu.Lock()
	f.budgetPeriods = append(f.budgetPeriods, [2]int{month, year})
	f.mu.Unlock()
	return f.budgets, nil
}

func (f *fakeBackend) GetMonthlySummary(context.Context, string) ([]core.MonthlySummary, error) {
	return f.summary, nil
}

func (f *fakeBackend) GetCategoryExpenseBreakdown(context.Context, string, int, int) ([]core.CategoryExpense, error) {
	return f.breakdown, nil
}

func (f *fakeBackend) EnableUser(_ context.Context, id int64) error {
	f.record("enable:" + strconv.FormatInt(id, 10))
	return f.mutationErr
}

func (f *fakeBackend) DisableUser(_ context.Context, id int64) error {
	f.record("disable:" + strconv.FormatInt(id, 10))
	return f.mutationErr
}

func (f *fakeBackend) UpdatePreferences(_ context.Context, prefs core.Preferences) error {
	f.prefs = &prefs
	return f.mutationErr
}

func (f *fakeBackend) ChangePassword(_ context.Context, _, password string) error {
	f.password = password
	return f.mutationErr
}

func (f *fakeBackend) UploadProfileImage(_ context.Context, _, fileName, contentType string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.upload = &uploadedImage{fileName: fileName, contentType: contentType, size: len(data)}
	return f.mutationErr
}

func (f *fakeBackend) GetProfileImage(context.Context, string) (string, error) {
	if f.profileImage == "" {
		return "", &api.APIError{Status: http.StatusNotFound}
	}
	return f.profileImage, nil
}

func (f *fakeBackend) CreateTransaction(_ context.Context, req api.TransactionRequest) error {
	f.createdTxCount++
	return f.createTx(req)
}

func (f *fakeBackend) DeleteAccount(_ context.Context, id int64, _ string) error {
	return f.deleteAccount(id)
}

func (f *fakeBackend) GetCategories(context.Context) ([]core.Category, error) {
	return []core.Category{
		{ID: 1, Name: "Food", Enabled: true, TransactionType: core.TransactionType{ID: core.TransactionTypeExpense, Name: core.TypeNameExpense}},
		{ID: 2, Name: "Salary", Enabled: true, TransactionType: core.TransactionType{ID: core.TransactionTypeIncome, Name: core.TypeNameIncome}},
		{ID: 3, Name: "Old", Enabled: false, TransactionType: core.TransactionType{ID: core.TransactionTypeExpense, Name: core.TypeNameExpense}},
	}, nil
}

func (f *fakeBackend) GetAccounts(context.Context, string) ([]core.Account, error) {
	return []core.Account{{ID: 4, AccountName: "Wallet", AccountType: core.AccountCash, Balance: core.NewMoney(20)}}, nil
}

func (f *fakeBackend) GetTotalIncomeOrExpense(_ context.Context, _ int64, typeID, _, _ int) (core.Money, error) {
	return f.totals[typeID], nil
}

func (f *fakeBackend) GetTotalNoOfTransactions(context.Context, int64, int, int) (int64, error) {
	return 3, nil
}

func (f *fakeBackend) GetTotalByCategory(context.Context, string, int64, int, int) (core.Money, error) {
	return core.NewMoney(12.5), nil
}

func (f *fakeBackend) GetMonthlyBudget(context.Context, int64, int, int) (*core.MonthlyBudget, error) {
	return nil, &api.APIError{Status: http.StatusNotFound, Message: "No budget"}
}

func (f *fakeBackend) GetBudgetProgress(context.Context, string, int, int) ([]core.BudgetProgress, error) {
	return f.progress, nil
}

func (f *fakeBackend) GetDashboardSummary(context.Context, string) (*core.DashboardSummary, error) {
	return &core.DashboardSummary{ConsolidatedBalance: core.NewMoney(20)}, nil
}

func (f *fakeBackend) ResendVerificationCode(_ context.Context, email string) error {
	return f.resend(email)
}

func (f *fakeBackend) VerifyEmail(_ context.Context, code string) error {
	return f.verifyEmail(code)
}

type fakeSessions struct {
	states     map[string]*session.State
	login      func(email, password string) (*session.LoginResult, error)
	oauthLogin func(token, email string) (*session.LoginResult, error)
	oauthCalls int
	logout     []string
	updates    []core.User
	updateErr  error
}

func (f *fakeSessions) Restore(_ context.Context, id string) (*session.State, error) {
	if st, ok := f.states[id]; ok {
		return st, nil
	}
	return &session.State{}, nil
}

func (f *fakeSessions) Login(_ context.Context, email, password string) (*session.LoginResult, error) {
	return f.login(email, password)
}

func (f *fakeSessions) OAuthLogin(_ context.Context, token, email string) (*session.LoginResult, error) {
	f.oauthCalls++
	return f.oauthLogin(token, email)
}

func (f *fakeSessions) Logout(_ context.Context, id string) (string, string) {
	f.logout = append(f.logout, id)
	return guard.LoginPath, session.MsgLoggedOut
}

func (f *fakeSessions) RefreshPreferences(context.Context, string) *core.User { return nil }

func (f *fakeSessions) UpdateUser(_ context.Context, _ string, patch core.User) (*core.User, error) {
	f.updates = append(f.updates, patch)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &patch, nil
}

func newTestServer(t *testing.T, backend *fakeBackend, checks map[string]ReadinessCheck) (*Server, *fakeSessions) {
	t.Helper()
	sessions := &fakeSessions{states: map[string]*session.State{
		"user-sid":    {ID: "user-sid", Token: "tok-user", User: regularUser},
		"admin-sid":   {ID: "admin-sid", Token: "tok-admin", User: adminUser},
		"loading-sid": {ID: "loading-sid", Loading: true},
		"tokyo-sid":   {ID: "tokyo-sid", Token: "tok-tokyo", User: tokyoUser},
	}}
	now := func() time.Time { return testNow }
	srv := NewServer(Deps{
		Addr:     ":0",
		Backend:  backend,
		Sessions: sessions,
		Cookie:   guard.Cookie{Name: cookieName},
		Verifier: verify.NewTracker(verify.WithClock(now)),
		Logger:   log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard}),
		Checks:   checks,
		Now:      now,
	})
	require.NotNil(t, srv.templates, "templates must parse")
	return srv, sessions
}

func serve(srv *Server, req *http.Request, sid string) *httptest.ResponseRecorder {
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: sid})
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

// responseCookie returns the named cookie set on the response, or nil.
func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// flashMessage decodes the flash notification set on the response.
func flashMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	c := responseCookie(rr, flashCookie)
	require.NotNil(t, c, "flash cookie should be set")
	raw, err := url.QueryUnescape(c.Value)
	require.NoError(t, err)
	return raw
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, map[string]ReadinessCheck{
		"session_store": func(context.Context) error { return nil },
	})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), `"status"`)
	}

	failing, _ := newTestServer(t, &fakeBackend{}, map[string]ReadinessCheck{
		"session_store": func(context.Context) error { return errors.New("redis down") },
	})
	rr := serve(failing, httptest.NewRequest(http.MethodGet, "/readyz", nil), "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "redis down")
}

func TestIndexRedirectsByRole(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, nil)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Create an account")

	tests := []struct {
		sid  string
		want string
	}{
		{"user-sid", "/dashboard"},
		{"admin-sid", "/admin/dashboard"},
	}
	for _, tt := range tests {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil), tt.sid)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, tt.want, rr.Header().Get("Location"))
	}
}

func TestGuardDecisions(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, nil)

	t.Run("anonymous goes to login", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions", nil), "")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, guard.LoginPath, rr.Header().Get("Location"))
	})

	t.Run("htmx anonymous gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
		req.Header.Set("HX-Request", "true")
		rr := serve(srv, req, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, guard.LoginPath, rr.Header().Get("HX-Redirect"))
	})

	t.Run("non admin is refused admin pages", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/admin/users", nil), "user-sid")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, guard.UnauthorizedPath, rr.Header().Get("Location"))
	})

	t.Run("loading session shows placeholder", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard", nil), "loading-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Loading your session")
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	})

	t.Run("unauthorized page is forbidden", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/unauthorized", nil), "user-sid")
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "/dashboard")
	})
}

func TestLogin(t *testing.T) {
	backend := &fakeBackend{}
	srv, sessions := newTestServer(t, backend, nil)

	t.Run("validation", func(t *testing.T) {
		rr := serve(srv, formRequest(http.MethodPost, "/auth/login", url.Values{"email": {"not-an-email"}, "password": {"x"}}), "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "valid email")
	})

	t.Run("backend rejection", func(t *testing.T) {
		sessions.login = func(string, string) (*session.LoginResult, error) {
			return nil, &api.APIError{Status: http.StatusUnauthorized, Message: "Bad credentials"}
		}
		rr := serve(srv, formRequest(http.MethodPost, "/auth/login", url.Values{"email": {"ann@example.com"}, "password": {"wrong"}}), "")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "Bad credentials")
	})

	t.Run("backend unreachable", func(t *testing.T) {
		sessions.login = func(string, string) (*session.LoginResult, error) {
			return nil, errors.New("dial tcp: connection refused")
		}
		rr := serve(srv, formRequest(http.MethodPost, "/auth/login", url.Values{"email": {"ann@example.com"}, "password": {"pw"}}), "")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), session.MsgLoginFailed)
	})

	t.Run("success", func(t *testing.T) {
		sessions.login = func(email, password string) (*session.LoginResult, error) {
			return &session.LoginResult{
				SessionID: "new-sid",
				User:      *regularUser,
				Redirect:  "/dashboard",
				Message:   session.MsgLoginSuccess,
				TTL:       time.Hour,
			}, nil
		}
		rr := serve(srv, formRequest(http.MethodPost, "/auth/login", url.Values{"email": {"ann@example.com"}, "password": {"secret-pw"}}), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("HX-Redirect"))

		cookies := map[string]*http.Cookie{}
		for _, c := range rr.Result().Cookies() {
			cookies[c.Name] = c
		}
		require.Contains(t, cookies, cookieName)
		assert.Equal(t, "new-sid", cookies[cookieName].Value)
		assert.True(t, cookies[cookieName].HttpOnly)
		require.Contains(t, cookies, flashCookie)
	})
}

func TestLogoutClearsCookie(t *testing.T) {
	srv, sessions := newTestServer(t, &fakeBackend{}, nil)

	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/auth/logout", nil), "user-sid")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, guard.LoginPath, rr.Header().Get("Location"))
	assert.Equal(t, []string{"user-sid"}, sessions.logout)

	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie should be expired")
}

func TestCreateTransaction(t *testing.T) {
	valid := url.Values{
		"description": {"Lunch"},
		"amount":      {"12.50"},
		"categoryId":  {"1"},
		"date":        {"2025-03-14"},
		"time":        {"12:30"},
	}

	tests := []struct {
		name        string
		form        url.Values
		backendErr  error
		wantStatus  int
		wantTrigger []string
		wantCalls   int
	}{
		{
			name:        "missing amount",
			form:        url.Values{"categoryId": {"1"}, "date": {"2025-03-14"}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantTrigger: []string{"Amount and Category"},
		},
		{
			name:        "success",
			form:        valid,
			wantStatus:  http.StatusOK,
			wantTrigger: []string{"form:reset", "page:refresh", "modal:close", msgTransactionAdded},
			wantCalls:   1,
		},
		{
			name:        "backend rejects",
			form:        valid,
			backendErr:  &api.APIError{Status: http.StatusBadRequest, Message: "Category disabled"},
			wantStatus:  http.StatusUnprocessableEntity,
			wantTrigger: []string{"Category disabled"},
			wantCalls:   1,
		},
		{
			name:        "backend fails",
			form:        valid,
			backendErr:  &api.APIError{Status: http.StatusInternalServerError},
			wantStatus:  http.StatusBadGateway,
			wantTrigger: []string{msgTransactionSaveFailed},
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got api.TransactionRequest
			backend := &fakeBackend{createTx: func(req api.TransactionRequest) error {
				got = req
				return tt.backendErr
			}}
			srv, _ := newTestServer(t, backend, nil)

			rr := serve(srv, formRequest(http.MethodPost, "/transactions", tt.form), "user-sid")
			assert.Equal(t, tt.wantStatus, rr.Code)
			for _, want := range tt.wantTrigger {
				assert.Contains(t, rr.Header().Get("HX-Trigger"), want)
			}
			assert.Equal(t, tt.wantCalls, backend.createdTxCount)
			if tt.wantCalls > 0 {
				assert.Equal(t, "2025-03-14T12:30:00", got.Timestamp)
				assert.Equal(t, regularUser.Email, got.UserEmail)
			}
		})
	}
}

func TestTransactionsListing(t *testing.T) {
	t.Run("not found renders an empty list", func(t *testing.T) {
		backend := &fakeBackend{transactions: func(api.TransactionQuery) (*core.Page[core.Transaction], error) {
			return nil, &api.APIError{Status: http.StatusNotFound, Message: "No transactions"}
		}}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions", nil), "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "No transactions found.")
		assert.NotContains(t, rr.Body.String(), "toast-error")
	})

	t.Run("query and grouping", func(t *testing.T) {
		var got api.TransactionQuery
		backend := &fakeBackend{transactions: func(q api.TransactionQuery) (*core.Page[core.Transaction], error) {
			got = q
			return &core.Page[core.Transaction]{
				Data: []core.Transaction{
					{ID: 1, Description: "Coffee", Amount: core.NewMoney(3), Date: core.NewDate(2025, 3, 15),
						TransactionType: core.TransactionType{ID: 1, Name: core.TypeNameExpense}},
					{ID: 2, Description: "Broken", Amount: core.NewMoney(9)},
				},
				TotalPages:   3,
				TotalRecords: 21,
			}, nil
		}}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions?page=1&search=cof&type=TYPE_EXPENSE", nil), "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, api.TransactionQuery{
			Email:           regularUser.Email,
			PageNumber:      1,
			PageSize:        DefaultPageSize,
			SearchKey:       "cof",
			SortField:       "date",
			SortDirection:   "desc",
			TransactionType: core.TypeNameExpense,
		}, got)

		body := rr.Body.String()
		assert.Contains(t, body, "Today")
		assert.Contains(t, body, "Coffee")
		assert.NotContains(t, body, "Broken")
		assert.Contains(t, body, "Page 2 of 3")
		// disabled categories never reach the selector
		assert.NotContains(t, body, ">Old (")
	})

	t.Run("content refresh renders the fragment", func(t *testing.T) {
		backend := &fakeBackend{transactions: func(api.TransactionQuery) (*core.Page[core.Transaction], error) {
			return &core.Page[core.Transaction]{}, nil
		}}
		srv, _ := newTestServer(t, backend, nil)

		req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", contentTarget)
		rr := serve(srv, req, "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "<!DOCTYPE html>")
		assert.Contains(t, rr.Body.String(), `id="page-content"`)
	})
}

func TestDashboardCashInHand(t *testing.T) {
	backend := &fakeBackend{totals: map[int]core.Money{
		core.TransactionTypeIncome:  core.NewMoney(1500),
		core.TransactionTypeExpense: core.NewMoney(400.25),
	}}
	srv, _ := newTestServer(t, backend, nil)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard?month=2&year=2025", nil), "user-sid")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "$1,500.00")
	assert.Contains(t, body, "$1,099.75")
	assert.Contains(t, body, "February 2025")
	// a missing monthly budget is not an error
	assert.Contains(t, body, "No budget set for this month.")
	assert.NotContains(t, body, "toast-error")
}

func TestMutationUnauthorizedEndsSession(t *testing.T) {
	backend := &fakeBackend{deleteAccount: func(int64) error {
		return &api.APIError{Status: http.StatusUnauthorized}
	}}
	srv, _ := newTestServer(t, backend, nil)

	req := httptest.NewRequest(http.MethodDelete, "/accounts/4", nil)
	req.Header.Set("HX-Request", "true")
	rr := serve(srv, req, "user-sid")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, guard.LoginPath, rr.Header().Get("HX-Redirect"))
}

func TestInvalidPathID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/accounts/abc", nil)
	rr := serve(srv, req, "user-sid")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResendVerification(t *testing.T) {
	form := url.Values{"email": {"ann@example.com"}}

	t.Run("throttled keeps the countdown", func(t *testing.T) {
		backend := &fakeBackend{resend: func(string) error {
			return &api.APIError{
				Status:     http.StatusTooManyRequests,
				Message:    "Please wait 30 seconds",
				Code:       api.CodeResendCooldown,
				RetryAfter: 30 * time.Second,
			}
		}}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, formRequest(http.MethodPost, "/auth/verify-email/resend", form), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Resend in")
		assert.Contains(t, rr.Body.String(), "30")
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "error")

		st, ok := srv.verifier.Status("ann@example.com")
		require.True(t, ok)
		assert.Equal(t, 30, st.CooldownSeconds())
	})

	t.Run("max attempts disables resend", func(t *testing.T) {
		backend := &fakeBackend{resend: func(string) error {
			return &api.APIError{Status: http.StatusTooManyRequests, Code: api.CodeMaxAttemptsExceeded}
		}}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, formRequest(http.MethodPost, "/auth/verify-email/resend", form), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Resend limit reached")
	})

	t.Run("success starts the cooldown", func(t *testing.T) {
		calls := 0
		backend := &fakeBackend{resend: func(string) error { calls++; return nil }}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, formRequest(http.MethodPost, "/auth/verify-email/resend", form), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), msgCodeResent)

		// a second request inside the cooldown never reaches the backend
		rr = serve(srv, formRequest(http.MethodPost, "/auth/verify-email/resend", form), "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 1, calls)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "Please wait")
	})
}

func TestVerifyEmail(t *testing.T) {
	backend := &fakeBackend{verifyEmail: func(code string) error {
		if code != "123456" {
			return &api.APIError{Status: http.StatusBadRequest}
		}
		return nil
	}}
	srv, _ := newTestServer(t, backend, nil)
	srv.verifier.Start("ann@example.com")

	rr := serve(srv, formRequest(http.MethodPost, "/auth/verify-email", url.Values{"email": {"ann@example.com"}, "code": {"000000"}}), "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Header().Get("HX-Trigger"), msgInvalidCode)

	rr = serve(srv, formRequest(http.MethodPost, "/auth/verify-email", url.Values{"email": {"ann@example.com"}, "code": {"123456"}}), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	trigger := rr.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, msgEmailVerified)
	assert.Contains(t, trigger, "redirect:later")

	_, ok := srv.verifier.Status("ann@example.com")
	assert.False(t, ok, "flow should be forgotten once verified")
}

func TestPagesUseTheUserTimezone(t *testing.T) {
	// 23:30 UTC on the 15th is already 08:30 on the 16th in Tokyo.
	lateEvening := time.Date(2025, time.March, 15, 23, 30, 0, 0, time.UTC)
	due := core.NewDate(2025, 3, 16)
	saved := []core.SavedTransaction{{ID: 5, Description: "Rent", Amount: core.NewMoney(900), NextDueDate: &due, Frequency: core.FrequencyMonthly}}

	tests := []struct {
		name       string
		sid        string
		wantLabel  string
		wantStatus string
	}{
		{"tokyo user", "tokyo-sid", "Today", "due-today"},
		{"utc user", "user-sid", "Tomorrow", "due-upcoming"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{
				transactions: func(api.TransactionQuery) (*core.Page[core.Transaction], error) {
					return &core.Page[core.Transaction]{Data: []core.Transaction{
						{ID: 1, Description: "Sushi", Amount: core.NewMoney(30), Date: due,
							TransactionType: core.TransactionType{ID: 1, Name: core.TypeNameExpense}},
					}}, nil
				},
				due:   saved,
				saved: saved,
			}
			srv, _ := newTestServer(t, backend, nil)
			srv.now = func() time.Time { return lateEvening }

			rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions", nil), tt.sid)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantLabel)

			rr = serve(srv, httptest.NewRequest(http.MethodGet, "/saved-transactions", nil), tt.sid)
			require.Equal(t, http.StatusOK, rr.Code)
			body := rr.Body.String()
			assert.Contains(t, body, tt.wantStatus)
			assert.Contains(t, body, ">"+tt.wantLabel+"<")
		})
	}

	t.Run("default month follows the user's calendar", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, _ := newTestServer(t, backend, nil)
		srv.now = func() time.Time { return time.Date(2025, time.March, 31, 23, 30, 0, 0, time.UTC) }

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/budgets", nil), "tokyo-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		rr = serve(srv, httptest.NewRequest(http.MethodGet, "/budgets", nil), "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, [][2]int{{4, 2025}, {3, 2025}}, backend.budgetPeriods)
	})
}

func TestListPageUnauthorizedEndsSession(t *testing.T) {
	backend := &fakeBackend{transactions: func(api.TransactionQuery) (*core.Page[core.Transaction], error) {
		return nil, &api.APIError{Status: http.StatusUnauthorized}
	}}
	srv, _ := newTestServer(t, backend, nil)
	manager := session.NewManager(session.NewMemoryStore(10, time.Hour, nil), nil, session.Options{
		Logger: log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard}),
	})
	backend.unauthorized = manager.UnauthorizedHook()

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/transactions", nil), "user-sid")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, guard.LoginPath, rr.Header().Get("Location"))

	cleared := responseCookie(rr, cookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
	assert.Equal(t, string(NotificationError)+"|"+msgSessionExpired, flashMessage(t, rr))
	assert.NotContains(t, rr.Body.String(), "Transactions")
}

func TestSavedTransactionActions(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		backendErr  error
		wantStatus  int
		wantTrigger []string
		wantCall    string
	}{
		{
			name:        "confirm adds the transaction",
			path:        "/saved-transactions/5/confirm",
			wantStatus:  http.StatusOK,
			wantTrigger: []string{"page:refresh", msgTransactionAdded},
			wantCall:    "confirm:5",
		},
		{
			name:        "skip moves to the next occurrence",
			path:        "/saved-transactions/5/skip",
			wantStatus:  http.StatusOK,
			wantTrigger: []string{"page:refresh", msgSavedSkipped},
			wantCall:    "skip:5",
		},
		{
			name:        "confirm failure",
			path:        "/saved-transactions/5/confirm",
			backendErr:  &api.APIError{Status: http.StatusInternalServerError},
			wantStatus:  http.StatusBadGateway,
			wantTrigger: []string{msgSavedConfirmFailed},
			wantCall:    "confirm:5",
		},
		{
			name:        "skip rejected",
			path:        "/saved-transactions/5/skip",
			backendErr:  &api.APIError{Status: http.StatusBadRequest, Message: "Nothing due"},
			wantStatus:  http.StatusUnprocessableEntity,
			wantTrigger: []string{"Nothing due"},
			wantCall:    "skip:5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{mutationErr: tt.backendErr}
			srv, _ := newTestServer(t, backend, nil)

			rr := serve(srv, formRequest(http.MethodPost, tt.path, nil), "user-sid")
			assert.Equal(t, tt.wantStatus, rr.Code)
			for _, want := range tt.wantTrigger {
				assert.Contains(t, rr.Header().Get("HX-Trigger"), want)
			}
			assert.Equal(t, []string{tt.wantCall}, backend.calls)
		})
	}

	t.Run("refresh renders both lists", func(t *testing.T) {
		overdue := core.NewDate(2025, 3, 10)
		later := core.NewDate(2025, 4, 1)
		backend := &fakeBackend{
			due: []core.SavedTransaction{{ID: 5, Description: "Gym", Amount: core.NewMoney(40), NextDueDate: &overdue, Frequency: core.FrequencyMonthly}},
			saved: []core.SavedTransaction{
				{ID: 5, Description: "Gym", Amount: core.NewMoney(40), NextDueDate: &overdue, Frequency: core.FrequencyMonthly},
				{ID: 6, Description: "Insurance", Amount: core.NewMoney(120), NextDueDate: &later, Frequency: core.FrequencyMonthly},
			},
		}
		srv, _ := newTestServer(t, backend, nil)

		req := httptest.NewRequest(http.MethodGet, "/saved-transactions", nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", contentTarget)
		rr := serve(srv, req, "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)

		body := rr.Body.String()
		assert.NotContains(t, body, "<!DOCTYPE html>")
		assert.Contains(t, body, "due-overdue")
		assert.Contains(t, body, "Insurance")
		assert.Contains(t, body, "/saved-transactions/5/confirm")
		assert.NotContains(t, body, "/saved-transactions/6/confirm")
	})
}

func TestCategoryBudgets(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, _ := newTestServer(t, backend, nil)

		form := url.Values{"categoryId": {"1"}, "amount": {"500"}, "month": {"3"}, "year": {"2025"}}
		rr := serve(srv, formRequest(http.MethodPost, "/budgets", form), "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), msgCategoryBudgetCreated)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), "page:refresh")

		require.NotNil(t, backend.createdBudget)
		assert.True(t, backend.createdBudget.Amount.Decimal.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, int64(1), backend.createdBudget.CategoryID)
		assert.Equal(t, 3, backend.createdBudget.Month)
		assert.Equal(t, 2025, backend.createdBudget.Year)
		assert.Equal(t, regularUser.Email, backend.createdBudget.Email)
	})

	t.Run("missing category", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, _ := newTestServer(t, backend, nil)

		form := url.Values{"amount": {"500"}, "month": {"3"}, "year": {"2025"}}
		rr := serve(srv, formRequest(http.MethodPost, "/budgets", form), "user-sid")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), forms.MsgSelectCategory)
		assert.Nil(t, backend.createdBudget)
	})

	t.Run("progress", func(t *testing.T) {
		backend := &fakeBackend{progress: []core.BudgetProgress{
			{BudgetID: 1, CategoryName: "Food", BudgetedAmount: core.NewMoney(500), CurrentSpending: core.NewMoney(460)},
			{BudgetID: 2, CategoryName: "Travel", BudgetedAmount: core.NewMoney(200), CurrentSpending: core.NewMoney(250)},
		}}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/budgets?month=3&year=2025", nil), "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, body, "$460.00 / $500.00")
		assert.Contains(t, body, "92.0% used")
		assert.Contains(t, body, "$40.00 remaining")
		assert.Contains(t, body, "level-warning")
		assert.Contains(t, body, "100.0% used")
		assert.Contains(t, body, "level-over")
		assert.Equal(t, [][2]int{{3, 2025}}, backend.budgetPeriods)
	})
}

func TestStatistics(t *testing.T) {
	var summary []core.MonthlySummary
	// fourteen months, newest first
	for i := 0; i < 14; i++ {
		month := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		summary = append(summary, core.MonthlySummary{
			Year:         month.Year(),
			Month:        int(month.Month()),
			TotalIncome:  core.NewMoney(1000),
			TotalExpense: core.NewMoney(400),
		})
	}
	backend := &fakeBackend{
		summary: summary,
		breakdown: []core.CategoryExpense{
			{CategoryName: "Food", TotalAmount: core.NewMoney(120.5)},
			{CategoryName: "Utilities", TotalAmount: core.Zero()},
			{CategoryName: "Transport", TotalAmount: core.NewMoney(30)},
			{CategoryName: "Refunds", TotalAmount: core.NewMoney(-5)},
		},
	}
	srv, _ := newTestServer(t, backend, nil)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/statistics?month=2&year=2025", nil), "user-sid")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()

	assert.Contains(t, body, "Mar 2024")
	assert.Contains(t, body, "Feb 2025")
	assert.NotContains(t, body, "Feb 2024")
	assert.NotContains(t, body, "Jan 2024")
	assert.Less(t, strings.Index(body, "Mar 2024"), strings.Index(body, "Feb 2025"), "months are chronological")

	assert.Contains(t, body, "Food")
	assert.Contains(t, body, "Transport")
	assert.NotContains(t, body, "Utilities")
	assert.NotContains(t, body, "Refunds")
	assert.Contains(t, body, "$150.50")
}

func TestAdminUserStatus(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		sid        string
		backendErr error
		wantStatus int
		wantHeader string
		wantCalls  []string
	}{
		{"enable", "/admin/users/9/enable", "admin-sid", nil, http.StatusOK, msgUserEnabled, []string{"enable:9"}},
		{"disable", "/admin/users/9/disable", "admin-sid", nil, http.StatusOK, msgUserDisabled, []string{"disable:9"}},
		{"backend failure", "/admin/users/9/disable", "admin-sid", &api.APIError{Status: http.StatusInternalServerError}, http.StatusBadGateway, msgUserToggleFailed, []string{"disable:9"}},
		{"regular user refused", "/admin/users/9/enable", "user-sid", nil, http.StatusOK, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{mutationErr: tt.backendErr}
			srv, _ := newTestServer(t, backend, nil)

			rr := serve(srv, formRequest(http.MethodPost, tt.path, nil), tt.sid)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalls, backend.calls)
			if tt.wantHeader == "" {
				assert.Equal(t, guard.UnauthorizedPath, rr.Header().Get("HX-Redirect"))
				return
			}
			assert.Contains(t, rr.Header().Get("HX-Trigger"), tt.wantHeader)
		})
	}
}

func TestOAuthCallback(t *testing.T) {
	t.Run("provider error short-circuits", func(t *testing.T) {
		srv, sessions := newTestServer(t, &fakeBackend{}, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&token=t&email=ann@example.com", nil), "")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, guard.LoginPath, rr.Header().Get("Location"))
		assert.Equal(t, string(NotificationError)+"|"+msgOAuthFailed, flashMessage(t, rr))
		assert.Zero(t, sessions.oauthCalls)
		assert.Nil(t, responseCookie(rr, cookieName))
	})

	t.Run("user lookup failure", func(t *testing.T) {
		srv, sessions := newTestServer(t, &fakeBackend{}, nil)
		sessions.oauthLogin = func(string, string) (*session.LoginResult, error) {
			return nil, errors.New("preferences unavailable")
		}

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/auth/callback?token=t&email=ann@example.com", nil), "")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, guard.LoginPath, rr.Header().Get("Location"))
		assert.Equal(t, string(NotificationError)+"|"+session.MsgOAuthUserFailed, flashMessage(t, rr))
	})

	t.Run("success", func(t *testing.T) {
		srv, sessions := newTestServer(t, &fakeBackend{}, nil)
		var gotToken, gotEmail string
		sessions.oauthLogin = func(token, email string) (*session.LoginResult, error) {
			gotToken, gotEmail = token, email
			return &session.LoginResult{SessionID: "oauth-sid", User: *regularUser, Redirect: "/dashboard", Message: session.MsgOAuthSuccess, TTL: time.Hour}, nil
		}

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/auth/callback?token=jwt-1&email=ann@example.com", nil), "")
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
		assert.Equal(t, "jwt-1", gotToken)
		assert.Equal(t, "ann@example.com", gotEmail)

		c := responseCookie(rr, cookieName)
		require.NotNil(t, c)
		assert.Equal(t, "oauth-sid", c.Value)
	})
}

func TestSettingsPreferences(t *testing.T) {
	t.Run("saved and mirrored into the session", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, sessions := newTestServer(t, backend, nil)

		rr := serve(srv, formRequest(http.MethodPost, "/settings/preferences", url.Values{"timezone": {"Asia/Tokyo"}, "currency": {"EUR"}}), "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), msgPreferencesSaved)
		assert.Equal(t, &core.Preferences{Email: regularUser.Email, Timezone: "Asia/Tokyo", Currency: "EUR"}, backend.prefs)
		assert.Equal(t, []core.User{{Timezone: "Asia/Tokyo", Currency: "EUR"}}, sessions.updates)
	})

	t.Run("session update failure still reports success", func(t *testing.T) {
		srv, sessions := newTestServer(t, &fakeBackend{}, nil)
		sessions.updateErr = session.ErrNotFound

		rr := serve(srv, formRequest(http.MethodPost, "/settings/preferences", url.Values{"timezone": {"UTC"}, "currency": {"USD"}}), "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), msgPreferencesSaved)
		assert.Len(t, sessions.updates, 1)
	})

	t.Run("unsupported timezone", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, sessions := newTestServer(t, backend, nil)

		rr := serve(srv, formRequest(http.MethodPost, "/settings/preferences", url.Values{"timezone": {"Mars/Olympus"}, "currency": {"EUR"}}), "user-sid")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), forms.MsgInvalidPreferences)
		assert.Nil(t, backend.prefs)
		assert.Empty(t, sessions.updates)
	})
}

func TestSettingsChangePassword(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantStatus   int
		wantTrigger  string
		wantPassword string
	}{
		{
			name:         "changed",
			form:         url.Values{"currentPassword": {"old-secret"}, "newPassword": {"new-secret-1"}, "confirmPassword": {"new-secret-1"}},
			wantStatus:   http.StatusOK,
			wantTrigger:  msgPasswordChanged,
			wantPassword: "new-secret-1",
		},
		{
			name:        "mismatch",
			form:        url.Values{"currentPassword": {"old-secret"}, "newPassword": {"new-secret-1"}, "confirmPassword": {"new-secret-2"}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantTrigger: forms.MsgPasswordMismatch,
		},
		{
			name:        "too short",
			form:        url.Values{"currentPassword": {"old-secret"}, "newPassword": {"short"}, "confirmPassword": {"short"}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantTrigger: forms.MsgPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			srv, _ := newTestServer(t, backend, nil)

			rr := serve(srv, formRequest(http.MethodPost, "/settings/password", tt.form), "user-sid")
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Header().Get("HX-Trigger"), tt.wantTrigger)
			assert.Equal(t, tt.wantPassword, backend.password)
		})
	}
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func uploadRequest(t *testing.T, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/settings/profile-image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	return req
}

func TestSettingsProfileImage(t *testing.T) {
	t.Run("png upload", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, uploadRequest(t, "me.png", pngHeader), "user-sid")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), msgImageUploaded)
		require.NotNil(t, backend.upload)
		assert.Equal(t, "me.png", backend.upload.fileName)
		assert.Equal(t, "image/png", backend.upload.contentType)
		assert.Equal(t, len(pngHeader), backend.upload.size)
	})

	t.Run("non image is rejected", func(t *testing.T) {
		backend := &fakeBackend{}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, uploadRequest(t, "me.png", []byte("just some text")), "user-sid")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Header().Get("HX-Trigger"), forms.MsgImageType)
		assert.Nil(t, backend.upload)
	})

	t.Run("stored image is shown", func(t *testing.T) {
		backend := &fakeBackend{profileImage: base64.StdEncoding.EncodeToString(pngHeader)}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/settings", nil), "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `src="data:image/png;base64,`)
	})

	t.Run("backend data url is rebuilt", func(t *testing.T) {
		script := base64.StdEncoding.EncodeToString([]byte("<script>alert(1)</script>"))
		backend := &fakeBackend{profileImage: "data:text/html;base64," + script}
		srv, _ := newTestServer(t, backend, nil)

		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/settings", nil), "user-sid")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "text/html;base64")
		assert.NotContains(t, rr.Body.String(), `class="avatar"`)
	})
}

func TestImageDataURL(t *testing.T) {
	png := base64.StdEncoding.EncodeToString(pngHeader)
	html := base64.StdEncoding.EncodeToString([]byte("<script>alert(1)</script>"))

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain base64 png", png, "data:image/png;base64," + png},
		{"padded with whitespace", "  " + png + "\n", "data:image/png;base64," + png},
		{"data url keeps its payload", "data:image/png;base64," + png, "data:image/png;base64," + png},
		{"mislabelled image is relabelled", "data:text/html;base64," + png, "data:image/png;base64," + png},
		{"html payload in a data url", "data:text/html;base64," + html, ""},
		{"html payload labelled as png", "data:image/png;base64," + html, ""},
		{"data url without base64 marker", "data:image/png," + png, ""},
		{"plain text", base64.StdEncoding.EncodeToString([]byte("hello")), ""},
		{"not base64", "%%%", ""},
		{"empty", "", ""},
		{"empty data url", "data:image/png;base64,", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imageDataURL(tt.input))
		})
	}
}
