package http

import (
	"context"
	"io"

	"expensia/internal/api"
	"expensia/internal/core"
	"expensia/internal/session"
)

// Backend is the part of the Expensia REST API the pages call. *api.Client
// implements it.
type Backend interface {
	SignUp(ctx context.Context, req api.SignUpRequest) error
	VerifyEmail(ctx context.Context, code string) error
	ResendVerificationCode(ctx context.Context, email string) error
	VerifyEmailForPasswordReset(ctx context.Context, email string) error
	VerifyPasswordResetCode(ctx context.Context, code string) error
	ResetPassword(ctx context.Context, email, password string) error

	GetTransactionsByUser(ctx context.Context, q api.TransactionQuery) (*core.Page[core.Transaction], error)
	GetTransaction(ctx context.Context, id int64) (*core.Transaction, error)
	CreateTransaction(ctx context.Context, req api.TransactionRequest) error
	UpdateTransaction(ctx context.Context, id int64, req api.TransactionRequest) error
	DeleteTransaction(ctx context.Context, id int64) error
	GetAllTransactions(ctx context.Context, pageNumber, pageSize int, searchKey string) (*core.Page[core.AdminTransaction], error)

	GetCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, req api.CategoryRequest) error
	UpdateCategory(ctx context.Context, id int64, req api.CategoryRequest) error
	ToggleCategory(ctx context.Context, id int64) error

	GetTotalIncomeOrExpense(ctx context.Context, userID int64, typeID, month, year int) (core.Money, error)
	GetTotalNoOfTransactions(ctx context.Context, userID int64, month, year int) (int64, error)
	GetTotalByCategory(ctx context.Context, email string, categoryID int64, month, year int) (core.Money, error)
	GetMonthlySummary(ctx context.Context, email string) ([]core.MonthlySummary, error)
	GetDashboardSummary(ctx context.Context, email string) (*core.DashboardSummary, error)
	GetCategoryExpenseBreakdown(ctx context.Context, email string, month, year int) ([]core.CategoryExpense, error)

	CreateMonthlyBudget(ctx context.Context, req api.MonthlyBudgetRequest) error
	GetMonthlyBudget(ctx context.Context, userID int64, month, year int) (*core.MonthlyBudget, error)
	CreateCategoryBudget(ctx context.Context, req api.CategoryBudgetRequest) error
	GetCategoryBudgets(ctx context.Context, email string, month, year int) ([]core.CategoryBudget, error)
	GetBudgetProgress(ctx context.Context, email string, month, year int) ([]core.BudgetProgress, error)
	UpdateCategoryBudget(ctx context.Context, id int64, req api.CategoryBudgetRequest) error
	DeleteCategoryBudget(ctx context.Context, id int64, email string) error

	CreateSavedTransaction(ctx context.Context, req api.SavedTransactionRequest) error
	GetSavedTransactions(ctx context.Context, userID int64) ([]core.SavedTransaction, error)
	GetDueSavedTransactions(ctx context.Context, userID int64) ([]core.SavedTransaction, error)
	GetSavedTransaction(ctx context.Context, id int64) (*core.SavedTransaction, error)
	ConfirmSavedTransaction(ctx context.Context, id int64) error
	UpdateSavedTransaction(ctx context.Context, id int64, req api.SavedTransactionRequest) error
	DeleteSavedTransaction(ctx context.Context, id int64) error
	SkipSavedTransaction(ctx context.Context, id int64) error

	GetUsers(ctx context.Context, pageNumber, pageSize int, searchKey string) (*core.Page[core.AdminUser], error)
	EnableUser(ctx context.Context, userID int64) error
	DisableUser(ctx context.Context, userID int64) error
	ChangePassword(ctx context.Context, email, password string) error
	UploadProfileImage(ctx context.Context, email, fileName, contentType string, content io.Reader) error
	GetProfileImage(ctx context.Context, email string) (string, error)
	DeleteProfileImage(ctx context.Context, email string) error
	UpdatePreferences(ctx context.Context, prefs core.Preferences) error

	CreateAccount(ctx context.Context, req api.AccountRequest) error
	GetAccounts(ctx context.Context, email string) ([]core.Account, error)
	GetAccount(ctx context.Context, id int64, email string) (*core.Account, error)
	UpdateAccount(ctx context.Context, id int64, req api.AccountRequest) error
	DeleteAccount(ctx context.Context, id int64, email string) error

	GetSystemOverview(ctx context.Context) (*core.SystemOverview, error)
}

// Sessions is the session lifecycle the auth pages drive. *session.Manager
// implements it.
type Sessions interface {
	Restore(ctx context.Context, id string) (*session.State, error)
	Login(ctx context.Context, email, password string) (*session.LoginResult, error)
	OAuthLogin(ctx context.Context, token, email string) (*session.LoginResult, error)
	Logout(ctx context.Context, id string) (redirect, message string)
	RefreshPreferences(ctx context.Context, id string) *core.User
	UpdateUser(ctx context.Context, id string, patch core.User) (*core.User, error)
}
