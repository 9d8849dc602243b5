package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role markers carried in the session user's role set.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// Transaction type identifiers as assigned by the backend.
const (
	TransactionTypeExpense = 1
	TransactionTypeIncome  = 2

	TypeNameExpense = "TYPE_EXPENSE"
	TypeNameIncome  = "TYPE_INCOME"
)

// Preference defaults applied when the backend has none.
const (
	DefaultTimezone = "UTC"
	DefaultCurrency = "USD"
)

type (
	AccountType string

	// User is the session user: identity, roles and display preferences.
	User struct {
		ID           int64    `json:"id"`
		Username     string   `json:"username"`
		Email        string   `json:"email"`
		Roles        []string `json:"roles"`
		ProfileImage string   `json:"profileImage,omitempty"`
		Timezone     string   `json:"timezone,omitempty"`
		Currency     string   `json:"currency,omitempty"`
	}

	Preferences struct {
		Email    string `json:"email,omitempty"`
		Timezone string `json:"timezone"`
		Currency string `json:"currency"`
	}

	TransactionType struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	Category struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		TransactionType TransactionType `json:"transactionType"`
		Enabled         bool            `json:"enabled"`
	}

	AccountRef struct {
		ID          int64  `json:"id"`
		AccountName string `json:"accountName"`
		AccountType string `json:"accountType"`
	}

	Transaction struct {
		ID              int64           `json:"id"`
		Description     string          `json:"description"`
		Amount          Money           `json:"amount"`
		Date            Date            `json:"date"`
		Timestamp       LocalDateTime   `json:"timestamp"`
		Category        Category        `json:"category"`
		TransactionType TransactionType `json:"transactionType"`
		Account         *AccountRef     `json:"account,omitempty"`
		UserEmail       string          `json:"userEmail,omitempty"`
	}

	Account struct {
		ID          int64       `json:"id"`
		AccountName string      `json:"accountName"`
		AccountType AccountType `json:"accountType"`
		Balance     Money       `json:"balance"`
	}

	AccountSummary struct {
		AccountID   int64       `json:"accountId"`
		AccountName string      `json:"accountName"`
		AccountType AccountType `json:"accountType"`
		Balance     Money       `json:"balance"`
	}

	DashboardSummary struct {
		ConsolidatedBalance Money            `json:"consolidatedBalance"`
		AccountSummaries    []AccountSummary `json:"accountSummaries"`
	}

	// SavedTransaction is a recurring transaction template.
	SavedTransaction struct {
		ID              int64     `json:"id"`
		Description     string    `json:"description"`
		Amount          Money     `json:"amount"`
		StartDate       *Date     `json:"startDate,omitempty"`
		NextDueDate     *Date     `json:"nextDueDate,omitempty"`
		Frequency       Frequency `json:"frequency"`
		CategoryID      int64     `json:"categoryId,omitempty"`
		CategoryName    string    `json:"categoryName"`
		AccountID       *int64    `json:"accountId,omitempty"`
		TransactionType int       `json:"transactionType,omitempty"`
		DueInformation  string    `json:"dueInformation,omitempty"`
	}

	// MonthlyBudget is the overall spending budget for a month.
	MonthlyBudget struct {
		ID     int64 `json:"id"`
		Amount Money `json:"amount"`
		Month  int   `json:"month"`
		Year   int   `json:"year"`
	}

	CategoryBudget struct {
		ID           int64  `json:"id"`
		Amount       Money  `json:"amount"`
		Month        int    `json:"month"`
		Year         int    `json:"year"`
		CategoryID   int64  `json:"categoryId"`
		CategoryName string `json:"categoryName"`
	}

	BudgetProgress struct {
		BudgetID        int64           `json:"budgetId"`
		CategoryName    string          `json:"categoryName"`
		BudgetedAmount  Money           `json:"budgetedAmount"`
		CurrentSpending Money           `json:"currentSpending"`
		PercentageUsed  decimal.Decimal `json:"percentageUsed"`
		IsOverBudget    bool            `json:"isOverBudget"`
	}

	MonthlySummary struct {
		Year         int   `json:"year"`
		Month        int   `json:"month"`
		TotalIncome  Money `json:"totalIncome"`
		TotalExpense Money `json:"totalExpense"`
	}

	CategoryExpense struct {
		CategoryName string `json:"categoryName"`
		TotalAmount  Money  `json:"totalAmount"`
	}

	SystemOverview struct {
		TotalUsers        int64    `json:"totalUsers"`
		TotalAdmins       int64    `json:"totalAdmins"`
		TotalRegularUsers int64    `json:"totalRegularUsers"`
		TotalCategories   int64    `json:"totalCategories"`
		TotalTransactions int64    `json:"totalTransactions"`
		StorageUsedMB     float64  `json:"storageUsedMB"`
		RecentLogs        []string `json:"recentLogs"`
	}

	// AdminUser is a row of the admin user listing.
	AdminUser struct {
		ID                int64  `json:"id"`
		Username          string `json:"username"`
		Email             string `json:"email"`
		Enabled           bool   `json:"enabled"`
		TotalIncome       *Money `json:"totalIncome"`
		TotalExpense      *Money `json:"totalExpense"`
		TotalTransactions *int   `json:"totalTransactions"`
		Currency          string `json:"currency,omitempty"`
	}

	// AdminTransaction is a row of the admin transaction listing.
	AdminTransaction struct {
		TransactionID       int64  `json:"transactionId"`
		Amount              Money  `json:"amount"`
		Date                Date   `json:"date"`
		CategoryName        string `json:"categoryName"`
		TransactionTypeName string `json:"transactionTypeName"`
	}

	// Page is the backend's paging envelope.
	Page[T any] struct {
		Data         []T   `json:"data"`
		TotalPages   int   `json:"totalNoOfPages"`
		TotalRecords int64 `json:"totalNoOfRecords"`
	}
)

const (
	AccountCash       AccountType = "CASH"
	AccountBank       AccountType = "BANK"
	AccountCreditCard AccountType = "CREDIT_CARD"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingCategory    = errors.New("missing category")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrMissingEmail       = errors.New("missing email")
)

// HasRole reports whether the user carries role. A nil user has no roles.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports membership of the admin role marker.
func (u *User) IsAdmin() bool { return u.HasRole(RoleAdmin) }

// IsUser reports membership of the regular user role marker.
func (u *User) IsUser() bool { return u.HasRole(RoleUser) }

// DashboardPath is where the user lands after signing in.
func (u *User) DashboardPath() string {
	if u.IsAdmin() {
		return "/admin/dashboard"
	}
	return "/dashboard"
}

// CurrencyOrDefault returns the configured currency or USD.
func (u *User) CurrencyOrDefault() string {
	if u == nil || u.Currency == "" {
		return DefaultCurrency
	}
	return u.Currency
}

// Location resolves the timezone preference. Empty and unknown zones fall
// back to UTC.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Valid reports whether the user has the identity fields a session needs.
func (u *User) Valid() bool {
	return u != nil && strings.TrimSpace(u.Email) != "" && len(u.Roles) > 0
}

// Merge applies the non-empty fields of patch to u.
func (u *User) Merge(patch User) {
	if patch.Username != "" {
		u.Username = patch.Username
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if len(patch.Roles) > 0 {
		u.Roles = append([]string(nil), patch.Roles...)
	}
	if patch.ProfileImage != "" {
		u.ProfileImage = patch.ProfileImage
	}
	if patch.Timezone != "" {
		u.Timezone = patch.Timezone
	}
	if patch.Currency != "" {
		u.Currency = patch.Currency
	}
}

// IsExpense reports whether the category books expenses.
func (c Category) IsExpense() bool {
	return c.TransactionType.ID == TransactionTypeExpense
}

// EnabledCategories filters to enabled categories, optionally of one type.
// typeID 0 keeps every type.
func EnabledCategories(cats []Category, typeID int) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if !c.Enabled {
			continue
		}
		if typeID != 0 && c.TransactionType.ID != typeID {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (t AccountType) Validate() error {
	switch t {
	case AccountCash, AccountBank, AccountCreditCard:
		return nil
	}
	return ErrInvalidAccountType
}

// TotalBalance sums the balance of every account.
func TotalBalance(accounts []Account) Money {
	total := Zero()
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}
