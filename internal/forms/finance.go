package forms

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"expensia/internal/api"
	"expensia/internal/core"
)

const (
	MsgTransactionRequired = "Please fill in all required fields (Amount and Category)"
	MsgInvalidAmount       = "Please enter a valid amount"
	MsgInvalidDate         = "Please enter a valid date"
	MsgEnterBudget         = "Please enter a budget amount"
	MsgEnterCategoryName   = "Please enter a category name"
	MsgEnterAccountName    = "Please enter an account name"
	MsgInvalidAccountType  = "Please select a valid account type"
	MsgSelectFrequency     = "Please select a valid frequency"
	MsgSelectCategory      = "Please select a category"
	MsgInvalidPreferences  = "Please select a supported timezone and currency"
)

// optionalID parses an optional numeric select value. Empty means none.
func optionalID(s string) *int64 {
	if s == "" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

func mustID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// Transaction is the create/edit transaction form.
type Transaction struct {
	Description string `form:"description" validate:"max=255"`
	Amount      string `form:"amount" validate:"required,amount"`
	CategoryID  string `form:"categoryId" validate:"required,number"`
	Date        string `form:"date" validate:"required,datetime=2006-01-02"`
	Time        string `form:"time" validate:"omitempty,datetime=15:04"`
	AccountID   string `form:"accountId" validate:"omitempty,number"`
}

func (Transaction) message(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required" && fe.StructField() != "Date":
		return MsgTransactionRequired
	case fe.StructField() == "Amount":
		return MsgInvalidAmount
	case fe.StructField() == "Date" || fe.StructField() == "Time":
		return MsgInvalidDate
	default:
		return MsgTransactionRequired
	}
}

func ParseTransaction(values url.Values) (*Transaction, error) {
	return parse[Transaction](values)
}

// Timestamp joins the date and time inputs into the backend's local
// date-time form. A missing time means midnight.
func (t *Transaction) Timestamp() string {
	clock := t.Time
	if clock == "" {
		clock = "00:00"
	}
	return t.Date + "T" + clock + ":00"
}

func (t *Transaction) ToRequest(email string) (api.TransactionRequest, error) {
	amount, err := core.ParseAmount(t.Amount)
	if err != nil {
		return api.TransactionRequest{}, err
	}
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return api.TransactionRequest{}, err
	}
	return api.TransactionRequest{
		Description: t.Description,
		Amount:      amount,
		Date:        date,
		Timestamp:   t.Timestamp(),
		CategoryID:  mustID(t.CategoryID),
		AccountID:   optionalID(t.AccountID),
		UserEmail:   email,
	}, nil
}

// TransactionFromCore pre-fills the edit form.
func TransactionFromCore(tx core.Transaction) Transaction {
	f := Transaction{
		Description: tx.Description,
		Amount:      tx.Amount.FormValue(),
		CategoryID:  strconv.FormatInt(tx.Category.ID, 10),
		Date:        tx.Date.String(),
		Time:        tx.Timestamp.Clock(),
	}
	if tx.Account != nil {
		f.AccountID = strconv.FormatInt(tx.Account.ID, 10)
	}
	return f
}

// SavedTransaction is the recurring transaction form. Frequency carries the
// label shown in the select ("one time", "daily", "monthly").
type SavedTransaction struct {
	Description  string `form:"description" validate:"max=255"`
	Amount       string `form:"amount" validate:"required,amount"`
	CategoryID   string `form:"categoryId" validate:"required,number"`
	UpcomingDate string `form:"upcomingDate" validate:"required,datetime=2006-01-02"`
	Frequency    string `form:"frequency" validate:"required,frequency"`
	AccountID    string `form:"accountId" validate:"omitempty,number"`
}

func (SavedTransaction) message(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Amount":
		if fe.Tag() == "required" {
			return MsgTransactionRequired
		}
		return MsgInvalidAmount
	case "UpcomingDate":
		return MsgInvalidDate
	case "Frequency":
		return MsgSelectFrequency
	default:
		return MsgTransactionRequired
	}
}

func ParseSavedTransaction(values url.Values) (*SavedTransaction, error) {
	return parse[SavedTransaction](values)
}

func (s *SavedTransaction) ToRequest(userID int64) (api.SavedTransactionRequest, error) {
	amount, err := core.ParseAmount(s.Amount)
	if err != nil {
		return api.SavedTransactionRequest{}, err
	}
	date, err := core.ParseDate(s.UpcomingDate)
	if err != nil {
		return api.SavedTransactionRequest{}, err
	}
	freq, err := core.ParseFrequencyLabel(s.Frequency)
	if err != nil {
		return api.SavedTransactionRequest{}, err
	}
	return api.SavedTransactionRequest{
		Description:  s.Description,
		Amount:       amount,
		UpcomingDate: date,
		Frequency:    freq,
		CategoryID:   mustID(s.CategoryID),
		AccountID:    optionalID(s.AccountID),
		UserID:       userID,
	}, nil
}

// SavedTransactionFromCore pre-fills the edit form.
func SavedTransactionFromCore(st core.SavedTransaction) SavedTransaction {
	f := SavedTransaction{
		Description: st.Description,
		Amount:      st.Amount.FormValue(),
		CategoryID:  strconv.FormatInt(st.CategoryID, 10),
		Frequency:   st.Frequency.Label(),
	}
	if st.NextDueDate != nil {
		f.UpcomingDate = st.NextDueDate.String()
	} else if st.StartDate != nil {
		f.UpcomingDate = st.StartDate.String()
	}
	if st.AccountID != nil {
		f.AccountID = strconv.FormatInt(*st.AccountID, 10)
	}
	return f
}

// Period is the month/year pair carried by budget forms and selectors.
type Period struct {
	Month int
	Year  int
}

// CurrentPeriod is the month containing now.
func CurrentPeriod(now time.Time) Period {
	return Period{Month: int(now.Month()), Year: now.Year()}
}

// ParsePeriod reads month and year query values, falling back to def for
// anything missing or out of range.
func ParsePeriod(values url.Values, def Period) Period {
	p := def
	if m, err := strconv.Atoi(strings.TrimSpace(values.Get("month"))); err == nil && m >= 1 && m <= 12 {
		p.Month = m
	}
	if y, err := strconv.Atoi(strings.TrimSpace(values.Get("year"))); err == nil && y >= 1970 && y <= 9999 {
		p.Year = y
	}
	return p
}

// CategoryBudget is the per-category monthly budget form.
type CategoryBudget struct {
	CategoryID string `form:"categoryId" validate:"required,number"`
	Amount     string `form:"amount" validate:"required,amount"`
	Month      string `form:"month" validate:"required,number,min=1,max=2"`
	Year       string `form:"year" validate:"required,number,len=4"`
}

func (CategoryBudget) message(fe validator.FieldError) string {
	switch fe.StructField() {
	case "CategoryID":
		return MsgSelectCategory
	case "Amount":
		if fe.Tag() == "required" {
			return MsgEnterBudget
		}
		return MsgInvalidAmount
	default:
		return MsgInvalidDate
	}
}

func ParseCategoryBudget(values url.Values) (*CategoryBudget, error) {
	f, err := parse[CategoryBudget](values)
	if err != nil {
		return nil, err
	}
	if m, _ := strconv.Atoi(f.Month); m < 1 || m > 12 {
		return nil, &Error{Message: MsgInvalidDate, Field: "month"}
	}
	return f, nil
}

func (b *CategoryBudget) ToRequest(email string) (api.CategoryBudgetRequest, error) {
	amount, err := core.ParseAmount(b.Amount)
	if err != nil {
		return api.CategoryBudgetRequest{}, err
	}
	month, _ := strconv.Atoi(b.Month)
	year, _ := strconv.Atoi(b.Year)
	return api.CategoryBudgetRequest{
		Amount:     amount,
		Month:      month,
		Year:       year,
		CategoryID: mustID(b.CategoryID),
		Email:      email,
	}, nil
}

// MonthlyBudget is the dashboard's overall budget form.
type MonthlyBudget struct {
	Amount string `form:"amount" validate:"required,amount"`
}

func (MonthlyBudget) message(fe validator.FieldError) string {
	if fe.Tag() == "required" {
		return MsgEnterBudget
	}
	return MsgInvalidAmount
}

func ParseMonthlyBudget(values url.Values) (*MonthlyBudget, error) {
	return parse[MonthlyBudget](values)
}

func (b *MonthlyBudget) ToRequest(userID int64, p Period) (api.MonthlyBudgetRequest, error) {
	amount, err := core.ParseAmount(b.Amount)
	if err != nil {
		return api.MonthlyBudgetRequest{}, err
	}
	return api.MonthlyBudgetRequest{Amount: amount, Month: p.Month, Year: p.Year, UserID: userID}, nil
}

// Account is the account create/edit form. The balance may be negative.
type Account struct {
	Name    string `form:"accountName" validate:"required,max=100"`
	Type    string `form:"accountType" validate:"required,oneof=CASH BANK CREDIT_CARD"`
	Balance string `form:"balance" validate:"omitempty,signed_amount"`
}

func (Account) message(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Name":
		return MsgEnterAccountName
	case "Type":
		return MsgInvalidAccountType
	default:
		return MsgInvalidAmount
	}
}

func ParseAccount(values url.Values) (*Account, error) { return parse[Account](values) }

func (a *Account) ToRequest(email string) (api.AccountRequest, error) {
	balance, err := core.ParseSignedAmount(a.Balance)
	if err != nil {
		return api.AccountRequest{}, err
	}
	return api.AccountRequest{
		AccountName: a.Name,
		AccountType: core.AccountType(a.Type),
		Balance:     balance,
		Email:       email,
	}, nil
}

// Category is the admin category form.
type Category struct {
	Name   string `form:"categoryName" validate:"required,max=100"`
	TypeID string `form:"transactionTypeId" validate:"required,oneof=1 2"`
}

func (Category) message(fe validator.FieldError) string {
	if fe.StructField() == "Name" {
		return MsgEnterCategoryName
	}
	return "Please select a transaction type"
}

func ParseCategory(values url.Values) (*Category, error) { return parse[Category](values) }

func (c *Category) ToRequest() api.CategoryRequest {
	typeID, _ := strconv.Atoi(c.TypeID)
	return api.CategoryRequest{CategoryName: c.Name, TransactionTypeID: typeID}
}

// Preferences is the settings preferences form.
type Preferences struct {
	Timezone string `form:"timezone" validate:"required,timezone"`
	Currency string `form:"currency" validate:"required,currency"`
}

func (Preferences) message(validator.FieldError) string { return MsgInvalidPreferences }

func ParsePreferences(values url.Values) (*Preferences, error) {
	return parse[Preferences](values)
}

func (p *Preferences) ToCore(email string) core.Preferences {
	return core.Preferences{Email: email, Timezone: p.Timezone, Currency: p.Currency}
}
