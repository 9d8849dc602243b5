package api

import (
	"context"
	"strconv"

	"expensia/internal/core"
)

type MonthlyBudgetRequest struct {
	Amount core.Money `json:"amount"`
	Month  int        `json:"month"`
	Year   int        `json:"year"`
	UserID int64      `json:"userId"`
}

type CategoryBudgetRequest struct {
	Amount     core.Money `json:"amount"`
	Month      int        `json:"month"`
	Year       int        `json:"year"`
	CategoryID int64      `json:"categoryId"`
	Email      string     `json:"email"`
}

func (c *Client) CreateMonthlyBudget(ctx context.Context, req MonthlyBudgetRequest) error {
	return c.post(ctx, "/budget/create", nil, req, nil)
}

// GetMonthlyBudget returns the overall budget for a month. A month without a
// budget comes back as an error matching ErrNotFound.
func (c *Client) GetMonthlyBudget(ctx context.Context, userID int64, month, year int) (*core.MonthlyBudget, error) {
	var out core.MonthlyBudget
	q := params("userId", itoa(userID), "month", strconv.Itoa(month), "year", strconv.Itoa(year))
	if err := c.get(ctx, "/budget/get", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCategoryBudget(ctx context.Context, req CategoryBudgetRequest) error {
	return c.post(ctx, "/budgets/create", nil, req, nil)
}

func (c *Client) GetCategoryBudgets(ctx context.Context, email string, month, year int) ([]core.CategoryBudget, error) {
	var out []core.CategoryBudget
	q := params("email", email, "month", strconv.Itoa(month), "year", strconv.Itoa(year))
	if err := c.get(ctx, "/budgets/getByUser", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBudgetProgress(ctx context.Context, email string, month, year int) ([]core.BudgetProgress, error) {
	var out []core.BudgetProgress
	q := params("email", email, "month", strconv.Itoa(month), "year", strconv.Itoa(year))
	if err := c.get(ctx, "/budgets/progress", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateCategoryBudget(ctx context.Context, id int64, req CategoryBudgetRequest) error {
	return c.put(ctx, "/budgets/update", params("budgetId", itoa(id)), req, nil)
}

func (c *Client) DeleteCategoryBudget(ctx context.Context, id int64, email string) error {
	return c.delete(ctx, "/budgets/delete", params("budgetId", itoa(id), "email", email), nil)
}
