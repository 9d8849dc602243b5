package api

import (
	"context"
	"strconv"

	"expensia/internal/core"
)

// GetTotalIncomeOrExpense sums one transaction type for a month.
func (c *Client) GetTotalIncomeOrExpense(ctx context.Context, userID int64, typeID, month, year int) (core.Money, error) {
	var out core.Money
	q := params(
		"userId", itoa(userID),
		"transactionTypeId", strconv.Itoa(typeID),
		"month", strconv.Itoa(month),
		"year", strconv.Itoa(year),
	)
	if err := c.get(ctx, "/report/getTotalIncomeOrExpense", q, &out); err != nil {
		return core.Zero(), err
	}
	return out, nil
}

func (c *Client) GetTotalNoOfTransactions(ctx context.Context, userID int64, month, year int) (int64, error) {
	var out int64
	q := params("userId", itoa(userID), "month", strconv.Itoa(month), "year", strconv.Itoa(year))
	if err := c.get(ctx, "/report/getTotalNoOfTransactions", q, &out); err != nil {
		return 0, err
	}
	return out, nil
}

func (c *Client) GetTotalByCategory(ctx context.Context, email string, categoryID int64, month, year int) (core.Money, error) {
	var out core.Money
	q := params(
		"email", email,
		"categoryId", itoa(categoryID),
		"month", strconv.Itoa(month),
		"year", strconv.Itoa(year),
	)
	if err := c.get(ctx, "/report/getTotalByCategory", q, &out); err != nil {
		return core.Zero(), err
	}
	return out, nil
}

func (c *Client) GetMonthlySummary(ctx context.Context, email string) ([]core.MonthlySummary, error) {
	var out []core.MonthlySummary
	if err := c.get(ctx, "/report/getMonthlySummaryByUser", params("email", email), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDashboardSummary(ctx context.Context, email string) (*core.DashboardSummary, error) {
	var out core.DashboardSummary
	if err := c.get(ctx, "/report/getDashboardSummary", params("email", email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCategoryExpenseBreakdown(ctx context.Context, email string, month, year int) ([]core.CategoryExpense, error) {
	var out []core.CategoryExpense
	q := params("email", email, "month", strconv.Itoa(month), "year", strconv.Itoa(year))
	if err := c.get(ctx, "/report/getCategoryExpenseBreakdown", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}
