package api

import (
	"context"

	"expensia/internal/core"
)

// SavedTransactionRequest is the create/update body of a recurring template.
type SavedTransactionRequest struct {
	Description  string         `json:"description"`
	Amount       core.Money     `json:"amount"`
	UpcomingDate core.Date      `json:"upcomingDate"`
	Frequency    core.Frequency `json:"frequency"`
	CategoryID   int64          `json:"categoryId"`
	AccountID    *int64         `json:"accountId"`
	UserID       int64          `json:"userId"`
}

func (c *Client) CreateSavedTransaction(ctx context.Context, req SavedTransactionRequest) error {
	return c.post(ctx, "/saved/create", nil, req, nil)
}

// GetSavedTransactions lists every template of the user.
func (c *Client) GetSavedTransactions(ctx context.Context, userID int64) ([]core.SavedTransaction, error) {
	var out []core.SavedTransaction
	if err := c.get(ctx, "/saved/user", params("id", itoa(userID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDueSavedTransactions lists the templates due this month.
func (c *Client) GetDueSavedTransactions(ctx context.Context, userID int64) ([]core.SavedTransaction, error) {
	var out []core.SavedTransaction
	if err := c.get(ctx, "/saved/month", params("id", itoa(userID)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSavedTransaction(ctx context.Context, id int64) (*core.SavedTransaction, error) {
	var out core.SavedTransaction
	if err := c.get(ctx, "/saved/", params("id", itoa(id)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmSavedTransaction books the due occurrence as a real transaction.
func (c *Client) ConfirmSavedTransaction(ctx context.Context, id int64) error {
	return c.get(ctx, "/saved/add", params("id", itoa(id)), nil)
}

func (c *Client) UpdateSavedTransaction(ctx context.Context, id int64, req SavedTransactionRequest) error {
	return c.put(ctx, "/saved/", params("id", itoa(id)), req, nil)
}

func (c *Client) DeleteSavedTransaction(ctx context.Context, id int64) error {
	return c.delete(ctx, "/saved/", params("id", itoa(id)), nil)
}

// SkipSavedTransaction moves the template to its next occurrence without booking.
func (c *Client) SkipSavedTransaction(ctx context.Context, id int64) error {
	return c.get(ctx, "/saved/skip", params("id", itoa(id)), nil)
}
