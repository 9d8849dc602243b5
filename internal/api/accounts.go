package api

import (
	"context"

	"expensia/internal/core"
)

type AccountRequest struct {
	AccountName string           `json:"accountName"`
	AccountType core.AccountType `json:"accountType"`
	Balance     core.Money       `json:"balance"`
	Email       string           `json:"email"`
}

func (c *Client) CreateAccount(ctx context.Context, req AccountRequest) error {
	return c.post(ctx, "/accounts/create", nil, req, nil)
}

func (c *Client) GetAccounts(ctx context.Context, email string) ([]core.Account, error) {
	var out []core.Account
	if err := c.get(ctx, "/accounts/getByUser", params("email", email), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetAccount(ctx context.Context, id int64, email string) (*core.Account, error) {
	var out core.Account
	if err := c.get(ctx, "/accounts/getById", params("accountId", itoa(id), "email", email), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAccount(ctx context.Context, id int64, req AccountRequest) error {
	return c.put(ctx, "/accounts/update", params("accountId", itoa(id)), req, nil)
}

func (c *Client) DeleteAccount(ctx context.Context, id int64, email string) error {
	return c.delete(ctx, "/accounts/delete", params("accountId", itoa(id), "email", email), nil)
}
