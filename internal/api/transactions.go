package api

import (
	"context"
	"net/url"
	"strconv"

	"expensia/internal/core"
)

// TransactionQuery selects a page of the user's transactions.
type TransactionQuery struct {
	Email           string
	PageNumber      int
	PageSize        int
	SearchKey       string
	SortField       string
	SortDirection   string
	TransactionType string
}

func (q TransactionQuery) values() url.Values {
	v := params(
		"email", q.Email,
		"pageNumber", strconv.Itoa(q.PageNumber),
		"pageSize", strconv.Itoa(q.PageSize),
		"searchKey", q.SearchKey,
		"sortField", q.SortField,
		"sortDirec", q.SortDirection,
	)
	if q.TransactionType != "" {
		v.Set("transactionType", q.TransactionType)
	}
	return v
}

// TransactionRequest is the create/update body.
type TransactionRequest struct {
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Date        core.Date  `json:"date"`
	Timestamp   string     `json:"timestamp"`
	CategoryID  int64      `json:"categoryId"`
	AccountID   *int64     `json:"accountId"`
	UserEmail   string     `json:"userEmail"`
}

func (c *Client) GetTransactionsByUser(ctx context.Context, q TransactionQuery) (*core.Page[core.Transaction], error) {
	var out core.Page[core.Transaction]
	if err := c.get(ctx, "/transaction/getByUser", q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	var out core.Transaction
	if err := c.get(ctx, "/transaction/getById", params("id", itoa(id)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) error {
	return c.post(ctx, "/transaction/new", nil, req, nil)
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, req TransactionRequest) error {
	return c.put(ctx, "/transaction/update", params("transactionId", itoa(id)), req, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.delete(ctx, "/transaction/delete", params("transactionId", itoa(id)), nil)
}

// GetAllTransactions is the admin listing across every user.
func (c *Client) GetAllTransactions(ctx context.Context, pageNumber, pageSize int, searchKey string) (*core.Page[core.AdminTransaction], error) {
	var out core.Page[core.AdminTransaction]
	q := params(
		"pageNumber", strconv.Itoa(pageNumber),
		"pageSize", strconv.Itoa(pageSize),
		"searchKey", searchKey,
	)
	if err := c.get(ctx, "/transaction/getAll", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
